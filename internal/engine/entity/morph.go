package entity

import "github.com/arcadeyaml/engine/internal/ecs"

// MorphSpec carries the new type's runtime fields for a morph-type transform
// (§4.G "type change... preserving identity"). It is built by the layer that
// resolves a gamedef.EntityType into runtime terms (the session), so this
// package never imports gamedef.
type MorphSpec struct {
	Type          string
	Tags          []string
	MaxHealth     int
	DefaultColor  string
	DefaultSprite string
	DefaultProps  map[string]ecs.Value
	Behaviors     []Behavior
	Interactions  []Interaction
	Render        []RenderCommand
}

// Morph replaces id's type-derived fields in place: same ID, same X/Y,
// same parent/children links. Velocity is kept only if inheritVelocity;
// custom properties are kept only if preserveProperties, otherwise reset to
// the new type's defaults (§4.G "velocity inheritable, custom properties
// optionally preserved"). Morphing an unknown or dead entity is a no-op.
func (s *Store) Morph(id ecs.EntityID, spec MorphSpec, inheritVelocity, preserveProperties bool) {
	e, ok := s.entities[id]
	if !ok || !e.Alive {
		return
	}

	s.byType[e.Type] = removeID(s.byType[e.Type], id)
	for t := range e.Tags {
		s.byTag[t] = removeID(s.byTag[t], id)
	}

	e.Type = spec.Type
	tags := make(map[string]bool, len(spec.Tags))
	for _, t := range spec.Tags {
		tags[t] = true
	}
	e.Tags = tags
	e.MaxHealth = spec.MaxHealth
	e.Health = spec.MaxHealth
	e.Color = spec.DefaultColor
	e.Sprite = spec.DefaultSprite
	e.Behaviors = append([]Behavior(nil), spec.Behaviors...)
	e.Interactions = append([]Interaction(nil), spec.Interactions...)
	e.Render = append([]RenderCommand(nil), spec.Render...)
	e.lastFilterState = nil
	e.intervalAccum = nil

	if !inheritVelocity {
		e.VX, e.VY = 0, 0
	}
	if !preserveProperties {
		e.Properties = clonePropMap(spec.DefaultProps)
	}

	s.byType[e.Type] = append(s.byType[e.Type], id)
	for t := range tags {
		s.byTag[t] = append(s.byTag[t], id)
	}
}
