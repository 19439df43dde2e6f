// Package entity owns every entity in a session (§3.2, §4.D) and enforces its
// lifecycle: spawn, mutate, destroy-pending, end-of-frame sweep, and
// parent/child hierarchy by ID rather than by pointer (Design Notes §9).
package entity

import (
	"math"

	"github.com/arcadeyaml/engine/internal/ecs"
)

// Behavior is an attached behavior name plus its opaque per-behavior config,
// as declared in the entity type (§3.4).
type Behavior struct {
	Name   string
	Config map[string]ecs.Value
}

// Interaction is one (filter, trigger, action) declaration belonging to the
// entity, keyed by its declaration index for stable evaluation order (§4.F).
type Interaction struct {
	Target  string // entity type name, tag, or system pseudo-entity name
	Filter  Filter
	Trigger Trigger
	Action  string
}

// Filter is the boolean predicate evaluated against an (A, B) pair. The zero
// value matches unconditionally.
type Filter struct {
	Predicates []Predicate
}

// Predicate is one conjunct of a Filter (§4.F "when:").
type Predicate struct {
	Kind   PredicateKind
	Mode   string // "from" | "to" for distance; property path for prop predicates
	Op     Operator
	Value  ecs.Value
	Lo, Hi ecs.Value // for "between"
	In     []ecs.Value
	Edges  []string // for the `edges:` sugar predicate
	Margin float64
}

type PredicateKind int

const (
	PredicateDistance PredicateKind = iota
	PredicateAngle
	PredicateProp
	PredicateEdges
)

type Operator int

const (
	OpEq Operator = iota
	OpLt
	OpGt
	OpLte
	OpGte
	OpBetween
	OpIn
)

// Trigger is one of the three edge-detection modes (§4.F "because:").
type Trigger int

const (
	TriggerEnter Trigger = iota
	TriggerExit
	TriggerContinuous
)

// RenderCommand is one entry of an entity type's render command list (§4.J).
// OffsetX/Y, Width, Height, Color, and Alpha carry the unresolved literal or
// `$property`/inline-script expression text; the renderer resolves them
// against the owning entity at draw time, never at spawn time, so a moving
// or mutating property is reflected every frame.
type RenderCommand struct {
	Kind             string // rectangle|circle|triangle|polygon|line|sprite|text|stop
	OffsetX, OffsetY string
	Width, Height    string
	Color            string
	Alpha            string
	Fill             bool
	LineWidth        float64
	SpriteName       string
	Text             string
	FontSize         float64
	When             *Filter
}

// Entity is the sole gameplay object (§3.2). The entity store owns it
// exclusively; scripts and the interaction engine only ever see its ID.
type Entity struct {
	ID   ecs.EntityID
	Type string
	Tags map[string]bool

	X, Y   float64
	W, H   float64
	VX, VY float64

	Sprite  string
	Color   string
	Visible bool
	Render  []RenderCommand

	Health     int
	MaxHealth  int
	Alive      bool
	SpawnTime  float64

	Properties map[string]ecs.Value

	Behaviors    []Behavior
	Interactions []Interaction

	Parent   ecs.EntityID
	OffsetX, OffsetY float64
	Children []ecs.EntityID

	DestroyPending bool

	// interval/edge bookkeeping, keyed by interaction declaration index.
	lastFilterState map[int]bool
	intervalAccum   map[int]float64
}

// Age returns now - SpawnTime, the `age` computed property (§3.2).
func (e *Entity) Age(now float64) float64 { return now - e.SpawnTime }

// Heading returns degrees from the velocity vector, 0 = north, clockwise,
// matching the interaction-engine angle convention pinned in §3.1.
func (e *Entity) Heading() float64 {
	if e.VX == 0 && e.VY == 0 {
		return 0
	}
	return headingFromVector(e.VX, e.VY)
}

// Facing returns "left" or "right" from the sign of vx.
func (e *Entity) Facing() string {
	if e.VX < 0 {
		return "left"
	}
	return "right"
}

// HealthRatio returns health/maxHealth, or 1 if MaxHealth is non-positive.
func (e *Entity) HealthRatio() float64 {
	if e.MaxHealth <= 0 {
		return 1
	}
	return float64(e.Health) / float64(e.MaxHealth)
}

// DamageRatio is 1 - HealthRatio, the `damage_ratio` computed property.
func (e *Entity) DamageRatio() float64 { return 1 - e.HealthRatio() }

// AABB returns the entity's current bounding box.
func (e *Entity) AABB() ecs.AABB {
	return ecs.AABB{Min: ecs.Vector2{X: e.X, Y: e.Y}, Max: ecs.Vector2{X: e.X + e.W, Y: e.Y + e.H}}
}

// HasTag reports whether the entity carries the given tag.
func (e *Entity) HasTag(tag string) bool { return e.Tags[tag] }

// LastState returns the interaction engine's previous-frame active/inactive
// verdict for the interaction at declaration index idx, used to detect
// enter/exit edges (§4.F).
func (e *Entity) LastState(idx int) (bool, bool) {
	v, ok := e.lastFilterState[idx]
	return v, ok
}

// SetLastState records this frame's active/inactive verdict for idx.
func (e *Entity) SetLastState(idx int, v bool) {
	if e.lastFilterState == nil {
		e.lastFilterState = make(map[int]bool)
	}
	e.lastFilterState[idx] = v
}

// IntervalAccumulator returns the accumulated time since idx's on_update
// interval condition last fired (or since spawn, if it never has).
func (e *Entity) IntervalAccumulator(idx int) float64 {
	return e.intervalAccum[idx]
}

// AddIntervalAccumulator adds dt to idx's accumulator and returns the new total.
func (e *Entity) AddIntervalAccumulator(idx int, dt float64) float64 {
	if e.intervalAccum == nil {
		e.intervalAccum = make(map[int]float64)
	}
	e.intervalAccum[idx] += dt
	return e.intervalAccum[idx]
}

// ResetIntervalAccumulator zeroes idx's accumulator after it fires.
func (e *Entity) ResetIntervalAccumulator(idx int) {
	if e.intervalAccum == nil {
		return
	}
	e.intervalAccum[idx] = 0
}

// clone produces a deep copy sufficient for snapshotting (§4.I) or for the
// shadow-commit model within a frame.
func (e *Entity) clone() *Entity {
	cp := *e
	cp.Tags = cloneTagSet(e.Tags)
	cp.Properties = clonePropMap(e.Properties)
	cp.Children = append([]ecs.EntityID(nil), e.Children...)
	cp.Render = append([]RenderCommand(nil), e.Render...)
	cp.Behaviors = append([]Behavior(nil), e.Behaviors...)
	cp.Interactions = append([]Interaction(nil), e.Interactions...)
	cp.lastFilterState = cloneBoolMap(e.lastFilterState)
	cp.intervalAccum = cloneFloatMap(e.intervalAccum)
	return &cp
}

func cloneTagSet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func clonePropMap(in map[string]ecs.Value) map[string]ecs.Value {
	out := make(map[string]ecs.Value, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}

func cloneBoolMap(in map[int]bool) map[int]bool {
	if in == nil {
		return nil
	}
	out := make(map[int]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// headingFromVector converts a velocity vector to degrees with 0 = north,
// clockwise positive, per the interaction-engine angle convention (§3.1).
func headingFromVector(vx, vy float64) float64 {
	deg := math.Atan2(vx, -vy) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

func cloneFloatMap(in map[int]float64) map[int]float64 {
	if in == nil {
		return nil
	}
	out := make(map[int]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
