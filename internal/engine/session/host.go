package session

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
)

// This file implements sandbox.Host: every ams.* function bottoms out here,
// translating a string entity ID back into the store's entity.Store lookups.
// Unknown or dead IDs degrade to the zero value rather than panicking,
// matching the host API's "logged and treated as safe default" policy (§7).

func (s *Session) GetPosition(id string) (x, y float64, ok bool) {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return 0, 0, false
	}
	return e.X, e.Y, true
}

func (s *Session) SetPosition(id string, x, y float64) {
	if e := s.store.Get(ecs.EntityID(id)); e != nil {
		e.X, e.Y = x, y
	}
}

func (s *Session) GetVelocity(id string) (vx, vy float64, ok bool) {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return 0, 0, false
	}
	return e.VX, e.VY, true
}

func (s *Session) SetVelocity(id string, vx, vy float64) {
	if e := s.store.Get(ecs.EntityID(id)); e != nil {
		e.VX, e.VY = vx, vy
	}
}

func (s *Session) GetSize(id string) (w, h float64, ok bool) {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return 0, 0, false
	}
	return e.W, e.H, true
}

func (s *Session) GetSprite(id string) (string, bool) {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return "", false
	}
	return e.Sprite, true
}

func (s *Session) SetSprite(id, name string) {
	if e := s.store.Get(ecs.EntityID(id)); e != nil {
		e.Sprite = name
	}
}

func (s *Session) GetColor(id string) (string, bool) {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return "", false
	}
	return e.Color, true
}

func (s *Session) SetColor(id, name string) {
	if e := s.store.Get(ecs.EntityID(id)); e != nil {
		e.Color = name
	}
}

func (s *Session) SetVisible(id string, visible bool) {
	if e := s.store.Get(ecs.EntityID(id)); e != nil {
		e.Visible = visible
	}
}

func (s *Session) GetHealth(id string) (int, bool) {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return 0, false
	}
	return e.Health, true
}

func (s *Session) SetHealth(id string, v int) {
	if e := s.store.Get(ecs.EntityID(id)); e != nil {
		e.Health = v
	}
}

func (s *Session) IsAlive(id string) bool {
	e := s.store.Get(ecs.EntityID(id))
	return e != nil && e.Alive
}

func (s *Session) Destroy(id string) { s.store.Destroy(ecs.EntityID(id)) }

func (s *Session) GetProp(id, key string) ecs.Value {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return ecs.Nil()
	}
	return e.Properties[key]
}

func (s *Session) SetProp(id, key string, v ecs.Value) {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return
	}
	if e.Properties == nil {
		e.Properties = make(map[string]ecs.Value)
	}
	e.Properties[key] = v
}

// GetConfig reads behaviorName's per-attachment config map on id, falling
// back to def if the behavior isn't attached or the key is absent.
func (s *Session) GetConfig(id, behaviorName, key string, def ecs.Value) ecs.Value {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return def
	}
	for _, b := range e.Behaviors {
		if b.Name != behaviorName {
			continue
		}
		if v, ok := b.Config[key]; ok {
			return v
		}
		return def
	}
	return def
}

func idStrings(ids []ecs.EntityID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func (s *Session) EntitiesOfType(t string) []string { return idStrings(s.store.ByType(t)) }
func (s *Session) EntitiesByTag(tag string) []string { return idStrings(s.store.ByTag(tag)) }
func (s *Session) CountByTag(tag string) int         { return len(s.store.ByTag(tag)) }
func (s *Session) AllEntityIDs() []string            { return idStrings(s.store.AllAlive()) }

func (s *Session) ScreenWidth() int  { return s.def.ScreenWidth }
func (s *Session) ScreenHeight() int { return s.def.ScreenHeight }
func (s *Session) Score() int        { return s.score }
func (s *Session) AddScore(delta int) { s.score += delta }

func (s *Session) PlaySound(name string) { s.sched.PlaySound(name, s.simTime) }

func (s *Session) Schedule(delaySeconds float64, callbackName, entityID string) {
	s.sched.Schedule(delaySeconds, callbackName, ecs.EntityID(entityID))
}

// Spawn implements the host-API ams.spawn(...), letting a script override
// geometry/visuals the way a child-spawn descriptor cannot (§4.E). Zero/empty
// overrides fall back to the entity type's own defaults.
func (s *Session) Spawn(typ string, x, y, vx, vy, w, h float64, color, sprite string) string {
	et, ok := s.lookupType(typ)
	if !ok {
		return ""
	}
	p := baseSpawnParams(et)
	p.X, p.Y, p.VX, p.VY = x, y, vx, vy
	p.SpawnTime = s.simTime
	if w > 0 {
		p.W = w
	}
	if h > 0 {
		p.H = h
	}
	if color != "" {
		p.Color = color
	}
	if sprite != "" {
		p.Sprite = sprite
	}
	return string(s.store.Spawn(p))
}

func (s *Session) SetParent(child, parent string, ox, oy float64) {
	if err := s.store.SetParent(ecs.EntityID(child), ecs.EntityID(parent), ox, oy); err != nil {
		s.log.Warn("set_parent failed", zap.Error(err))
	}
}

func (s *Session) DetachFromParent(id string) { s.store.Detach(ecs.EntityID(id)) }

func (s *Session) HasParent(id string) bool {
	e := s.store.Get(ecs.EntityID(id))
	return e != nil && e.Parent != ""
}

func (s *Session) GetParentID(id string) string {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return ""
	}
	return string(e.Parent)
}

func (s *Session) GetChildren(id string) []string {
	e := s.store.Get(ecs.EntityID(id))
	if e == nil {
		return nil
	}
	return idStrings(e.Children)
}

// Random implements sandbox.Host.Random; the returned *rand.Rand wraps the
// session's rollback.Source so every draw is replayable from a snapshot.
func (s *Session) Random() *rand.Rand { return s.rng }
