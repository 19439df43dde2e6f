// Package interact evaluates every entity's declared interactions each frame
// (§4.F): resolves collision/proximity candidates, tests the declarative
// filter against each candidate, tracks enter/exit edge state per
// declaration, and dispatches the matching action.
package interact

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/entity"
)

// ActionRunner executes a named action script against an (a, b) entity pair.
// The canonical call is the 4-arg form (a, b, dt, ctx); legacy 2-/3-arg
// scripts are handled by the runner itself so this package stays agnostic
// to the sandbox calling convention (§4.F "action dispatch").
type ActionRunner interface {
	RunAction(actionName string, a, b ecs.EntityID, dt float64) error
}

// Candidates resolves an interaction's Target into a set of entity IDs:
// an entity type name, a tag, or (unimplemented here) a system pseudo-entity.
type Candidates interface {
	ByType(t string) []ecs.EntityID
	ByTag(tag string) []ecs.EntityID
	AllAlive() []ecs.EntityID
	Get(id ecs.EntityID) *entity.Entity
}

// Engine runs the per-frame interaction pass.
type Engine struct {
	log      *zap.Logger
	store    *entity.Store
	runner   ActionRunner
	screenW  float64
	screenH  float64
}

// New builds an interaction Engine bound to store and runner. screenW/H feed
// the `edges:` predicate sugar, which tests proximity to the play-field
// boundary rather than another entity.
func New(log *zap.Logger, store *entity.Store, runner ActionRunner, screenW, screenH float64) *Engine {
	return &Engine{log: log, store: store, runner: runner, screenW: screenW, screenH: screenH}
}

// Evaluate runs one frame of interaction evaluation over every alive entity's
// declared interactions, in entity spawn order and declaration order, for
// determinism (§8.1).
func (e *Engine) Evaluate(dt float64) {
	for _, aid := range e.store.AllAlive() {
		a := e.store.Get(aid)
		if a == nil || !a.Alive {
			continue
		}
		for idx, in := range a.Interactions {
			e.evaluateOne(a, idx, in, dt)
		}
	}
}

func (e *Engine) evaluateOne(a *entity.Entity, idx int, in entity.Interaction, dt float64) {
	candidates := e.resolveCandidates(in.Target, a.ID)

	var matched ecs.EntityID
	active := false
	for _, bid := range candidates {
		b := e.store.Get(bid)
		if b == nil || !b.Alive {
			continue
		}
		if e.matchesFilter(a, b, in.Filter) {
			active = true
			matched = bid
			break // first match wins; declaration order + spawn order makes this deterministic
		}
	}

	prev, hadPrev := a.LastState(idx)
	fire := false
	switch in.Trigger {
	case entity.TriggerEnter:
		fire = active && (!hadPrev || !prev)
	case entity.TriggerExit:
		fire = !active && hadPrev && prev
	case entity.TriggerContinuous:
		fire = active
	}
	a.SetLastState(idx, active)

	if !fire {
		return
	}
	if in.Action == "" {
		return
	}
	target := matched
	if target == "" {
		target = a.ID // exit triggers have no current match; action still runs with a as both sides
	}
	if err := e.runner.RunAction(in.Action, a.ID, target, dt); err != nil {
		e.log.Warn("action script failed", zap.String("action", in.Action),
			zap.String("entity", string(a.ID)), zap.Error(err))
	}
}

// resolveCandidates expands a Target into concrete entity IDs. Type and tag
// targets leave out the asking entity, so it never pairs with itself through
// them; "*" returns every alive entity, the asking one included.
func (e *Engine) resolveCandidates(target string, self ecs.EntityID) []ecs.EntityID {
	if target == "" {
		return nil
	}
	if target == "*" {
		return e.store.AllAlive()
	}
	byType := e.store.ByType(target)
	if len(byType) > 0 {
		return excludeSelf(byType, self)
	}
	return excludeSelf(e.store.ByTag(target), self)
}

func excludeSelf(ids []ecs.EntityID, self ecs.EntityID) []ecs.EntityID {
	out := ids[:0:0]
	for _, id := range ids {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) matchesFilter(a, b *entity.Entity, f entity.Filter) bool {
	for _, p := range f.Predicates {
		if !e.matchesPredicate(a, b, p) {
			return false
		}
	}
	return true
}

func (e *Engine) matchesPredicate(a, b *entity.Entity, p entity.Predicate) bool {
	switch p.Kind {
	case entity.PredicateDistance:
		return matchesNumeric(aabbDistance(a, b), p)
	case entity.PredicateAngle:
		ang := angleBetween(a, b)
		return ang >= p.Lo.AsNumber() && ang <= p.Hi.AsNumber()
	case entity.PredicateProp:
		return matchesProp(a, b, p)
	case entity.PredicateEdges:
		return e.matchesEdges(a, p)
	default:
		return false
	}
}

func matchesNumeric(v float64, p entity.Predicate) bool {
	switch p.Op {
	case entity.OpEq:
		return v == p.Value.AsNumber()
	case entity.OpLt:
		return v < p.Value.AsNumber()
	case entity.OpGt:
		return v > p.Value.AsNumber()
	case entity.OpLte:
		return v <= p.Value.AsNumber()
	case entity.OpGte:
		return v >= p.Value.AsNumber()
	case entity.OpBetween:
		return v >= p.Lo.AsNumber() && v <= p.Hi.AsNumber()
	default:
		return false
	}
}

func matchesProp(a, b *entity.Entity, p entity.Predicate) bool {
	src := a
	key := p.Mode
	if len(key) > 2 && key[:2] == "b." {
		src = b
		key = key[2:]
	} else if len(key) > 2 && key[:2] == "a." {
		key = key[2:]
	}
	v := src.Properties[key]
	switch p.Op {
	case entity.OpEq:
		return v.Equal(p.Value)
	case entity.OpLt:
		return v.AsNumber() < p.Value.AsNumber()
	case entity.OpGt:
		return v.AsNumber() > p.Value.AsNumber()
	case entity.OpLte:
		return v.AsNumber() <= p.Value.AsNumber()
	case entity.OpGte:
		return v.AsNumber() >= p.Value.AsNumber()
	case entity.OpBetween:
		return v.AsNumber() >= p.Lo.AsNumber() && v.AsNumber() <= p.Hi.AsNumber()
	case entity.OpIn:
		for _, candidate := range p.In {
			if v.Equal(candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (e *Engine) matchesEdges(a *entity.Entity, p entity.Predicate) bool {
	box := a.AABB()
	for _, edge := range p.Edges {
		switch edge {
		case "left":
			if box.Min.X <= p.Margin {
				return true
			}
		case "right":
			if box.Max.X >= e.screenW-p.Margin {
				return true
			}
		case "top":
			if box.Min.Y <= p.Margin {
				return true
			}
		case "bottom":
			if box.Max.Y >= e.screenH-p.Margin {
				return true
			}
		}
	}
	return false
}

// aabbDistance is the gap between a's and b's AABBs: 0 when they overlap or
// touch, otherwise the straight-line distance between their nearest edges.
func aabbDistance(a, b *entity.Entity) float64 {
	ab, bb := a.AABB(), b.AABB()
	dx := math.Max(0, math.Max(ab.Min.X-bb.Max.X, bb.Min.X-ab.Max.X))
	dy := math.Max(0, math.Max(ab.Min.Y-bb.Max.Y, bb.Min.Y-ab.Max.Y))
	return math.Sqrt(dx*dx + dy*dy)
}

// angleBetween returns the heading from a to b in the engine's 0=north,
// clockwise-positive convention (§3.1), matching Entity.Heading.
func angleBetween(a, b *entity.Entity) float64 {
	ac, bc := a.AABB().Center(), b.AABB().Center()
	dx, dy := bc.X-ac.X, bc.Y-ac.Y
	deg := math.Atan2(dx, -dy) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// BroadphaseCandidates returns every alive entity other than self whose AABB
// overlaps self's, sorted by ID. The interaction pass does not call it.
func BroadphaseCandidates(store Candidates, self *entity.Entity) []ecs.EntityID {
	box := self.AABB()
	var hits []ecs.EntityID
	for _, id := range store.AllAlive() {
		if id == self.ID {
			continue
		}
		other := store.Get(id)
		if other == nil || !other.Alive {
			continue
		}
		if box.Overlaps(other.AABB()) {
			hits = append(hits, id)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i] < hits[j] })
	return hits
}
