// Package transform executes the declarative side effects of §4.G: the
// destroy and morph-type transforms attached to on_destroy/on_parent_destroy
// hooks and on_update conditions, their child-spawn descriptors, and the
// type-level on_update evaluation loop. It never runs lose-condition event
// detection itself (that needs game-level score/lives state the session
// owns) but applies the `then:` transform a lose condition names.
package transform

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/entity"
	"github.com/arcadeyaml/engine/internal/engine/gamedef"
	"github.com/arcadeyaml/engine/internal/engine/scheduler"
)

// Generator evaluates a named generator script for a child-spawn expression,
// given the spawn index (`i`, 0-based within the Count loop) and the parent
// entity's properties for the script to read.
type Generator interface {
	Eval(scriptName string, index int, parentProps map[string]ecs.Value) (ecs.Value, error)
}

// TypeResolver turns a gamedef entity-type name into the runtime terms the
// entity store needs, keeping this package free of any entity<->gamedef
// conversion logic (the session owns that, since it already depends on both).
type TypeResolver interface {
	ResolveSpawn(typeName string, x, y, vx, vy float64, props map[string]ecs.Value) (entity.SpawnParams, bool)
	ResolveMorph(typeName string) (entity.MorphSpec, bool)
	OnUpdateTransforms(typeName string) []gamedef.OnUpdateTransform
}

// Engine applies TransformDefs and runs the type-level on_update pass.
type Engine struct {
	log      *zap.Logger
	store    *entity.Store
	resolver TypeResolver
	gen      Generator
	sched    *scheduler.Queue
	now      func() float64
}

// New builds a transform Engine. now returns the current simulation time,
// used to compute each alive entity's age for on_update age-window checks.
func New(log *zap.Logger, store *entity.Store, resolver TypeResolver, gen Generator, sched *scheduler.Queue, now func() float64) *Engine {
	return &Engine{log: log, store: store, resolver: resolver, gen: gen, sched: sched, now: now}
}

// Apply executes td against id: it first spawns td's children relative to
// id's (pre-transform) position and velocity, then destroys or morphs id. A
// nil td is a no-op.
func (e *Engine) Apply(id ecs.EntityID, td *gamedef.TransformDef) {
	if td == nil {
		return
	}
	source := e.store.Get(id)
	if source == nil {
		return
	}

	e.spawnChildren(source, td.Children)

	switch td.Kind {
	case "destroy":
		e.store.Destroy(id)
	case "morph":
		spec, ok := e.resolver.ResolveMorph(td.NewType)
		if !ok {
			e.log.Warn("morph transform: unknown target type", zap.String("type", td.NewType))
			return
		}
		e.store.Morph(id, spec, td.InheritVelocity, td.PreserveProperties)
	}
}

func (e *Engine) spawnChildren(parent *entity.Entity, children []gamedef.ChildSpawnDef) {
	for _, c := range children {
		for i := 0; i < c.Count; i++ {
			e.spawnChild(parent, c, i)
		}
	}
}

func (e *Engine) spawnChild(parent *entity.Entity, c gamedef.ChildSpawnDef, index int) {
	ox := e.resolveNumber(c.OffsetX, parent, index)
	oy := e.resolveNumber(c.OffsetY, parent, index)

	props := make(map[string]ecs.Value, len(c.Properties))
	for k, expr := range c.Properties {
		props[k] = e.resolveValue(expr, parent, index)
	}

	params, ok := e.resolver.ResolveSpawn(c.Type, parent.X+ox, parent.Y+oy,
		parent.VX*c.InheritVelocity, parent.VY*c.InheritVelocity, props)
	if !ok {
		e.log.Warn("child spawn: unknown entity type", zap.String("type", c.Type))
		return
	}
	id := e.store.Spawn(params)
	if id == "" {
		return
	}
	if c.Lifetime > 0 && e.sched != nil {
		child := id
		e.sched.ScheduleRaw(c.Lifetime, func() { e.store.Destroy(child) })
	}
}

// EvaluateOnUpdate runs every alive entity's type-level on_update transforms
// once per frame (§4.G), in entity spawn order and declaration order.
func (e *Engine) EvaluateOnUpdate(dt float64) {
	now := e.now()
	for _, id := range e.store.AllAlive() {
		ent := e.store.Get(id)
		if ent == nil {
			continue
		}
		for idx, ou := range e.resolver.OnUpdateTransforms(ent.Type) {
			if !e.onUpdateMatches(ent, ou, idx, now, dt) {
				continue
			}
			td := ou.Transform
			e.Apply(id, &td)
		}
	}
}

func (e *Engine) onUpdateMatches(ent *entity.Entity, ou gamedef.OnUpdateTransform, idx int, now, dt float64) bool {
	if ou.HasAgeMin && ent.Age(now) < ou.AgeMin {
		return false
	}
	if ou.HasAgeMax && ent.Age(now) > ou.AgeMax {
		return false
	}
	if ou.HasPropertyCheck && !ent.Properties[ou.Property].Equal(ou.Value) {
		return false
	}
	if ou.HasInterval {
		acc := ent.AddIntervalAccumulator(idx, dt)
		if acc < ou.Interval {
			return false
		}
		ent.ResetIntervalAccumulator(idx)
	}
	return true
}

// resolveNumber evaluates a child-spawn offset expression against parent.
func (e *Engine) resolveNumber(expr string, parent *entity.Entity, index int) float64 {
	return e.resolveValue(expr, parent, index).AsNumber()
}

// resolveValue evaluates a literal, `$property`, or `$script:name` generator
// reference against parent (§4.G "value may be $property references... or
// inline script expressions").
func (e *Engine) resolveValue(expr string, parent *entity.Entity, index int) ecs.Value {
	switch {
	case expr == "":
		return ecs.Nil()
	case strings.HasPrefix(expr, "$script:"):
		name := strings.TrimPrefix(expr, "$script:")
		if e.gen == nil {
			return ecs.Nil()
		}
		v, err := e.gen.Eval(name, index, parent.Properties)
		if err != nil {
			e.log.Warn("generator script failed", zap.String("script", name), zap.Error(err))
			return ecs.Nil()
		}
		return v
	case strings.HasPrefix(expr, "$"):
		key := strings.TrimPrefix(expr, "$")
		return parent.Properties[key]
	default:
		if f, err := strconv.ParseFloat(expr, 64); err == nil {
			return ecs.Number(f)
		}
		return ecs.String(expr)
	}
}
