package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/entity"
	"github.com/arcadeyaml/engine/internal/engine/gamedef"
	"github.com/arcadeyaml/engine/internal/engine/scheduler"
)

type fakeResolver struct {
	morphs map[string]entity.MorphSpec
}

func (r *fakeResolver) ResolveSpawn(typeName string, x, y, vx, vy float64, props map[string]ecs.Value) (entity.SpawnParams, bool) {
	return entity.SpawnParams{Type: typeName, X: x, Y: y, VX: vx, VY: vy, W: 4, H: 4, Properties: props}, true
}

func (r *fakeResolver) ResolveMorph(typeName string) (entity.MorphSpec, bool) {
	spec, ok := r.morphs[typeName]
	return spec, ok
}

func (r *fakeResolver) OnUpdateTransforms(typeName string) []gamedef.OnUpdateTransform { return nil }

func TestApplyDestroyDestroysEntity(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	id := store.Spawn(entity.SpawnParams{Type: "ball", X: 0, Y: 0, W: 4, H: 4})
	eng := New(zap.NewNop(), store, &fakeResolver{}, nil, nil, func() float64 { return 0 })

	eng.Apply(id, &gamedef.TransformDef{Kind: "destroy"})

	store.Sweep(entity.SweepHooks{})
	assert.False(t, store.IsValid(id))
}

func TestApplyDestroySpawnsChildren(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	id := store.Spawn(entity.SpawnParams{Type: "asteroid", X: 100, Y: 100, VX: 10, VY: 0, W: 4, H: 4})
	eng := New(zap.NewNop(), store, &fakeResolver{}, nil, nil, func() float64 { return 0 })

	td := &gamedef.TransformDef{
		Kind: "destroy",
		Children: []gamedef.ChildSpawnDef{
			{Type: "shard", Count: 2, OffsetX: "5", OffsetY: "-5", InheritVelocity: 0.5},
		},
	}
	eng.Apply(id, td)

	shards := store.ByType("shard")
	require.Len(t, shards, 2)
	shard := store.Get(shards[0])
	assert.Equal(t, 105.0, shard.X)
	assert.Equal(t, 95.0, shard.Y)
	assert.Equal(t, 5.0, shard.VX)
}

func TestApplyMorphPreservesIdentityAndPosition(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	id := store.Spawn(entity.SpawnParams{Type: "egg", X: 50, Y: 60, VX: 3, VY: 0, W: 4, H: 4})

	resolver := &fakeResolver{morphs: map[string]entity.MorphSpec{
		"duck": {Type: "duck", MaxHealth: 3, DefaultColor: "yellow"},
	}}
	eng := New(zap.NewNop(), store, resolver, nil, nil, func() float64 { return 0 })

	eng.Apply(id, &gamedef.TransformDef{Kind: "morph", NewType: "duck", InheritVelocity: true})

	ent := store.Get(id)
	require.NotNil(t, ent)
	assert.Equal(t, id, ent.ID)
	assert.Equal(t, "duck", ent.Type)
	assert.Equal(t, 50.0, ent.X)
	assert.Equal(t, 3.0, ent.VX)
	assert.Equal(t, 3, ent.MaxHealth)
}

func TestChildLifetimeSchedulesAutoDestroy(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	id := store.Spawn(entity.SpawnParams{Type: "gun", X: 0, Y: 0, W: 4, H: 4})
	sched := scheduler.New(zap.NewNop(), 0)
	eng := New(zap.NewNop(), store, &fakeResolver{}, nil, sched, func() float64 { return 0 })

	eng.Apply(id, &gamedef.TransformDef{
		Kind: "morph",
		Children: []gamedef.ChildSpawnDef{
			{Type: "bullet", Count: 1, Lifetime: 2.0},
		},
	})
	// morph with no matching resolver entry is a no-op on the parent, but the
	// child still spawns before the (failed) morph lookup.
	bullets := store.ByType("bullet")
	require.Len(t, bullets, 1)

	sched.Tick(2.5, func(ecs.EntityID) bool { return true }, nil)
	store.Sweep(entity.SweepHooks{})
	assert.False(t, store.IsValid(bullets[0]))
}

func TestOnUpdateIntervalFiresOncePerInterval(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	id := store.Spawn(entity.SpawnParams{Type: "spawner", X: 0, Y: 0, W: 4, H: 4})

	calls := 0
	resolver := &intervalResolver{onUpdate: []gamedef.OnUpdateTransform{
		{HasInterval: true, Interval: 1.0, Transform: gamedef.TransformDef{Kind: "morph", NewType: "noop"}},
	}}
	_ = calls
	eng := New(zap.NewNop(), store, resolver, nil, nil, func() float64 { return 0 })

	ent := store.Get(id)
	require.False(t, eng.onUpdateMatches(ent, resolver.onUpdate[0], 0, 0, 0.4))
	require.False(t, eng.onUpdateMatches(ent, resolver.onUpdate[0], 0, 0, 0.4))
	require.True(t, eng.onUpdateMatches(ent, resolver.onUpdate[0], 0, 0, 0.4))
}

type intervalResolver struct {
	onUpdate []gamedef.OnUpdateTransform
}

func (r *intervalResolver) ResolveSpawn(typeName string, x, y, vx, vy float64, props map[string]ecs.Value) (entity.SpawnParams, bool) {
	return entity.SpawnParams{}, false
}
func (r *intervalResolver) ResolveMorph(typeName string) (entity.MorphSpec, bool) {
	return entity.MorphSpec{}, false
}
func (r *intervalResolver) OnUpdateTransforms(typeName string) []gamedef.OnUpdateTransform {
	return r.onUpdate
}
