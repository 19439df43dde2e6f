package interact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/entity"
)

type fakeRunner struct {
	calls []string
}

func (r *fakeRunner) RunAction(name string, a, b ecs.EntityID, dt float64) error {
	r.calls = append(r.calls, name+":"+string(a)+":"+string(b))
	return nil
}

func spawnAt(t *testing.T, s *entity.Store, typ string, x, y float64, interactions []entity.Interaction) ecs.EntityID {
	t.Helper()
	return s.Spawn(entity.SpawnParams{Type: typ, X: x, Y: y, W: 10, H: 10, Interactions: interactions})
}

func TestEnterTriggerFiresOnceOnOverlap(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	runner := &fakeRunner{}
	eng := New(zap.NewNop(), store, runner, 800, 600)

	in := entity.Interaction{
		Target:  "wall",
		Trigger: entity.TriggerEnter,
		Action:  "bounce",
		Filter: entity.Filter{Predicates: []entity.Predicate{
			{Kind: entity.PredicateDistance, Op: entity.OpLt, Value: ecs.Number(5)},
		}},
	}
	ball := spawnAt(t, store, "ball", 0, 0, []entity.Interaction{in})
	spawnAt(t, store, "wall", 0, 0, nil)

	eng.Evaluate(1.0 / 60)
	eng.Evaluate(1.0 / 60) // same overlap persists: must not re-fire enter

	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "bounce:"+string(ball))
}

func TestExitTriggerFiresOnceOnSeparation(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	runner := &fakeRunner{}
	eng := New(zap.NewNop(), store, runner, 800, 600)

	in := entity.Interaction{
		Target:  "wall",
		Trigger: entity.TriggerExit,
		Action:  "leave",
		Filter: entity.Filter{Predicates: []entity.Predicate{
			{Kind: entity.PredicateDistance, Op: entity.OpLt, Value: ecs.Number(5)},
		}},
	}
	ball := store.Spawn(entity.SpawnParams{Type: "ball", X: 0, Y: 0, W: 10, H: 10, Interactions: []entity.Interaction{in}})
	wall := store.Spawn(entity.SpawnParams{Type: "wall", X: 0, Y: 0, W: 10, H: 10})

	eng.Evaluate(1.0 / 60) // overlapping: active, no exit fire yet
	require.Empty(t, runner.calls)

	w := store.Get(wall)
	w.X, w.Y = 500, 500 // move far away
	eng.Evaluate(1.0 / 60)

	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "leave:"+string(ball))
}

func TestContinuousTriggerFiresEveryFrameWhileActive(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	runner := &fakeRunner{}
	eng := New(zap.NewNop(), store, runner, 800, 600)

	in := entity.Interaction{
		Target:  "wall",
		Trigger: entity.TriggerContinuous,
		Action:  "push",
		Filter: entity.Filter{Predicates: []entity.Predicate{
			{Kind: entity.PredicateDistance, Op: entity.OpLt, Value: ecs.Number(5)},
		}},
	}
	store.Spawn(entity.SpawnParams{Type: "ball", X: 0, Y: 0, W: 10, H: 10, Interactions: []entity.Interaction{in}})
	store.Spawn(entity.SpawnParams{Type: "wall", X: 0, Y: 0, W: 10, H: 10})

	eng.Evaluate(1.0 / 60)
	eng.Evaluate(1.0 / 60)
	eng.Evaluate(1.0 / 60)

	assert.Len(t, runner.calls, 3)
}

func TestEdgesPredicateDetectsScreenBoundary(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	runner := &fakeRunner{}
	eng := New(zap.NewNop(), store, runner, 100, 100)

	in := entity.Interaction{
		Target:  "*",
		Trigger: entity.TriggerEnter,
		Action:  "clamp",
		Filter: entity.Filter{Predicates: []entity.Predicate{
			{Kind: entity.PredicateEdges, Edges: []string{"right"}, Margin: 0},
		}},
	}
	store.Spawn(entity.SpawnParams{Type: "ball", X: 95, Y: 0, W: 10, H: 10, Interactions: []entity.Interaction{in}})

	eng.Evaluate(1.0 / 60)
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "clamp")
}
