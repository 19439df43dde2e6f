package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/entity"
	"github.com/arcadeyaml/engine/internal/engine/gamedef"
)

// fixtureDefinition builds a tiny two-type game: a duck that bounces off the
// bottom edge and pops when tapped, with a win condition on clearing every
// duck and a lose condition when a duck exits the top of the screen.
func fixtureDefinition() *gamedef.Definition {
	return &gamedef.Definition{
		Name:         "duck-pop",
		ScreenWidth:  320,
		ScreenHeight: 240,
		DefaultLives: 3,
		EntityTypes: map[string]*gamedef.EntityType{
			"duck": {
				Name: "duck", W: 16, H: 16, DefaultColor: "yellow", MaxHealth: 1,
				Tags: []string{"duck"},
				Interactions: []gamedef.InteractionDef{
					{Target: "pointer", Trigger: "enter", Action: "pop",
						Filter: gamedef.FilterDef{Distance: &gamedef.DistancePredicate{Op: "lt", Value: 8, Mode: "from"}}},
				},
			},
			"pointer": {Name: "pointer", W: 1, H: 1, Tags: []string{"pointer"}},
		},
		Actions: map[string]*gamedef.Script{
			"pop": {Name: "pop", Source: `return { execute = function(a, b, dt, ctx)
				ams.add_score(10)
				ams.destroy(a)
			end }`},
		},
		WinCondition: gamedef.WinCondition{Kind: "destroy_all", TargetType: "duck"},
		LoseConditions: []gamedef.LoseCondition{
			{EntityType: "duck", Event: "exited_screen", Edge: "top", Action: "lose_life"},
		},
		Layouts: map[string]*gamedef.Layout{
			"level1": {
				Name: "level1",
				Rows: []string{"D."},
				Key:  map[rune]string{'D': "duck"},
				CellWidth: 20, CellHeight: 20,
			},
		},
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(zap.NewNop(), fixtureDefinition(), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestLoadLayoutSpawnsFromGrid(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.LoadLayout("level1"))

	ducks := s.EntitiesOfType("duck")
	require.Len(t, ducks, 1)
	x, y, ok := s.GetPosition(ducks[0])
	require.True(t, ok)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)
}

func TestLoadLayoutUnknownNameErrors(t *testing.T) {
	s := newTestSession(t)
	err := s.LoadLayout("does-not-exist")
	assert.Error(t, err)
}

func TestPointerHitPopsDuckAndScores(t *testing.T) {
	s := newTestSession(t)
	duckID, err := s.SpawnEntity("duck", 100, 100)
	require.NoError(t, err)
	_, err = s.SpawnEntity("pointer", 100, 100)
	require.NoError(t, err)

	s.Tick(1.0 / 60)

	assert.False(t, s.IsAlive(string(duckID)))
	assert.Equal(t, 10, s.GetScore())
}

func TestExitedScreenFiresLoseLife(t *testing.T) {
	s := newTestSession(t)
	_, err := s.SpawnEntity("duck", 50, -50)
	require.NoError(t, err)

	s.Tick(1.0 / 60)

	assert.Equal(t, 2, s.Lives())
	assert.Equal(t, StatePlaying, s.State())
}

func TestLosingAllLivesEndsGame(t *testing.T) {
	s := newTestSession(t)
	s.lives = 1
	_, err := s.SpawnEntity("duck", 50, -50)
	require.NoError(t, err)

	s.Tick(1.0 / 60)

	assert.Equal(t, 0, s.Lives())
	assert.Equal(t, StateLost, s.State())
	assert.Contains(t, s.DrainTerminalEvents(), string(StateLost))
}

func TestDestroyAllWinsOnlyAfterSpawning(t *testing.T) {
	s := newTestSession(t)

	// no duck has ever spawned: destroy_all must not fire on an empty count.
	s.Tick(1.0 / 60)
	assert.Equal(t, StatePlaying, s.State())

	id, err := s.SpawnEntity("duck", 10, 10)
	require.NoError(t, err)
	s.Destroy(string(id))
	s.Tick(1.0 / 60)

	assert.Equal(t, StateWon, s.State())
}

func TestScheduledCallbackDispatchesToBehavior(t *testing.T) {
	s := newTestSession(t)
	s.def.Behaviors = map[string]*gamedef.Script{
		"timer": {Name: "timer", Source: `return { on_fire = function(id) ams.add_score(5) end }`},
	}
	require.NoError(t, s.compileAllScripts())

	id, err := s.SpawnEntity("duck", 0, 0)
	require.NoError(t, err)
	e := s.store.Get(id)
	e.Behaviors = append(e.Behaviors, entity.Behavior{Name: "timer"})

	s.Schedule(0, "on_fire", string(id))
	s.Tick(1.0 / 60)

	assert.Equal(t, 5, s.GetScore())
}

func TestSnapshotRoundTripRestoresScoreAndPositions(t *testing.T) {
	s := newTestSession(t)
	id, err := s.SpawnEntity("duck", 5, 5)
	require.NoError(t, err)
	s.AddScore(42)

	s.captureSnapshot()
	snap, ok := s.ring.Nearest(s.simTime)
	require.True(t, ok)

	s.SetPosition(string(id), 999, 999)
	s.AddScore(1000)

	s.restoreSnapshot(snap)

	assert.Equal(t, 42, s.GetScore())
	x, y, ok := s.GetPosition(string(id))
	require.True(t, ok)
	assert.Equal(t, 5.0, x)
	assert.Equal(t, 5.0, y)
}

func TestHostMethodsDegradeOnUnknownEntity(t *testing.T) {
	s := newTestSession(t)

	_, _, ok := s.GetPosition("e-missing")
	assert.False(t, ok)
	assert.False(t, s.IsAlive("e-missing"))
	assert.Equal(t, ecs.Nil(), s.GetProp("e-missing", "whatever"))
	assert.Empty(t, s.GetChildren("e-missing"))
	assert.NotPanics(t, func() { s.Destroy("e-missing") })
	assert.NotPanics(t, func() { s.SetPosition("e-missing", 1, 2) })
}

func TestIngestHitQueuesAndAppliesOnTick(t *testing.T) {
	s := newTestSession(t)
	s.IngestHit(PlaneHitEvent{X: 0.5, Y: 0.5, Timestamp: 0, Method: "mouse"})

	s.Tick(1.0 / 60)

	assert.True(t, s.pointerActive)
	assert.Equal(t, 160.0, s.pointerX)
	assert.Equal(t, 120.0, s.pointerY)
}
