package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/ecs"
	"github.com/arcadeyaml/engine/internal/engine/entity"
)

func TestEmitSkipsInvisibleEntities(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	id := store.Spawn(entity.SpawnParams{Type: "ball", X: 0, Y: 0, W: 4, H: 4,
		Render: []entity.RenderCommand{{Kind: "circle", Width: "4", Height: "4"}}})
	store.Get(id).Visible = false

	e := New(zap.NewNop(), store, nil, nil)
	assert.Empty(t, e.Emit())
}

func TestEmitResolvesLiteralOffsetsAndSize(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	store.Spawn(entity.SpawnParams{Type: "ball", X: 10, Y: 20, W: 4, H: 4,
		Render: []entity.RenderCommand{{Kind: "circle", OffsetX: "1", OffsetY: "2", Width: "8", Height: "8"}}})

	e := New(zap.NewNop(), store, nil, nil)
	cmds := e.Emit()
	require.Len(t, cmds, 1)
	assert.Equal(t, 11.0, cmds[0].X)
	assert.Equal(t, 22.0, cmds[0].Y)
	assert.Equal(t, 8.0, cmds[0].Width)
}

func TestEmitResolvesPropertyReference(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	store.Spawn(entity.SpawnParams{Type: "bar", X: 0, Y: 0, W: 4, H: 4,
		Properties: map[string]ecs.Value{"width": ecs.Number(30)},
		Render:     []entity.RenderCommand{{Kind: "rectangle", Width: "$width", Height: "4"}}})

	e := New(zap.NewNop(), store, nil, nil)
	cmds := e.Emit()
	require.Len(t, cmds, 1)
	assert.Equal(t, 30.0, cmds[0].Width)
}

func TestEmitStopHaltsRemainingCommandsForThatEntity(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	store.Spawn(entity.SpawnParams{Type: "thing", X: 0, Y: 0, W: 4, H: 4,
		Render: []entity.RenderCommand{
			{Kind: "rectangle", Width: "4", Height: "4"},
			{Kind: "stop"},
			{Kind: "circle", Width: "4", Height: "4"},
		}})

	e := New(zap.NewNop(), store, nil, nil)
	cmds := e.Emit()
	require.Len(t, cmds, 1)
	assert.Equal(t, "rectangle", cmds[0].Kind)
}

func TestEmitResolvesSpriteTemplate(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	store.Spawn(entity.SpawnParams{Type: "duck", X: 0, Y: 0, W: 4, H: 4, Color: "yellow",
		Properties: map[string]ecs.Value{"frame": ecs.Number(2)},
		Render:     []entity.RenderCommand{{Kind: "sprite", SpriteName: "duck_{color}_{frame}"}}})

	e := New(zap.NewNop(), store, nil, nil)
	cmds := e.Emit()
	require.Len(t, cmds, 1)
	assert.Equal(t, "duck_yellow_2", cmds[0].SpriteName)
}

func TestEmitDefaultsAlphaToOpaque(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	store.Spawn(entity.SpawnParams{Type: "x", X: 0, Y: 0, W: 4, H: 4,
		Render: []entity.RenderCommand{{Kind: "rectangle"}}})

	e := New(zap.NewNop(), store, nil, nil)
	cmds := e.Emit()
	require.Len(t, cmds, 1)
	assert.Equal(t, 255, cmds[0].Alpha)
}

func TestEmitHonorsWhenPredicate(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	store.Spawn(entity.SpawnParams{Type: "x", X: 0, Y: 0, W: 4, H: 4,
		Properties: map[string]ecs.Value{"hurt": ecs.Bool(false)},
		Render: []entity.RenderCommand{
			{Kind: "rectangle", When: &entity.Filter{Predicates: []entity.Predicate{
				{Kind: entity.PredicateProp, Mode: "hurt", Op: entity.OpEq, Value: ecs.Bool(true)},
			}}},
		}})

	e := New(zap.NewNop(), store, nil, nil)
	assert.Empty(t, e.Emit())
}

func TestResolveColorUsesPaletteThenLiteral(t *testing.T) {
	store := entity.NewStore(zap.NewNop(), 0)
	store.Spawn(entity.SpawnParams{Type: "x", X: 0, Y: 0, W: 4, H: 4,
		Render: []entity.RenderCommand{{Kind: "rectangle", Color: "primary"}}})

	e := New(zap.NewNop(), store, map[string]string{"primary": "#ff0000"}, nil)
	cmds := e.Emit()
	require.Len(t, cmds, 1)
	assert.Equal(t, "#ff0000", cmds[0].Color)
}
