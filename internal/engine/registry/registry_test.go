package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/engine/contentfs"
	"github.com/arcadeyaml/engine/internal/engine/gamedef"
)

func writeGame(t *testing.T, root, slug, yaml string) {
	t.Helper()
	dir := filepath.Join(root, "games", slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.yaml"), []byte(yaml), 0o644))
}

func newTestRegistry(t *testing.T, root string) *Registry {
	t.Helper()
	fs := contentfs.New(zap.NewNop(), root, nil, root)
	loader, err := gamedef.NewLoader(zap.NewNop(), fs, nil, true)
	require.NoError(t, err)
	return New(zap.NewNop(), fs, loader)
}

const minimalYAML = `
name: Breakout
description: Bricks and a paddle.
version: "1.0"
author: Someone
screen_width: 800
screen_height: 600
entity_types:
  ball: {width: 10, height: 10}
win_condition: {kind: destroy_all, target_type: ball}
`

func TestDiscoverFindsYAMLGame(t *testing.T) {
	root := t.TempDir()
	writeGame(t, root, "breakout", minimalYAML)

	r := newTestRegistry(t, root)
	require.NoError(t, r.Discover())

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "breakout", list[0].Slug)
	assert.Equal(t, "Breakout", list[0].Name)
}

func TestDiscoverSkipsReservedAndHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	writeGame(t, root, "base", minimalYAML)
	writeGame(t, root, "_scratch", minimalYAML)
	writeGame(t, root, ".hidden", minimalYAML)
	writeGame(t, root, "common", minimalYAML)

	r := newTestRegistry(t, root)
	require.NoError(t, r.Discover())
	assert.Empty(t, r.List())
}

func TestDiscoverSkipsDirectoryMissingGameYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "games", "empty"), 0o755))

	r := newTestRegistry(t, root)
	require.NoError(t, r.Discover())
	assert.Empty(t, r.List())
}

func TestDiscoverWithNoGamesDirectoryIsNotAnError(t *testing.T) {
	root := t.TempDir()
	r := newTestRegistry(t, root)
	assert.NoError(t, r.Discover())
	assert.Empty(t, r.List())
}

type fakeNative struct{ slug string }

func (f fakeNative) Slug() string      { return f.slug }
func (f fakeNative) Metadata() Metadata { return Metadata{Slug: f.slug, Name: "Native Game", Native: true} }

func TestNativeRegistrationWinsOverSameSlugYAML(t *testing.T) {
	root := t.TempDir()
	writeGame(t, root, "arena", minimalYAML)

	r := newTestRegistry(t, root)
	r.RegisterNative(fakeNative{slug: "arena"})
	require.NoError(t, r.Discover())

	meta, ok := r.Lookup("arena")
	require.True(t, ok)
	assert.True(t, meta.Native)
}

func TestLoadReturnsFullDefinitionForYAMLGame(t *testing.T) {
	root := t.TempDir()
	writeGame(t, root, "breakout", minimalYAML)

	r := newTestRegistry(t, root)
	require.NoError(t, r.Discover())

	def, err := r.Load(context.Background(), "breakout")
	require.NoError(t, err)
	assert.Equal(t, "Breakout", def.Name)
}

func TestLoadFailsForUnknownSlug(t *testing.T) {
	r := newTestRegistry(t, t.TempDir())
	require.NoError(t, r.Discover())
	_, err := r.Load(context.Background(), "nope")
	assert.Error(t, err)
}
