package contentfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadeyaml/engine/internal/platform/apperr"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestUserLayerShadowsEngineLayer(t *testing.T) {
	userRoot, engineRoot := t.TempDir(), t.TempDir()
	writeFile(t, engineRoot, "games/demo/game.yaml", "from: engine")
	writeFile(t, userRoot, "games/demo/game.yaml", "from: user")

	fs := New(zap.NewNop(), userRoot, nil, engineRoot)

	text, err := fs.ReadText("games/demo/game.yaml")
	require.NoError(t, err)
	assert.Equal(t, "from: user", text)
}

func TestOverlayPriorityOrder(t *testing.T) {
	userRoot, engineRoot := t.TempDir(), t.TempDir()
	overlayA, overlayB := t.TempDir(), t.TempDir()
	writeFile(t, overlayA, "x.txt", "A")
	writeFile(t, overlayB, "x.txt", "B")

	fs := New(zap.NewNop(), userRoot, []string{overlayA, overlayB}, engineRoot)

	text, err := fs.ReadText("x.txt")
	require.NoError(t, err)
	assert.Equal(t, "A", text, "first overlay listed should win (higher priority)")
}

func TestPathTraversalRejectedPerLayer(t *testing.T) {
	fs := New(zap.NewNop(), t.TempDir(), nil, t.TempDir())

	_, err := fs.ReadBytes("../../../etc/passwd")
	require.Error(t, err)
	var ee *apperr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, apperr.KindIllegalPath, ee.Kind)
}

func TestAbsolutePathRejected(t *testing.T) {
	fs := New(zap.NewNop(), t.TempDir(), nil, t.TempDir())

	_, err := fs.ReadBytes("/etc/passwd")
	require.Error(t, err)
	var ee *apperr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, apperr.KindIllegalPath, ee.Kind)
}

func TestMissingFileIsNotFoundNotIllegal(t *testing.T) {
	fs := New(zap.NewNop(), t.TempDir(), nil, t.TempDir())

	_, err := fs.ReadBytes("games/nope/game.yaml")
	require.ErrorIs(t, err, ErrNotFound)
}
