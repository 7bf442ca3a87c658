package demand

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T, files map[string]string) *Cache {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return NewCache(dir, 2, zap.NewNop())
}

func TestDemand_LoadAndRelease(t *testing.T) {
	c := newTestCache(t, map[string]string{
		"tree/trunk.mesh": "trunk",
		"tree/bark.tex":   "bark",
		"rock.mesh":       "rock",
	})

	tree := New(c, []string{"tree/trunk.mesh", "tree/bark.tex"})
	other := New(c, []string{"tree/bark.tex", "rock.mesh"})
	assert.False(t, tree.Loaded())

	require.NoError(t, tree.ImmediateLoad(context.Background()))
	require.NoError(t, other.ImmediateLoad(context.Background()))
	assert.True(t, tree.Loaded())
	assert.Equal(t, 3, c.Len())

	b, ok := c.Bytes("tree/bark.tex")
	require.True(t, ok)
	assert.Equal(t, "bark", string(b))

	tree.Release()
	assert.False(t, tree.Loaded())
	assert.False(t, c.Resident("tree/trunk.mesh"))
	assert.True(t, c.Resident("tree/bark.tex"), "still used by other demand")

	tree.Release()
	other.Release()
	assert.Equal(t, 0, c.Len())
}

func TestDemand_EmptyIsLoaded(t *testing.T) {
	d := New(nil, nil)
	assert.True(t, d.Loaded())
	assert.NoError(t, d.ImmediateLoad(context.Background()))
	d.Release()
}

func TestDemand_MissingResourceAcquiresNothing(t *testing.T) {
	c := newTestCache(t, map[string]string{"a.mesh": "a"})
	d := New(c, []string{"a.mesh", "missing.mesh"})

	err := d.ImmediateLoad(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceMissing))
	assert.False(t, d.Loaded())
	assert.Equal(t, 0, c.Len())
}

func TestDemand_NoCache(t *testing.T) {
	d := New(nil, []string{"a.mesh"})
	assert.Error(t, d.ImmediateLoad(context.Background()))
}

func TestCache_RejectsEscapingPath(t *testing.T) {
	c := newTestCache(t, nil)
	err := c.Load(context.Background(), []string{"../secret"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes asset dir")
}

func TestCache_CancelledContext(t *testing.T) {
	c := newTestCache(t, map[string]string{"a.mesh": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Load(ctx, []string{"a.mesh"}), context.Canceled)
}

func TestCache_DuplicateNamesCountTwice(t *testing.T) {
	c := newTestCache(t, map[string]string{"a.mesh": "a"})
	require.NoError(t, c.Load(context.Background(), []string{"a.mesh", "a.mesh"}))
	c.Release([]string{"a.mesh"})
	assert.True(t, c.Resident("a.mesh"))
	c.Release([]string{"a.mesh"})
	assert.False(t, c.Resident("a.mesh"))
}
