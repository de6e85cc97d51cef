package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/testutil"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	emb := testutil.Embedder(t)
	boot := testBootstrap()
	r := NewRegistry(func(location string) (*Workspace, error) {
		return New(location, emb, boot, WithLogger(testutil.Logger()))
	})
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRegistryLoadGetUnload(t *testing.T) {
	r := testRegistry(t)
	dir := t.TempDir()

	h, err := r.Load(dir)
	require.NoError(t, err)
	ws, err := r.Get(h)
	require.NoError(t, err)
	assert.Equal(t, dir, ws.Location())
	assert.DirExists(t, filepath.Join(dir, notesDir))

	require.NoError(t, r.Unload(h))
	_, err = r.Get(h)
	assert.ErrorIs(t, err, apperr.ErrWorkspaceNotLoaded)
	assert.ErrorIs(t, r.Unload(h), apperr.ErrWorkspaceNotLoaded)
}

func TestRegistryLoadAlwaysAddsSlot(t *testing.T) {
	r := testRegistry(t)
	dir := t.TempDir()

	a, err := r.Load(dir)
	require.NoError(t, err)
	b, err := r.Load(dir)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRegistryLookupReusesLoadedWorkspace(t *testing.T) {
	r := testRegistry(t)
	dir := t.TempDir()

	h, err := r.Load(dir)
	require.NoError(t, err)
	got, err := r.Lookup(filepath.Join(dir, "notes", ".."))
	require.NoError(t, err)
	assert.Equal(t, h, got)

	other, err := r.Lookup(t.TempDir())
	require.NoError(t, err)
	assert.NotEqual(t, h, other)
}

func TestRegistryDeleteRemovesDirectory(t *testing.T) {
	r := testRegistry(t)
	dir := filepath.Join(t.TempDir(), "ws")

	h, err := r.Load(dir)
	require.NoError(t, err)
	require.NoError(t, r.Delete(h))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	_, err = r.Get(h)
	assert.ErrorIs(t, err, apperr.ErrWorkspaceNotLoaded)
}

func TestRegistryRejectsBadHandles(t *testing.T) {
	r := testRegistry(t)
	for _, h := range []Handle{-1, 0, 7} {
		_, err := r.Get(h)
		assert.ErrorIs(t, err, apperr.ErrWorkspaceNotLoaded)
	}
}

func TestRegistryPinnedHandleStaysLoaded(t *testing.T) {
	r := testRegistry(t)
	dir := t.TempDir()

	h, err := r.Lookup(dir)
	require.NoError(t, err)
	require.NoError(t, r.Pin(h))

	assert.ErrorIs(t, r.Unload(h), apperr.ErrWorkspaceInUse)
	assert.ErrorIs(t, r.Delete(h), apperr.ErrWorkspaceInUse)
	assert.DirExists(t, dir)

	ws, err := r.Get(h)
	require.NoError(t, err)
	_, _, err = ws.SaveNote(context.Background(), "still-open", "The index is still usable.")
	require.NoError(t, err)

	again, err := r.Lookup(dir)
	require.NoError(t, err)
	assert.Equal(t, h, again)

	assert.ErrorIs(t, r.Pin(Handle(42)), apperr.ErrWorkspaceNotLoaded)
}
