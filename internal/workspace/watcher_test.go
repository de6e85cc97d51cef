package workspace

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/contextual/internal/testutil"
)

const (
	watchWait = 5 * time.Second
	watchTick = 50 * time.Millisecond
)

// watchWorkspace starts a watcher on ws and stops it when the test ends.
func watchWorkspace(t *testing.T, ws *Workspace, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, ws, testutil.Logger(), cb)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func indexed(ws *Workspace, title string) bool {
	_, err := ws.GetTags(context.Background(), title)
	return err == nil
}

func writeNoteFile(t *testing.T, ws *Workspace, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(ws.NotesDir(), name), []byte(body), 0o644))
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	ws := newTestWorkspace(t)

	var mu sync.Mutex
	var events []string
	watchWorkspace(t, ws, func(kind, title string) {
		mu.Lock()
		events = append(events, kind+":"+title)
		mu.Unlock()
	})

	writeNoteFile(t, ws, "new.txt", "The cat sleeps.")

	assert.Eventually(t, func() bool { return indexed(ws, "new") }, watchWait, watchTick,
		"new file not indexed by watcher")
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return slices.Contains(events, "created:new") || slices.Contains(events, "updated:new")
	}, 2*time.Second, watchTick, "expected a callback for new")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	ws := newTestWorkspace(t)
	watchWorkspace(t, ws, nil)

	writeNoteFile(t, ws, "draft.md", "The cat sleeps.")
	writeNoteFile(t, ws, "real.txt", "The dog barks.")

	require.Eventually(t, func() bool { return indexed(ws, "real") }, watchWait, watchTick,
		"real.txt not indexed by watcher")
	assert.False(t, indexed(ws, "draft"))
	assert.False(t, indexed(ws, "draft.md"))
}

func TestWatcher_SaveNoteDoesNotLoop(t *testing.T) {
	ws := newTestWorkspace(t)

	var mu sync.Mutex
	count := 0
	watchWorkspace(t, ws, func(kind, title string) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	_, _, err := ws.SaveNote(context.Background(), "saved", "The cat sleeps.")
	require.NoError(t, err)
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, count, 1, "watcher re-indexed its own save")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	ws := newTestWorkspace(t)
	save(t, ws, "del", "Delete me.")

	watchWorkspace(t, ws, nil)
	require.NoError(t, os.Remove(filepath.Join(ws.NotesDir(), "del.txt")))

	assert.Eventually(t, func() bool { return !indexed(ws, "del") }, watchWait, watchTick,
		"deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	ws := newTestWorkspace(t)
	save(t, ws, "old", "Rename me.")

	watchWorkspace(t, ws, nil)
	require.NoError(t, os.Rename(filepath.Join(ws.NotesDir(), "old.txt"), filepath.Join(ws.NotesDir(), "renamed.txt")))

	assert.Eventually(t, func() bool { return !indexed(ws, "old") && indexed(ws, "renamed") }, watchWait, watchTick,
		"old title should be removed and new title indexed")
}
