package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/contextual/internal/apperr"
)

// Handle names a loaded workspace. It is an index into the registry's slots
// and becomes stale once the workspace is unloaded.
type Handle int

// Factory builds the workspace for a directory.
type Factory func(location string) (*Workspace, error)

// Registry holds the loaded workspaces. Freed slots are reused.
type Registry struct {
	mu     sync.RWMutex
	slots  []*Workspace
	free   []int
	pinned map[Handle]struct{}
	build  Factory
}

// NewRegistry returns an empty registry that loads workspaces with build.
func NewRegistry(build Factory) *Registry {
	return &Registry{build: build, pinned: make(map[Handle]struct{})}
}

// Pin keeps the workspace behind h loaded until Close. Unload and Delete
// refuse pinned handles with ErrWorkspaceInUse.
func (r *Registry) Pin(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded(h) {
		return fmt.Errorf("workspace: handle %d: %w", h, apperr.ErrWorkspaceNotLoaded)
	}
	r.pinned[h] = struct{}{}
	return nil
}

func (r *Registry) loaded(h Handle) bool {
	return int(h) >= 0 && int(h) < len(r.slots) && r.slots[h] != nil
}

// Load opens the workspace at location in a new slot, even when the same
// directory is already loaded.
func (r *Registry) Load(location string) (Handle, error) {
	ws, err := r.build(location)
	if err != nil {
		return -1, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(ws), nil
}

// Lookup returns the handle of the workspace loaded from location, loading
// it when there is none.
func (r *Registry) Lookup(location string) (Handle, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return -1, fmt.Errorf("workspace: resolve %q: %w", location, err)
	}
	abs = filepath.Clean(abs)

	r.mu.RLock()
	for i, ws := range r.slots {
		if ws != nil && ws.Location() == abs {
			r.mu.RUnlock()
			return Handle(i), nil
		}
	}
	r.mu.RUnlock()

	ws, err := r.build(abs)
	if err != nil {
		return -1, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, other := range r.slots {
		if other != nil && other.Location() == abs {
			_ = ws.Close()
			return Handle(i), nil
		}
	}
	return r.insert(ws), nil
}

func (r *Registry) insert(ws *Workspace) Handle {
	if n := len(r.free); n > 0 {
		i := r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[i] = ws
		return Handle(i)
	}
	r.slots = append(r.slots, ws)
	return Handle(len(r.slots) - 1)
}

// Get returns the workspace behind h.
func (r *Registry) Get(h Handle) (*Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded(h) {
		return nil, fmt.Errorf("workspace: handle %d: %w", h, apperr.ErrWorkspaceNotLoaded)
	}
	return r.slots[h], nil
}

// Unload closes the workspace behind h and frees its slot.
func (r *Registry) Unload(h Handle) error {
	ws, err := r.take(h)
	if err != nil {
		return err
	}
	return ws.Close()
}

// Delete unloads the workspace behind h and removes its directory.
func (r *Registry) Delete(h Handle) error {
	ws, err := r.take(h)
	if err != nil {
		return err
	}
	closeErr := ws.Close()
	if err := os.RemoveAll(ws.Location()); err != nil {
		return fmt.Errorf("workspace: delete %s: %w", ws.Location(), apperr.StoreIO(err))
	}
	return closeErr
}

func (r *Registry) take(h Handle) (*Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded(h) {
		return nil, fmt.Errorf("workspace: handle %d: %w", h, apperr.ErrWorkspaceNotLoaded)
	}
	if _, ok := r.pinned[h]; ok {
		return nil, fmt.Errorf("workspace: handle %d: %w", h, apperr.ErrWorkspaceInUse)
	}
	ws := r.slots[h]
	r.slots[h] = nil
	r.free = append(r.free, int(h))
	return ws, nil
}

// Close unloads every workspace.
func (r *Registry) Close() error {
	r.mu.Lock()
	slots := r.slots
	r.slots, r.free = nil, nil
	clear(r.pinned)
	r.mu.Unlock()

	var errs []error
	for _, ws := range slots {
		if ws != nil {
			errs = append(errs, ws.Close())
		}
	}
	return errors.Join(errs...)
}
