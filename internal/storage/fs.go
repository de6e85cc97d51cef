package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/checksum"
)

// Ext is the extension of mirrored note files.
const Ext = ".txt"

const tmpPattern = ".contextual-tmp-*"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the notes directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute notes directory.
func (f *FS) Root() string { return f.root }

// safePath maps a title to its file and rejects titles that would leave the
// notes directory or name a nested path.
func (f *FS) safePath(title string) (string, error) {
	if title == "" || title == "." || title == ".." || strings.ContainsAny(title, `/\`) || strings.ContainsRune(title, 0) {
		return "", fmt.Errorf("storage: title %q: %w", title, apperr.ErrInvalidArgument)
	}
	abs := filepath.Join(f.root, title+Ext)
	if filepath.Dir(abs) != f.root {
		return "", fmt.Errorf("storage: title escapes notes dir: %q: %w", title, apperr.ErrInvalidArgument)
	}
	return abs, nil
}

// Title maps a path inside the notes directory back to a title.
func (f *FS) Title(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil || filepath.Dir(abs) != f.root {
		return "", false
	}
	name := filepath.Base(abs)
	if !strings.HasSuffix(name, Ext) || strings.HasPrefix(name, ".contextual-tmp-") {
		return "", false
	}
	title := strings.TrimSuffix(name, Ext)
	return title, title != ""
}

// List returns metadata for every note file in the notes directory.
func (f *FS) List() ([]NoteFile, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []NoteFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		title, ok := f.Title(filepath.Join(f.root, e.Name()))
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, e.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, NoteFile{
			Title:     title,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// Read returns the body stored for title.
func (f *FS) Read(title string) (string, error) {
	abs, err := f.safePath(title)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("storage: read %q: %w", title, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("storage: read %q: %w", title, apperr.StoreIO(err))
	}
	return string(data), nil
}

// Write atomically writes body: tmp file → fsync → rename.
func (f *FS) Write(title, body string) error {
	abs, err := f.safePath(title)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, tmpPattern)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", apperr.StoreIO(err))
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(body); err != nil {
		return fmt.Errorf("storage: write temp: %w", apperr.StoreIO(err))
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", apperr.StoreIO(err))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", apperr.StoreIO(err))
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", apperr.StoreIO(err))
	}
	success = true
	return nil
}

// Delete removes the file for title.
func (f *FS) Delete(title string) error {
	abs, err := f.safePath(title)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %q: %w", title, apperr.StoreIO(err))
	}
	return nil
}
