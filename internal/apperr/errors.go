// Package apperr holds the error kinds surfaced to callers of the engine.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrDocumentDoesNotExist     = errors.New("document does not exist")
	ErrEmbedderInitFailed       = errors.New("embedder initialization failed")
	ErrEmptyClassificationInput = errors.New("empty input for classification")
	ErrStoreIO                  = errors.New("store i/o error")
	ErrCursorOutOfRange         = errors.New("cursor out of range")
	ErrWorkspaceNotLoaded       = errors.New("workspace not loaded")
	ErrWorkspaceInUse           = errors.New("workspace in use")
	ErrInvalidTag               = errors.New("invalid tag")
	ErrInvalidArgument          = errors.New("invalid argument")
)

// StoreIO marks err as a storage failure while keeping it inspectable.
func StoreIO(err error) error {
	if err == nil || errors.Is(err, ErrStoreIO) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreIO, err)
}
