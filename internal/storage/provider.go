// Package storage mirrors note bodies to plain text files, one file per
// title.
package storage

import "time"

// NoteFile describes one mirrored note.
type NoteFile struct {
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for note mirror operations. Notes are
// addressed by title.
type Provider interface {
	// List returns metadata for every mirrored note.
	List() ([]NoteFile, error)
	// Read returns the body stored for title.
	Read(title string) (string, error)
	// Write atomically stores body for title.
	Write(title, body string) error
	// Delete removes the file for title. A missing file is not an error.
	Delete(title string) error
	// Title maps a file path back to the title it stores.
	Title(path string) (string, bool)
	// Root is the absolute mirror directory.
	Root() string
}
