package models

import "slices"

// Range is a half-open interval. The unit (bytes, code points, UTF-16
// code units) depends on where it is used.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of units covered.
func (r Range) Len() int { return r.End - r.Start }

// Empty reports whether r covers nothing.
func (r Range) Empty() bool { return r.End <= r.Start }

// Contains reports whether i lies inside r.
func (r Range) Contains(i int) bool { return i >= r.Start && i < r.End }

// Segment is a byte range of a document body. A document's segment list is
// its fingerprint for change detection.
type Segment = Range

// Text returns the part of s covered by seg.
func Text(s string, seg Segment) string { return s[seg.Start:seg.End] }

// SameSegments compares two fingerprints.
func SameSegments(a, b []Segment) bool { return slices.Equal(a, b) }

// Chunk is a segment paired with its embedding.
type Chunk struct {
	Segment
	Embedding []float32
}

// DocumentLocation is the persisted record for a title.
type DocumentLocation struct {
	Title        string    `json:"title"`
	DocumentID   string    `json:"document_id"`
	Segments     []Segment `json:"segments"`
	BodyChecksum string    `json:"body_checksum"`
}

// SearchResult is a plain nearest-neighbour hit. CharacterRange counts
// code points.
type SearchResult struct {
	Distance       float32 `json:"distance"`
	Title          string  `json:"title"`
	CharacterRange Range   `json:"character_range"`
}

// ContextResult is a hit for a cursor-context query. RelevantRange is the
// matched sentence inside Text, in UTF-16 code units.
type ContextResult struct {
	Distance      float32 `json:"distance"`
	Title         string  `json:"title"`
	Text          string  `json:"text"`
	RelevantRange Range   `json:"relevant_range"`
}
