// Package models defines the domain types shared across the engine.
package models

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/contextual/internal/apperr"
)

// Document is a note as stored in a workspace. Title is its key.
type Document struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Tag labels a document. Two tags are the same tag when their names match,
// regardless of who assigned them.
type Tag struct {
	Name   string `json:"name"`
	Manual bool   `json:"manual"`
}

// NormalizeTagName applies NFC and trims surrounding whitespace.
// Names stay case-sensitive.
func NormalizeTagName(name string) (string, error) {
	n := strings.TrimSpace(norm.NFC.String(name))
	if n == "" {
		return "", fmt.Errorf("%w: empty name", apperr.ErrInvalidTag)
	}
	return n, nil
}

// NewTag builds a tag with a normalized name.
func NewTag(name string, manual bool) (Tag, error) {
	n, err := NormalizeTagName(name)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Name: n, Manual: manual}, nil
}

// ManualTags normalizes user supplied names into manual tags.
func ManualTags(names []string) ([]Tag, error) {
	tags := make([]Tag, 0, len(names))
	for _, name := range names {
		t, err := NewTag(name, true)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// NormalizeTagNames normalizes and de-duplicates a tag filter.
func NormalizeTagNames(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		n, err := NormalizeTagName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// SortDedup orders tags by name and keeps the first tag of each name.
// Callers rely on the stable sort: in manual ++ automatic the manual tag
// survives a name collision.
func SortDedup(tags []Tag) []Tag {
	out := slices.Clone(tags)
	slices.SortStableFunc(out, func(a, b Tag) int { return cmp.Compare(a.Name, b.Name) })
	return slices.CompactFunc(out, func(a, b Tag) bool { return a.Name == b.Name })
}

// Automatic returns the tags the classifier assigned.
func Automatic(tags []Tag) []Tag {
	var out []Tag
	for _, t := range tags {
		if !t.Manual {
			out = append(out, t)
		}
	}
	return out
}

// Manual returns the tags the user assigned.
func Manual(tags []Tag) []Tag {
	var out []Tag
	for _, t := range tags {
		if t.Manual {
			out = append(out, t)
		}
	}
	return out
}

// TagNames lists the names of tags in order.
func TagNames(tags []Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}

// TaggedDocument is a document with its current tag set.
type TaggedDocument struct {
	Document
	Tags []Tag `json:"tags"`
}

// HasTags reports whether every name in required is one of d's tags.
func (d TaggedDocument) HasTags(required []string) bool {
	for _, r := range required {
		if !slices.ContainsFunc(d.Tags, func(t Tag) bool { return t.Name == r }) {
			return false
		}
	}
	return true
}
