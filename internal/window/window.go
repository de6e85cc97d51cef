// Package window resolves cursor positions to sentence windows and
// translates ranges between byte, code point and UTF-16 offsets.
package window

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/models"
)

// SentenceRange picks size consecutive sentences around target out of n.
// The window leans toward the sentences after target near the start of a
// document: end = min(target+size/2, n), start = max(end-size, 0).
func SentenceRange(n, target, size int) models.Range {
	end := min(target+size/2, n)
	start := max(end-size, 0)
	return models.Range{Start: start, End: end}
}

// Around is SentenceRange widened, when needed, so the window always holds
// target. Only sizes below 2 need widening.
func Around(n, target, size int) models.Range {
	r := SentenceRange(n, target, size)
	if target < 0 || target >= n {
		return r
	}
	r.Start = min(r.Start, target)
	r.End = max(r.End, target+1)
	return r
}

// UTF16Range converts a byte range of text into UTF-16 code units.
func UTF16Range(text string, r models.Range) models.Range {
	start := utf16Len(text[:r.Start])
	return models.Range{Start: start, End: start + utf16Len(text[r.Start:r.End])}
}

// CharRange converts a byte range of text into code points.
func CharRange(text string, r models.Range) models.Range {
	start := utf8.RuneCountInString(text[:r.Start])
	return models.Range{Start: start, End: start + utf8.RuneCountInString(text[r.Start:r.End])}
}

// CursorByteOffset maps a UTF-16 cursor index to the byte offset of the
// first code point at which the running UTF-16 length, counting that code
// point, reaches the cursor.
func CursorByteOffset(text string, cursor int) (int, error) {
	if cursor < 0 {
		return 0, fmt.Errorf("window: cursor %d: %w", cursor, apperr.ErrCursorOutOfRange)
	}
	n := 0
	for i, r := range text {
		n += utf16.RuneLen(r)
		if n >= cursor {
			return i, nil
		}
	}
	return 0, fmt.Errorf("window: cursor %d beyond %d code units: %w", cursor, n, apperr.ErrCursorOutOfRange)
}

// TargetSentence returns the index of the first sentence ending at or after
// offset, the last sentence when none does, and -1 when there are none.
func TargetSentence(sentences []models.Segment, offset int) int {
	for i, s := range sentences {
		if offset <= s.End {
			return i
		}
	}
	return len(sentences) - 1
}

// ContainingSentence returns the index of the sentence holding offset, or
// the last sentence when none does.
func ContainingSentence(sentences []models.Segment, offset int) int {
	for i, s := range sentences {
		if s.Contains(offset) {
			return i
		}
	}
	return len(sentences) - 1
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
