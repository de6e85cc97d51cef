// Package segment turns note bodies into the units the index and the
// classifier work on.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/contextual/internal/models"
)

// ChunkText splits text into bullet items, numbered items and runs of
// unmarked lines, then splits each of those into sentences. The result is
// ordered, non-overlapping byte ranges into text.
//
// A bullet is a line whose first non-space rune is '-'. A numbered item
// starts with a number followed by any mix of digits, ')', '.' and spaces.
// Consecutive unmarked lines are merged into one block and trimmed.
//
// Unmarked runs between two marked lines are kept as blocks of their own.
// Earlier versions of this segmenter only kept the leading and trailing
// runs and silently dropped interior ones, so prose between list items was
// never indexed.
func ChunkText(text string) []models.Segment {
	var blocks []models.Segment
	runStart := -1
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		if r, ok := trimRange(text, runStart, end); ok {
			blocks = append(blocks, r)
		}
		runStart = -1
	}

	for start := 0; ; {
		end := len(text)
		if i := strings.IndexByte(text[start:], '\n'); i >= 0 {
			end = start + i
		}
		if body, ok := markedBody(text[start:end]); ok {
			flush(start)
			if start+body < end {
				blocks = append(blocks, models.Segment{Start: start + body, End: end})
			}
		} else if runStart < 0 {
			runStart = start
		}
		if end == len(text) {
			flush(end)
			break
		}
		start = end + 1
	}

	var out []models.Segment
	for _, b := range blocks {
		for _, s := range Sentences(text[b.Start:b.End]) {
			out = append(out, models.Segment{Start: b.Start + s.Start, End: b.Start + s.End})
		}
	}
	return out
}

// markedBody returns the offset within line where the item text of a
// bullet or numbered line begins.
func markedBody(line string) (int, bool) {
	i := skipSpace(line, 0)
	if i == len(line) {
		return 0, false
	}
	r, size := utf8.DecodeRuneInString(line[i:])
	switch {
	case r == '-':
		return skipSpace(line, i+size), true
	case unicode.IsNumber(r):
		i += size
		for i < len(line) {
			r, size = utf8.DecodeRuneInString(line[i:])
			if !unicode.IsNumber(r) && r != ')' && r != '.' && !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		return i, true
	}
	return 0, false
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

func trimRange(s string, start, end int) (models.Segment, bool) {
	part := s[start:end]
	lead := len(part) - len(strings.TrimLeftFunc(part, unicode.IsSpace))
	trimmed := strings.TrimSpace(part)
	if trimmed == "" {
		return models.Segment{}, false
	}
	return models.Segment{Start: start + lead, End: start + lead + len(trimmed)}, true
}
