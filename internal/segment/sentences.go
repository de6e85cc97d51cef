package segment

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/starford/contextual/internal/models"
)

// Sentences returns the UAX #29 sentences of text as byte ranges. Line
// breaks do not end a sentence, trailing spaces stay with the sentence
// they follow, and blank sentences are skipped.
func Sentences(text string) []models.Segment {
	if text == "" {
		return nil
	}
	buf := []byte(text)
	for i, b := range buf {
		if b == '\n' || b == '\r' {
			buf[i] = ' '
		}
	}

	var (
		out      []models.Segment
		sentence string
		pos      int
		state    = -1
	)
	rest := string(buf)
	for len(rest) > 0 {
		sentence, rest, state = uniseg.FirstSentenceInString(rest, state)
		start := pos
		pos += len(sentence)
		if strings.TrimSpace(sentence) == "" {
			continue
		}
		out = append(out, models.Segment{Start: start, End: pos})
	}
	return out
}

// DocumentSentences splits a whole document into sentences without any
// bullet or list handling. The classifier uses it for inference.
func DocumentSentences(text string) []models.Segment {
	r, ok := trimRange(text, 0, len(text))
	if !ok {
		return nil
	}
	out := Sentences(text[r.Start:r.End])
	for i := range out {
		out[i].Start += r.Start
		out[i].End += r.Start
	}
	return out
}

// Texts resolves segments against text.
func Texts(text string, segs []models.Segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = models.Text(text, s)
	}
	return out
}
