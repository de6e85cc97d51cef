package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/contextual/internal/apperr"
	"github.com/starford/contextual/internal/models"
)

func TestSentenceRange(t *testing.T) {
	tests := []struct {
		name               string
		n, target, size    int
		wantStart, wantEnd int
	}{
		{"middle window 3", 20, 10, 3, 8, 11},
		{"start window 3", 20, 0, 3, 0, 1},
		{"second sentence window 3", 20, 1, 3, 0, 2},
		{"end window 3", 20, 19, 3, 17, 20},
		{"window 4", 5, 3, 4, 1, 5},
		{"window larger than document", 2, 1, 10, 0, 2},
		{"window 1 truncates", 20, 10, 1, 9, 10},
		{"empty", 0, 0, 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SentenceRange(tt.n, tt.target, tt.size)
			assert.Equal(t, models.Range{Start: tt.wantStart, End: tt.wantEnd}, got)
		})
	}
}

func TestSentenceRangeWindow3Law(t *testing.T) {
	for n := 1; n < 12; n++ {
		for target := 0; target < n; target++ {
			got := SentenceRange(n, target, 3)
			end := min(target+1, n)
			assert.Equal(t, models.Range{Start: max(end-3, 0), End: end}, got)
		}
	}
}

func TestAroundAlwaysHoldsTarget(t *testing.T) {
	assert.Equal(t, models.Range{Start: 8, End: 11}, Around(20, 10, 3))
	assert.Equal(t, models.Range{Start: 10, End: 11}, Around(20, 10, 0))
	assert.Equal(t, models.Range{Start: 9, End: 11}, Around(20, 10, 1))
	for size := 0; size < 6; size++ {
		for target := 0; target < 7; target++ {
			r := Around(7, target, size)
			assert.True(t, r.Contains(target), "size %d target %d got %v", size, target, r)
		}
	}
}

func TestUTF16Range(t *testing.T) {
	text := "a😀b é c"
	// a(1) 😀(4 bytes, 2 units) b(1) ' ' é(2 bytes, 1 unit)
	start := len("a😀")
	got := UTF16Range(text, models.Range{Start: start, End: start + len("b é")})
	assert.Equal(t, models.Range{Start: 3, End: 6}, got)

	ascii := "The math is mathing QED. This is my note. The cat is here. "
	assert.Equal(t, models.Range{Start: 42, End: 59}, UTF16Range(ascii, models.Range{Start: 42, End: 59}))
}

func TestCharRange(t *testing.T) {
	text := "héllo 😀 wörld"
	start := len("héllo 😀 ")
	got := CharRange(text, models.Range{Start: start, End: len(text)})
	assert.Equal(t, models.Range{Start: 8, End: 13}, got)
}

func TestCursorByteOffsetStopsAtFirstMatch(t *testing.T) {
	text := "ab😀cd"
	tests := []struct {
		cursor int
		want   int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, len("ab😀")},
		{6, len("ab😀c")},
	}
	for _, tt := range tests {
		got, err := CursorByteOffset(text, tt.cursor)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "cursor %d", tt.cursor)
	}
}

func TestCursorByteOffsetOutOfRange(t *testing.T) {
	_, err := CursorByteOffset("", 0)
	assert.ErrorIs(t, err, apperr.ErrCursorOutOfRange)

	_, err = CursorByteOffset("abc", 4)
	assert.ErrorIs(t, err, apperr.ErrCursorOutOfRange)

	_, err = CursorByteOffset("abc", -1)
	assert.ErrorIs(t, err, apperr.ErrCursorOutOfRange)
}

func TestTargetSentence(t *testing.T) {
	sentences := []models.Segment{{Start: 0, End: 10}, {Start: 10, End: 20}, {Start: 20, End: 25}}

	assert.Equal(t, 0, TargetSentence(sentences, 0))
	assert.Equal(t, 0, TargetSentence(sentences, 10))
	assert.Equal(t, 1, TargetSentence(sentences, 11))
	assert.Equal(t, 2, TargetSentence(sentences, 40))
	assert.Equal(t, -1, TargetSentence(nil, 3))
}

func TestContainingSentence(t *testing.T) {
	sentences := []models.Segment{{Start: 0, End: 10}, {Start: 10, End: 20}}

	assert.Equal(t, 0, ContainingSentence(sentences, 9))
	assert.Equal(t, 1, ContainingSentence(sentences, 10))
	assert.Equal(t, 1, ContainingSentence(sentences, 99))
}
