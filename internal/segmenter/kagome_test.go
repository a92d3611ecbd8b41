package segmenter

import (
	"strings"
	"testing"

	"github.com/MeKo-Tech/langdetect/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKagome(t *testing.T) *Kagome {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping dictionary load in short mode")
	}
	k, err := NewKagome()
	require.NoError(t, err)
	return k
}

func TestKagome_Segment(t *testing.T) {
	k := newTestKagome(t)

	text := "すもももももももものうち"
	words := k.Segment(text)

	require.NotEmpty(t, words)
	assert.Greater(t, len(words), 1, "a Japanese sentence is split into several morphemes")
	assert.Equal(t, text, strings.Join(words, ""), "segmentation preserves every character")
	for _, w := range words {
		assert.NotEmpty(t, w)
	}
}

func TestKagome_Empty(t *testing.T) {
	k := newTestKagome(t)
	assert.Empty(t, k.Segment(""))
}

func TestKagome_AsTokenizerSegmenter(t *testing.T) {
	k := newTestKagome(t)
	tok := tokenizer.New(tokenizer.WithSegmenter(k))

	tokens, err := tok.Tokenize("hello 東京都に住んでいます", 100)
	require.NoError(t, err)

	require.NotEmpty(t, tokens)
	assert.Equal(t, "hello", tokens[0])
	assert.Greater(t, len(tokens), 2)
}
