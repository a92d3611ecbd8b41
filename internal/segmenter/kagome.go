// Package segmenter provides CJK word segmenters for the tokenizer.
package segmenter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Kagome segments CJK runs with the kagome morphological analyzer and the IPA dictionary.
// Japanese is segmented into morphemes; Chinese and Korean runs fall back to kagome's
// unknown-word grouping by character class.
type Kagome struct {
	tok *tokenizer.Tokenizer
	mu  sync.Mutex
}

// NewKagome loads the IPA dictionary. Loading takes a noticeable amount of memory and time,
// so callers should create one segmenter and share it.
func NewKagome() (*Kagome, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize kagome tokenizer: %w", err)
	}
	return &Kagome{tok: t}, nil
}

// Segment returns the surface forms of the morphemes of text, in order, without blanks.
func (k *Kagome) Segment(text string) []string {
	k.mu.Lock()
	words := k.tok.Wakati(text)
	k.mu.Unlock()

	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}
