// Package tokenizer splits raw text into the units classified by a language detector.
//
// A token is a run of letters. Any non-letter character ends the current token and is
// discarded. Tokens are force-split when they reach the maximum token length. Tokens that
// are mostly made of CJK characters can be handed to a Segmenter, since those scripts do
// not separate words with spaces.
package tokenizer

import (
	"fmt"
	"unicode"

	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"golang.org/x/text/unicode/rangetable"
)

// DefaultCJKRatio is the minimum fraction of CJK characters for a token to be re-segmented.
const DefaultCJKRatio = 0.40

// cjkTable covers the scripts handled by the CJK pass.
var cjkTable = rangetable.Merge(
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Hangul,
	unicode.Bopomofo,
)

// Segmenter splits a CJK character run into words.
type Segmenter interface {
	Segment(text string) []string
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithSegmenter enables the CJK pass using s.
func WithSegmenter(s Segmenter) Option {
	return func(t *Tokenizer) { t.segmenter = s }
}

// WithCJKRatio overrides the CJK fraction threshold.
func WithCJKRatio(ratio float64) Option {
	return func(t *Tokenizer) { t.cjkRatio = ratio }
}

// Tokenizer is stateless; a single value can be shared.
type Tokenizer struct {
	segmenter Segmenter
	cjkRatio  float64
}

// New creates a tokenizer. Without WithSegmenter, CJK tokens pass through unchanged.
func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{cjkRatio: DefaultCJKRatio}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HasSegmenter reports whether the CJK pass is enabled.
func (t *Tokenizer) HasSegmenter() bool { return t.segmenter != nil }

// Tokenize splits text into tokens of at most maxTokenLength characters, in order of appearance.
func (t *Tokenizer) Tokenize(text string, maxTokenLength int) ([]string, error) {
	if maxTokenLength <= 0 {
		return nil, fmt.Errorf("%w: max token length must be positive, got %d",
			langerr.ErrInvalidConfiguration, maxTokenLength)
	}

	tokens := splitLetters(text, maxTokenLength)
	if t.segmenter == nil {
		return tokens, nil
	}
	return t.segmentCJK(tokens), nil
}

// splitLetters performs the rule-based pass.
func splitLetters(text string, maxTokenLength int) []string {
	tokens := make([]string, 0, len(text)/4+1)
	buf := make([]rune, 0, maxTokenLength)

	flush := func() {
		if len(buf) > 0 {
			tokens = append(tokens, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range text {
		if !unicode.IsLetter(r) {
			flush()
			continue
		}
		buf = append(buf, r)
		if len(buf) == maxTokenLength {
			flush()
		}
	}
	flush()

	return tokens
}

// segmentCJK replaces, in place, every token that is mostly CJK by its segmentation.
func (t *Tokenizer) segmentCJK(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if CJKRatio(tok) < t.cjkRatio {
			out = append(out, tok)
			continue
		}
		for _, seg := range t.segmenter.Segment(tok) {
			if seg != "" {
				out = append(out, seg)
			}
		}
	}
	return out
}

// CJKRatio returns the fraction of characters of s that belong to a CJK script.
func CJKRatio(s string) float64 {
	var total, cjk int
	for _, r := range s {
		total++
		if unicode.Is(cjkTable, r) {
			cjk++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(cjk) / float64(total)
}
