// Package dataset reads labelled corpora used to train and evaluate a language detector.
package dataset

import (
	"github.com/MeKo-Tech/langdetect/internal/language"
)

// Example is a text with its gold language.
type Example struct {
	Text     string
	Language language.Language
}

// Dataset groups the three disjoint example sets of a training run.
type Dataset struct {
	Training   []Example
	Validation []Example
	Test       []Example
}

// Distinct returns the set of characters appearing in the examples, in order of first appearance.
func Distinct(examples []Example) []rune {
	seen := make(map[rune]struct{}, 256)
	out := make([]rune, 0, 256)
	for _, ex := range examples {
		for _, r := range ex.Text {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
