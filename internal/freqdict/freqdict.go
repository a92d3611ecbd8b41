// Package freqdict implements the corpus-derived word frequency prior.
//
// A Dictionary is filled with AddOccurrence during a counting pass, frozen once by
// Normalize and only read afterwards. Normalized word vectors are per-language
// probabilities corrected for the corpus size of each language.
package freqdict

import (
	"fmt"

	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"
)

// Dictionary maps lower-cased words to per-language frequencies.
type Dictionary struct {
	catalog    *language.Catalog
	words      map[string][]float64
	totals     []float64
	normalized bool
}

// New creates an empty, mutable dictionary over the given catalog.
func New(catalog *language.Catalog) *Dictionary {
	return &Dictionary{
		catalog: catalog,
		words:   make(map[string][]float64),
		totals:  make([]float64, catalog.Size()),
	}
}

// Catalog returns the language catalog the vectors are indexed by.
func (d *Dictionary) Catalog() *language.Catalog { return d.catalog }

// Normalized reports whether the dictionary has been frozen.
func (d *Dictionary) Normalized() bool { return d.normalized }

// Len returns the number of distinct words.
func (d *Dictionary) Len() int { return len(d.words) }

// AddOccurrence counts one occurrence of word in lang.
func (d *Dictionary) AddOccurrence(word string, lang language.Language) error {
	if d.normalized {
		return fmt.Errorf("%w: cannot add a word occurrence after normalization", langerr.ErrStatePrecondition)
	}
	idx := lang.Index()
	if idx < 0 || idx >= len(d.totals) {
		return fmt.Errorf("%w: language %q is not supported by the dictionary", langerr.ErrInvalidInput, lang)
	}

	key := lower(word)
	freq, ok := d.words[key]
	if !ok {
		freq = make([]float64, len(d.totals))
		d.words[key] = freq
	}
	freq[idx]++
	d.totals[idx]++

	return nil
}

// Normalize converts counts to probabilities and freezes the dictionary.
//
// Each word vector is divided element-wise by the per-language word totals, zeros are
// replaced by 1/N where N is the total number of occurrences, and the vector is scaled to
// sum to 1.
func (d *Dictionary) Normalize() error {
	if d.normalized {
		return fmt.Errorf("%w: dictionary already normalized", langerr.ErrStatePrecondition)
	}

	var occurrences float64
	for _, t := range d.totals {
		occurrences += t
	}

	if occurrences > 0 {
		eps := 1.0 / occurrences
		for _, freq := range d.words {
			d.normalizeWord(freq, eps)
		}
	}

	d.normalized = true
	return nil
}

func (d *Dictionary) normalizeWord(freq []float64, eps float64) {
	var sum float64
	for i := range freq {
		if d.totals[i] > 0 {
			freq[i] /= d.totals[i]
		} else {
			freq[i] = 0
		}
		if freq[i] == 0 {
			freq[i] = eps
		}
		sum += freq[i]
	}
	for i := range freq {
		freq[i] /= sum
	}
}

// FreqOf returns the frequency distribution of word, or false if the word was never observed.
// The returned distribution is a copy.
func (d *Dictionary) FreqOf(word string) (language.Distribution, bool) {
	freq, ok := d.words[lower(word)]
	if !ok {
		return nil, false
	}
	return language.Distribution(freq).Clone(), true
}

// Totals returns a copy of the per-language occurrence counts.
func (d *Dictionary) Totals() []float64 {
	out := make([]float64, len(d.totals))
	copy(out, d.totals)
	return out
}

func lower(s string) string {
	return cases.Lower(xlanguage.Und).String(s)
}
