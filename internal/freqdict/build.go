package freqdict

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/progress"
)

// Tokenizer is the part of the tokenizer used to count occurrences.
type Tokenizer interface {
	Tokenize(text string, maxTokenLength int) ([]string, error)
}

// Build counts every token of the examples and returns the normalized dictionary.
// Examples labelled with the Unknown language carry no evidence and are skipped.
func Build(d *Dictionary, examples []dataset.Example, tok Tokenizer, maxTokenLength int, cb progress.Callback) error {
	if cb == nil {
		cb = progress.NoOp{}
	}

	cb.OnStart(len(examples))
	skipped := 0
	for i, ex := range examples {
		if ex.Language.IsUnknown() {
			skipped++
			cb.OnProgress(i+1, len(examples))
			continue
		}
		tokens, err := tok.Tokenize(ex.Text, maxTokenLength)
		if err != nil {
			cb.OnError(i, err)
			return fmt.Errorf("failed to tokenize example %d: %w", i, err)
		}
		for _, token := range tokens {
			if err := d.AddOccurrence(token, ex.Language); err != nil {
				cb.OnError(i, err)
				return err
			}
		}
		cb.OnProgress(i+1, len(examples))
	}
	cb.OnComplete()

	if skipped > 0 {
		slog.Debug("Skipped examples with unknown language", "count", skipped)
	}

	return d.Normalize()
}
