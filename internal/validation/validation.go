// Package validation measures detector accuracy on labelled examples.
package validation

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/progress"
)

// Predictor is the part of the detector used for validation.
type Predictor interface {
	Predict(text string) (language.Distribution, error)
	Language(dist language.Distribution) language.Language
}

// Helper runs a predictor over labelled examples. A Helper owns its confusion matrix and
// must not be used by two validations at once.
type Helper struct {
	predictor Predictor
	matrix    *ConfusionMatrix
	progress  progress.Callback
}

// NewHelper creates a helper for the languages of catalog.
func NewHelper(p Predictor, catalog *language.Catalog) *Helper {
	return &Helper{
		predictor: p,
		matrix:    NewConfusionMatrix(catalog),
		progress:  progress.NoOp{},
	}
}

// WithProgress reports validation progress to cb.
func (h *Helper) WithProgress(cb progress.Callback) *Helper {
	if cb != nil {
		h.progress = cb
	}
	return h
}

// ConfusionMatrix returns the matrix of the last validation.
func (h *Helper) ConfusionMatrix() *ConfusionMatrix { return h.matrix }

// Validate returns the share of examples whose detected language matches the gold one.
// Examples with an Unknown gold label only count in the denominator when includeUnknown is set,
// and are never counted as correct. An empty denominator yields 0.
func (h *Helper) Validate(examples []dataset.Example, includeUnknown bool) (float64, error) {
	h.matrix.Reset()
	h.progress.OnStart(len(examples))

	correct, total := 0, 0
	for i, ex := range examples {
		dist, err := h.predictor.Predict(ex.Text)
		if err != nil {
			h.progress.OnError(i, err)
			return 0, fmt.Errorf("failed to validate example %d: %w", i, err)
		}
		predicted := h.predictor.Language(dist)

		if !ex.Language.IsUnknown() {
			if !predicted.IsUnknown() {
				h.matrix.Increment(ex.Language, predicted)
			}
			if predicted == ex.Language {
				correct++
			}
		}
		if !ex.Language.IsUnknown() || includeUnknown {
			total++
		}
		h.progress.OnProgress(i+1, len(examples))
	}
	h.progress.OnComplete()

	if total == 0 {
		return 0, nil
	}
	return float64(correct) / float64(total), nil
}

// ConfusionMatrix counts predictions per gold language, over supported languages only.
type ConfusionMatrix struct {
	catalog *language.Catalog
	counts  [][]int
}

// NewConfusionMatrix returns an empty square matrix over catalog.
func NewConfusionMatrix(catalog *language.Catalog) *ConfusionMatrix {
	m := &ConfusionMatrix{catalog: catalog}
	m.counts = make([][]int, catalog.Size())
	for i := range m.counts {
		m.counts[i] = make([]int, catalog.Size())
	}
	return m
}

// Reset zeroes every cell.
func (m *ConfusionMatrix) Reset() {
	for _, row := range m.counts {
		clear(row)
	}
}

// Increment records one prediction. Unknown on either side is ignored.
func (m *ConfusionMatrix) Increment(gold, predicted language.Language) {
	if gold.IsUnknown() || predicted.IsUnknown() {
		return
	}
	m.counts[gold.Index()][predicted.Index()]++
}

// Count returns the cell [gold][predicted].
func (m *ConfusionMatrix) Count(gold, predicted language.Language) int {
	if gold.IsUnknown() || predicted.IsUnknown() {
		return 0
	}
	return m.counts[gold.Index()][predicted.Index()]
}

// Total returns the sum of all cells.
func (m *ConfusionMatrix) Total() int {
	n := 0
	for _, row := range m.counts {
		for _, c := range row {
			n += c
		}
	}
	return n
}

// RowPercentages returns the row of gold normalized to percentages of its own sum.
// An empty row is all zeros.
func (m *ConfusionMatrix) RowPercentages(gold language.Language) []float64 {
	out := make([]float64, m.catalog.Size())
	if gold.IsUnknown() {
		return out
	}
	row := m.counts[gold.Index()]
	sum := 0
	for _, c := range row {
		sum += c
	}
	if sum == 0 {
		return out
	}
	for i, c := range row {
		out[i] = 100 * float64(c) / float64(sum)
	}
	return out
}

// String renders the matrix with gold languages as rows, predictions as columns.
func (m *ConfusionMatrix) String() string {
	var sb strings.Builder
	sb.WriteString("    ")
	for _, code := range m.catalog.Codes() {
		fmt.Fprintf(&sb, " %6s", code)
	}
	sb.WriteByte('\n')

	for _, gold := range m.catalog.Languages() {
		fmt.Fprintf(&sb, "%-4s", gold.Code)
		for _, pct := range m.RowPercentages(gold) {
			fmt.Fprintf(&sb, " %5.1f%%", pct)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
