// Package classifier defines the contract between the detector/training core and a token scorer.
//
// Fusion and training depend only on these interfaces, so any scorer able to produce a
// distribution for a token, and gradients for its last prediction, can be plugged in.
package classifier

import (
	"github.com/MeKo-Tech/langdetect/internal/language"
)

// Gradients is the result of a backward pass.
type Gradients struct {
	// Params has one block per trainable parameter tensor, shaped like Trainable.Params().
	Params [][]float64
	// Chars has one gradient per character of the last classified token, in order.
	Chars [][]float64
}

// Classifier maps a token to a distribution over the supported languages.
type Classifier interface {
	// Forward classifies a non-empty token. An empty token fails with langerr.ErrInvalidInput.
	Forward(token string) (language.Distribution, error)
	// Backward propagates errors, the derivative of the loss with respect to the output logits
	// of the last Forward call, and returns the gradients of that call.
	Backward(errors []float64) (Gradients, error)
}

// ImportanceReporter is implemented by classifiers that weight the characters of a token.
type ImportanceReporter interface {
	// Importance returns a weight per character of the last classified token.
	Importance() []float64
}

// Trainable is a classifier whose state can be updated by an optimizer.
type Trainable interface {
	Classifier

	// Params returns the live parameter blocks; writes through them update the model.
	Params() [][]float64
	// RegisterChars makes sure every character has its own embedding vector.
	RegisterChars(chars []rune)
	// Embedding returns the live embedding vector of r, or nil if r has none.
	Embedding(r rune) []float64
	// SetTraining toggles training behaviour such as dropout.
	SetTraining(training bool)
}
