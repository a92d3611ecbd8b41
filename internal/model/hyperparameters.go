package model

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/langdetect/internal/langerr"
)

// Activation names accepted for the hidden layer.
const (
	ActivationTanh = "tanh"
	ActivationReLU = "relu"
)

// Hyperparameters fix the shape of a model.
type Hyperparameters struct {
	EmbeddingSize    int    `msgpack:"embedding_size"`
	AttentionSize    int    `msgpack:"attention_size"`
	HiddenSize       int    `msgpack:"hidden_size"`
	MaxTokenLength   int    `msgpack:"max_token_length"`
	HiddenActivation string `msgpack:"hidden_activation"`
}

// DefaultHyperparameters returns the sizes used when nothing else is configured.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		EmbeddingSize:    50,
		AttentionSize:    50,
		HiddenSize:       150,
		MaxTokenLength:   100,
		HiddenActivation: ActivationTanh,
	}
}

// Validate checks every size is positive and the activation is known.
func (h Hyperparameters) Validate() error {
	if h.EmbeddingSize <= 0 {
		return fmt.Errorf("%w: embedding size must be positive, got %d", langerr.ErrInvalidConfiguration, h.EmbeddingSize)
	}
	if h.AttentionSize <= 0 {
		return fmt.Errorf("%w: attention size must be positive, got %d", langerr.ErrInvalidConfiguration, h.AttentionSize)
	}
	if h.HiddenSize <= 0 {
		return fmt.Errorf("%w: hidden size must be positive, got %d", langerr.ErrInvalidConfiguration, h.HiddenSize)
	}
	if h.MaxTokenLength <= 0 {
		return fmt.Errorf("%w: max token length must be positive, got %d", langerr.ErrInvalidConfiguration, h.MaxTokenLength)
	}
	switch strings.ToLower(h.HiddenActivation) {
	case ActivationTanh, ActivationReLU:
	default:
		return fmt.Errorf("%w: unsupported hidden activation %q", langerr.ErrInvalidConfiguration, h.HiddenActivation)
	}
	return nil
}

func (h Hyperparameters) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Embedding size:    %d\n", h.EmbeddingSize)
	fmt.Fprintf(&sb, "  Attention size:    %d\n", h.AttentionSize)
	fmt.Fprintf(&sb, "  Hidden size:       %d\n", h.HiddenSize)
	fmt.Fprintf(&sb, "  Hidden activation: %s\n", h.HiddenActivation)
	fmt.Fprintf(&sb, "  Max token length:  %d", h.MaxTokenLength)
	return sb.String()
}
