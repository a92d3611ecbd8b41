package testutil

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/langdetect/internal/classifier"
	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
)

// ErrStub is returned by StubClassifier for tokens listed in FailOn.
var ErrStub = errors.New("stub classifier failure")

// StubClassifier is a scripted classifier. Tokens listed in Scores get that distribution,
// everything else the uniform one. It records every call.
type StubClassifier struct {
	Size   int
	Scores map[string]language.Distribution
	FailOn map[string]bool

	ForwardCalls  []string
	BackwardCalls [][]float64
	Training      bool

	params     [][]float64
	embeddings map[rune][]float64
	last       string
}

var (
	_ classifier.Trainable          = (*StubClassifier)(nil)
	_ classifier.ImportanceReporter = (*StubClassifier)(nil)
)

// NewStubClassifier returns a stub scoring size languages.
func NewStubClassifier(size int) *StubClassifier {
	return &StubClassifier{
		Size:       size,
		Scores:     make(map[string]language.Distribution),
		FailOn:     make(map[string]bool),
		params:     [][]float64{{0}},
		embeddings: make(map[rune][]float64),
	}
}

func (s *StubClassifier) Forward(token string) (language.Distribution, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", langerr.ErrInvalidInput)
	}
	s.ForwardCalls = append(s.ForwardCalls, token)
	if s.FailOn[token] {
		return nil, ErrStub
	}
	s.last = token
	if d, ok := s.Scores[token]; ok {
		return d.Clone(), nil
	}
	d := language.Zeros(s.Size)
	for i := range d {
		d[i] = 1 / float64(s.Size)
	}
	return d, nil
}

// Backward returns the first error as the single parameter gradient and a unit gradient per character.
func (s *StubClassifier) Backward(errs []float64) (classifier.Gradients, error) {
	if s.last == "" {
		return classifier.Gradients{}, fmt.Errorf("%w: backward before forward", langerr.ErrStatePrecondition)
	}
	s.BackwardCalls = append(s.BackwardCalls, append([]float64(nil), errs...))

	chars := make([][]float64, 0, len(s.last))
	for range []rune(s.last) {
		chars = append(chars, []float64{1})
	}
	return classifier.Gradients{Params: [][]float64{{errs[0]}}, Chars: chars}, nil
}

// Importance spreads the weight evenly over the characters of the last token.
func (s *StubClassifier) Importance() []float64 {
	n := len([]rune(s.last))
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

func (s *StubClassifier) Params() [][]float64 { return s.params }

func (s *StubClassifier) RegisterChars(chars []rune) {
	for _, r := range chars {
		if _, ok := s.embeddings[r]; !ok {
			s.embeddings[r] = []float64{0}
		}
	}
}

func (s *StubClassifier) Embedding(r rune) []float64 { return s.embeddings[r] }

func (s *StubClassifier) SetTraining(training bool) { s.Training = training }

// VocabularySize returns the number of registered characters.
func (s *StubClassifier) VocabularySize() int { return len(s.embeddings) }
