// Package model implements the character-level token classifier used by the detector.
//
// A token is read as a sequence of character embeddings. An additive attention layer pools them
// into one vector, a hidden layer transforms it and a softmax layer scores the languages:
//
//	t_c = tanh(Wa·x_c + ba)    s_c = va·t_c    α = softmax(s)
//	h   = Σ α_c x_c
//	z   = act(Wh·h + bh)
//	p   = softmax(Wo·z + bo)
//
// The attention weights α double as the per-character importance of the last token.
package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/MeKo-Tech/langdetect/internal/classifier"
	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
)

// DefaultSeed seeds parameter and embedding initialization.
const DefaultSeed = 743

// Parameter block indices, in the order returned by Params.
const (
	paramWa = iota
	paramBa
	paramVa
	paramWh
	paramBh
	paramWo
	paramBo
	numParams
)

var (
	_ classifier.Trainable          = (*Model)(nil)
	_ classifier.ImportanceReporter = (*Model)(nil)
)

// Model is an attention-pooled character classifier. It is not safe for concurrent use.
type Model struct {
	hyper   Hyperparameters
	catalog *language.Catalog

	embeddings map[rune][]float64
	unknown    []float64
	params     [][]float64

	rng      *rand.Rand
	dropout  float64
	training bool

	last *pass
}

// pass keeps the activations of the last Forward call for Backward.
type pass struct {
	chars []rune
	x     [][]float64 // embeddings after dropout
	masks [][]float64 // dropout scale per embedding component, nil when disabled
	t     [][]float64
	alpha []float64
	h     []float64
	a     []float64
	z     []float64
	p     []float64
}

// Option customizes a new Model.
type Option func(*Model)

// WithSeed seeds the random initialization.
func WithSeed(seed uint64) Option {
	return func(m *Model) {
		m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithDropout sets the embedding dropout probability applied in training mode.
func WithDropout(p float64) Option {
	return func(m *Model) {
		m.dropout = p
	}
}

// New creates a randomly initialized model scoring the languages of catalog.
func New(catalog *language.Catalog, hyper Hyperparameters, opts ...Option) (*Model, error) {
	if err := hyper.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil || catalog.Size() == 0 {
		return nil, fmt.Errorf("%w: a model needs at least one language", langerr.ErrInvalidConfiguration)
	}
	hyper.HiddenActivation = strings.ToLower(hyper.HiddenActivation)

	m := &Model{
		hyper:      hyper,
		catalog:    catalog,
		embeddings: make(map[rune][]float64),
	}
	WithSeed(DefaultSeed)(m)
	for _, opt := range opts {
		opt(m)
	}
	if m.dropout < 0 || m.dropout >= 1 {
		return nil, fmt.Errorf("%w: dropout must be in [0, 1), got %g", langerr.ErrInvalidConfiguration, m.dropout)
	}

	e, a, hs, l := hyper.EmbeddingSize, hyper.AttentionSize, hyper.HiddenSize, catalog.Size()
	m.params = make([][]float64, numParams)
	m.params[paramWa] = m.glorot(a, e)
	m.params[paramBa] = make([]float64, a)
	m.params[paramVa] = m.glorot(1, a)
	m.params[paramWh] = m.glorot(hs, e)
	m.params[paramBh] = make([]float64, hs)
	m.params[paramWo] = m.glorot(l, hs)
	m.params[paramBo] = make([]float64, l)
	m.unknown = m.randomVector(e)

	return m, nil
}

func (m *Model) glorot(rows, cols int) []float64 {
	limit := math.Sqrt(6.0 / float64(rows+cols))
	w := make([]float64, rows*cols)
	for i := range w {
		w[i] = (m.rng.Float64()*2 - 1) * limit
	}
	return w
}

func (m *Model) randomVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = (m.rng.Float64()*2 - 1) * 0.1
	}
	return v
}

// Hyperparameters returns the model shape.
func (m *Model) Hyperparameters() Hyperparameters { return m.hyper }

// Catalog returns the languages the model scores, in output order.
func (m *Model) Catalog() *language.Catalog { return m.catalog }

// Params returns the live parameter blocks: Wa, ba, va, Wh, bh, Wo, bo.
func (m *Model) Params() [][]float64 { return m.params }

// SetTraining enables dropout.
func (m *Model) SetTraining(training bool) { m.training = training }

// VocabularySize returns the number of characters with their own embedding.
func (m *Model) VocabularySize() int { return len(m.embeddings) }

// RegisterChars gives every unseen character a fresh random embedding.
func (m *Model) RegisterChars(chars []rune) {
	for _, r := range chars {
		if _, ok := m.embeddings[r]; !ok {
			m.embeddings[r] = m.randomVector(m.hyper.EmbeddingSize)
		}
	}
}

// Embedding returns the live vector of r, nil when r was never registered.
func (m *Model) Embedding(r rune) []float64 {
	return m.embeddings[r]
}

// lookup falls back to the shared unknown vector for characters never seen in training.
func (m *Model) lookup(r rune) []float64 {
	if v, ok := m.embeddings[r]; ok {
		return v
	}
	return m.unknown
}

// Forward classifies token.
func (m *Model) Forward(token string) (language.Distribution, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: cannot classify an empty token", langerr.ErrInvalidInput)
	}

	e, att, hs, l := m.hyper.EmbeddingSize, m.hyper.AttentionSize, m.hyper.HiddenSize, m.catalog.Size()
	wa, ba, va := m.params[paramWa], m.params[paramBa], m.params[paramVa]
	wh, bh := m.params[paramWh], m.params[paramBh]
	wo, bo := m.params[paramWo], m.params[paramBo]

	chars := []rune(token)
	n := len(chars)
	st := &pass{
		chars: chars,
		x:     make([][]float64, n),
		t:     make([][]float64, n),
	}
	if m.training && m.dropout > 0 {
		st.masks = make([][]float64, n)
	}

	scores := make([]float64, n)
	for c, r := range chars {
		x := append([]float64(nil), m.lookup(r)...)
		if st.masks != nil {
			mask := make([]float64, e)
			keep := 1 / (1 - m.dropout)
			for k := range mask {
				if m.rng.Float64() >= m.dropout {
					mask[k] = keep
				}
				x[k] *= mask[k]
			}
			st.masks[c] = mask
		}
		st.x[c] = x

		t := make([]float64, att)
		for i := range att {
			row := wa[i*e : (i+1)*e]
			t[i] = math.Tanh(dot(row, x) + ba[i])
		}
		st.t[c] = t
		scores[c] = dot(va, t)
	}
	st.alpha = softmax(scores)

	st.h = make([]float64, e)
	for c := range n {
		for k := range e {
			st.h[k] += st.alpha[c] * st.x[c][k]
		}
	}

	st.a = make([]float64, hs)
	st.z = make([]float64, hs)
	for j := range hs {
		st.a[j] = dot(wh[j*e:(j+1)*e], st.h) + bh[j]
		st.z[j] = m.activate(st.a[j])
	}

	logits := make([]float64, l)
	for i := range l {
		logits[i] = dot(wo[i*hs:(i+1)*hs], st.z) + bo[i]
	}
	st.p = softmax(logits)
	m.last = st

	return language.Distribution(append([]float64(nil), st.p...)), nil
}

// Backward propagates errors (dLoss/dLogits) through the last Forward call.
func (m *Model) Backward(errors []float64) (classifier.Gradients, error) {
	st := m.last
	if st == nil {
		return classifier.Gradients{}, fmt.Errorf("%w: backward called before forward", langerr.ErrStatePrecondition)
	}
	e, att, hs, l := m.hyper.EmbeddingSize, m.hyper.AttentionSize, m.hyper.HiddenSize, m.catalog.Size()
	if len(errors) != l {
		return classifier.Gradients{}, fmt.Errorf("%w: expected %d errors, got %d", langerr.ErrInvalidInput, l, len(errors))
	}
	wa, va := m.params[paramWa], m.params[paramVa]
	wh, wo := m.params[paramWh], m.params[paramWo]

	grads := make([][]float64, numParams)
	for i, p := range m.params {
		grads[i] = make([]float64, len(p))
	}
	dWa, dba, dva := grads[paramWa], grads[paramBa], grads[paramVa]
	dWh, dbh := grads[paramWh], grads[paramBh]
	dWo, dbo := grads[paramWo], grads[paramBo]

	// output layer
	dz := make([]float64, hs)
	for i := range l {
		g := errors[i]
		dbo[i] = g
		row := wo[i*hs : (i+1)*hs]
		drow := dWo[i*hs : (i+1)*hs]
		for j := range hs {
			drow[j] = g * st.z[j]
			dz[j] += row[j] * g
		}
	}

	// hidden layer
	dh := make([]float64, e)
	for j := range hs {
		da := dz[j] * m.activateDerivative(st.a[j], st.z[j])
		dbh[j] = da
		row := wh[j*e : (j+1)*e]
		drow := dWh[j*e : (j+1)*e]
		for k := range e {
			drow[k] = da * st.h[k]
			dh[k] += row[k] * da
		}
	}

	// attention pooling
	n := len(st.chars)
	dAlpha := make([]float64, n)
	weighted := 0.0
	for c := range n {
		dAlpha[c] = dot(dh, st.x[c])
		weighted += st.alpha[c] * dAlpha[c]
	}

	chars := make([][]float64, n)
	for c := range n {
		dx := make([]float64, e)
		for k := range e {
			dx[k] = st.alpha[c] * dh[k]
		}

		ds := st.alpha[c] * (dAlpha[c] - weighted)
		for i := range att {
			t := st.t[c][i]
			dva[i] += ds * t
			du := ds * va[i] * (1 - t*t)
			if du == 0 {
				continue
			}
			dba[i] += du
			row := wa[i*e : (i+1)*e]
			drow := dWa[i*e : (i+1)*e]
			for k := range e {
				drow[k] += du * st.x[c][k]
				dx[k] += row[k] * du
			}
		}

		if st.masks != nil {
			for k := range e {
				dx[k] *= st.masks[c][k]
			}
		}
		chars[c] = dx
	}

	return classifier.Gradients{Params: grads, Chars: chars}, nil
}

// Importance returns the attention weights of the characters of the last token.
func (m *Model) Importance() []float64 {
	if m.last == nil {
		return nil
	}
	return append([]float64(nil), m.last.alpha...)
}

func (m *Model) activate(x float64) float64 {
	if m.hyper.HiddenActivation == ActivationReLU {
		return max(x, 0)
	}
	return math.Tanh(x)
}

// activateDerivative takes both the input a and the output z of the activation.
func (m *Model) activateDerivative(a, z float64) float64 {
	if m.hyper.HiddenActivation == ActivationReLU {
		if a > 0 {
			return 1
		}
		return 0
	}
	return 1 - z*z
}

// String summarizes the model.
func (m *Model) String() string {
	var sb strings.Builder
	sb.WriteString("Language detector model\n")
	sb.WriteString(m.hyper.String())
	fmt.Fprintf(&sb, "\n  Languages:         %d (%s)", m.catalog.Size(), strings.Join(m.catalog.Codes(), ", "))
	fmt.Fprintf(&sb, "\n  Vocabulary:        %d characters", len(m.embeddings))
	fmt.Fprintf(&sb, "\n  Parameters:        %d", m.parameterCount())
	return sb.String()
}

func (m *Model) parameterCount() int {
	n := len(m.unknown) + len(m.embeddings)*m.hyper.EmbeddingSize
	for _, p := range m.params {
		n += len(p)
	}
	return n
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func softmax(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	maxVal := x[0]
	for _, v := range x[1:] {
		maxVal = max(maxVal, v)
	}
	total := 0.0
	for i, v := range x {
		out[i] = math.Exp(v - maxVal)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}
