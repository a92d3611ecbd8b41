// Package optim holds the gradient accumulators and optimizers used to train the classifier.
package optim

import (
	"math"
)

// Adam implements the Adam update rule over a fixed list of parameter blocks.
type Adam struct {
	StepSize float64
	Beta1    float64
	Beta2    float64
	Epsilon  float64

	m, v [][]float64
	t    int
}

// NewAdam returns an Adam optimizer with the usual moment decay rates.
func NewAdam(stepSize float64) *Adam {
	return &Adam{StepSize: stepSize, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }

// Update applies one step of grads to params. Both must keep the same shape across calls.
func (a *Adam) Update(params, grads [][]float64) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p))
			a.v[i] = make([]float64, len(p))
		}
	}
	a.t++
	b1Corr := 1 - math.Pow(a.Beta1, float64(a.t))
	b2Corr := 1 - math.Pow(a.Beta2, float64(a.t))

	for i, p := range params {
		mi, vi, gi := a.m[i], a.v[i], grads[i]
		for j := range p {
			g := gi[j]
			mi[j] = a.Beta1*mi[j] + (1-a.Beta1)*g
			vi[j] = a.Beta2*vi[j] + (1-a.Beta2)*g*g
			mhat := mi[j] / b1Corr
			vhat := vi[j] / b2Corr
			p[j] -= a.StepSize * mhat / (math.Sqrt(vhat) + a.Epsilon)
		}
	}
}

// AdaGrad keeps a per-character history of squared gradients for embedding updates.
type AdaGrad struct {
	LearningRate float64
	Epsilon      float64

	history map[rune][]float64
}

// NewAdaGrad returns an AdaGrad optimizer.
func NewAdaGrad(learningRate float64) *AdaGrad {
	return &AdaGrad{LearningRate: learningRate, Epsilon: 1e-8, history: make(map[rune][]float64)}
}

// Update applies grad to the embedding vector of r.
func (a *AdaGrad) Update(r rune, vector, grad []float64) {
	h, ok := a.history[r]
	if !ok {
		h = make([]float64, len(vector))
		a.history[r] = h
	}
	for k := range vector {
		g := grad[k]
		h[k] += g * g
		vector[k] -= a.LearningRate * g / (math.Sqrt(h[k]) + a.Epsilon)
	}
}

// ParamsAccumulator sums parameter gradients between two optimizer steps.
type ParamsAccumulator struct {
	sum   [][]float64
	count int
}

// Accumulate adds grads to the running sum.
func (a *ParamsAccumulator) Accumulate(grads [][]float64) {
	if a.sum == nil {
		a.sum = make([][]float64, len(grads))
		for i, g := range grads {
			a.sum[i] = make([]float64, len(g))
		}
	}
	for i, g := range grads {
		s := a.sum[i]
		for j, v := range g {
			s[j] += v
		}
	}
	a.count++
}

// Count returns the number of accumulated gradients.
func (a *ParamsAccumulator) Count() int { return a.count }

// IsEmpty reports whether nothing was accumulated since the last reset.
func (a *ParamsAccumulator) IsEmpty() bool { return a.count == 0 }

// Average returns the mean of the accumulated gradients, nil when empty.
func (a *ParamsAccumulator) Average() [][]float64 {
	if a.count == 0 {
		return nil
	}
	n := float64(a.count)
	out := make([][]float64, len(a.sum))
	for i, s := range a.sum {
		out[i] = make([]float64, len(s))
		for j, v := range s {
			out[i][j] = v / n
		}
	}
	return out
}

// Reset clears the accumulator, keeping its buffers.
func (a *ParamsAccumulator) Reset() {
	for _, s := range a.sum {
		clear(s)
	}
	a.count = 0
}

// EmbeddingsAccumulator sums gradients per character.
type EmbeddingsAccumulator struct {
	sum   map[rune][]float64
	count map[rune]int
}

// NewEmbeddingsAccumulator returns an empty accumulator.
func NewEmbeddingsAccumulator() *EmbeddingsAccumulator {
	return &EmbeddingsAccumulator{sum: make(map[rune][]float64), count: make(map[rune]int)}
}

// Accumulate adds grad to the sum of r.
func (a *EmbeddingsAccumulator) Accumulate(r rune, grad []float64) {
	s, ok := a.sum[r]
	if !ok {
		s = make([]float64, len(grad))
		a.sum[r] = s
	}
	for k, v := range grad {
		s[k] += v
	}
	a.count[r]++
}

// Len returns the number of characters with a pending gradient.
func (a *EmbeddingsAccumulator) Len() int { return len(a.sum) }

// Each calls fn with the mean gradient of every character.
func (a *EmbeddingsAccumulator) Each(fn func(r rune, grad []float64)) {
	for r, s := range a.sum {
		n := float64(a.count[r])
		avg := make([]float64, len(s))
		for k, v := range s {
			avg[k] = v / n
		}
		fn(r, avg)
	}
}

// Reset clears the accumulator.
func (a *EmbeddingsAccumulator) Reset() {
	clear(a.sum)
	clear(a.count)
}
