package language

// Distribution is a vector of non-negative scores, one per catalog language.
// A normalized distribution sums to 1; the all-zero vector means "no evidence".
type Distribution []float64

// Zeros returns the all-zero distribution of size n.
func Zeros(n int) Distribution {
	return make(Distribution, n)
}

// Sum returns the sum of all entries.
func (d Distribution) Sum() float64 {
	var s float64
	for _, v := range d {
		s += v
	}
	return s
}

// IsZero reports whether the distribution carries no evidence.
func (d Distribution) IsZero() bool {
	return d.Sum() == 0
}

// ArgMax returns the index of the largest entry. Ties resolve toward the lowest index.
// It returns -1 for an empty distribution.
func (d Distribution) ArgMax() int {
	if len(d) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(d); i++ {
		if d[i] > d[best] {
			best = i
		}
	}
	return best
}

// Clone returns an independent copy.
func (d Distribution) Clone() Distribution {
	out := make(Distribution, len(d))
	copy(out, d)
	return out
}

// Normalize divides every entry by the sum in place. Zero vectors are left untouched.
func (d Distribution) Normalize() Distribution {
	s := d.Sum()
	if s == 0 {
		return d
	}
	for i := range d {
		d[i] /= s
	}
	return d
}
