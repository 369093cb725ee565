// Package dist holds the categorical distribution tables that drive every
// discrete decision in cohort generation, together with the small set of
// continuous sampling helpers the generators share.
//
// All draws take an explicit *rand.Rand so that a run seeded once produces
// the same cohort every time.
package dist

import (
	"errors"
	"math"
	"math/rand"
)

var (
	ErrUnknownTable   = errors.New("unknown distribution table")
	ErrEmptyOutcomes  = errors.New("distribution table has no outcomes")
	ErrInvalidOutcome = errors.New("invalid outcome for distribution table")
)

// Normalize returns a probability vector of length n. A weights slice of the
// wrong length, with a negative or non-finite entry, or with a non-positive
// sum is replaced by the uniform distribution over n outcomes.
func Normalize(weights []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(weights) != n {
		return uniform(n)
	}
	sum := 0.0
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return uniform(n)
		}
		sum += w
	}
	if sum <= 0 {
		return uniform(n)
	}
	out := make([]float64, n)
	for i, w := range weights {
		out[i] = w / sum
	}
	return out
}

func uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

// Table is a named categorical distribution: an ordered outcome set and the
// raw weights associated 1:1 with it.
type Table struct {
	Name     string    `yaml:"-"`
	Outcomes []string  `yaml:"outcomes"`
	Weights  []float64 `yaml:"weights"`
}

// Probabilities returns the normalized weights of the table.
func (t Table) Probabilities() []float64 {
	return Normalize(t.Weights, len(t.Outcomes))
}

// Draw samples one outcome by inverse CDF over the normalized weights. The
// last outcome absorbs any floating point shortfall. A table without
// outcomes yields the empty string.
func (t Table) Draw(rng *rand.Rand) string {
	if len(t.Outcomes) == 0 {
		return ""
	}
	p := t.Probabilities()
	u := rng.Float64()
	acc := 0.0
	for i, w := range p {
		acc += w
		if u < acc {
			return t.Outcomes[i]
		}
	}
	return t.Outcomes[len(t.Outcomes)-1]
}
