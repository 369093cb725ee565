package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/ehr/cohortgen/internal/domain/patient"
)

var ErrInvalidMix = errors.New("invalid cohort mix")

// CohortMix is the target share of T1 and T2 patients; the remainder of the
// cohort is non-diabetic.
type CohortMix struct {
	T1 float64 `json:"t1"`
	T2 float64 `json:"t2"`
}

// DefaultMix is 10% T1, 75% T2 and 15% non-diabetic.
func DefaultMix() CohortMix {
	return CohortMix{T1: 0.10, T2: 0.75}
}

// None returns the implied non-diabetic share.
func (m CohortMix) None() float64 {
	return 1 - m.T1 - m.T2
}

// Validate checks both shares are in [0, 1] and together do not exceed 1.
func (m CohortMix) Validate() error {
	if m.T1 < 0 || m.T1 > 1 || math.IsNaN(m.T1) {
		return fmt.Errorf("%w: t1 share %v outside [0,1]", ErrInvalidMix, m.T1)
	}
	if m.T2 < 0 || m.T2 > 1 || math.IsNaN(m.T2) {
		return fmt.Errorf("%w: t2 share %v outside [0,1]", ErrInvalidMix, m.T2)
	}
	if m.T1+m.T2 > 1+1e-9 {
		return fmt.Errorf("%w: t1+t2 share %v exceeds 1", ErrInvalidMix, m.T1+m.T2)
	}
	return nil
}

// MixCounts is the realized number of slots per diabetes type.
type MixCounts struct {
	T1   int `json:"T1"`
	T2   int `json:"T2"`
	None int `json:"none"`
}

// Counts rounds each diabetic share of n half-to-even and assigns the
// remainder to the non-diabetic category. For n=20 and the default mix that
// is 2 T1, 15 T2 and 3 none.
func (m CohortMix) Counts(n int) MixCounts {
	if n <= 0 {
		return MixCounts{}
	}
	t1 := clampCount(int(math.RoundToEven(m.T1*float64(n))), n)
	t2 := clampCount(int(math.RoundToEven(m.T2*float64(n))), n-t1)
	return MixCounts{T1: t1, T2: t2, None: n - t1 - t2}
}

func clampCount(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// AssignTypes lays out the diabetes type of each of n slots per the mix and
// shuffles the slot order with rng.
func AssignTypes(n int, mix CohortMix, rng *rand.Rand) []patient.DiabetesType {
	c := mix.Counts(n)
	types := make([]patient.DiabetesType, 0, n)
	for i := 0; i < c.T1; i++ {
		types = append(types, patient.DiabetesT1)
	}
	for i := 0; i < c.T2; i++ {
		types = append(types, patient.DiabetesT2)
	}
	for i := 0; i < c.None; i++ {
		types = append(types, patient.DiabetesNone)
	}
	rng.Shuffle(len(types), func(i, j int) {
		types[i], types[j] = types[j], types[i]
	})
	return types
}
