package generator

import (
	"math"

	"github.com/ehr/cohortgen/internal/domain/dist"
	"github.com/ehr/cohortgen/internal/domain/reference"
)

// Clamp ranges for body measures.
const (
	MinBMI    = 17.0
	MaxBMI    = 55.0
	MinWeight = 40.0
	MaxWeight = 250.0
)

// HeightCM draws a whole-centimetre height from the sex-specific normal.
func (g *Generator) HeightCM(sex string) int {
	if sex == SexFemale {
		return int(dist.Clamp(dist.Normal(g.rng, 162, 7), 145, 185))
	}
	return int(dist.Clamp(dist.Normal(g.rng, 175, 8), 155, 200))
}

// BMI perturbs the reference BMI when present, otherwise draws from the
// population distribution. The result is rounded to one decimal.
func (g *Generator) BMI(row reference.Row) float64 {
	var v float64
	if base, ok := reference.BMI(row); ok {
		v = dist.Normal(g.rng, base, 1.6)
	} else {
		g.stats[reference.FieldBMI]++
		v = dist.Normal(g.rng, 29.5, 5.0)
	}
	return dist.Round(dist.Clamp(v, MinBMI, MaxBMI), 1)
}

// Body derives weight from BMI and height. If the derived weight falls
// outside the weight range, the weight is clamped and BMI re-derived from it
// so that weight = BMI * (height/100)^2 still holds to within rounding.
// Both returned values are rounded to one decimal.
func Body(bmi float64, heightCM int) (weight, adjustedBMI float64) {
	h2 := math.Pow(float64(heightCM)/100, 2)
	if h2 <= 0 {
		return MinWeight, bmi
	}
	w := bmi * h2
	switch {
	case w < MinWeight:
		bmi = math.Ceil(MinWeight/h2*10) / 10
	case w > MaxWeight:
		bmi = math.Floor(MaxWeight/h2*10) / 10
	}
	return dist.Round(bmi*h2, 1), bmi
}
