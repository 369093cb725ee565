package generator

import (
	"github.com/ehr/cohortgen/internal/domain/dist"
	"github.com/ehr/cohortgen/internal/domain/patient"
)

// BloodPressure draws systolic and diastolic pressure, higher when the
// hypertension flag is set.
func (g *Generator) BloodPressure(highBP int) (systolic, diastolic int) {
	var sys, dia float64
	if highBP == 1 {
		sys = dist.Normal(g.rng, 142, 12)
		dia = dist.Normal(g.rng, 88, 8)
	} else {
		sys = dist.Normal(g.rng, 124, 10)
		dia = dist.Normal(g.rng, 78, 7)
	}
	return dist.ClampInt(int(sys), 95, 200), dist.ClampInt(int(dia), 55, 120)
}

// HeartRate draws a resting heart rate with a small upward shift for
// diagnosed diabetes.
func (g *Generator) HeartRate(t patient.DiabetesType) int {
	hr := dist.Normal(g.rng, 74, 6)
	if t.IsDiabetic() {
		hr += dist.Normal(g.rng, 2.5, 2.0)
	}
	return dist.ClampInt(int(hr), 50, 110)
}
