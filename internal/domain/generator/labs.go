package generator

import (
	"math"
	"time"

	"github.com/ehr/cohortgen/internal/domain/dist"
	"github.com/ehr/cohortgen/internal/domain/patient"
)

// DiagnosticHbA1c is the HbA1c threshold (%) for a diabetes diagnosis.
const DiagnosticHbA1c = 6.5

type normal struct{ mean, sd float64 }

type glycemiaParams struct {
	fpg, ppg, a1c normal
}

var glycemiaByType = map[patient.DiabetesType]glycemiaParams{
	patient.DiabetesNone: {fpg: normal{93, 8}, ppg: normal{118, 15}, a1c: normal{5.4, 0.25}},
	patient.DiabetesT1:   {fpg: normal{138, 28}, ppg: normal{198, 35}, a1c: normal{7.6, 0.8}},
	patient.DiabetesT2:   {fpg: normal{132, 22}, ppg: normal{185, 30}, a1c: normal{7.2, 0.7}},
}

// Glycemia is one patient's glucose panel.
type Glycemia struct {
	FastingGlucose      float64
	PostprandialGlucose float64
	HbA1c               float64
	HbA1cDate           time.Time
}

// Glycemia draws FPG, PPG and HbA1c sharing the same covariates: base values
// by diabetes type, a BMI and weight load, treatment effect with disease
// duration, heavy alcohol use and a final nudge towards the diagnostic
// category the label implies.
func (g *Generator) Glycemia(t patient.DiabetesType, bmi, weight float64, years int, heavyAlcohol int) Glycemia {
	p, ok := glycemiaByType[t]
	if !ok {
		p = glycemiaByType[patient.DiabetesNone]
	}
	fpg := dist.Normal(g.rng, p.fpg.mean, p.fpg.sd)
	ppg := dist.Normal(g.rng, p.ppg.mean, p.ppg.sd)
	a1c := dist.Normal(g.rng, p.a1c.mean, p.a1c.sd)

	a1c += 0.03*math.Max(bmi-25, 0) + 0.01*math.Max((weight-85)/5, 0)
	fpg += 0.5 * math.Max(bmi-30, 0)
	ppg += 0.6 * math.Max(bmi-30, 0)

	diagnosed := t.IsDiabetic()
	if diagnosed {
		a1c -= dist.Clamp(dist.Normal(g.rng, 0.02*float64(years), 0.1), -0.5, 0.8)
	}

	if heavyAlcohol == 1 {
		if diagnosed {
			a1c = math.Max(a1c, dist.Normal(g.rng, 6.4, 0.4))
			fpg += dist.Normal(g.rng, 4, 6)
			ppg += dist.Normal(g.rng, 6, 8)
		} else {
			// Bump, then cap near the prediabetic range.
			a1c += dist.Normal(g.rng, 0.2, 0.15)
			a1c = math.Min(a1c, dist.Normal(g.rng, 5.9, 0.15))
		}
	}

	switch {
	case !diagnosed && a1c >= DiagnosticHbA1c && dist.Bernoulli(g.rng, 0.8):
		a1c = dist.Uniform(g.rng, 5.5, 6.3)
	case diagnosed && a1c < DiagnosticHbA1c && dist.Bernoulli(g.rng, 0.7):
		a1c = dist.Uniform(g.rng, 6.5, 8.2)
	}

	return Glycemia{
		FastingGlucose:      dist.Round(dist.Clamp(fpg, 65, 350), 1),
		PostprandialGlucose: dist.Round(dist.Clamp(ppg, 80, 450), 1),
		HbA1c:               dist.Round(dist.Clamp(a1c, 4.5, 14), 2),
		HbA1cDate:           g.today.AddDate(0, 0, -dist.IntRange(g.rng, 1, 180)),
	}
}

// Lipids is one patient's lipid panel in mg/dL.
type Lipids struct {
	Total         int
	LDL           int
	HDL           int
	Triglycerides int
}

// Lipids draws a lipid panel shifted by the high-cholesterol flag and, for
// diagnosed patients, a lower HDL and higher triglycerides.
func (g *Generator) Lipids(t patient.DiabetesType, highChol int) Lipids {
	chol := float64(highChol)
	tc := dist.Normal(g.rng, 195, 28) + 20*chol
	ldl := dist.Normal(g.rng, 115, 24) + 18*chol
	hdl := dist.Normal(g.rng, 49, 11) - 2*chol
	tg := dist.Normal(g.rng, 145, 50) + 25*chol
	if t.IsDiabetic() {
		hdl += dist.Normal(g.rng, -1, 2)
		tg += dist.Normal(g.rng, 15, 10)
	}
	return Lipids{
		Total:         roundClamp(tc, 110, 320),
		LDL:           roundClamp(ldl, 50, 220),
		HDL:           roundClamp(hdl, 25, 100),
		Triglycerides: roundClamp(tg, 45, 600),
	}
}

func roundClamp(x float64, lo, hi int) int {
	return dist.ClampInt(int(math.RoundToEven(x)), lo, hi)
}
