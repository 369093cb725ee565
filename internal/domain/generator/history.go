package generator

import (
	"math"
	"sort"
	"strings"

	"github.com/ehr/cohortgen/internal/domain/dist"
	"github.com/ehr/cohortgen/internal/domain/patient"
)

// Comorbidity catalogue.
const (
	CondHypertension = "hypertension"
	CondStroke       = "stroke"
	CondHeartFailure = "heart failure"
	CondRetinopathy  = "diabetic retinopathy"
	CondNeuropathy   = "neuropathy"
	CondNephropathy  = "nephropathy"
	CondFootUlcer    = "history of diabetic foot ulcer or amputation"
)

const maxComorbidityProb = 0.95

// Comorbidities lists the catalogue in draw order.
var Comorbidities = []string{
	CondHypertension, CondStroke, CondHeartFailure, CondRetinopathy,
	CondNeuropathy, CondNephropathy, CondFootUlcer,
}

// Lifestyle is the categorical lifestyle block of a record.
type Lifestyle struct {
	Smoking  string
	Alcohol  string
	Activity string
	Diet     string
}

// Lifestyle maps the risk flags to categories, drawing the non-flagged
// categories from the distribution tables.
func (g *Generator) Lifestyle(f Flags) Lifestyle {
	l := Lifestyle{Smoking: "current", Alcohol: "heavy", Activity: "low"}
	if f.Smoker != 1 {
		l.Smoking = g.tables.Smoking.Draw(g.rng)
	}
	if f.HeavyAlcohol != 1 {
		l.Alcohol = g.tables.Alcohol.Draw(g.rng)
	}
	if f.PhysActivity != 0 {
		l.Activity = g.tables.Activity.Draw(g.rng)
	}
	l.Diet = g.tables.Diet.Draw(g.rng)
	return l
}

// FamilyHistory draws from the table matching the patient's diabetes status.
func (g *Generator) FamilyHistory(t patient.DiabetesType) string {
	if t.IsDiabetic() {
		return g.tables.FamilyHistoryDiabetic.Draw(g.rng)
	}
	return g.tables.FamilyHistoryNonDiabetic.Draw(g.rng)
}

func (g *Generator) Allergies() string {
	return g.tables.Allergies.Draw(g.rng)
}

// YearsSinceDiagnosis is zero for non-diabetics and right-skewed with a
// six-year mean, capped at 35, otherwise.
func (g *Generator) YearsSinceDiagnosis(t patient.DiabetesType) int {
	if !t.IsDiabetic() {
		return 0
	}
	return int(dist.Clamp(dist.Exponential(g.rng, 6), 0, 35))
}

// ComorbidityProbs returns the per-condition probability for a patient,
// keyed by catalogue entry and clipped to [0, 0.95].
func ComorbidityProbs(t patient.DiabetesType, age int) map[string]float64 {
	a := float64(age)
	var p map[string]float64
	if t.IsDiabetic() {
		t1 := 0.0
		if t == patient.DiabetesT1 {
			t1 = 1
		}
		p = map[string]float64{
			CondHypertension: 0.45,
			CondStroke:       0.06 + 0.004*math.Max(a-50, 0),
			CondHeartFailure: 0.07 + 0.004*math.Max(a-55, 0),
			CondRetinopathy:  0.18 + 0.05*t1,
			CondNeuropathy:   0.22 + 0.04*t1,
			CondNephropathy:  0.12,
			CondFootUlcer:    0.05,
		}
	} else {
		p = map[string]float64{
			CondHypertension: 0.25 + 0.003*math.Max(a-45, 0),
			CondStroke:       0.02 + 0.002*math.Max(a-60, 0),
			CondHeartFailure: 0.02 + 0.003*math.Max(a-65, 0),
			CondRetinopathy:  0,
			CondNeuropathy:   0.03,
			CondNephropathy:  0.03,
			CondFootUlcer:    0,
		}
	}
	for k, v := range p {
		p[k] = dist.Clamp(v, 0, maxComorbidityProb)
	}
	return p
}

// MedicalHistory draws each comorbidity independently and returns the
// sorted, "; "-joined list, or "none" when nothing was drawn.
func (g *Generator) MedicalHistory(t patient.DiabetesType, age int) string {
	probs := ComorbidityProbs(t, age)
	var chosen []string
	for _, c := range Comorbidities {
		if dist.Bernoulli(g.rng, probs[c]) {
			chosen = append(chosen, c)
		}
	}
	return JoinConditions(chosen)
}

// JoinConditions sorts and de-duplicates conditions and joins them with
// "; ". An empty list yields "none".
func JoinConditions(conds []string) string {
	if len(conds) == 0 {
		return patient.None
	}
	set := make(map[string]struct{}, len(conds))
	uniq := make([]string, 0, len(conds))
	for _, c := range conds {
		if _, dup := set[c]; dup {
			continue
		}
		set[c] = struct{}{}
		uniq = append(uniq, c)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, "; ")
}

// Medication draws from the T2 medication table; every other type is
// untreated.
func (g *Generator) Medication(t patient.DiabetesType) string {
	if t != patient.DiabetesT2 {
		return patient.None
	}
	return g.tables.MedicationT2.Draw(g.rng)
}
