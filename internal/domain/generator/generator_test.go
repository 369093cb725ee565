package generator

import (
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/cohortgen/internal/domain/dist"
	"github.com/ehr/cohortgen/internal/domain/patient"
	"github.com/ehr/cohortgen/internal/domain/reference"
)

var testToday = time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)

func newTestGenerator(seed int64) *Generator {
	return NewSeeded(seed, dist.DefaultTables(), testToday)
}

func fullRow() reference.Row {
	return reference.Row{
		reference.FieldHighBP:       1,
		reference.FieldHighChol:     0,
		reference.FieldSmoker:       1,
		reference.FieldHeavyAlcohol: 0,
		reference.FieldPhysActivity: 0,
		reference.FieldBMI:          31.2,
		reference.FieldSex:          2,
		reference.FieldAge:          9,
	}
}

func generate(t *testing.T, seed int64, dtype patient.DiabetesType, n int) []patient.Record {
	t.Helper()
	g := newTestGenerator(seed)
	out := make([]patient.Record, n)
	for i := range out {
		out[i] = g.Patient("P1", dtype, nil)
	}
	return out
}

func TestCohortMix_Counts(t *testing.T) {
	tests := []struct {
		n    int
		mix  CohortMix
		want MixCounts
	}{
		{20, DefaultMix(), MixCounts{T1: 2, T2: 15, None: 3}},
		{100, DefaultMix(), MixCounts{T1: 10, T2: 75, None: 15}},
		{1, DefaultMix(), MixCounts{T1: 0, T2: 1, None: 0}},
		{0, DefaultMix(), MixCounts{}},
		// 0.5 rounds to even.
		{5, CohortMix{T1: 0.1, T2: 0.5}, MixCounts{T1: 0, T2: 2, None: 3}},
		{4, CohortMix{T1: 0.5, T2: 0.5}, MixCounts{T1: 2, T2: 2, None: 0}},
		{10, CohortMix{}, MixCounts{None: 10}},
	}
	for _, tt := range tests {
		got := tt.mix.Counts(tt.n)
		assert.Equal(t, tt.want, got, "n=%d mix=%+v", tt.n, tt.mix)
		assert.Equal(t, tt.n, got.T1+got.T2+got.None)
	}
}

func TestCohortMix_Validate(t *testing.T) {
	require.NoError(t, DefaultMix().Validate())
	require.NoError(t, CohortMix{T1: 0.5, T2: 0.5}.Validate())

	for _, m := range []CohortMix{
		{T1: -0.1, T2: 0.5},
		{T1: 0.1, T2: 1.5},
		{T1: 0.6, T2: 0.6},
		{T1: math.NaN(), T2: 0.1},
	} {
		assert.ErrorIs(t, m.Validate(), ErrInvalidMix, "%+v", m)
	}
}

func TestAssignTypes(t *testing.T) {
	types := AssignTypes(20, DefaultMix(), rand.New(rand.NewSource(7)))
	require.Len(t, types, 20)

	counts := map[patient.DiabetesType]int{}
	for _, ty := range types {
		counts[ty]++
	}
	assert.Equal(t, 2, counts[patient.DiabetesT1])
	assert.Equal(t, 15, counts[patient.DiabetesT2])
	assert.Equal(t, 3, counts[patient.DiabetesNone])

	again := AssignTypes(20, DefaultMix(), rand.New(rand.NewSource(7)))
	assert.Equal(t, types, again)
}

func TestBody_WeightInvariant(t *testing.T) {
	g := newTestGenerator(1)
	for i := 0; i < 5000; i++ {
		sex := SexMale
		if i%2 == 0 {
			sex = SexFemale
		}
		h := g.HeightCM(sex)
		w, bmi := Body(g.BMI(nil), h)

		m := float64(h) / 100
		assert.InDelta(t, bmi*m*m, w, 0.1, "h=%d bmi=%v", h, bmi)
		assert.GreaterOrEqual(t, w, MinWeight)
		assert.LessOrEqual(t, w, MaxWeight)
		assert.GreaterOrEqual(t, bmi, MinBMI)
		assert.LessOrEqual(t, bmi, MaxBMI)
	}
}

func TestBody_ClampRederivesBMI(t *testing.T) {
	// 17 * 1.45^2 = 35.7 kg, below the floor.
	w, bmi := Body(17, 145)
	assert.GreaterOrEqual(t, w, MinWeight)
	assert.Equal(t, 19.1, bmi)
	assert.InDelta(t, bmi*1.45*1.45, w, 0.1)

	// 70 * 2.0^2 = 280 kg, above the ceiling.
	w, bmi = Body(70, 200)
	assert.LessOrEqual(t, w, MaxWeight)
	assert.Equal(t, 62.5, bmi)
	assert.Equal(t, 250.0, w)

	w, bmi = Body(25, 180)
	assert.Equal(t, 25.0, bmi)
	assert.Equal(t, 81.0, w)
}

func TestPatient_ClampRanges(t *testing.T) {
	g := newTestGenerator(11)
	types := []patient.DiabetesType{patient.DiabetesNone, patient.DiabetesT1, patient.DiabetesT2}
	for i := 0; i < 3000; i++ {
		r := g.Patient("P", types[i%3], nil)

		assert.GreaterOrEqual(t, r.Age, 18)
		assert.LessOrEqual(t, r.Age, 88)
		assert.True(t, r.Sex == SexMale || r.Sex == SexFemale)
		if r.Sex == SexFemale {
			assert.True(t, r.HeightCM >= 145 && r.HeightCM <= 185, "height %d", r.HeightCM)
		} else {
			assert.True(t, r.HeightCM >= 155 && r.HeightCM <= 200, "height %d", r.HeightCM)
		}
		assert.True(t, r.SystolicBP >= 95 && r.SystolicBP <= 200)
		assert.True(t, r.DiastolicBP >= 55 && r.DiastolicBP <= 120)
		assert.True(t, r.HeartRateBPM >= 50 && r.HeartRateBPM <= 110)
		assert.True(t, r.FastingGlucose >= 65 && r.FastingGlucose <= 350)
		assert.True(t, r.PostprandialGlucose >= 80 && r.PostprandialGlucose <= 450)
		assert.True(t, r.HbA1cPercent >= 4.5 && r.HbA1cPercent <= 14)
		assert.True(t, r.TotalCholesterol >= 110 && r.TotalCholesterol <= 320)
		assert.True(t, r.LDLCholesterol >= 50 && r.LDLCholesterol <= 220)
		assert.True(t, r.HDLCholesterol >= 25 && r.HDLCholesterol <= 100)
		assert.True(t, r.Triglycerides >= 45 && r.Triglycerides <= 600)
		assert.True(t, r.YearsSinceDiagnosis >= 0 && r.YearsSinceDiagnosis <= 35)
		if !r.DiabetesType.IsDiabetic() {
			assert.Zero(t, r.YearsSinceDiagnosis)
		}

		hbDays := testToday.Truncate(24*time.Hour).Sub(r.HbA1cDate.Time).Hours() / 24
		assert.True(t, hbDays >= 1 && hbDays <= 180, "hba1c date %s", r.HbA1cDate)

		lo := testToday.AddDate(-r.Age-1, 0, 0)
		assert.True(t, r.DOB.After(lo), "dob %s age %d", r.DOB, r.Age)
	}
}

func TestGlycemia_CategoryRates(t *testing.T) {
	const n = 2000
	rate := func(records []patient.Record, diabetic bool) float64 {
		hits := 0
		for _, r := range records {
			if (r.HbA1cPercent >= DiagnosticHbA1c) == diabetic {
				hits++
			}
		}
		return float64(hits) / float64(len(records))
	}

	assert.GreaterOrEqual(t, rate(generate(t, 3, patient.DiabetesNone, n), false), 0.80)
	assert.GreaterOrEqual(t, rate(generate(t, 4, patient.DiabetesT1, n), true), 0.70)
	assert.GreaterOrEqual(t, rate(generate(t, 5, patient.DiabetesT2, n), true), 0.70)
}

func TestGlycemia_HeavyAlcoholNonDiabeticCapped(t *testing.T) {
	g := newTestGenerator(21)
	high := 0
	for i := 0; i < 2000; i++ {
		gl := g.Glycemia(patient.DiabetesNone, 24, 70, 0, 1)
		if gl.HbA1c >= DiagnosticHbA1c {
			high++
		}
	}
	assert.Less(t, high, 20)
}

func TestMedicalHistory(t *testing.T) {
	g := newTestGenerator(5)
	catalogue := map[string]bool{}
	for _, c := range Comorbidities {
		catalogue[c] = true
	}

	sawNone, sawMany := false, false
	for i := 0; i < 2000; i++ {
		h := g.MedicalHistory(patient.DiabetesT2, 70)
		if h == patient.None {
			sawNone = true
			continue
		}
		parts := strings.Split(h, "; ")
		if len(parts) > 1 {
			sawMany = true
		}
		assert.IsIncreasing(t, parts, "history %q not sorted and unique", h)
		for _, p := range parts {
			assert.True(t, catalogue[p], "unknown condition %q", p)
		}
	}
	assert.True(t, sawNone)
	assert.True(t, sawMany)

	// Retinopathy and foot ulcer are never drawn for non-diabetics.
	for i := 0; i < 2000; i++ {
		h := g.MedicalHistory(patient.DiabetesNone, 90)
		assert.NotContains(t, h, CondRetinopathy)
		assert.NotContains(t, h, CondFootUlcer)
	}
}

func TestComorbidityProbs(t *testing.T) {
	p := ComorbidityProbs(patient.DiabetesT1, 60)
	assert.InDelta(t, 0.23, p[CondRetinopathy], 1e-9)
	assert.InDelta(t, 0.26, p[CondNeuropathy], 1e-9)
	assert.InDelta(t, 0.10, p[CondStroke], 1e-9)

	p = ComorbidityProbs(patient.DiabetesNone, 400)
	for c, v := range p {
		assert.LessOrEqual(t, v, 0.95, c)
		assert.GreaterOrEqual(t, v, 0.0, c)
	}
	assert.Equal(t, 0.95, p[CondHypertension])
}

func TestJoinConditions(t *testing.T) {
	assert.Equal(t, "none", JoinConditions(nil))
	assert.Equal(t, "neuropathy; stroke", JoinConditions([]string{"stroke", "neuropathy", "stroke"}))
}

func TestMedication(t *testing.T) {
	g := newTestGenerator(9)
	allowed := map[string]bool{"none": true, "Metformin": true, "sitagliptin": true}
	metformin := 0
	for i := 0; i < 1000; i++ {
		assert.Equal(t, patient.None, g.Medication(patient.DiabetesT1))
		assert.Equal(t, patient.None, g.Medication(patient.DiabetesNone))
		m := g.Medication(patient.DiabetesT2)
		assert.True(t, allowed[m], m)
		if m == "Metformin" {
			metformin++
		}
	}
	assert.InDelta(t, 650, metformin, 60)
}

func TestLifestyle_FlagsForceCategories(t *testing.T) {
	g := newTestGenerator(2)
	l := g.Lifestyle(Flags{Smoker: 1, HeavyAlcohol: 1, PhysActivity: 0})
	assert.Equal(t, "current", l.Smoking)
	assert.Equal(t, "heavy", l.Alcohol)
	assert.Equal(t, "low", l.Activity)

	for i := 0; i < 200; i++ {
		l = g.Lifestyle(Flags{PhysActivity: 1})
		assert.Contains(t, []string{"never", "former"}, l.Smoking)
		assert.Contains(t, []string{"none", "moderate"}, l.Alcohol)
		assert.Contains(t, []string{"moderate", "high"}, l.Activity)
	}
}

func TestPatient_UsesReferenceRow(t *testing.T) {
	g := newTestGenerator(13)
	r := g.Patient("P2000", patient.DiabetesT2, fullRow())

	assert.Equal(t, SexFemale, r.Sex)
	assert.True(t, r.Age >= 60 && r.Age <= 64, "age %d", r.Age)
	assert.Equal(t, "current", r.SmokingStatus)
	assert.Equal(t, "low", r.ActivityLevel)
	assert.NotEqual(t, "heavy", r.AlcoholUse)
	assert.Zero(t, g.Stats().Total())
}

func TestPatient_FallbacksCounted(t *testing.T) {
	g := newTestGenerator(13)
	g.Patient("P2000", patient.DiabetesT2, nil)

	stats := g.Stats()
	for _, f := range reference.Fields {
		assert.Equal(t, 1, stats[f], f)
	}

	partial := fullRow()
	partial[reference.FieldSmoker] = 0.5
	delete(partial, reference.FieldBMI)
	g = newTestGenerator(13)
	g.Patient("P2000", patient.DiabetesT2, partial)
	assert.Equal(t, 2, g.Stats().Total())
	assert.Equal(t, 1, g.Stats()[reference.FieldSmoker])
	assert.Equal(t, 1, g.Stats()[reference.FieldBMI])
}

func TestPatient_Deterministic(t *testing.T) {
	a := generate(t, 42, patient.DiabetesT1, 25)
	b := generate(t, 42, patient.DiabetesT1, 25)
	assert.Equal(t, a, b)

	c := generate(t, 43, patient.DiabetesT1, 25)
	assert.NotEqual(t, a, c)
}

func TestAgeBounds(t *testing.T) {
	lo, hi := AgeBounds(1)
	assert.Equal(t, [2]int{18, 24}, [2]int{lo, hi})
	lo, hi = AgeBounds(13)
	assert.Equal(t, [2]int{80, 88}, [2]int{lo, hi})
	lo, hi = AgeBounds(0)
	assert.Equal(t, [2]int{40, 70}, [2]int{lo, hi})
}

func TestName_RegionalLists(t *testing.T) {
	g := newTestGenerator(17)
	for i := 0; i < 200; i++ {
		parts := strings.SplitN(g.Name(), " ", 2)
		require.Len(t, parts, 2)
		found := false
		for region, firsts := range firstNames {
			for _, f := range firsts {
				if f == parts[0] && contains(lastNames[region], parts[1]) {
					found = true
				}
			}
		}
		assert.True(t, found, "name %v not from a single region", parts)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
