package generator

import (
	"github.com/ehr/cohortgen/internal/domain/patient"
	"github.com/ehr/cohortgen/internal/domain/reference"
)

// Patient runs the full generator chain for one slot. row may be nil.
// Draws happen in a fixed order so a given stream always yields the same
// record.
func (g *Generator) Patient(id string, t patient.DiabetesType, row reference.Row) patient.Record {
	sex := g.Sex(row)
	age := g.Age(g.AgeCode(row))
	dob := g.DateOfBirth(age)

	flags := g.RiskFlags(row)

	height := g.HeightCM(sex)
	weight, bmi := Body(g.BMI(row), height)

	sys, dia := g.BloodPressure(flags.HighBP)
	hr := g.HeartRate(t)

	years := g.YearsSinceDiagnosis(t)

	life := g.Lifestyle(flags)
	family := g.FamilyHistory(t)
	allergies := g.Allergies()

	glyc := g.Glycemia(t, bmi, weight, years, flags.HeavyAlcohol)
	lipids := g.Lipids(t, flags.HighChol)

	history := g.MedicalHistory(t, age)
	med := g.Medication(t)

	return patient.Record{
		PatientID:           id,
		Name:                g.Name(),
		DOB:                 patient.NewDate(dob),
		Age:                 age,
		Sex:                 sex,
		DiabetesType:        t,
		YearsSinceDiagnosis: years,
		HeightCM:            height,
		WeightKG:            weight,
		BMI:                 bmi,
		SystolicBP:          sys,
		DiastolicBP:         dia,
		HeartRateBPM:        hr,
		FastingGlucose:      glyc.FastingGlucose,
		PostprandialGlucose: glyc.PostprandialGlucose,
		HbA1cPercent:        glyc.HbA1c,
		HbA1cDate:           patient.NewDate(glyc.HbA1cDate),
		TotalCholesterol:    lipids.Total,
		LDLCholesterol:      lipids.LDL,
		HDLCholesterol:      lipids.HDL,
		Triglycerides:       lipids.Triglycerides,
		SmokingStatus:       life.Smoking,
		AlcoholUse:          life.Alcohol,
		ActivityLevel:       life.Activity,
		DietPattern:         life.Diet,
		FamilyHistory:       family,
		Allergies:           allergies,
		MedicalHistory:      history,
		Medication:          med,
	}
}
