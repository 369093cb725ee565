// Package patient defines the synthetic patient record emitted by cohort
// generation and its flat tabular rendering.
package patient

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// DiabetesType is the diagnostic category assigned to a cohort slot.
type DiabetesType string

const (
	DiabetesNone DiabetesType = "none"
	DiabetesT1   DiabetesType = "T1"
	DiabetesT2   DiabetesType = "T2"
)

// IsDiabetic reports whether the type is a diagnosed diabetes category.
func (d DiabetesType) IsDiabetic() bool {
	return d == DiabetesT1 || d == DiabetesT2
}

// Sentinel text values shared by several record fields.
const (
	None = "none"
	Yes  = "yes"
	No   = "no"
)

// DateLayout is the calendar-date format used for every date field.
const DateLayout = "2006-01-02"

// Date is a calendar date rendered as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	d.Time = t
	return nil
}

// Record is one synthetic patient.
type Record struct {
	PatientID           string       `json:"patient_id"`
	Name                string       `json:"name"`
	DOB                 Date         `json:"dob"`
	Age                 int          `json:"age"`
	Sex                 string       `json:"sex"`
	DiabetesType        DiabetesType `json:"diabetes_type"`
	YearsSinceDiagnosis int          `json:"years_since_diagnosis"`
	HeightCM            int          `json:"height_cm"`
	WeightKG            float64      `json:"weight_kg"`
	BMI                 float64      `json:"BMI"`
	SystolicBP          int          `json:"systolic_bp"`
	DiastolicBP         int          `json:"diastolic_bp"`
	HeartRateBPM        int          `json:"heart_rate_bpm"`
	FastingGlucose      float64      `json:"fasting_glucose_mg_dL"`
	PostprandialGlucose float64      `json:"postprandial_glucose_mg_dL"`
	HbA1cPercent        float64      `json:"hba1c_percent"`
	HbA1cDate           Date         `json:"hba1c_date"`
	TotalCholesterol    int          `json:"total_cholesterol_mg_dL"`
	LDLCholesterol      int          `json:"ldl_cholesterol_mg_dL"`
	HDLCholesterol      int          `json:"hdl_cholesterol_mg_dL"`
	Triglycerides       int          `json:"triglycerides_mg_dL"`
	SmokingStatus       string       `json:"smoking_status"`
	AlcoholUse          string       `json:"alcohol_use"`
	ActivityLevel       string       `json:"physical_activity_level"`
	DietPattern         string       `json:"diet_pattern"`
	FamilyHistory       string       `json:"family_history"`
	Allergies           string       `json:"allergies"`
	MedicalHistory      string       `json:"medical_history"`
	Medication          string       `json:"ongoing_medications"`
}

// Columns is the CSV header, in the same order as the JSON fields.
var Columns = []string{
	"patient_id", "name", "dob", "age", "sex", "diabetes_type", "years_since_diagnosis",
	"height_cm", "weight_kg", "BMI", "systolic_bp", "diastolic_bp", "heart_rate_bpm",
	"fasting_glucose_mg_dL", "postprandial_glucose_mg_dL", "hba1c_percent", "hba1c_date",
	"total_cholesterol_mg_dL", "ldl_cholesterol_mg_dL", "hdl_cholesterol_mg_dL", "triglycerides_mg_dL",
	"smoking_status", "alcohol_use", "physical_activity_level", "diet_pattern",
	"family_history", "allergies", "medical_history", "ongoing_medications",
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Row renders the record as CSV cells aligned with Columns.
func (r *Record) Row() []string {
	return []string{
		r.PatientID,
		r.Name,
		r.DOB.String(),
		strconv.Itoa(r.Age),
		r.Sex,
		string(r.DiabetesType),
		strconv.Itoa(r.YearsSinceDiagnosis),
		strconv.Itoa(r.HeightCM),
		ftoa(r.WeightKG),
		ftoa(r.BMI),
		strconv.Itoa(r.SystolicBP),
		strconv.Itoa(r.DiastolicBP),
		strconv.Itoa(r.HeartRateBPM),
		ftoa(r.FastingGlucose),
		ftoa(r.PostprandialGlucose),
		ftoa(r.HbA1cPercent),
		r.HbA1cDate.String(),
		strconv.Itoa(r.TotalCholesterol),
		strconv.Itoa(r.LDLCholesterol),
		strconv.Itoa(r.HDLCholesterol),
		strconv.Itoa(r.Triglycerides),
		r.SmokingStatus,
		r.AlcoholUse,
		r.ActivityLevel,
		r.DietPattern,
		r.FamilyHistory,
		r.Allergies,
		r.MedicalHistory,
		r.Medication,
	}
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range records {
		if err := cw.Write(records[i].Row()); err != nil {
			return fmt.Errorf("write csv row %s: %w", records[i].PatientID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
