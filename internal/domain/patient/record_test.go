package patient

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func sampleRecord() Record {
	return Record{
		PatientID:           "P2000",
		Name:                "Emma Müller",
		DOB:                 NewDate(time.Date(1961, 3, 14, 17, 30, 0, 0, time.UTC)),
		Age:                 64,
		Sex:                 "Female",
		DiabetesType:        DiabetesT2,
		YearsSinceDiagnosis: 4,
		HeightCM:            163,
		WeightKG:            79.7,
		BMI:                 30,
		SystolicBP:          138,
		DiastolicBP:         84,
		HeartRateBPM:        77,
		FastingGlucose:      141.2,
		PostprandialGlucose: 190.5,
		HbA1cPercent:        7.25,
		HbA1cDate:           NewDate(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)),
		TotalCholesterol:    212,
		LDLCholesterol:      131,
		HDLCholesterol:      44,
		Triglycerides:       188,
		SmokingStatus:       "never",
		AlcoholUse:          "moderate",
		ActivityLevel:       "low",
		DietPattern:         "mixed/Western",
		FamilyHistory:       Yes,
		Allergies:           No,
		MedicalHistory:      "hypertension; neuropathy",
		Medication:          "Metformin",
	}
}

func TestColumns_MatchJSONFieldOrder(t *testing.T) {
	typ := reflect.TypeOf(Record{})
	if typ.NumField() != len(Columns) {
		t.Fatalf("record has %d fields, Columns has %d", typ.NumField(), len(Columns))
	}
	for i := 0; i < typ.NumField(); i++ {
		tag := strings.Split(typ.Field(i).Tag.Get("json"), ",")[0]
		if tag != Columns[i] {
			t.Errorf("column %d: json tag %q, header %q", i, tag, Columns[i])
		}
	}
}

func TestRecord_JSON(t *testing.T) {
	rec := sampleRecord()
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"dob":"1961-03-14"`, `"hba1c_date":"2026-08-01"`, `"BMI":30`, `"diabetes_type":"T2"`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}

	var back Record
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.DOB.String() != "1961-03-14" {
		t.Errorf("expected dob to survive decoding, got %s", back.DOB)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []Record{sampleRecord()}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	if !reflect.DeepEqual(rows[0], Columns) {
		t.Errorf("unexpected header %v", rows[0])
	}
	row := rows[1]
	if row[2] != "1961-03-14" || row[8] != "79.7" || row[9] != "30" || row[15] != "7.25" {
		t.Errorf("unexpected row values %v", row)
	}
	if row[27] != "hypertension; neuropathy" {
		t.Errorf("unexpected medical history %q", row[27])
	}
}

func TestDiabetesType_IsDiabetic(t *testing.T) {
	if DiabetesNone.IsDiabetic() {
		t.Error("none must not be diabetic")
	}
	if !DiabetesT1.IsDiabetic() || !DiabetesT2.IsDiabetic() {
		t.Error("T1 and T2 must be diabetic")
	}
}
