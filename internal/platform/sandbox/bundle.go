package sandbox

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/cohortgen/internal/domain/generator"
	"github.com/ehr/cohortgen/internal/domain/patient"
	"github.com/ehr/cohortgen/pkg/fhirmodels"
)

// ---------------------------------------------------------------------------
// FHIR R4 transaction Bundle
// ---------------------------------------------------------------------------

const systemMRN = "urn:oid:2.16.840.1.113883.19.5"

// bundleNamespace scopes the name-based UUIDs used for fullUrl, so the same
// cohort always yields the same bundle.
var bundleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://cohortgen.local/fhir"))

// Bundle is a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	FullURL  string                 `json:"fullUrl"`
	Resource map[string]interface{} `json:"resource"`
	Request  BundleRequest          `json:"request"`
}

type BundleRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type observationDef struct {
	Code    string
	Display string
	Unit    string
	Value   func(r *patient.Record) float64
	Lab     bool
}

var vitalObservations = []observationDef{
	{"8302-2", "Body height", "cm", func(r *patient.Record) float64 { return float64(r.HeightCM) }, false},
	{"29463-7", "Body weight", "kg", func(r *patient.Record) float64 { return r.WeightKG }, false},
	{"39156-5", "Body mass index (BMI) [Ratio]", "kg/m2", func(r *patient.Record) float64 { return r.BMI }, false},
	{"8480-6", "Systolic blood pressure", "mm[Hg]", func(r *patient.Record) float64 { return float64(r.SystolicBP) }, false},
	{"8462-4", "Diastolic blood pressure", "mm[Hg]", func(r *patient.Record) float64 { return float64(r.DiastolicBP) }, false},
	{"8867-4", "Heart rate", "/min", func(r *patient.Record) float64 { return float64(r.HeartRateBPM) }, false},
	{"1558-6", "Fasting glucose [Mass/volume] in Serum or Plasma", "mg/dL", func(r *patient.Record) float64 { return r.FastingGlucose }, true},
	{"1521-4", "Glucose [Mass/volume] in Serum or Plasma --2 hours post meal", "mg/dL", func(r *patient.Record) float64 { return r.PostprandialGlucose }, true},
	{"4548-4", "Hemoglobin A1c/Hemoglobin.total in Blood", "%", func(r *patient.Record) float64 { return r.HbA1cPercent }, true},
	{"2093-3", "Cholesterol [Mass/volume] in Serum or Plasma", "mg/dL", func(r *patient.Record) float64 { return float64(r.TotalCholesterol) }, true},
	{"2089-1", "Cholesterol in LDL [Mass/volume] in Serum or Plasma", "mg/dL", func(r *patient.Record) float64 { return float64(r.LDLCholesterol) }, true},
	{"2085-9", "Cholesterol in HDL [Mass/volume] in Serum or Plasma", "mg/dL", func(r *patient.Record) float64 { return float64(r.HDLCholesterol) }, true},
	{"2571-8", "Triglyceride [Mass/volume] in Serum or Plasma", "mg/dL", func(r *patient.Record) float64 { return float64(r.Triglycerides) }, true},
}

type codeEntry struct {
	Code    string
	Display string
}

var diagnosisCodes = map[patient.DiabetesType]codeEntry{
	patient.DiabetesT1: {"E10.9", "Type 1 diabetes mellitus without complications"},
	patient.DiabetesT2: {"E11.9", "Type 2 diabetes mellitus without complications"},
}

var comorbidityCodes = map[string]codeEntry{
	generator.CondHypertension: {"I10", "Essential (primary) hypertension"},
	generator.CondStroke:       {"I63.9", "Cerebral infarction, unspecified"},
	generator.CondHeartFailure: {"I50.9", "Heart failure, unspecified"},
	generator.CondRetinopathy:  {"H36", "Retinal disorders in diseases classified elsewhere"},
	generator.CondNeuropathy:   {"G62.9", "Polyneuropathy, unspecified"},
	generator.CondNephropathy:  {"N28.9", "Disorder of kidney and ureter, unspecified"},
	generator.CondFootUlcer:    {"L97.509", "Non-pressure chronic ulcer of other part of unspecified foot"},
}

var medicationCodes = map[string]codeEntry{
	"Metformin":   {"6809", "metformin"},
	"sitagliptin": {"593411", "sitagliptin"},
}

// WriteBundle writes records as a FHIR transaction Bundle. Each patient
// contributes a Patient, one Observation per vital and lab value, one
// Condition per diagnosis and comorbidity, and a MedicationStatement when
// treated.
func WriteBundle(w io.Writer, records []patient.Record) error {
	bundle := NewBundle(records)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}
	return nil
}

// NewBundle builds the transaction Bundle for records.
func NewBundle(records []patient.Record) *Bundle {
	b := &Bundle{ResourceType: "Bundle", Type: fhirmodels.BundleTypeTransaction, Entry: []BundleEntry{}}
	for i := range records {
		b.Entry = append(b.Entry, patientEntries(&records[i])...)
	}
	return b
}

func entryID(parts ...string) string {
	return uuid.NewSHA1(bundleNamespace, []byte(strings.Join(parts, "/"))).String()
}

func newEntry(id, resourceType string, resource map[string]interface{}) BundleEntry {
	resource["resourceType"] = resourceType
	resource["id"] = id
	return BundleEntry{
		FullURL:  "urn:uuid:" + id,
		Resource: resource,
		Request:  BundleRequest{Method: "POST", URL: resourceType},
	}
}

func coding(system string, c codeEntry) map[string]interface{} {
	return map[string]interface{}{
		"coding": []interface{}{
			map[string]interface{}{
				"system":  system,
				"code":    c.Code,
				"display": c.Display,
			},
		},
		"text": c.Display,
	}
}

func patientEntries(r *patient.Record) []BundleEntry {
	patientID := entryID(r.PatientID)
	subject := map[string]interface{}{"reference": "urn:uuid:" + patientID}

	given, family := splitName(r.Name)
	entries := []BundleEntry{
		newEntry(patientID, "Patient", map[string]interface{}{
			"active": true,
			"identifier": []interface{}{
				map[string]interface{}{"system": systemMRN, "value": r.PatientID},
			},
			"name": []interface{}{
				map[string]interface{}{
					"use":    "official",
					"text":   r.Name,
					"family": family,
					"given":  []interface{}{given},
				},
			},
			"gender":    fhirmodels.Gender(r.Sex),
			"birthDate": r.DOB.String(),
		}),
	}

	for _, def := range vitalObservations {
		obs := map[string]interface{}{
			"status":  fhirmodels.ObservationStatusFinal,
			"code":    coding(fhirmodels.SystemLOINC, codeEntry{def.Code, def.Display}),
			"subject": subject,
			"valueQuantity": map[string]interface{}{
				"value":  def.Value(r),
				"unit":   def.Unit,
				"system": fhirmodels.SystemUCUM,
				"code":   def.Unit,
			},
		}
		category := fhirmodels.ObsCategoryVitalSigns
		if def.Lab {
			category = fhirmodels.ObsCategoryLaboratory
			obs["effectiveDateTime"] = r.HbA1cDate.String()
		}
		obs["category"] = []interface{}{
			map[string]interface{}{
				"coding": []interface{}{
					map[string]interface{}{
						"system": fhirmodels.SystemObservationCategory,
						"code":   category,
					},
				},
			},
		}
		entries = append(entries, newEntry(entryID(r.PatientID, "Observation", def.Code), "Observation", obs))
	}

	if dx, ok := diagnosisCodes[r.DiabetesType]; ok {
		entries = append(entries, conditionEntry(r, dx, subject))
	}
	if r.MedicalHistory != patient.None {
		for _, cond := range strings.Split(r.MedicalHistory, "; ") {
			c, ok := comorbidityCodes[cond]
			if !ok {
				c = codeEntry{Display: cond}
			}
			entries = append(entries, conditionEntry(r, c, subject))
		}
	}

	if med, ok := medicationCodes[r.Medication]; ok {
		entries = append(entries, newEntry(entryID(r.PatientID, "MedicationStatement", med.Code), "MedicationStatement", map[string]interface{}{
			"status":                    fhirmodels.MedicationStatementActive,
			"subject":                   subject,
			"medicationCodeableConcept": coding(fhirmodels.SystemRxNorm, med),
		}))
	}
	return entries
}

func conditionEntry(r *patient.Record, c codeEntry, subject map[string]interface{}) BundleEntry {
	return newEntry(entryID(r.PatientID, "Condition", c.Display), "Condition", map[string]interface{}{
		"clinicalStatus": map[string]interface{}{
			"coding": []interface{}{
				map[string]interface{}{
					"system": fhirmodels.SystemConditionClinical,
					"code":   fhirmodels.ConditionActive,
				},
			},
		},
		"verificationStatus": map[string]interface{}{
			"coding": []interface{}{
				map[string]interface{}{
					"system": fhirmodels.SystemConditionVerification,
					"code":   fhirmodels.ConditionConfirmed,
				},
			},
		},
		"code":    coding(fhirmodels.SystemICD10CM, c),
		"subject": subject,
	})
}

// splitName splits "First Last" into given and family names.
func splitName(name string) (given, family string) {
	given, family, ok := strings.Cut(name, " ")
	if !ok {
		return name, name
	}
	return given, family
}
