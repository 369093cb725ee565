// Package fhirmodels holds the FHIR R4 codes and system URIs used when
// cohorts are exported as resources.
package fhirmodels

import "strings"

// Code systems.
const (
	SystemLOINC                 = "http://loinc.org"
	SystemUCUM                  = "http://unitsofmeasure.org"
	SystemICD10CM               = "http://hl7.org/fhir/sid/icd-10-cm"
	SystemRxNorm                = "http://www.nlm.nih.gov/research/umls/rxnorm"
	SystemObservationCategory   = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemConditionClinical     = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemConditionVerification = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
)

// BundleType values.
const (
	BundleTypeTransaction = "transaction"
	BundleTypeCollection  = "collection"
)

// ObservationStatus values.
const (
	ObservationStatusFinal = "final"
)

// ObservationCategory codes.
const (
	ObsCategoryVitalSigns = "vital-signs"
	ObsCategoryLaboratory = "laboratory"
)

// ConditionClinicalStatus codes.
const (
	ConditionActive   = "active"
	ConditionInactive = "inactive"
)

// ConditionVerificationStatus codes.
const (
	ConditionConfirmed = "confirmed"
)

// MedicationStatementStatus codes.
const (
	MedicationStatementActive = "active"
)

// AdministrativeGender codes.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// Gender maps a free-text sex value to an AdministrativeGender code.
func Gender(sex string) string {
	switch strings.ToLower(strings.TrimSpace(sex)) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	case "":
		return GenderUnknown
	default:
		return GenderOther
	}
}
