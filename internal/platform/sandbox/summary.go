package sandbox

import (
	"fmt"
	"io"

	"github.com/ehr/cohortgen/internal/domain/patient"
)

// HbA1c groups used in the run summary.
const (
	GroupNormal      = "Normal (<5.7)"
	GroupPrediabetes = "Prediabetes (5.7–6.4)"
	GroupDiabetes    = "Diabetes (≥6.5)"
)

var (
	typeOrder  = []patient.DiabetesType{patient.DiabetesT2, patient.DiabetesT1, patient.DiabetesNone}
	groupOrder = []string{GroupNormal, GroupPrediabetes, GroupDiabetes}
)

// Summary is a sanity check on a cohort: patients per diabetes type and per
// HbA1c group.
type Summary struct {
	Total   int                          `json:"total"`
	ByType  map[patient.DiabetesType]int `json:"byType"`
	ByHbA1c map[string]int               `json:"byHbA1cGroup"`
}

// HbA1cGroup classifies an HbA1c percentage.
func HbA1cGroup(a1c float64) string {
	switch {
	case a1c < 5.7:
		return GroupNormal
	case a1c < 6.5:
		return GroupPrediabetes
	default:
		return GroupDiabetes
	}
}

// Summarize counts records by type and HbA1c group.
func Summarize(records []patient.Record) Summary {
	s := Summary{
		Total:   len(records),
		ByType:  make(map[patient.DiabetesType]int, len(typeOrder)),
		ByHbA1c: make(map[string]int, len(groupOrder)),
	}
	for _, t := range typeOrder {
		s.ByType[t] = 0
	}
	for _, g := range groupOrder {
		s.ByHbA1c[g] = 0
	}
	for i := range records {
		s.ByType[records[i].DiabetesType]++
		s.ByHbA1c[HbA1cGroup(records[i].HbA1cPercent)]++
	}
	return s
}

// WriteText prints the summary as two small tables.
func (s Summary) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Counts by diabetes_type:"); err != nil {
		return err
	}
	for _, t := range typeOrder {
		if _, err := fmt.Fprintf(w, "  %-24s %d\n", t, s.ByType[t]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, "Counts by HbA1c group:"); err != nil {
		return err
	}
	for _, g := range groupOrder {
		if _, err := fmt.Fprintf(w, "  %-24s %d\n", g, s.ByHbA1c[g]); err != nil {
			return err
		}
	}
	return nil
}
