// Package reference loads an optional empirical reference table (BRFSS-style
// health indicators) and exposes typed, never-failing field accessors over
// its rows. A missing table, a missing column or an unparseable cell all read
// as "absent"; callers supply the default.
package reference

import (
	"errors"
	"math"
	"math/rand"
	"strings"
)

// ErrNoReference reports that a source produced no usable rows.
var ErrNoReference = errors.New("reference table is empty")

// Field is a canonical reference column name.
type Field string

const (
	FieldHighBP       Field = "HighBP"
	FieldHighChol     Field = "HighChol"
	FieldSmoker       Field = "Smoker"
	FieldHeavyAlcohol Field = "HvyAlcoholConsump"
	FieldPhysActivity Field = "PhysActivity"
	FieldBMI          Field = "BMI"
	FieldSex          Field = "Sex"
	FieldAge          Field = "Age"
)

// Fields lists the canonical fields in the order they are reported.
var Fields = []Field{
	FieldHighBP, FieldHighChol, FieldSmoker, FieldHeavyAlcohol,
	FieldPhysActivity, FieldBMI, FieldSex, FieldAge,
}

// aliases maps a canonical field to the column headers accepted for it, in
// priority order.
var aliases = map[Field][]string{
	FieldSex: {"Sex", "sex", "male", "gender"},
	FieldAge: {"Age", "age", "AgeCategory", "Age_Cat"},
}

// columnIndex resolves canonical fields to column positions for a header.
func columnIndex(header []string) map[Field]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, seen := pos[h]; !seen {
			pos[h] = i
		}
	}

	idx := make(map[Field]int)
	for _, f := range Fields {
		candidates, ok := aliases[f]
		if !ok {
			candidates = []string{string(f)}
		}
		for _, c := range candidates {
			if i, ok := pos[c]; ok {
				idx[f] = i
				break
			}
		}
	}
	return idx
}

// Row is one normalized reference record. A nil Row means no reference row
// is available for the slot.
type Row map[Field]float64

// Lookup returns the value of f and whether it is present.
func (r Row) Lookup(f Field) (float64, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r[f]
	return v, ok
}

// Table is a loaded reference source. It is read-only once built and safe to
// share between generator workers.
type Table struct {
	Source string
	rows   []Row
}

// NewTable builds a table from already normalized rows.
func NewTable(source string, rows []Row) *Table {
	return &Table{Source: source, rows: rows}
}

// Len returns the number of rows. A nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Sample draws one row uniformly at random, or nil when the table is absent
// or empty.
func (t *Table) Sample(rng *rand.Rand) Row {
	if t.Len() == 0 {
		return nil
	}
	return t.rows[rng.Intn(len(t.rows))]
}

// Coverage counts, per canonical field, how many rows carry a value.
func (t *Table) Coverage() map[Field]int {
	out := make(map[Field]int, len(Fields))
	if t == nil {
		return out
	}
	for _, r := range t.rows {
		for f := range r {
			out[f]++
		}
	}
	return out
}

// ageBinUpper holds the inclusive upper bound of age codes 1..12; anything
// above the last bound is code 13.
var ageBinUpper = []int{24, 29, 34, 39, 44, 49, 54, 59, 64, 69, 74, 79}

const maxAgeCode = 13

// Flag reads a binary 0/1 flag. Any other value is absent.
func Flag(r Row, f Field) (int, bool) {
	v, ok := r.Lookup(f)
	if !ok {
		return 0, false
	}
	switch v {
	case 0:
		return 0, true
	case 1:
		return 1, true
	}
	return 0, false
}

// SexFlag reads the coded sex field. Any integral value is accepted and
// interpreted by the caller (1 is male, everything else female).
func SexFlag(r Row) (int, bool) {
	v, ok := integral(r, FieldSex)
	return v, ok
}

// AgeCode reads the age field as a coded bucket 1..13. Raw ages above the
// coded scale are projected onto the first bucket whose upper bound they do
// not exceed, or 13. Codes below 1 are absent.
func AgeCode(r Row) (int, bool) {
	v, ok := integral(r, FieldAge)
	if !ok || v < 1 {
		return 0, false
	}
	if v <= maxAgeCode {
		return v, true
	}
	for i, upper := range ageBinUpper {
		if v <= upper {
			return i + 1, true
		}
	}
	return maxAgeCode, true
}

// BMI reads the body mass index when it is a positive finite number.
func BMI(r Row) (float64, bool) {
	v, ok := r.Lookup(FieldBMI)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

func integral(r Row, f Field) (int, bool) {
	v, ok := r.Lookup(f)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}
