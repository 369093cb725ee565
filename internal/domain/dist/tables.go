package dist

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Table names as they appear in distribution overlay files.
const (
	TableRegion                   = "region"
	TableAgeBucket                = "age_bucket"
	TableSmoking                  = "smoking"
	TableAlcohol                  = "alcohol"
	TableActivity                 = "activity"
	TableDiet                     = "diet"
	TableFamilyHistoryDiabetic    = "family_history_diabetic"
	TableFamilyHistoryNonDiabetic = "family_history_non_diabetic"
	TableAllergies                = "allergies"
	TableMedicationT2             = "medication_t2"
)

// Tables groups the categorical distribution of every decision point in the
// generator chain.
type Tables struct {
	Region                   Table `yaml:"region"`
	AgeBucket                Table `yaml:"age_bucket"`
	Smoking                  Table `yaml:"smoking"`
	Alcohol                  Table `yaml:"alcohol"`
	Activity                 Table `yaml:"activity"`
	Diet                     Table `yaml:"diet"`
	FamilyHistoryDiabetic    Table `yaml:"family_history_diabetic"`
	FamilyHistoryNonDiabetic Table `yaml:"family_history_non_diabetic"`
	Allergies                Table `yaml:"allergies"`
	MedicationT2             Table `yaml:"medication_t2"`
}

// DefaultTables returns the population defaults.
func DefaultTables() Tables {
	return Tables{
		Region: Table{
			Name:     TableRegion,
			Outcomes: []string{"European", "South Asian", "East Asian", "African", "Middle Eastern", "Latinx"},
			Weights:  []float64{0.33, 0.12, 0.12, 0.12, 0.11, 0.20},
		},
		// Fallback age buckets 6..12, skewed older.
		AgeBucket: Table{
			Name:     TableAgeBucket,
			Outcomes: []string{"6", "7", "8", "9", "10", "11", "12"},
			Weights:  []float64{0.06, 0.12, 0.16, 0.18, 0.18, 0.14, 0.16},
		},
		Smoking: Table{
			Name:     TableSmoking,
			Outcomes: []string{"never", "former"},
			Weights:  []float64{0.7, 0.3},
		},
		Alcohol: Table{
			Name:     TableAlcohol,
			Outcomes: []string{"none", "moderate"},
			Weights:  []float64{0.35, 0.65},
		},
		Activity: Table{
			Name:     TableActivity,
			Outcomes: []string{"moderate", "high"},
			Weights:  []float64{0.7, 0.3},
		},
		Diet: Table{
			Name:     TableDiet,
			Outcomes: []string{"traditional", "high refined carbs", "Mediterranean-like", "vegetarian", "mixed/Western"},
			Weights:  []float64{0.30, 0.22, 0.22, 0.10, 0.16},
		},
		FamilyHistoryDiabetic: Table{
			Name:     TableFamilyHistoryDiabetic,
			Outcomes: []string{"yes", "no"},
			Weights:  []float64{0.62, 0.38},
		},
		FamilyHistoryNonDiabetic: Table{
			Name:     TableFamilyHistoryNonDiabetic,
			Outcomes: []string{"yes", "no"},
			Weights:  []float64{0.25, 0.75},
		},
		Allergies: Table{
			Name:     TableAllergies,
			Outcomes: []string{"yes", "no"},
			Weights:  []float64{0.18, 0.82},
		},
		MedicationT2: Table{
			Name:     TableMedicationT2,
			Outcomes: []string{"none", "Metformin", "sitagliptin"},
			Weights:  []float64{0.2, 0.65, 0.15},
		},
	}
}

func (t *Tables) byName() map[string]*Table {
	return map[string]*Table{
		TableRegion:                   &t.Region,
		TableAgeBucket:                &t.AgeBucket,
		TableSmoking:                  &t.Smoking,
		TableAlcohol:                  &t.Alcohol,
		TableDiet:                     &t.Diet,
		TableActivity:                 &t.Activity,
		TableFamilyHistoryDiabetic:    &t.FamilyHistoryDiabetic,
		TableFamilyHistoryNonDiabetic: &t.FamilyHistoryNonDiabetic,
		TableAllergies:                &t.Allergies,
		TableMedicationT2:             &t.MedicationT2,
	}
}

// Names lists every table name in sorted order.
func (t Tables) Names() []string {
	m := t.byName()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the table registered under name.
func (t Tables) Lookup(name string) (Table, bool) {
	p, ok := t.byName()[name]
	if !ok {
		return Table{}, false
	}
	return *p, true
}

// overlay is the on-disk shape of a single table entry. Outcomes may be
// omitted to reweight a table without restating its outcome set.
type overlay struct {
	Outcomes []string  `yaml:"outcomes"`
	Weights  []float64 `yaml:"weights"`
}

// LoadTables reads a YAML overlay and applies it on top of the defaults.
// Unknown table names and unusable outcome sets are errors; weight vectors
// are taken as written and normalized (or made uniform) at draw time.
func LoadTables(r io.Reader) (Tables, error) {
	tables := DefaultTables()

	var doc map[string]overlay
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return tables, nil
		}
		return Tables{}, fmt.Errorf("decode distribution tables: %w", err)
	}

	named := tables.byName()
	for name, ov := range doc {
		target, ok := named[name]
		if !ok {
			return Tables{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
		}
		if len(ov.Outcomes) > 0 {
			target.Outcomes = ov.Outcomes
		}
		if len(target.Outcomes) == 0 {
			return Tables{}, fmt.Errorf("%w: %q", ErrEmptyOutcomes, name)
		}
		target.Weights = ov.Weights
	}

	for _, code := range tables.AgeBucket.Outcomes {
		n, err := strconv.Atoi(code)
		if err != nil || n < 1 || n > 13 {
			return Tables{}, fmt.Errorf("%w: %s outcome %q is not an age code 1..13", ErrInvalidOutcome, TableAgeBucket, code)
		}
	}

	return tables, nil
}

// WriteYAML renders the tables in the overlay format, so the output of one
// run can be edited and fed back through LoadTables.
func (t Tables) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode distribution tables: %w", err)
	}
	return enc.Close()
}
