// Package generator implements the conditional generator chain that turns a
// diabetes-type label (and an optional reference row) into one internally
// consistent synthetic patient record.
//
// A Generator owns one random stream. The cohort assembler creates one per
// slot from a sub-seed of the run's master stream, so slots are independent
// and can be produced in any order or in parallel.
package generator

import (
	"math/rand"
	"time"

	"github.com/ehr/cohortgen/internal/domain/dist"
	"github.com/ehr/cohortgen/internal/domain/reference"
)

// Default probabilities used when a reference field is absent.
const (
	DefaultHighBPProb       = 0.55
	DefaultHighCholProb     = 0.45
	DefaultSmokerProb       = 0.18
	DefaultHeavyAlcoholProb = 0.06
	DefaultPhysActivityProb = 0.55
	DefaultMaleProb         = 0.48
)

// Generator draws every attribute of a patient from a private random stream.
type Generator struct {
	rng    *rand.Rand
	tables dist.Tables
	today  time.Time
	stats  FallbackStats
}

// New returns a generator over rng. today anchors dates of birth and lab
// observation dates; only its calendar day is used.
func New(rng *rand.Rand, tables dist.Tables, today time.Time) *Generator {
	y, m, d := today.Date()
	return &Generator{
		rng:    rng,
		tables: tables,
		today:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		stats:  FallbackStats{},
	}
}

// NewSeeded is New with a fresh stream seeded from seed.
func NewSeeded(seed int64, tables dist.Tables, today time.Time) *Generator {
	return New(rand.New(rand.NewSource(seed)), tables, today)
}

// Stats returns the fallbacks recorded so far.
func (g *Generator) Stats() FallbackStats {
	return g.stats
}

// FallbackStats counts, per reference field, how often a default was used
// because the field was absent or malformed.
type FallbackStats map[reference.Field]int

// Merge adds other into s.
func (s FallbackStats) Merge(other FallbackStats) {
	for f, n := range other {
		s[f] += n
	}
}

// Total returns the number of fallbacks across all fields.
func (s FallbackStats) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// Flags holds the binary risk flags for one patient.
type Flags struct {
	HighBP       int
	HighChol     int
	Smoker       int
	HeavyAlcohol int
	PhysActivity int
}

// flag reads field from row, or draws 1 with probability p when absent.
func (g *Generator) flag(row reference.Row, field reference.Field, p float64) int {
	if v, ok := reference.Flag(row, field); ok {
		return v
	}
	g.stats[field]++
	if dist.Bernoulli(g.rng, p) {
		return 1
	}
	return 0
}

// RiskFlags resolves all binary flags, in a fixed order.
func (g *Generator) RiskFlags(row reference.Row) Flags {
	return Flags{
		HighBP:       g.flag(row, reference.FieldHighBP, DefaultHighBPProb),
		HighChol:     g.flag(row, reference.FieldHighChol, DefaultHighCholProb),
		Smoker:       g.flag(row, reference.FieldSmoker, DefaultSmokerProb),
		HeavyAlcohol: g.flag(row, reference.FieldHeavyAlcohol, DefaultHeavyAlcoholProb),
		PhysActivity: g.flag(row, reference.FieldPhysActivity, DefaultPhysActivityProb),
	}
}
