package generator

import (
	"strconv"
	"time"

	"github.com/ehr/cohortgen/internal/domain/dist"
	"github.com/ehr/cohortgen/internal/domain/reference"
)

const (
	SexMale   = "Male"
	SexFemale = "Female"
)

// ageBuckets maps coded age buckets to inclusive age bounds.
var ageBuckets = map[int][2]int{
	1: {18, 24}, 2: {25, 29}, 3: {30, 34}, 4: {35, 39},
	5: {40, 44}, 6: {45, 49}, 7: {50, 54}, 8: {55, 59},
	9: {60, 64}, 10: {65, 69}, 11: {70, 74}, 12: {75, 79}, 13: {80, 88},
}

// unknownAgeBucket is used for codes outside the map.
var unknownAgeBucket = [2]int{40, 70}

// AgeBounds returns the inclusive age range of a coded bucket.
func AgeBounds(code int) (lo, hi int) {
	b, ok := ageBuckets[code]
	if !ok {
		b = unknownAgeBucket
	}
	return b[0], b[1]
}

// Sex resolves the patient's sex from the reference row or the male prior.
// A coded 1 is male, any other code female.
func (g *Generator) Sex(row reference.Row) string {
	code, ok := reference.SexFlag(row)
	if !ok {
		g.stats[reference.FieldSex]++
		code = 2
		if dist.Bernoulli(g.rng, DefaultMaleProb) {
			code = 1
		}
	}
	if code == 1 {
		return SexMale
	}
	return SexFemale
}

// AgeCode resolves the coded age bucket from the reference row or the
// configured bucket distribution.
func (g *Generator) AgeCode(row reference.Row) int {
	if code, ok := reference.AgeCode(row); ok {
		return code
	}
	g.stats[reference.FieldAge]++
	code, err := strconv.Atoi(g.tables.AgeBucket.Draw(g.rng))
	if err != nil {
		return 0
	}
	return code
}

// Age draws a whole age uniformly within the bucket's bounds.
func (g *Generator) Age(code int) int {
	lo, hi := AgeBounds(code)
	return dist.IntRange(g.rng, lo, hi)
}

// DateOfBirth subtracts age years from today, then a further 0-364 days so
// birthdays spread across the year.
func (g *Generator) DateOfBirth(age int) time.Time {
	dob := g.today.AddDate(-age, 0, 0)
	return dob.AddDate(0, 0, -dist.IntRange(g.rng, 0, 364))
}

// Name picks a region, then a first and last name from that region.
func (g *Generator) Name() string {
	region := g.tables.Region.Draw(g.rng)
	firsts, ok := firstNames[region]
	if !ok {
		region = defaultRegion
		firsts = firstNames[region]
	}
	lasts := lastNames[region]
	return firsts[g.rng.Intn(len(firsts))] + " " + lasts[g.rng.Intn(len(lasts))]
}
