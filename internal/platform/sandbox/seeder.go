// Package sandbox assembles synthetic diabetes cohorts and exposes them to
// the CLI and the sandbox HTTP API. A cohort is reproducible: the same seed
// and configuration always produce the same records, in the same order,
// regardless of how many workers generate them.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/cohortgen/internal/domain/dist"
	"github.com/ehr/cohortgen/internal/domain/generator"
	"github.com/ehr/cohortgen/internal/domain/patient"
	"github.com/ehr/cohortgen/internal/domain/reference"
)

var ErrInvalidCohortSize = errors.New("invalid cohort size")

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the size and shape of a generated cohort.
type SeedConfig struct {
	Size     int                 `json:"size"`
	Seed     int64               `json:"seed"`
	Mix      generator.CohortMix `json:"mix"`
	IDOffset int                 `json:"idOffset"`
	Workers  int                 `json:"workers"`
}

// DefaultSeedConfig returns the defaults of the reference cohort: 20
// patients, seed 7, ids from P2000.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Size:     20,
		Seed:     7,
		Mix:      generator.DefaultMix(),
		IDOffset: 2000,
		Workers:  1,
	}
}

// Validate checks the config against maxSize. A maxSize of zero disables
// the upper bound.
func (c SeedConfig) Validate(maxSize int) error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: %d must be positive", ErrInvalidCohortSize, c.Size)
	}
	if maxSize > 0 && c.Size > maxSize {
		return fmt.Errorf("%w: %d exceeds maximum %d", ErrInvalidCohortSize, c.Size, maxSize)
	}
	if c.IDOffset < 0 {
		return fmt.Errorf("id offset %d must not be negative", c.IDOffset)
	}
	return c.Mix.Validate()
}

// PatientID formats the id of slot i.
func (c SeedConfig) PatientID(i int) string {
	return fmt.Sprintf("P%d", c.IDOffset+i)
}

// ---------------------------------------------------------------------------
// Cohort
// ---------------------------------------------------------------------------

// Cohort is the output of one generation run.
type Cohort struct {
	RunID     string                  `json:"runId"`
	Config    SeedConfig              `json:"config"`
	Generated time.Time               `json:"generated"`
	Records   []patient.Record        `json:"records"`
	Fallbacks generator.FallbackStats `json:"fallbacks"`
	Summary   Summary                 `json:"summary"`
	Duration  time.Duration           `json:"duration"`
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Seeder generates cohorts against fixed distribution tables and an
// optional reference table, and keeps the last cohort for export.
type Seeder struct {
	tables    dist.Tables
	reference *reference.Table
	maxSize   int
	logger    zerolog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	cohort *Cohort
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithReference anchors generation to ref. A nil or empty table leaves the
// generators on their population defaults.
func WithReference(ref *reference.Table) Option {
	return func(s *Seeder) { s.reference = ref }
}

// WithMaxSize caps the cohort size accepted by Generate.
func WithMaxSize(n int) Option {
	return func(s *Seeder) { s.maxSize = n }
}

// WithLogger sets the run logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Seeder) { s.logger = l }
}

// WithClock overrides the clock that anchors dates of birth and lab dates.
func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

// NewSeeder creates a Seeder over the given distribution tables.
func NewSeeder(tables dist.Tables, opts ...Option) *Seeder {
	s := &Seeder{
		tables: tables,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate builds a cohort for cfg and stores it as the seeder's current
// cohort.
//
// The master stream seeded from cfg.Seed first shuffles the type
// assignment, then draws one sub-seed per slot. Every slot generates from
// its own stream, so with Workers > 1 slots are filled concurrently and the
// result is still identical to a sequential run.
func (s *Seeder) Generate(ctx context.Context, cfg SeedConfig) (*Cohort, error) {
	if err := cfg.Validate(s.maxSize); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	start := time.Now()
	runID := uuid.NewString()
	log := s.logger.With().Str("run_id", runID).Logger()
	log.Info().
		Int("size", cfg.Size).
		Int64("seed", cfg.Seed).
		Int("workers", cfg.Workers).
		Str("reference", s.ReferenceSource()).
		Msg("generating cohort")

	master := rand.New(rand.NewSource(cfg.Seed))
	types := generator.AssignTypes(cfg.Size, cfg.Mix, master)
	seeds := make([]int64, cfg.Size)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	today := s.now()
	records := make([]patient.Record, cfg.Size)
	stats := make([]generator.FallbackStats, cfg.Size)

	slot := func(i int) {
		rng := rand.New(rand.NewSource(seeds[i]))
		row := s.reference.Sample(rng)
		gen := generator.New(rng, s.tables, today)
		records[i] = gen.Patient(cfg.PatientID(i), types[i], row)
		stats[i] = gen.Stats()
	}

	if cfg.Workers == 1 {
		for i := range records {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("generating cohort: %w", err)
			}
			slot(i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Workers)
		for i := range records {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				slot(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("generating cohort: %w", err)
		}
	}

	fallbacks := generator.FallbackStats{}
	for _, st := range stats {
		fallbacks.Merge(st)
	}
	if n := fallbacks.Total(); n > 0 {
		ev := log.Debug().Int("total", n)
		for _, f := range reference.Fields {
			if c := fallbacks[f]; c > 0 {
				ev = ev.Int(string(f), c)
			}
		}
		ev.Msg("reference fallbacks")
	}

	cohort := &Cohort{
		RunID:     runID,
		Config:    cfg,
		Generated: today.UTC(),
		Records:   records,
		Fallbacks: fallbacks,
		Summary:   Summarize(records),
		Duration:  time.Since(start),
	}

	s.mu.Lock()
	s.cohort = cohort
	s.mu.Unlock()

	log.Info().
		Dur("duration", cohort.Duration).
		Int("t1", cohort.Summary.ByType[patient.DiabetesT1]).
		Int("t2", cohort.Summary.ByType[patient.DiabetesT2]).
		Int("none", cohort.Summary.ByType[patient.DiabetesNone]).
		Msg("cohort generated")

	return cohort, nil
}

// Cohort returns the last generated cohort, or nil.
func (s *Seeder) Cohort() *Cohort {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cohort
}

// Records returns the records of the last generated cohort.
func (s *Seeder) Records() []patient.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cohort == nil {
		return nil
	}
	return s.cohort.Records
}

// Reset drops the current cohort.
func (s *Seeder) Reset() {
	s.mu.Lock()
	s.cohort = nil
	s.mu.Unlock()
}

// ReferenceRows is the number of rows in the loaded reference table.
func (s *Seeder) ReferenceRows() int {
	return s.reference.Len()
}

// MaxSize returns the configured size cap.
func (s *Seeder) MaxSize() int {
	return s.maxSize
}

// ReferenceSource names the loaded reference table, or "none".
func (s *Seeder) ReferenceSource() string {
	if s.reference.Len() == 0 {
		return "none"
	}
	return s.reference.Source
}
