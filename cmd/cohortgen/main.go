package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/cohortgen/internal/config"
	"github.com/ehr/cohortgen/internal/domain/dist"
	"github.com/ehr/cohortgen/internal/domain/generator"
	"github.com/ehr/cohortgen/internal/domain/reference"
	"github.com/ehr/cohortgen/internal/platform/db"
	"github.com/ehr/cohortgen/internal/platform/middleware"
	"github.com/ehr/cohortgen/internal/platform/sandbox"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "cohortgen",
		Short:        "Synthetic diabetes cohort generator",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tablesCmd())
	rootCmd.AddCommand(referenceCmd())
	rootCmd.AddCommand(migrateCmd())

	return rootCmd
}

// ---------------------------------------------------------------------------
// Shared setup
// ---------------------------------------------------------------------------

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, _ := cfg.Level()
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func seedConfig(cfg *config.Config) sandbox.SeedConfig {
	return sandbox.SeedConfig{
		Size:     cfg.CohortSize,
		Seed:     cfg.CohortSeed,
		Mix:      generator.CohortMix{T1: cfg.CohortMixT1, T2: cfg.CohortMixT2},
		IDOffset: cfg.CohortIDOffset,
		Workers:  cfg.CohortWorkers,
	}
}

// loadTables returns the default distribution tables, overlaid with
// DISTRIBUTION_FILE when one is set.
func loadTables(path string) (dist.Tables, error) {
	if path == "" {
		return dist.DefaultTables(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return dist.Tables{}, fmt.Errorf("open distribution file: %w", err)
	}
	defer f.Close()

	tables, err := dist.LoadTables(f)
	if err != nil {
		return dist.Tables{}, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

// openReference loads the reference table named by cfg. A CSV file takes
// precedence over Postgres. Any failure is logged and generation continues
// without a reference. The returned pool, when non-nil, belongs to the
// caller.
func openReference(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*reference.Table, *pgxpool.Pool) {
	switch {
	case cfg.ReferenceCSV != "":
		tbl, err := reference.LoadCSV(cfg.ReferenceCSV)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.ReferenceCSV).Msg("reference unavailable, using population defaults")
			return nil, nil
		}
		logger.Info().Str("source", tbl.Source).Int("rows", tbl.Len()).Msg("reference loaded")
		return tbl, nil

	case cfg.ReferenceDatabaseURL != "":
		pool, err := db.NewPool(ctx, poolConfig(cfg))
		if err != nil {
			logger.Warn().Err(err).Msg("reference database unavailable, using population defaults")
			return nil, nil
		}
		tbl, err := reference.LoadPostgres(ctx, pool, cfg.ReferenceTable)
		if err != nil {
			logger.Warn().Err(err).Str("table", cfg.ReferenceTable).Msg("reference unavailable, using population defaults")
			return nil, pool
		}
		logger.Info().Str("source", tbl.Source).Int("rows", tbl.Len()).Msg("reference loaded")
		return tbl, pool
	}

	logger.Info().Msg("no reference configured, using population defaults")
	return nil, nil
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:      cfg.ReferenceDatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ---------------------------------------------------------------------------
// generate
// ---------------------------------------------------------------------------

type generateFlags struct {
	size, idOffset, workers int
	seed                    int64
	t1, t2                  float64
	out, formats            string
	referenceCSV, distFile  string
	quiet                   bool
}

// apply copies every flag the user set over the loaded configuration.
func (f *generateFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("size") {
		cfg.CohortSize = f.size
	}
	if changed("seed") {
		cfg.CohortSeed = f.seed
	}
	if changed("t1") {
		cfg.CohortMixT1 = f.t1
	}
	if changed("t2") {
		cfg.CohortMixT2 = f.t2
	}
	if changed("id-offset") {
		cfg.CohortIDOffset = f.idOffset
	}
	if changed("workers") {
		cfg.CohortWorkers = f.workers
	}
	if changed("out") {
		cfg.OutputDir = f.out
	}
	if changed("formats") {
		formats, err := sandbox.ParseFormats(f.formats)
		if err != nil {
			return err
		}
		cfg.OutputFormats = formats
	}
	if changed("reference-csv") {
		cfg.ReferenceCSV = f.referenceCSV
	}
	if changed("distribution-file") {
		cfg.DistributionFile = f.distFile
	}
	return cfg.Validate()
}

func generateCmd() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a cohort and write it to the output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			formats, err := sandbox.ParseFormats(strings.Join(cfg.OutputFormats, ","))
			if err != nil {
				return err
			}

			logger := newLogger(cfg, cmd.ErrOrStderr())

			tables, err := loadTables(cfg.DistributionFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ref, pool := openReference(ctx, cfg, logger)
			if pool != nil {
				pool.Close()
			}

			seeder := sandbox.NewSeeder(tables,
				sandbox.WithReference(ref),
				sandbox.WithMaxSize(cfg.CohortMaxSize),
				sandbox.WithLogger(logger),
			)
			cohort, err := seeder.Generate(ctx, seedConfig(cfg))
			if err != nil {
				return err
			}

			paths, err := sandbox.WriteFiles(cfg.OutputDir, formats, cohort.Records)
			if err != nil {
				return err
			}
			for _, p := range paths {
				logger.Info().Str("path", p).Msg("wrote cohort file")
			}

			if f.quiet {
				return nil
			}
			return cohort.Summary.WriteText(cmd.OutOrStdout())
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.size, "size", 20, "Number of patients")
	fl.Int64Var(&f.seed, "seed", 7, "Master random seed")
	fl.Float64Var(&f.t1, "t1", 0.10, "Share of type 1 patients")
	fl.Float64Var(&f.t2, "t2", 0.75, "Share of type 2 patients")
	fl.IntVar(&f.idOffset, "id-offset", 2000, "First patient id number")
	fl.IntVar(&f.workers, "workers", 1, "Concurrent generation workers")
	fl.StringVar(&f.out, "out", "./data", "Output directory")
	fl.StringVar(&f.formats, "formats", "json,csv", "Comma-separated output formats (json, csv, ndjson, bundle)")
	fl.StringVar(&f.referenceCSV, "reference-csv", "", "Reference CSV file")
	fl.StringVar(&f.distFile, "distribution-file", "", "YAML distribution table overlay")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "Do not print the cohort summary")

	return cmd
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sandbox HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// newServer wires the middleware chain, the sandbox routes and /health.
// pinger may be nil when no reference database is configured.
func newServer(cfg *config.Config, seeder *sandbox.Seeder, pinger db.Pinger, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	if cfg.RateLimitRPS > 0 {
		e.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}))
	}
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", db.HealthHandler(pinger, func() map[string]interface{} {
		return map[string]interface{}{
			"reference":      seeder.ReferenceSource(),
			"reference_rows": seeder.ReferenceRows(),
		}
	}))

	handler := sandbox.NewSeedHandler(seeder, seedConfig(cfg), logger)
	handler.RegisterRoutes(e.Group("/api/v1/sandbox"))

	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	tables, err := loadTables(cfg.DistributionFile)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load distribution tables")
		return err
	}

	ref, pool := openReference(context.Background(), cfg, logger)
	var pinger db.Pinger
	if pool != nil {
		defer pool.Close()
		pinger = pool
	}

	seeder := sandbox.NewSeeder(tables,
		sandbox.WithReference(ref),
		sandbox.WithMaxSize(cfg.CohortMaxSize),
		sandbox.WithLogger(logger),
	)
	e := newServer(cfg, seeder, pinger, logger)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// ---------------------------------------------------------------------------
// tables
// ---------------------------------------------------------------------------

func tablesCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Print the effective distribution tables as YAML",
		Long: "Print the distribution tables generation would use, after applying the\n" +
			"overlay file if one is given. The output is itself a valid overlay file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("distribution-file") {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				file = cfg.DistributionFile
			}
			tables, err := loadTables(file)
			if err != nil {
				return err
			}
			return tables.WriteYAML(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&file, "distribution-file", "", "YAML distribution table overlay")
	return cmd
}

// ---------------------------------------------------------------------------
// reference
// ---------------------------------------------------------------------------

func referenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Inspect or import the reference table",
	}
	cmd.AddCommand(referenceInspectCmd())
	cmd.AddCommand(referenceImportCmd())
	return cmd
}

func referenceInspectCmd() *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show which reference fields are available to the generators",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("csv") {
				cfg.ReferenceCSV = csvPath
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			ref, pool := openReference(cmd.Context(), cfg, logger)
			if pool != nil {
				pool.Close()
			}
			if ref == nil {
				return fmt.Errorf("no reference table loaded: %w", reference.ErrNoReference)
			}
			return writeCoverage(cmd.OutOrStdout(), ref)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Reference CSV file")
	return cmd
}

func writeCoverage(w io.Writer, ref *reference.Table) error {
	fmt.Fprintf(w, "source: %s\nrows:   %d\n\n", ref.Source, ref.Len())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tPRESENT\tCOVERAGE")
	cov := ref.Coverage()
	for _, f := range reference.Fields {
		n := cov[f]
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", f, n, 100*float64(n)/float64(ref.Len()))
	}
	return tw.Flush()
}

func referenceImportCmd() *cobra.Command {
	var csvPath, table string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy a reference CSV into the Postgres reference table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" {
				return fmt.Errorf("--csv is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.ReferenceDatabaseURL == "" {
				return fmt.Errorf("REFERENCE_DATABASE_URL is not set")
			}
			if table == "" {
				table = cfg.ReferenceTable
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			ref, err := reference.LoadCSV(csvPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := reference.ImportPostgres(ctx, pool, table, ref)
			if err != nil {
				return err
			}
			if err := db.RecordImport(ctx, pool, ref.Source, table, n); err != nil {
				logger.Warn().Err(err).Msg("import not recorded; run migrate up")
			}
			logger.Info().Str("source", ref.Source).Str("table", table).Int64("rows", n).Msg("reference imported")
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Reference CSV file")
	cmd.Flags().StringVar(&table, "table", "", "Target table (defaults to REFERENCE_TABLE)")
	return cmd
}

// ---------------------------------------------------------------------------
// migrate
// ---------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the reference database schema",
	}

	withMigrator := func(cmd *cobra.Command, fn func(ctx context.Context, m *db.Migrator) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.ReferenceDatabaseURL == "" {
			return fmt.Errorf("REFERENCE_DATABASE_URL is not set")
		}
		ctx := cmd.Context()
		pool, err := db.NewPool(ctx, poolConfig(cfg))
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, db.NewMigrator(pool, db.Migrations, "migrations"))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				return writeMigrationStatus(cmd.OutOrStdout(), statuses)
			})
		},
	})

	return cmd
}

func writeMigrationStatus(w io.Writer, statuses []db.MigrationStatus) error {
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Version < statuses[j].Version })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	return tw.Flush()
}
