package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Port     string `mapstructure:"PORT"`

	CohortSize     int     `mapstructure:"COHORT_SIZE"`
	CohortSeed     int64   `mapstructure:"COHORT_SEED"`
	CohortMixT1    float64 `mapstructure:"COHORT_MIX_T1"`
	CohortMixT2    float64 `mapstructure:"COHORT_MIX_T2"`
	CohortIDOffset int     `mapstructure:"COHORT_ID_OFFSET"`
	CohortWorkers  int     `mapstructure:"COHORT_WORKERS"`
	CohortMaxSize  int     `mapstructure:"COHORT_MAX_SIZE"`

	ReferenceCSV         string `mapstructure:"REFERENCE_CSV"`
	ReferenceDatabaseURL string `mapstructure:"REFERENCE_DATABASE_URL"`
	ReferenceTable       string `mapstructure:"REFERENCE_TABLE"`
	DistributionFile     string `mapstructure:"DISTRIBUTION_FILE"`

	OutputDir     string   `mapstructure:"OUTPUT_DIR"`
	OutputFormats []string `mapstructure:"OUTPUT_FORMATS"`

	DBMaxConns int32 `mapstructure:"DB_MAX_CONNS"`
	DBMinConns int32 `mapstructure:"DB_MIN_CONNS"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
}

var keys = []string{
	"ENV", "LOG_LEVEL", "PORT",
	"COHORT_SIZE", "COHORT_SEED", "COHORT_MIX_T1", "COHORT_MIX_T2",
	"COHORT_ID_OFFSET", "COHORT_WORKERS", "COHORT_MAX_SIZE",
	"REFERENCE_CSV", "REFERENCE_DATABASE_URL", "REFERENCE_TABLE", "DISTRIBUTION_FILE",
	"OUTPUT_DIR", "OUTPUT_FORMATS",
	"DB_MAX_CONNS", "DB_MIN_CONNS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
}

// Load reads configuration from the environment and an optional .env file
// in the working directory.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8000")
	v.SetDefault("COHORT_SIZE", 20)
	v.SetDefault("COHORT_SEED", 7)
	v.SetDefault("COHORT_MIX_T1", 0.10)
	v.SetDefault("COHORT_MIX_T2", 0.75)
	v.SetDefault("COHORT_ID_OFFSET", 2000)
	v.SetDefault("COHORT_WORKERS", 1)
	v.SetDefault("COHORT_MAX_SIZE", 10000)
	v.SetDefault("REFERENCE_TABLE", "diabetes_health_indicators")
	v.SetDefault("OUTPUT_DIR", "./data")
	v.SetDefault("OUTPUT_FORMATS", "json,csv")
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("DB_MIN_CONNS", 0)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "64K")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.OutputFormats = splitList(strings.Join(cfg.OutputFormats, ","))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level returns the parsed LOG_LEVEL, defaulting to info when unset.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// Validate checks the values generation depends on. The reference source is
// not checked here: a missing or unreadable reference only disables
// anchoring.
func (c *Config) Validate() error {
	if c.CohortMaxSize <= 0 {
		return fmt.Errorf("COHORT_MAX_SIZE must be positive, got %d", c.CohortMaxSize)
	}
	if c.CohortSize <= 0 || c.CohortSize > c.CohortMaxSize {
		return fmt.Errorf("COHORT_SIZE must be in [1, %d], got %d", c.CohortMaxSize, c.CohortSize)
	}
	if c.CohortMixT1 < 0 || c.CohortMixT1 > 1 {
		return fmt.Errorf("COHORT_MIX_T1 must be in [0, 1], got %v", c.CohortMixT1)
	}
	if c.CohortMixT2 < 0 || c.CohortMixT2 > 1 {
		return fmt.Errorf("COHORT_MIX_T2 must be in [0, 1], got %v", c.CohortMixT2)
	}
	if c.CohortMixT1+c.CohortMixT2 > 1+1e-9 {
		return fmt.Errorf("COHORT_MIX_T1 + COHORT_MIX_T2 must not exceed 1, got %v", c.CohortMixT1+c.CohortMixT2)
	}
	if c.CohortIDOffset < 0 {
		return fmt.Errorf("COHORT_ID_OFFSET must not be negative, got %d", c.CohortIDOffset)
	}
	if c.CohortWorkers < 1 {
		return fmt.Errorf("COHORT_WORKERS must be at least 1, got %d", c.CohortWorkers)
	}
	if c.DBMaxConns < 1 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS out of range: %d/%d", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS/RATE_LIMIT_BURST must not be negative: %v/%d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}
