package sandbox

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/cohortgen/internal/domain/generator"
	"github.com/ehr/cohortgen/internal/domain/patient"
	"github.com/ehr/cohortgen/pkg/pagination"
)

// ---------------------------------------------------------------------------
// SeedHandler: Echo HTTP handlers
// ---------------------------------------------------------------------------

// SeedHandler exposes cohort generation and export over HTTP.
type SeedHandler struct {
	seeder   *Seeder
	defaults SeedConfig
	logger   zerolog.Logger
}

// NewSeedHandler creates a handler over seeder. Fields missing from a
// generation request take their value from defaults.
func NewSeedHandler(seeder *Seeder, defaults SeedConfig, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{seeder: seeder, defaults: defaults, logger: logger}
}

// RegisterRoutes registers sandbox routes on the given Echo group.
func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/cohorts", h.handleGenerate)
	g.GET("/cohorts", h.handleGet)
	g.GET("/cohorts/records", h.handleRecords)
	g.GET("/cohorts/summary", h.handleSummary)
	g.GET("/cohorts/export/csv", h.handleExport(FormatCSV, "text/csv; charset=utf-8"))
	g.GET("/cohorts/export/ndjson", h.handleExport(FormatNDJSON, "application/x-ndjson"))
	g.GET("/cohorts/export/bundle", h.handleExport(FormatBundle, "application/fhir+json"))
	g.POST("/reset", h.handleReset)
}

// generateRequest mirrors SeedConfig with optional fields.
type generateRequest struct {
	Size     *int                 `json:"size"`
	Seed     *int64               `json:"seed"`
	Mix      *generator.CohortMix `json:"mix"`
	IDOffset *int                 `json:"idOffset"`
	Workers  *int                 `json:"workers"`
}

func (r generateRequest) apply(cfg SeedConfig) SeedConfig {
	if r.Size != nil {
		cfg.Size = *r.Size
	}
	if r.Seed != nil {
		cfg.Seed = *r.Seed
	}
	if r.Mix != nil {
		cfg.Mix = *r.Mix
	}
	if r.IDOffset != nil {
		cfg.IDOffset = *r.IDOffset
	}
	if r.Workers != nil {
		cfg.Workers = *r.Workers
	}
	return cfg
}

func (h *SeedHandler) handleGenerate(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	cohort, err := h.seeder.Generate(c.Request().Context(), req.apply(h.defaults))
	if err != nil {
		if errors.Is(err, ErrInvalidCohortSize) || errors.Is(err, generator.ErrInvalidMix) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// The timeout middleware answers these.
			return err
		}
		h.logger.Error().Err(err).Msg("cohort generation failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, cohort)
}

func (h *SeedHandler) handleGet(c echo.Context) error {
	cohort := h.seeder.Cohort()
	if cohort == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no cohort generated"})
	}
	return c.JSON(http.StatusOK, cohort)
}

// handleRecords pages through the records of the last cohort.
func (h *SeedHandler) handleRecords(c echo.Context) error {
	cohort := h.seeder.Cohort()
	if cohort == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no cohort generated"})
	}

	p := pagination.FromContext(c)
	lo, hi := p.Bounds(len(cohort.Records))
	resp := pagination.NewResponse(cohort.Records[lo:hi], len(cohort.Records), p)
	resp.Links = p.Links(c.Request().URL.Path, len(cohort.Records))
	return c.JSON(http.StatusOK, resp)
}

func (h *SeedHandler) handleSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, Summarize(h.seeder.Records()))
}

func (h *SeedHandler) handleReset(c echo.Context) error {
	h.seeder.Reset()
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

func (h *SeedHandler) handleExport(format, contentType string) echo.HandlerFunc {
	return func(c echo.Context) error {
		records := h.seeder.Records()
		if records == nil {
			records = []patient.Record{}
		}
		c.Response().Header().Set(echo.HeaderContentType, contentType)
		c.Response().WriteHeader(http.StatusOK)
		return Export(c.Response().Writer, format, records)
	}
}
