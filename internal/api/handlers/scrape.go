package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"parkwatch/internal/core"
	"parkwatch/internal/scheduler"
	"parkwatch/internal/scraper"
	"parkwatch/internal/types"
)

// ScrapeRunner runs one scrape job.
type ScrapeRunner interface {
	Run(ctx context.Context, in scheduler.ScrapeInput) (*scheduler.ScrapeResult, error)
}

// ScrapeHealthChecker probes the status page without writing anything.
type ScrapeHealthChecker interface {
	HealthCheck(ctx context.Context) scraper.HealthReport
}

type ScrapeHandler struct {
	job     ScrapeRunner
	checker ScrapeHealthChecker
	guard   func(http.Handler) http.Handler
	logger  *slog.Logger
}

// NewScrapeHandler builds the handler. guard wraps the trigger route (the
// bearer secret check); nil leaves it open.
func NewScrapeHandler(job ScrapeRunner, checker ScrapeHealthChecker, guard func(http.Handler) http.Handler, logger *slog.Logger) *ScrapeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScrapeHandler{job: job, checker: checker, guard: guard, logger: logger}
}

func (h *ScrapeHandler) RegisterRoutes(r chi.Router) {
	trigger := http.Handler(http.HandlerFunc(h.HandleTrigger))
	if h.guard != nil {
		trigger = h.guard(trigger)
	}
	r.Method(http.MethodPost, "/", trigger)
	r.Get("/", h.HandleHealth)
}

// HandleTrigger handles POST /v1/scrape: runs the scrape job inline.
func (h *ScrapeHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	res, err := h.job.Run(r.Context(), scheduler.ScrapeInput{Source: "api"})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "triggered scrape failed", "error", err)
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, res)
}

// HandleHealth handles GET /v1/scrape. A failing scrape is reported as 502
// with the report in the error details.
func (h *ScrapeHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	report := h.checker.HealthCheck(r.Context())
	if !report.Success {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable, report.Message, nil,
			map[string]any{"garage_count": report.GarageCount}))
		return
	}
	core.Data(w, r, http.StatusOK, report)
}
