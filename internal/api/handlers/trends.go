package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"parkwatch/internal/core"
	"parkwatch/internal/types"
)

const defaultTrendDays = 7

// TrendAnalyzer computes the trend summary of one garage.
type TrendAnalyzer interface {
	GetTrendAnalysis(ctx context.Context, garageID string, days int) (types.TrendAnalysis, error)
}

// AggregateReader returns bucketed history for the trend chart.
type AggregateReader interface {
	GetAggregatedData(ctx context.Context, garageID string, size types.BucketSize, lookbackHours int) ([]types.AggregatedBucket, error)
}

type TrendHandler struct {
	analyzer   TrendAnalyzer
	aggregates AggregateReader
	validator  *core.Validator
	logger     *slog.Logger
}

func NewTrendHandler(a TrendAnalyzer, agg AggregateReader, val *core.Validator, logger *slog.Logger) *TrendHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrendHandler{analyzer: a, aggregates: agg, validator: val, logger: logger}
}

func (h *TrendHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGetTrends)
}

type trendQuery struct {
	GarageID string `query:"garage_id" validate:"required"`
	Days     int    `query:"days" validate:"min=1,max=30"`
}

// TrendResponse is the body of GET /v1/trends.
type TrendResponse struct {
	GarageID   string                   `json:"garage_id"`
	Days       int                      `json:"days"`
	Analysis   types.TrendAnalysis      `json:"analysis"`
	HourlyData []types.AggregatedBucket `json:"hourly_data"`
}

// HandleGetTrends handles GET /v1/trends?garage_id=&days=.
func (h *TrendHandler) HandleGetTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := core.QueryInt(q, "days", defaultTrendDays)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	params := trendQuery{GarageID: q.Get("garage_id"), Days: days}
	if err := h.validator.ValidateStruct(params); err != nil {
		core.Error(w, r, err)
		return
	}

	analysis, err := h.analyzer.GetTrendAnalysis(r.Context(), params.GarageID, params.Days)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	hourly, err := h.aggregates.GetAggregatedData(r.Context(), params.GarageID, types.BucketHourly, params.Days*24)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusOK, TrendResponse{
		GarageID:   params.GarageID,
		Days:       params.Days,
		Analysis:   analysis,
		HourlyData: hourly,
	})
}
