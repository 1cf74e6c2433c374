package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"parkwatch/internal/core"
	"parkwatch/internal/forecasts"
	"parkwatch/internal/types"
)

const (
	defaultForecastMinutes = 60
	timeLayout             = time.RFC3339
)

// Forecaster is the forecasting core as seen by the HTTP layer.
type Forecaster interface {
	SeasonalNaiveForecast(ctx context.Context, garageID string, horizonMinutes int) ([]types.ForecastPrediction, error)
	BatchForecast(ctx context.Context, horizonMinutes int) ([]types.ForecastPrediction, error)
}

// SnapshotReader serves forecasts precomputed by the forecast worker.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, garageID string) (*types.ForecastSnapshot, error)
}

type ForecastHandler struct {
	forecaster Forecaster
	snapshots  SnapshotReader
	validator  *core.Validator
	clock      types.Clock
	logger     *slog.Logger
}

// NewForecastHandler builds the handler. snapshots may be nil when no cache
// is configured; /cached then reports the dependency as unavailable.
func NewForecastHandler(f Forecaster, snapshots SnapshotReader, val *core.Validator, clock types.Clock, logger *slog.Logger) *ForecastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &ForecastHandler{
		forecaster: f,
		snapshots:  snapshots,
		validator:  val,
		clock:      clock,
		logger:     logger,
	}
}

// RegisterRoutes mounts the forecast endpoints, expected under /v1/forecast.
func (h *ForecastHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGetForecast)
	r.Post("/", h.HandleBatchForecast)
	r.Get("/cached", h.HandleGetCached)
}

type forecastQuery struct {
	GarageID string `query:"garage_id" validate:"required"`
	Minutes  int    `query:"minutes" validate:"min=1,max=1440"`
}

// ForecastResponse is the body of GET /v1/forecast.
type ForecastResponse struct {
	GarageID        string                     `json:"garage_id"`
	ForecastMinutes int                        `json:"forecast_minutes"`
	Predictions     []types.ForecastPrediction `json:"predictions"`
	GeneratedAt     string                     `json:"generated_at"`
}

// HandleGetForecast handles GET /v1/forecast?garage_id=&minutes=.
func (h *ForecastHandler) HandleGetForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minutes, err := core.QueryInt(q, "minutes", defaultForecastMinutes)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	params := forecastQuery{GarageID: q.Get("garage_id"), Minutes: minutes}
	if err := h.validator.ValidateStruct(params); err != nil {
		core.Error(w, r, err)
		return
	}

	preds, err := h.forecaster.SeasonalNaiveForecast(r.Context(), params.GarageID, params.Minutes)
	if err != nil {
		if !types.IsCode(err, types.ErrCodeNotFoundHistoricalData) {
			h.logger.ErrorContext(r.Context(), "forecast failed", "garage_id", params.GarageID, "error", err)
		}
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusOK, ForecastResponse{
		GarageID:        params.GarageID,
		ForecastMinutes: params.Minutes,
		Predictions:     preds,
		GeneratedAt:     h.clock.Now().UTC().Format(timeLayout),
	})
}

// BatchForecastRequest is the body of POST /v1/forecast. Minutes defaults
// to 60 when omitted.
type BatchForecastRequest struct {
	Minutes *int `json:"minutes"`
}

type batchParams struct {
	Minutes int `json:"minutes" validate:"min=1,max=1440"`
}

// BatchForecastResponse is the body of POST /v1/forecast.
type BatchForecastResponse struct {
	ForecastMinutes     int                                   `json:"forecast_minutes"`
	TotalPredictions    int                                   `json:"total_predictions"`
	Garages             int                                   `json:"garages"`
	PredictionsByGarage map[string][]types.ForecastPrediction `json:"predictions_by_garage"`
	GeneratedAt         string                                `json:"generated_at"`
}

// HandleBatchForecast handles POST /v1/forecast: every garage, grouped.
// An empty body is accepted and uses the default horizon.
func (h *ForecastHandler) HandleBatchForecast(w http.ResponseWriter, r *http.Request) {
	params := batchParams{Minutes: defaultForecastMinutes}
	if r.ContentLength != 0 {
		var req BatchForecastRequest
		if err := core.DecodeJSON(w, r, &req); err != nil && !emptyBody(err) {
			core.Error(w, r, err)
			return
		}
		if req.Minutes != nil {
			params.Minutes = *req.Minutes
		}
	}
	if err := h.validator.ValidateStruct(params); err != nil {
		core.Error(w, r, err)
		return
	}

	preds, err := h.forecaster.BatchForecast(r.Context(), params.Minutes)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "batch forecast failed", "error", err)
		core.Error(w, r, err)
		return
	}
	grouped := forecasts.GroupByGarage(preds)

	core.Data(w, r, http.StatusOK, BatchForecastResponse{
		ForecastMinutes:     params.Minutes,
		TotalPredictions:    len(preds),
		Garages:             len(grouped),
		PredictionsByGarage: grouped,
		GeneratedAt:         h.clock.Now().UTC().Format(timeLayout),
	})
}

type cachedQuery struct {
	GarageID string `query:"garage_id" validate:"required"`
}

// HandleGetCached handles GET /v1/forecast/cached?garage_id=: the latest
// snapshot written by the forecast worker.
func (h *ForecastHandler) HandleGetCached(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeUnavailableDependency, "forecast cache is not configured", nil))
		return
	}
	params := cachedQuery{GarageID: r.URL.Query().Get("garage_id")}
	if err := h.validator.ValidateStruct(params); err != nil {
		core.Error(w, r, err)
		return
	}

	snap, err := h.snapshots.GetSnapshot(r.Context(), params.GarageID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	w.Header().Set("Last-Modified", snap.GeneratedAt.UTC().Format(http.TimeFormat))
	core.Data(w, r, http.StatusOK, snap)
}
