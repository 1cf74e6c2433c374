// Package handlers contains the HTTP handlers mounted under /v1. Each handler
// declares the narrow interface it needs and is wired to concrete stores in
// cmd/api.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"parkwatch/internal/core"
	"parkwatch/internal/types"
)

// GarageStore is the read side of the reading store used by the garage
// endpoints.
type GarageStore interface {
	GetLatestReadings(ctx context.Context) ([]types.LatestReading, error)
	GetAggregatedData(ctx context.Context, garageID string, size types.BucketSize, lookbackHours int) ([]types.AggregatedBucket, error)
}

type GarageHandler struct {
	store     GarageStore
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

func NewGarageHandler(store GarageStore, val *core.Validator, clock types.Clock, logger *slog.Logger) *GarageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &GarageHandler{store: store, validator: val, clock: clock, logger: logger}
}

// RegisterRoutes mounts the garage endpoints, expected under /v1/garages.
func (h *GarageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Get("/{garageID}/history", h.HandleHistory)
}

// GarageListResponse is the body of GET /v1/garages.
type GarageListResponse struct {
	Garages   []types.LatestReading `json:"garages"`
	Count     int                   `json:"count"`
	Timestamp string                `json:"timestamp"`
}

// HandleList handles GET /v1/garages: the newest reading of every garage.
func (h *GarageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	latest, err := h.store.GetLatestReadings(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, GarageListResponse{
		Garages:   latest,
		Count:     len(latest),
		Timestamp: h.clock.Now().UTC().Format(timeLayout),
	})
}

type historyQuery struct {
	GarageID string           `query:"garage_id" validate:"required"`
	Interval types.BucketSize `query:"interval"`
	Hours    int              `query:"hours" validate:"min=1,max=720"`
}

// HistoryResponse is the body of GET /v1/garages/{garageID}/history.
type HistoryResponse struct {
	GarageID string                   `json:"garage_id"`
	Interval types.BucketSize         `json:"interval"`
	Hours    int                      `json:"hours"`
	Buckets  []types.AggregatedBucket `json:"buckets"`
}

// HandleHistory handles GET /v1/garages/{garageID}/history.
// Query params: interval (5min|hourly, default hourly), hours (1-720,
// default 24). Only buckets holding readings are returned.
func (h *GarageHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hours, err := core.QueryInt(q, "hours", 24)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	interval, err := types.ParseBucketSize(q.Get("interval"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	params := historyQuery{
		GarageID: chi.URLParam(r, "garageID"),
		Interval: interval,
		Hours:    hours,
	}
	if err := h.validator.ValidateStruct(params); err != nil {
		core.Error(w, r, err)
		return
	}

	buckets, err := h.store.GetAggregatedData(r.Context(), params.GarageID, params.Interval, params.Hours)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, HistoryResponse{
		GarageID: params.GarageID,
		Interval: params.Interval,
		Hours:    params.Hours,
		Buckets:  buckets,
	})
}
