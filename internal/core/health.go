package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"parkwatch/internal/types"
)

// healthCheckTimeout bounds all probes together.
const healthCheckTimeout = 2 * time.Second

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every probe concurrently under a 2 second deadline.
//
//   - all probes pass: 200 "healthy"
//   - some probes return types.ErrDegraded, none fail: 200 "degraded"
//   - any probe fails or times out: 503 "unhealthy"
//
// The response is never cached.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	resp := healthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC(),
	}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
	}

	probes := s.HealthProbes
	if len(probes) == 0 {
		writeEnvelope(w, http.StatusOK, resp)
		return
	}

	var (
		mu      sync.Mutex
		results = make(map[string]error, len(probes))
		wg      sync.WaitGroup
	)
	for _, probe := range probes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if rvr := recover(); rvr != nil {
						err = fmt.Errorf("probe panicked: %v", rvr)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			results[p.Name()] = err
			mu.Unlock()
		}(probe)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()

	resp.Components = make(map[string]componentStatus, len(probes))
	degraded, failed := false, false
	for _, probe := range probes {
		name := probe.Name()
		err, ok := results[name]
		switch {
		case !ok:
			failed = true
			resp.Components[name] = componentStatus{Status: statusUnhealthy, Message: "health check timed out"}
		case err == nil:
			resp.Components[name] = componentStatus{Status: statusHealthy}
		case errors.Is(err, types.ErrDegraded):
			degraded = true
			resp.Components[name] = componentStatus{Status: statusDegraded, Message: err.Error()}
		default:
			failed = true
			resp.Components[name] = componentStatus{Status: statusUnhealthy, Message: err.Error()}
		}
	}

	switch {
	case failed:
		resp.Status = statusUnhealthy
		writeEnvelope(w, http.StatusServiceUnavailable, resp)
	case degraded:
		resp.Status = statusDegraded
		writeEnvelope(w, http.StatusOK, resp)
	default:
		writeEnvelope(w, http.StatusOK, resp)
	}
}
