package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"parkwatch/internal/types"
)

func newMountedServer(t *testing.T) (*Server, *mockMetricsCollector) {
	t.Helper()
	srv := newTestServer(t)
	mc := &mockMetricsCollector{}
	srv.Metrics = mc
	srv.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Get("/garages/{garageID}/history", func(w http.ResponseWriter, r *http.Request) {
			Data(w, r, http.StatusOK, map[string]string{
				"garage_id":  chi.URLParam(r, "garageID"),
				"request_id": types.GetRequestID(r.Context()),
			})
		})
		r.Get("/deadline", func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); !ok {
				t.Error("expected request context deadline")
			}
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("handler bug")
		})
	})
	srv.MountRoutes()
	return srv, mc
}

func TestMountRoutes_MiddlewareCount(t *testing.T) {
	srv, _ := newMountedServer(t)
	if got := len(srv.Router().Middlewares()); got != 5 {
		t.Errorf("expected 5 global middleware, got %d", got)
	}
}

func TestMountRoutes_V1RegistrarAndRequestID(t *testing.T) {
	srv, mc := newMountedServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/garages/south-garage/history", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") != "req-123" {
		t.Errorf("request id not echoed: %q", rec.Header().Get("X-Request-Id"))
	}
	body := rec.Body.String()
	if want := `{"data":{"garage_id":"south-garage","request_id":"req-123"},"meta":{"request_id":"req-123"}}`; body != want {
		t.Errorf("body = %s, want %s", body, want)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	if len(mc.calls) != 1 {
		t.Fatalf("expected 1 metrics call, got %d", len(mc.calls))
	}
	if mc.calls[0].route != "/v1/garages/{garageID}/history" {
		t.Errorf("metrics should use the route pattern, got %q", mc.calls[0].route)
	}
	if mc.calls[0].status != "200" {
		t.Errorf("unexpected status label %q", mc.calls[0].status)
	}
}

func TestMountRoutes_GeneratesRequestID(t *testing.T) {
	srv, _ := newMountedServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if len(rec.Header().Get("X-Request-Id")) != 36 {
		t.Errorf("expected generated uuid request id, got %q", rec.Header().Get("X-Request-Id"))
	}
}

func TestMountRoutes_ContextDeadline(t *testing.T) {
	srv, _ := newMountedServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/deadline", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestMountRoutes_PanicRecovered(t *testing.T) {
	srv, mc := newMountedServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("unexpected code %q", resp.Error.Code)
	}
	if resp.Error.RequestID == "" {
		t.Error("expected request id in panic response")
	}
	if len(mc.calls) != 0 {
		t.Error("panicking request never reaches metrics recording")
	}
}

func TestMountRoutes_MetricsEndpoint(t *testing.T) {
	srv, _ := newMountedServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Body.String() != "# metrics" {
		t.Errorf("unexpected /metrics body %q", rec.Body.String())
	}
}

func TestMountRoutes_UnknownRoute(t *testing.T) {
	srv, mc := newMountedServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if len(mc.calls) != 1 || mc.calls[0].route != "unmatched" {
		t.Errorf("unexpected metrics calls %+v", mc.calls)
	}
}

func TestContextTimeoutMiddleware(t *testing.T) {
	var remaining time.Duration
	h := ContextTimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dl, _ := r.Context().Deadline()
		remaining = time.Until(dl)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	if remaining <= 0 || remaining > time.Second {
		t.Errorf("unexpected remaining deadline %v", remaining)
	}
}
