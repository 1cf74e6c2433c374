// Package metrics holds the two telemetry sinks: Prometheus for the
// long-running API process and CloudWatch for the scheduled Lambdas.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records API and forecasting metrics on its own registry so tests
// and multiple servers never collide on the global one.
type Prometheus struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	batchRuns     prometheus.Counter
	batchGarages  prometheus.Gauge
	batchFailures prometheus.Counter
	batchDuration prometheus.Histogram
}

func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parkwatch_http_requests_total",
			Help: "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parkwatch_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		batchRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "parkwatch_batch_forecast_runs_total",
			Help: "Batch forecast runs.",
		}),
		batchGarages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parkwatch_batch_forecast_garages",
			Help: "Garages enumerated by the last batch forecast.",
		}),
		batchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "parkwatch_batch_forecast_garage_failures_total",
			Help: "Per-garage forecast failures skipped inside batch runs.",
		}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parkwatch_batch_forecast_duration_seconds",
			Help:    "Duration of a batch forecast run.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// RecordRequest satisfies core.MetricsCollector. route should be the chi
// route pattern, not the raw path, to keep label cardinality bounded.
func (p *Prometheus) RecordRequest(method, route, status string, duration time.Duration) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveBatch satisfies forecasts.Observer.
func (p *Prometheus) ObserveBatch(garages, failures int, elapsed time.Duration) {
	p.batchRuns.Inc()
	p.batchGarages.Set(float64(garages))
	p.batchFailures.Add(float64(failures))
	p.batchDuration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
