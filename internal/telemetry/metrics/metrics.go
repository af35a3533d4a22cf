// Package metrics exposes the run's counters through a Prometheus registry,
// following the reference project's PrometheusProvider shape (one registry
// per recorder, with every metric registered up front in New).
package metrics

import (
	"net/http"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the capability components record counts through.
type Recorder interface {
	IncMatches(status, classification string)
	IncQueue(success bool)
	ObserveRunDuration(seconds float64)
	Handler() http.Handler
}

// PrometheusRecorder implements Recorder backed by a dedicated registry so
// repeated construction in tests never collides with the default registry.
type PrometheusRecorder struct {
	mu sync.Mutex

	registry      *prom.Registry
	matchesTotal  *prom.CounterVec
	queueTotal    *prom.CounterVec
	runDurationS  prom.Histogram
	handler       http.Handler
}

// New constructs a PrometheusRecorder with its own registry.
func New() *PrometheusRecorder {
	reg := prom.NewRegistry()

	matches := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "match_scraper",
		Name:      "matches_total",
		Help:      "Matches observed during a scrape run, by status and classification.",
	}, []string{"status", "classification"})

	queue := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "match_scraper",
		Name:      "queue_publish_total",
		Help:      "Broker publish attempts, by outcome.",
	}, []string{"result"})

	duration := prom.NewHistogram(prom.HistogramOpts{
		Namespace: "match_scraper",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of a full scrape run.",
		Buckets:   prom.ExponentialBuckets(1, 2, 10),
	})

	reg.MustRegister(matches, queue, duration)

	return &PrometheusRecorder{
		registry:     reg,
		matchesTotal: matches,
		queueTotal:   queue,
		runDurationS: duration,
		handler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
}

// IncMatches increments the matches_total counter for a status/classification pair.
func (p *PrometheusRecorder) IncMatches(status, classification string) {
	p.matchesTotal.WithLabelValues(status, classification).Inc()
}

// IncQueue increments the queue_publish_total counter for success or failure.
func (p *PrometheusRecorder) IncQueue(success bool) {
	result := "failed"
	if success {
		result = "success"
	}
	p.queueTotal.WithLabelValues(result).Inc()
}

// ObserveRunDuration records the run's wall-clock duration in seconds.
func (p *PrometheusRecorder) ObserveRunDuration(seconds float64) {
	p.runDurationS.Observe(seconds)
}

// Handler returns the /metrics HTTP handler.
func (p *PrometheusRecorder) Handler() http.Handler { return p.handler }

// Noop is a Recorder that discards everything; used when --metrics-addr is
// unset and metrics collection would otherwise be pure overhead.
type Noop struct{}

func (Noop) IncMatches(string, string)         {}
func (Noop) IncQueue(bool)                     {}
func (Noop) ObserveRunDuration(float64)         {}
func (Noop) Handler() http.Handler              { return http.NotFoundHandler() }
