// Package metrics tracks run counters and optionally serves them for
// scraping during long runs. All record methods are nil-safe so callers
// can run without metrics wired.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles the harness counters.
type Set struct {
	registry *prometheus.Registry

	itemsProcessed *prometheus.CounterVec
	workerRestarts prometheus.Counter
	retries        prometheus.Counter
	fatalities     prometheus.Counter
	stepSeconds    prometheus.Histogram
}

// NewSet creates the counter set on a fresh registry.
func NewSet() *Set {
	reg := prometheus.NewRegistry()
	s := &Set{
		registry: reg,
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webshots",
			Name:      "items_processed_total",
			Help:      "Work items processed, by outcome kind.",
		}, []string{"kind"}),
		workerRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webshots",
			Name:      "worker_restarts_total",
			Help:      "Workers discarded and replaced after a crash.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webshots",
			Name:      "item_retries_total",
			Help:      "Additional attempts beyond the first per item.",
		}),
		fatalities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webshots",
			Name:      "fatalities_total",
			Help:      "Run-aborting conditions observed.",
		}),
		stepSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "webshots",
			Name:      "step_duration_seconds",
			Help:      "Wall time of successful page visits.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	reg.MustRegister(s.itemsProcessed, s.workerRestarts, s.retries, s.fatalities, s.stepSeconds)
	return s
}

// RecordItem counts one processed item by outcome kind.
func (s *Set) RecordItem(kind string, seconds float64, success bool) {
	if s == nil {
		return
	}
	s.itemsProcessed.WithLabelValues(kind).Inc()
	if success {
		s.stepSeconds.Observe(seconds)
	}
}

// RecordRestart counts a discarded worker.
func (s *Set) RecordRestart() {
	if s == nil {
		return
	}
	s.workerRestarts.Inc()
}

// RecordRetry counts an extra attempt for an item.
func (s *Set) RecordRetry() {
	if s == nil {
		return
	}
	s.retries.Inc()
}

// RecordFatality counts a run-aborting condition.
func (s *Set) RecordFatality() {
	if s == nil {
		return
	}
	s.fatalities.Inc()
}

// Handler returns the scrape mux: /metrics plus a trivial /healthz.
func (s *Set) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}
