// Package metrics exposes pipeline counters and latencies to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/poiesic/examscribe/core"
	"github.com/poiesic/examscribe/generation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "examscribe"

// Document outcomes recorded by ObserveDocument.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds the collectors for one registry. Each instance owns its
// registry so tests and multiple servers do not collide.
type Metrics struct {
	registry *prometheus.Registry

	documents      *prometheus.CounterVec
	phaseDuration  *prometheus.HistogramVec
	answers        *prometheus.CounterVec
	answerDuration prometheus.Histogram
	inFlight       prometheus.Gauge
	requests       *prometheus.CounterVec
}

var _ generation.Monitor = (*Metrics)(nil)

// New creates and registers all collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		documents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents processed, by strategy and outcome.",
		}, []string{"strategy", "status"}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of each processing phase.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"phase"}),
		answers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers generated, by outcome.",
		}, []string{"status"}),
		answerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_duration_seconds",
			Help:      "Time to produce one answer including context retrieval.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "questions_in_flight",
			Help:      "Questions of the current batches not yet answered.",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by handler and status code.",
		}, []string{"handler", "code"}),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument counts requests served by next under the handler label.
func (m *Metrics) Instrument(handler string, next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(prometheus.Labels{"handler": handler}), next)
}

// ObserveDocument records the outcome of one document run.
func (m *Metrics) ObserveDocument(strategy, status string) {
	if strategy == "" {
		strategy = "none"
	}
	m.documents.WithLabelValues(strategy, status).Inc()
}

// ObservePhase records how long a processing phase took.
func (m *Metrics) ObservePhase(phase string, elapsed time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// Start implements generation.Monitor.
func (m *Metrics) Start(total int) {
	m.inFlight.Add(float64(total))
}

// QuestionFinished implements generation.Monitor.
func (m *Metrics) QuestionFinished(answer core.Answer, elapsed time.Duration) {
	m.inFlight.Dec()
	status := StatusOK
	if answer.Failed() {
		status = StatusFailed
	}
	m.answers.WithLabelValues(status).Inc()
	m.answerDuration.Observe(elapsed.Seconds())
}

// Finish implements generation.Monitor.
func (m *Metrics) Finish([]core.Answer) {}
