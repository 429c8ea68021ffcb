// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "talkboard"

// Cleanup phases recorded by BlobCleanupFailed.
const (
	PhaseCompensate = "compensate"
	PhaseRelease    = "release"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	ttsAttempts *prometheus.CounterVec
	ttsResults  *prometheus.CounterVec

	blobDeletes         *prometheus.CounterVec
	blobCleanupFailures *prometheus.CounterVec

	mailSent *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"method", "route"}),
		ttsAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tts", Name: "attempts_total",
			Help: "Upstream speech synthesis attempts by outcome.",
		}, []string{"outcome"}),
		ttsResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tts", Name: "results_total",
			Help: "Final speech synthesis results by kind.",
		}, []string{"result"}),
		blobDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "blob", Name: "deletes_total",
			Help: "Asset deletions issued by the lifecycle coordinator.",
		}, []string{"phase"}),
		blobCleanupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "blob", Name: "cleanup_failures_total",
			Help: "Asset deletions that failed and left a stray object behind.",
		}, []string{"phase"}),
		mailSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mail", Name: "sent_total",
			Help: "Outbound emails by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.ttsAttempts, m.ttsResults,
		m.blobDeletes, m.blobCleanupFailures,
		m.mailSent,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncInFlight() { m.httpInFlight.Inc() }
func (m *Metrics) DecInFlight() { m.httpInFlight.Dec() }

func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TTSAttempt counts one upstream call; outcome is "ok", "retryable" or "terminal".
func (m *Metrics) TTSAttempt(outcome string) {
	m.ttsAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TTSResult(result string) {
	m.ttsResults.WithLabelValues(result).Inc()
}

func (m *Metrics) BlobDeleted(phase string) {
	m.blobDeletes.WithLabelValues(phase).Inc()
}

func (m *Metrics) BlobCleanupFailed(phase string) {
	m.blobCleanupFailures.WithLabelValues(phase).Inc()
}

func (m *Metrics) MailSent(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.mailSent.WithLabelValues(result).Inc()
}
