// Package promsink provides a Prometheus-backed telemetry sink.
package promsink

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blueberrycongee/aiproxy/telemetry"
)

// Sink counts provider calls and observes latency. Install it once:
//
//	telemetry.SetSink(promsink.New(prometheus.DefaultRegisterer))
type Sink struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	completions *prometheus.CounterVec
}

// New registers the collectors with reg and returns the sink.
func New(reg prometheus.Registerer) *Sink {
	s := &Sink{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aiproxy_requests_total",
			Help: "Provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aiproxy_request_latency_ms",
			Help:    "Provider call latency in milliseconds.",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"provider"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aiproxy_completions_total",
			Help: "Chat completions by provider and stop reason.",
		}, []string{"provider", "stop_reason"}),
	}
	reg.MustRegister(s.requests, s.latency, s.completions)
	return s
}

func (s *Sink) Record(t telemetry.ProviderTrace) {
	outcome := "ok"
	if !t.OK {
		outcome = t.ErrorKind
		if outcome == "" {
			outcome = "error"
		}
	}
	s.requests.WithLabelValues(t.Provider, outcome).Inc()
	s.latency.WithLabelValues(t.Provider).Observe(float64(t.LatencyMS))
}

func (s *Sink) RecordCompletion(l telemetry.CompletionLog) {
	reason := l.StopReason
	if reason == "" {
		reason = "none"
	}
	s.completions.WithLabelValues(l.Provider, reason).Inc()
}
