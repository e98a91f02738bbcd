package promsink

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/blueberrycongee/aiproxy/telemetry"
)

func TestRecordCountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := New(reg)

	sink.Record(telemetry.ProviderTrace{Provider: "openai", OK: true, LatencyMS: 42})
	sink.Record(telemetry.ProviderTrace{Provider: "openai", OK: true, LatencyMS: 17})
	sink.Record(telemetry.ProviderTrace{Provider: "openai", ErrorKind: "http_error"})

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.requests.WithLabelValues("openai", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.requests.WithLabelValues("openai", "http_error")))
}

func TestRecordCompletionDefaultsStopReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := New(reg)

	sink.RecordCompletion(telemetry.CompletionLog{Provider: "null"})
	sink.RecordCompletion(telemetry.CompletionLog{Provider: "null", StopReason: "stop"})

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.completions.WithLabelValues("null", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.completions.WithLabelValues("null", "stop")))
}
