package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilReceiverIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncCounter("widgets_total", nil)
		m.ObserveHistogram("widgets_latency_ms", 12.5, map[string]string{"op": "test"})
	})
}

func TestMetrics_IncCounterAndObserveHistogramDoNotPanic(t *testing.T) {
	m := New("test-scope")
	assert.NotPanics(t, func() {
		m.IncCounter("requests_total", map[string]string{"status": "ok"})
		m.IncCounter("requests_total", map[string]string{"status": "ok"})
		m.ObserveHistogram("request_duration_ms", 42, map[string]string{"status": "ok"})
	})
}

func TestMockRecorder_TracksCountersAndHistograms(t *testing.T) {
	m := NewMockRecorder()
	m.IncCounter("ingest_documents_total", map[string]string{"status": "success"})
	m.IncCounter("ingest_documents_total", map[string]string{"status": "success"})
	m.ObserveHistogram("ingest_duration_ms", 10, nil)
	m.ObserveHistogram("ingest_duration_ms", 20, nil)

	assert.Equal(t, 2, m.Counters["ingest_documents_total"])
	assert.Equal(t, []float64{10, 20}, m.Histograms["ingest_duration_ms"])
}

func TestMockRecorder_SatisfiesRecorderInterface(t *testing.T) {
	var r Recorder = NewMockRecorder()
	r.IncCounter("x", nil)
	assert.NotNil(t, r)
}
