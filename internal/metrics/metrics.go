// Package metrics provides a thin, nil-receiver-safe adapter over
// OpenTelemetry metrics so every component can record counters and
// histograms without taking a hard dependency on a configured meter
// provider. Grounded on the teacher's internal/rag/obs/metrics.go
// OtelMetrics wrapper, narrowed to the counter/histogram surface this
// platform's components actually call.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder is the surface every component depends on; Metrics and a nil
// *Metrics both satisfy it (nil recordings are no-ops).
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

// Metrics adapts an otel.Meter, caching instruments by name.
type Metrics struct {
	meter metric.Meter

	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// New constructs a Metrics against the global meter provider under the
// given instrumentation scope name.
func New(scope string) *Metrics {
	return &Metrics{
		meter:      otel.Meter(scope),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// IncCounter increments name by one, tagging it with labels. A nil
// receiver is a no-op so components can hold an unset *Metrics safely.
func (m *Metrics) IncCounter(name string, labels map[string]string) {
	if m == nil {
		return
	}
	c, ok := m.counter(name)
	if !ok {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(toAttrs(labels)...))
}

// ObserveHistogram records value under name, tagging it with labels.
func (m *Metrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	if m == nil {
		return
	}
	h, ok := m.histogram(name)
	if !ok {
		return
	}
	h.Record(context.Background(), value, metric.WithAttributes(toAttrs(labels)...))
}

func (m *Metrics) counter(name string) (metric.Int64Counter, bool) {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return c, true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[name]; ok {
		return c, true
	}
	c, err := m.meter.Int64Counter(name)
	if err != nil {
		return c, false
	}
	m.counters[name] = c
	return c, true
}

func (m *Metrics) histogram(name string) (metric.Float64Histogram, bool) {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()
	if ok {
		return h, true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.histograms[name]; ok {
		return h, true
	}
	h, err := m.meter.Float64Histogram(name)
	if err != nil {
		return h, false
	}
	m.histograms[name] = h
	return h, true
}

func toAttrs(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		out = append(out, attribute.String(k, v))
	}
	return out
}

// MockRecorder is an in-memory Recorder for tests, recording every call
// instead of exporting it.
type MockRecorder struct {
	mu         sync.Mutex
	Counters   map[string]int
	Histograms map[string][]float64
	Labels     map[string][]map[string]string
}

// NewMockRecorder constructs an empty MockRecorder.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		Counters:   make(map[string]int),
		Histograms: make(map[string][]float64),
		Labels:     make(map[string][]map[string]string),
	}
}

func (m *MockRecorder) IncCounter(name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name]++
	m.Labels[name] = append(m.Labels[name], labels)
}

func (m *MockRecorder) ObserveHistogram(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Histograms[name] = append(m.Histograms[name], value)
	m.Labels[name] = append(m.Labels[name], labels)
}
