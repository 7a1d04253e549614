package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// MetricInstruments caches the OTel instruments created for each metric
// name so RecordCounter/RecordHistogram don't re-register an instrument on
// every call. Trimmed from the teacher's version: no gauge or up-down
// counter support, since RecordMetric only ever needs a counter or a
// histogram.
type MetricInstruments struct {
	meter      metric.Meter
	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewMetricInstruments creates an instrument cache backed by the named
// meter.
func NewMetricInstruments(meterName string) *MetricInstruments {
	return &MetricInstruments{
		meter:      otel.Meter(meterName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// RecordCounter increments the named counter, creating it on first use.
func (m *MetricInstruments) RecordCounter(ctx context.Context, name string, value int64, opts ...metric.AddOption) error {
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		var err error
		c, err = m.meter.Int64Counter(name)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.counters[name] = c
	}
	m.mu.Unlock()
	c.Add(ctx, value, opts...)
	return nil
}

// RecordHistogram records value into the named histogram, creating it on
// first use.
func (m *MetricInstruments) RecordHistogram(ctx context.Context, name string, value float64, opts ...metric.RecordOption) error {
	m.mu.Lock()
	h, ok := m.histograms[name]
	if !ok {
		var err error
		h, err = m.meter.Float64Histogram(name)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.histograms[name] = h
	}
	m.mu.Unlock()
	h.Record(ctx, value, opts...)
	return nil
}
