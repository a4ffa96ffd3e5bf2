// Package metrics records per-permit scrape metrics.
//
// A Recorder receives named numeric values with a unit and optional string
// dimensions. LogRecorder keeps them in the in-process logger metrics,
// OTelRecorder forwards them to an OpenTelemetry meter, and Multi fans out
// to several recorders.
package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pfrederiksen/permit-scraper/internal/logger"
)

// Metric names emitted by the scraper.
const (
	ScrapeSuccess     = "ScrapeSuccess"
	ScrapeFailure     = "ScrapeFailure"
	ScrapeDuration    = "ScrapeDuration"
	ScrapeErrorCount  = "ScrapeErrorCount"
	CompletenessScore = "CompletenessScore"
)

// DimPermit is the dimension carrying the permit number.
const DimPermit = "Permit"

// Unit of a recorded value.
type Unit string

const (
	UnitCount   Unit = "Count"
	UnitSeconds Unit = "Seconds"
	UnitPercent Unit = "Percent"
)

// Dims are metric dimensions.
type Dims map[string]string

// Recorder receives metric values. Implementations never fail the caller.
type Recorder interface {
	Record(name string, value float64, unit Unit, dims Dims)
}

// Nop discards everything.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(string, float64, Unit, Dims) {}

// LogRecorder records into a logger.Metrics tracker: counts as counters,
// seconds as timings, anything else as a gauge.
type LogRecorder struct {
	m *logger.Metrics
}

// NewLogRecorder returns a recorder backed by m, or by the default tracker
// when m is nil.
func NewLogRecorder(m *logger.Metrics) *LogRecorder {
	if m == nil {
		m = logger.DefaultMetrics()
	}
	return &LogRecorder{m: m}
}

// Record implements Recorder.
func (r *LogRecorder) Record(name string, value float64, unit Unit, dims Dims) {
	switch unit {
	case UnitCount:
		r.m.AddCounter(name, int64(value))
	case UnitSeconds:
		r.m.RecordTiming(name, time.Duration(value*float64(time.Second)))
	default:
		r.m.SetGauge(name, value)
	}

	fields := logger.Fields{"metric": name, "value": value, "unit": string(unit)}
	for k, v := range dims {
		fields[k] = v
	}
	logger.Debug("Recorded metric", fields)
}

// Snapshot returns the tracker's current values.
func (r *LogRecorder) Snapshot() logger.Snapshot {
	return r.m.GetSnapshot()
}

// OTelRecorder records every metric as a float64 histogram on an
// OpenTelemetry meter, one instrument per name.
type OTelRecorder struct {
	meter metric.Meter

	mu          sync.Mutex
	instruments map[string]metric.Float64Histogram
}

// NewOTelRecorder returns a recorder using meter.
func NewOTelRecorder(meter metric.Meter) *OTelRecorder {
	return &OTelRecorder{
		meter:       meter,
		instruments: make(map[string]metric.Float64Histogram),
	}
}

func otelUnit(u Unit) string {
	switch u {
	case UnitSeconds:
		return "s"
	case UnitPercent:
		return "%"
	default:
		return "1"
	}
}

func (r *OTelRecorder) instrument(name string, unit Unit) (metric.Float64Histogram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.instruments[name]; ok {
		return h, nil
	}
	h, err := r.meter.Float64Histogram(name, metric.WithUnit(otelUnit(unit)))
	if err != nil {
		return nil, err
	}
	r.instruments[name] = h
	return h, nil
}

// Record implements Recorder.
func (r *OTelRecorder) Record(name string, value float64, unit Unit, dims Dims) {
	h, err := r.instrument(name, unit)
	if err != nil {
		logger.Warn("Failed to create metric instrument", logger.Fields{"metric": name, "error": err.Error()})
		return
	}
	h.Record(context.Background(), value, metric.WithAttributes(attributes(dims)...))
}

func attributes(dims Dims) []attribute.KeyValue {
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, dims[k]))
	}
	return attrs
}

// Multi sends every value to each recorder in order.
type Multi []Recorder

// Record implements Recorder.
func (m Multi) Record(name string, value float64, unit Unit, dims Dims) {
	for _, r := range m {
		r.Record(name, value, unit, dims)
	}
}
