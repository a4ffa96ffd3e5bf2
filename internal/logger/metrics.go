package logger

import (
	"encoding/json"
	"sync"
	"time"
)

// TimingStats aggregates the durations recorded under one name.
type TimingStats struct {
	Count int
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Average is Total divided by Count, or zero when nothing was recorded.
func (s TimingStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

func (s *TimingStats) add(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Count++
	s.Total += d
}

// MarshalJSON renders durations in their human-readable form.
func (s TimingStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count   int    `json:"count"`
		Total   string `json:"total"`
		Average string `json:"average"`
		Min     string `json:"min"`
		Max     string `json:"max"`
	}{s.Count, s.Total.String(), s.Average().String(), s.Min.String(), s.Max.String()})
}

// Snapshot is a point-in-time copy of a Metrics tracker.
type Snapshot struct {
	Counters map[string]int64       `json:"counters"`
	Gauges   map[string]float64     `json:"gauges"`
	Timings  map[string]TimingStats `json:"timings"`
}

// Metrics holds counters, gauges and timing aggregates. It is safe for
// concurrent use.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string]*TimingStats
}

// NewMetrics returns an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: map[string]int64{},
		gauges:   map[string]float64{},
		timings:  map[string]*TimingStats{},
	}
}

func (m *Metrics) IncrCounter(name string) { m.AddCounter(name, 1) }

func (m *Metrics) AddCounter(name string, delta int64) {
	m.mu.Lock()
	m.counters[name] += delta
	m.mu.Unlock()
}

// SetGauge overwrites the gauge's previous value.
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	m.gauges[name] = value
	m.mu.Unlock()
}

// RecordTiming folds d into the running aggregate for name.
func (m *Metrics) RecordTiming(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, ok := m.timings[name]
	if !ok {
		stats = &TimingStats{}
		m.timings[name] = stats
	}
	stats.add(d)
}

// GetSnapshot copies the current values.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Counters: make(map[string]int64, len(m.counters)),
		Gauges:   make(map[string]float64, len(m.gauges)),
		Timings:  make(map[string]TimingStats, len(m.timings)),
	}
	for k, v := range m.counters {
		snap.Counters[k] = v
	}
	for k, v := range m.gauges {
		snap.Gauges[k] = v
	}
	for k, v := range m.timings {
		snap.Timings[k] = *v
	}
	return snap
}

var defaultMetrics = NewMetrics()

// DefaultMetrics returns the process-wide tracker.
func DefaultMetrics() *Metrics { return defaultMetrics }

// GetMetricsSnapshot copies the process-wide tracker.
func GetMetricsSnapshot() Snapshot { return defaultMetrics.GetSnapshot() }
