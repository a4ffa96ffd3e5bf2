package logger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()

	m.IncrCounter("ScrapeSuccess")
	m.AddCounter("ScrapeSuccess", 2)
	m.SetGauge("CompletenessScore", 41.5)
	m.SetGauge("CompletenessScore", 87)
	m.RecordTiming("ScrapeDuration", 200*time.Millisecond)
	m.RecordTiming("ScrapeDuration", 100*time.Millisecond)
	m.RecordTiming("ScrapeDuration", 300*time.Millisecond)

	want := Snapshot{
		Counters: map[string]int64{"ScrapeSuccess": 3},
		Gauges:   map[string]float64{"CompletenessScore": 87},
		Timings: map[string]TimingStats{"ScrapeDuration": {
			Count: 3,
			Total: 600 * time.Millisecond,
			Min:   100 * time.Millisecond,
			Max:   300 * time.Millisecond,
		}},
	}
	snap := m.GetSnapshot()
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if avg := snap.Timings["ScrapeDuration"].Average(); avg != 200*time.Millisecond {
		t.Errorf("Average() = %v", avg)
	}

	m.IncrCounter("ScrapeSuccess")
	if snap.Counters["ScrapeSuccess"] != 3 {
		t.Error("snapshot shares state with tracker")
	}
}

func TestTimingStats_JSON(t *testing.T) {
	s := TimingStats{}
	s.add(1500 * time.Millisecond)
	s.add(500 * time.Millisecond)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"count":2,"total":"2s","average":"1s","min":"500ms","max":"1.5s"}`
	if string(data) != want {
		t.Errorf("JSON = %s, want %s", data, want)
	}

	if (TimingStats{}).Average() != 0 {
		t.Error("empty Average() should be zero")
	}
}

func TestDefaultMetrics(t *testing.T) {
	DefaultMetrics().IncrCounter("logger.test")
	if GetMetricsSnapshot().Counters["logger.test"] < 1 {
		t.Error("default tracker did not record")
	}
}
