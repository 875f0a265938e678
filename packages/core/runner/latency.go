package runner

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// LatencySummary describes the response times of the requests in a run.
type LatencySummary struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

type latencyRecorder struct {
	// microseconds, 1us to 60s, 3 significant digits
	histogram *hdrhistogram.Histogram
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
	}
}

func (l *latencyRecorder) record(d time.Duration) {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	_ = l.histogram.RecordValue(us)
}

// summary returns nil when nothing was recorded.
func (l *latencyRecorder) summary() *LatencySummary {
	if l.histogram.TotalCount() == 0 {
		return nil
	}
	return &LatencySummary{
		Count: l.histogram.TotalCount(),
		Min:   time.Duration(l.histogram.Min()) * time.Microsecond,
		Max:   time.Duration(l.histogram.Max()) * time.Microsecond,
		Mean:  time.Duration(l.histogram.Mean()) * time.Microsecond,
		P50:   time.Duration(l.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(l.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(l.histogram.ValueAtQuantile(99)) * time.Microsecond,
	}
}
