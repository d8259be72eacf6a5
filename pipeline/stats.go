package pipeline

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultTelemetryWindow is the number of recent frame durations kept for
// percentile calculation
const DefaultTelemetryWindow = 300

// Stats summarizes frame processing durations
type Stats struct {
	// Frames is the number of frames processed since the last reset
	Frames int
	// Average is the mean duration over all frames processed
	Average time.Duration
	// Mean, P95 and Max are calculated over the recent window
	Mean time.Duration
	P95  time.Duration
	Max  time.Duration
	// Last is the duration of the most recent frame
	Last time.Duration
}

// String returns a one line summary in milliseconds
func (s Stats) String() string {
	return fmt.Sprintf("frames=%d avg=%.2fms p95=%.2fms max=%.2fms",
		s.Frames, ms(s.Average), ms(s.P95), ms(s.Max))
}

// Telemetry records per frame processing durations.  A rolling window of the
// most recent samples is kept along with running totals.
type Telemetry struct {
	window []float64
	size   int
	next   int
	frames int
	total  time.Duration
	last   time.Duration
}

// NewTelemetry returns a Telemetry keeping size recent samples
func NewTelemetry(size int) *Telemetry {

	if size < 1 {
		size = DefaultTelemetryWindow
	}

	return &Telemetry{
		window: make([]float64, 0, size),
		size:   size,
	}
}

// Record adds a frame duration
func (t *Telemetry) Record(d time.Duration) {

	t.frames++
	t.total += d
	t.last = d

	if len(t.window) < t.size {
		t.window = append(t.window, float64(d))
		return
	}

	t.window[t.next] = float64(d)
	t.next = (t.next + 1) % t.size
}

// Reset clears all samples
func (t *Telemetry) Reset() {
	t.window = t.window[:0]
	t.next = 0
	t.frames = 0
	t.total = 0
	t.last = 0
}

// Stats returns the current summary
func (t *Telemetry) Stats() Stats {

	if t.frames == 0 {
		return Stats{}
	}

	sorted := make([]float64, len(t.window))
	copy(sorted, t.window)
	sort.Float64s(sorted)

	return Stats{
		Frames:  t.frames,
		Average: t.total / time.Duration(t.frames),
		Mean:    time.Duration(stat.Mean(sorted, nil)),
		P95:     time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil)),
		Max:     time.Duration(floats.Max(sorted)),
		Last:    t.last,
	}
}

// ms converts a duration to fractional milliseconds
func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
