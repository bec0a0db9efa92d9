package metrics

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
}

// LatencySnapshot is a point-in-time aggregate of latency samples.
type LatencySnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// LatencyWindow tracks recent operation latencies per operation name within a
// rolling window.
type LatencyWindow struct {
	mu      sync.Mutex
	samples map[string][]sample
	maxAge  time.Duration
}

func NewLatencyWindow(maxAge time.Duration) *LatencyWindow {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LatencyWindow{
		samples: make(map[string][]sample),
		maxAge:  maxAge,
	}
}

func (w *LatencyWindow) Record(operation string, durationMs int64) {
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(operation, now)
	w.samples[operation] = append(w.samples[operation], sample{
		timestamp:  now,
		durationMs: durationMs,
	})
}

// Snapshot aggregates one operation's samples.
func (w *LatencyWindow) Snapshot(operation string) LatencySnapshot {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(operation, now)
	return aggregate(w.samples[operation])
}

// SnapshotAll aggregates every operation that still has samples.
func (w *LatencyWindow) SnapshotAll() map[string]LatencySnapshot {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]LatencySnapshot, len(w.samples))
	for op := range w.samples {
		w.pruneLocked(op, now)
		if len(w.samples[op]) == 0 {
			delete(w.samples, op)
			continue
		}
		out[op] = aggregate(w.samples[op])
	}
	return out
}

func aggregate(samples []sample) LatencySnapshot {
	if len(samples) == 0 {
		return LatencySnapshot{}
	}
	values := make([]int64, 0, len(samples))
	var sum int64
	for _, sm := range samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	slices.Sort(values)

	return LatencySnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func (w *LatencyWindow) pruneLocked(operation string, now time.Time) {
	cutoff := now.Add(-w.maxAge)
	kept := w.samples[operation][:0]
	for _, sm := range w.samples[operation] {
		if !sm.timestamp.Before(cutoff) {
			kept = append(kept, sm)
		}
	}
	w.samples[operation] = kept
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
