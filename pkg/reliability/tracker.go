// Package reliability smooths per-frame detection noise. It keeps a rolling
// window of detection timestamps per class label and reports only labels seen
// often enough, together with an estimated instance count.
//
// A Tracker is not safe for concurrent use; it is owned by the frame loop.
package reliability

import (
	"time"

	"github.com/teslashibe/go-narrator/pkg/describe"
)

// Tracker holds one timestamp window per label.
type Tracker struct {
	cfg     Config
	windows map[string][]time.Time
	order   []string // labels in first-observed order since the last Clear
}

// New creates a Tracker. Invalid configs fall back to DefaultConfig.
func New(cfg Config) *Tracker {
	if cfg.Validate() != nil {
		cfg = DefaultConfig()
	}
	return &Tracker{
		cfg:     cfg,
		windows: make(map[string][]time.Time),
	}
}

// Config returns the tracker's configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Observe records one detection of label at now.
func (t *Tracker) Observe(label string, now time.Time) {
	if _, ok := t.windows[label]; !ok {
		t.order = append(t.order, label)
	}
	t.windows[label] = append(t.windows[label], now)
}

// Prune drops timestamps older than the window from every label.
// Labels left with no timestamps stop being tracked.
func (t *Tracker) Prune(now time.Time) {
	kept := t.order[:0]
	for _, label := range t.order {
		w := t.windows[label]
		fresh := w[:0]
		for _, ts := range w {
			if now.Sub(ts) <= t.cfg.Window {
				fresh = append(fresh, ts)
			}
		}
		if len(fresh) == 0 {
			delete(t.windows, label)
			continue
		}
		t.windows[label] = fresh
		kept = append(kept, label)
	}
	t.order = kept
}

// Window returns a copy of label's current timestamps.
func (t *Tracker) Window(label string) []time.Time {
	w := t.windows[label]
	out := make([]time.Time, len(w))
	copy(out, w)
	return out
}

// Labels returns the tracked labels in first-observed order.
func (t *Tracker) Labels() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Reliable returns the labels whose window holds at least MinDetectionCount
// timestamps, each with its estimated instance count.
func (t *Tracker) Reliable() describe.Counts {
	var out describe.Counts
	for _, label := range t.order {
		w := t.windows[label]
		if len(w) < t.cfg.MinDetectionCount {
			continue
		}
		out.Add(label, EstimateCount(len(w), UniqueBuckets(w, t.cfg.Bucket), t.cfg.MinDetectionCount))
	}
	return out
}

// Clear forgets every window. Calling it on an empty tracker is a no-op.
func (t *Tracker) Clear() {
	clear(t.windows)
	t.order = t.order[:0]
}

// EstimateCount derives an instance count from a window:
// max(1, min(windowLen / minCount, uniqueBuckets)).
//
// Floor division lets several detections per frame scale the count up, while
// the distinct-bucket cap stops one object seen many times inside the same
// bucket from being counted as many.
func EstimateCount(windowLen, uniqueBuckets, minCount int) int {
	return max(1, min(windowLen/minCount, uniqueBuckets))
}

// UniqueBuckets counts the distinct timestamps after rounding each to bucket.
func UniqueBuckets(ts []time.Time, bucket time.Duration) int {
	seen := make(map[int64]struct{}, len(ts))
	for _, t := range ts {
		seen[t.Round(bucket).UnixNano()] = struct{}{}
	}
	return len(seen)
}
