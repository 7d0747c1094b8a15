package reliability

import (
	"reflect"
	"testing"
	"time"

	"github.com/teslashibe/go-narrator/pkg/describe"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// at returns epoch + seconds.
func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

func seconds(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = t.Sub(epoch).Seconds()
	}
	return out
}

func TestPruneDropsStaleEntries(t *testing.T) {
	tr := New(DefaultConfig())
	for _, s := range []float64{0.0, 0.5, 0.9, 1.5} {
		tr.Observe("chair", at(s))
	}

	tr.Prune(at(1.5))

	got := seconds(tr.Window("chair"))
	want := []float64{0.5, 0.9, 1.5}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("window after prune = %v, want %v", got, want)
	}

	reliable := tr.Reliable()
	if reliable.Get("chair") != 1 {
		t.Errorf("chair should be reliable with count 1, got %v", reliable.Entries())
	}
}

func TestPruneBoundaryIsInclusive(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Observe("cup", at(0))
	tr.Observe("cup", at(0.6))

	tr.Prune(at(1.0))
	if n := len(tr.Window("cup")); n != 2 {
		t.Errorf("entry exactly one window old should be kept, got %d entries", n)
	}

	tr.Prune(at(1.2))
	got := seconds(tr.Window("cup"))
	if !reflect.DeepEqual(got, []float64{0.6}) {
		t.Errorf("window = %v, want [0.6]", got)
	}
}

func TestPruneAppliesToLabelsNotSeenThisFrame(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Observe("person", at(0))
	tr.Observe("chair", at(0.2))
	tr.Observe("chair", at(1.5))

	tr.Prune(at(1.5))

	if got := tr.Labels(); !reflect.DeepEqual(got, []string{"chair"}) {
		t.Errorf("Labels = %v, want [chair]", got)
	}
	if len(tr.Window("person")) != 0 {
		t.Error("person window should be gone")
	}
}

func TestReliableThreshold(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Observe("bottle", at(0.1))
	tr.Observe("bottle", at(0.2))
	tr.Observe("chair", at(0.1))
	tr.Observe("chair", at(0.2))
	tr.Observe("chair", at(0.3))

	r := tr.Reliable()
	if r.Len() != 1 || r.Get("chair") != 1 {
		t.Errorf("only chair should be reliable, got %v", r.Entries())
	}
	if r.Get("bottle") != 0 {
		t.Error("bottle has two detections and must not be reliable")
	}
}

func TestReliableOrderFollowsFirstObservation(t *testing.T) {
	tr := New(DefaultConfig())
	for _, s := range []float64{0.1, 0.2, 0.3} {
		tr.Observe("cup", at(s))
		tr.Observe("chair", at(s))
	}

	want := []describe.Entry{{Label: "cup", Count: 1}, {Label: "chair", Count: 1}}
	reliable := tr.Reliable()
	if got := reliable.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("Entries = %v, want %v", got, want)
	}
}

func TestEstimateCount(t *testing.T) {
	tests := []struct {
		name          string
		windowLen     int
		uniqueBuckets int
		want          int
	}{
		{"three detections two buckets", 3, 2, 1},
		{"nine detections five buckets", 9, 5, 3},
		{"nine detections one bucket", 9, 1, 1},
		{"six detections six buckets", 6, 6, 2},
		{"never below one", 3, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateCount(tt.windowLen, tt.uniqueBuckets, 3); got != tt.want {
				t.Errorf("EstimateCount(%d, %d, 3) = %d, want %d",
					tt.windowLen, tt.uniqueBuckets, got, tt.want)
			}
		})
	}
}

func TestUniqueBuckets(t *testing.T) {
	ts := []time.Time{at(0.01), at(0.04), at(0.12), at(0.31), at(0.33)}
	if got := UniqueBuckets(ts, 100*time.Millisecond); got != 3 {
		t.Errorf("UniqueBuckets = %d, want 3", got)
	}
	if got := UniqueBuckets(nil, 100*time.Millisecond); got != 0 {
		t.Errorf("UniqueBuckets(nil) = %d, want 0", got)
	}
}

func TestReliableCountScalesWithDetectionsPerFrame(t *testing.T) {
	tr := New(DefaultConfig())
	// Three chairs seen in each of three frames spread over separate buckets.
	for _, s := range []float64{0.1, 0.3, 0.5} {
		for i := 0; i < 3; i++ {
			tr.Observe("chair", at(s))
		}
	}
	reliable := tr.Reliable()
	if got := reliable.Get("chair"); got != 3 {
		t.Errorf("chair count = %d, want 3", got)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	tr := New(DefaultConfig())
	for _, s := range []float64{0.1, 0.2, 0.3} {
		tr.Observe("person", at(s))
	}

	tr.Clear()
	tr.Clear()

	if len(tr.Labels()) != 0 {
		t.Errorf("Labels after clear = %v", tr.Labels())
	}
	reliable := tr.Reliable()
	if reliable.Len() != 0 {
		t.Error("nothing should be reliable after clear")
	}

	tr.Observe("cup", at(0.4))
	if got := tr.Labels(); !reflect.DeepEqual(got, []string{"cup"}) {
		t.Errorf("tracker should be usable after clear, Labels = %v", got)
	}
}

func TestNewFallsBackOnInvalidConfig(t *testing.T) {
	tr := New(Config{})
	if !reflect.DeepEqual(tr.Config(), DefaultConfig()) {
		t.Errorf("Config = %+v, want default", tr.Config())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero window", Config{MinDetectionCount: 3, Bucket: time.Millisecond}, true},
		{"zero count", Config{Window: time.Second, Bucket: time.Millisecond}, true},
		{"zero bucket", Config{Window: time.Second, MinDetectionCount: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
