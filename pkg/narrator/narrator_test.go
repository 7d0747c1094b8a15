package narrator

import (
	"context"
	"errors"
	"image"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-narrator/internal/log"
	"github.com/teslashibe/go-narrator/pkg/describe"
	"github.com/teslashibe/go-narrator/pkg/detection"
	"github.com/teslashibe/go-narrator/pkg/overlay"
	"github.com/teslashibe/go-narrator/pkg/speech"
	"github.com/teslashibe/go-narrator/pkg/vision"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// set moves the clock to epoch + ms milliseconds.
func (c *clock) set(ms int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = epoch.Add(time.Duration(ms) * time.Millisecond)
}

func box(height int) detection.BoundingBox {
	return detection.BoundingBox{X1: 10, Y1: 20, X2: 60, Y2: 20 + height}
}

func det(label string, conf float64, height int) detection.RawDetection {
	return detection.RawDetection{Label: label, Confidence: conf, Box: box(height)}
}

func repeat(d detection.RawDetection, n int) []detection.RawDetection {
	out := make([]detection.RawDetection, n)
	for i := range out {
		out[i] = d
	}
	return out
}

var blank = &vision.Frame{Image: image.NewRGBA(image.Rect(0, 0, 640, 480))}

type recordingSink struct {
	mu     sync.Mutex
	frames int
	anns   [][]overlay.Annotation
}

func (s *recordingSink) Render(_ *vision.Frame, anns []overlay.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.anns = append(s.anns, anns)
	return nil
}

type harness struct {
	n       *Narrator
	det     *detection.Mock
	speaker *speech.Mock
	sink    *recordingSink
	clock   *clock
}

func newHarness(t *testing.T, voice bool, frames ...[]detection.RawDetection) *harness {
	t.Helper()
	h := &harness{
		det:     detection.NewMock(frames...),
		speaker: speech.NewMock(),
		sink:    &recordingSink{},
		clock:   &clock{t: epoch},
	}
	cfg := DefaultConfig()
	cfg.VoiceEnabled = voice
	n, err := New(cfg, h.det, h.speaker,
		WithSink(h.sink),
		WithClock(h.clock.now),
		WithLogger(log.Discard()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.n = n
	return h
}

// step advances the clock to ms and processes one frame.
func (h *harness) step(t *testing.T, ms int) Result {
	t.Helper()
	h.clock.set(ms)
	res, err := h.n.ProcessFrame(context.Background(), blank)
	if err != nil {
		t.Fatalf("ProcessFrame at %dms: %v", ms, err)
	}
	return res
}

func TestNewValidates(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := New(cfg, nil, speech.NewMock()); !errors.Is(err, ErrNoDetector) {
		t.Errorf("expected ErrNoDetector, got %v", err)
	}
	if _, err := New(cfg, detection.NewMock(), nil); !errors.Is(err, ErrNoSpeaker) {
		t.Errorf("expected ErrNoSpeaker, got %v", err)
	}

	cfg.MinDetectionConfidence = 1.5
	if _, err := New(cfg, detection.NewMock(), speech.NewMock()); err == nil {
		t.Error("expected validation error")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MinDetectionConfidence != 0.6 || cfg.ConfidenceThreshold != 0.5 {
		t.Errorf("confidence = %v / %v", cfg.MinDetectionConfidence, cfg.ConfidenceThreshold)
	}
	if cfg.Cooldown != 5*time.Second {
		t.Errorf("Cooldown = %v", cfg.Cooldown)
	}
	if cfg.Distance.FocalLength != 500 {
		t.Errorf("FocalLength = %v", cfg.Distance.FocalLength)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestProcessFrameAnnotations(t *testing.T) {
	h := newHarness(t, false, []detection.RawDetection{
		det("chair", 0.9, 100),
		det("dog", 0.8, 50),
		det("cup", 0.55, 40), // below 0.6
		det("car", 0.95, 0),  // degenerate
		det("chair", 0.7, 200),
	})

	res := h.step(t, 0)

	wantText := []string{"chair (5.00m)", "dog (Unknown)", "chair (2.50m)"}
	var gotText []string
	for _, a := range res.Annotations {
		gotText = append(gotText, a.Text)
	}
	if !reflect.DeepEqual(gotText, wantText) {
		t.Errorf("annotations = %v, want %v", gotText, wantText)
	}
	if res.Annotations[0].Box != image.Rect(10, 20, 60, 120) {
		t.Errorf("box = %v", res.Annotations[0].Box)
	}
	if !reflect.DeepEqual(res.Labels, []string{"chair", "dog"}) {
		t.Errorf("Labels = %v", res.Labels)
	}
	var gotCat []string
	for _, d := range res.Detections {
		gotCat = append(gotCat, d.DistanceCategory)
	}
	if want := []string{"far", "unknown", "moderate"}; !reflect.DeepEqual(gotCat, want) {
		t.Errorf("categories = %v, want %v", gotCat, want)
	}
	wantCounts := []describe.Entry{{Label: "chair", Count: 2}, {Label: "dog", Count: 1}}
	if got := res.Counts.Entries(); !reflect.DeepEqual(got, wantCounts) {
		t.Errorf("Counts = %v, want %v", got, wantCounts)
	}
	if !reflect.DeepEqual(res.Tracking, wantCounts) {
		t.Errorf("Tracking = %v, want %v", res.Tracking, wantCounts)
	}
	if want := "There are 2 chairs and one dog in front of you."; res.Summary != want {
		t.Errorf("Summary = %q, want %q", res.Summary, want)
	}
	if res.Announcement != "" || h.speaker.Count() != 0 {
		t.Error("voice is off, nothing should be spoken")
	}
	if h.sink.frames != 1 {
		t.Errorf("sink frames = %d", h.sink.frames)
	}
	if got := len(h.n.Session().Tracker().Window("chair")); got != 2 {
		t.Errorf("chair window = %d, want one entry per detection", got)
	}
}

func TestAnnouncesAfterVoiceEnabled(t *testing.T) {
	chair := []detection.RawDetection{det("chair", 0.9, 100)}
	h := newHarness(t, false, chair, chair, chair, chair)

	h.step(t, 0)
	h.step(t, 100)
	h.step(t, 200)
	if h.speaker.Count() != 0 {
		t.Fatal("voice off")
	}

	if !h.n.ToggleVoice() {
		t.Fatal("toggle should enable voice")
	}
	res := h.step(t, 300)

	want := "There is one chair in front of you."
	if res.Announcement != want {
		t.Errorf("Announcement = %q, want %q", res.Announcement, want)
	}
	if got := h.speaker.Sentences(); !reflect.DeepEqual(got, []string{want}) {
		t.Errorf("spoken = %v", got)
	}
	if got := h.n.Session().LastAnnouncement(); !got.Equal(epoch.Add(300 * time.Millisecond)) {
		t.Errorf("LastAnnouncement = %v", got)
	}
	if labels := h.n.Session().Tracker().Labels(); len(labels) != 0 {
		t.Errorf("windows should be cleared after announcing, have %v", labels)
	}
	if want := []describe.Entry{{Label: "chair", Count: 4}}; !reflect.DeepEqual(res.Tracking, want) {
		t.Errorf("Tracking = %v, want the windows as they were before clearing", res.Tracking)
	}
}

func TestCooldownIsStrict(t *testing.T) {
	three := repeat(det("bottle", 0.9, 30), 3)
	h := newHarness(t, true, three, three, three)

	if res := h.step(t, 0); res.Announcement == "" {
		t.Fatal("first eligible frame should announce")
	}
	if res := h.step(t, 5000); res.Announcement != "" {
		t.Errorf("exactly at cooldown should not announce, got %q", res.Announcement)
	}
	if res := h.step(t, 5001); res.Announcement == "" {
		t.Error("past cooldown should announce")
	}
	if h.speaker.Count() != 2 {
		t.Errorf("spoken %d times, want 2", h.speaker.Count())
	}
}

func TestAtMostOneAnnouncementPerCooldown(t *testing.T) {
	three := repeat(det("cup", 0.9, 20), 3)
	var frames [][]detection.RawDetection
	for i := 0; i < 60; i++ {
		frames = append(frames, three)
	}
	h := newHarness(t, true, frames...)

	var announced []int
	for i := 0; i < 60; i++ {
		ms := i * 100
		if res := h.step(t, ms); res.Announcement != "" {
			announced = append(announced, ms)
		}
	}
	for i := 1; i < len(announced); i++ {
		if gap := announced[i] - announced[i-1]; gap <= 5000 {
			t.Errorf("announcements %dms apart", gap)
		}
	}
	if len(announced) != 2 {
		t.Errorf("announced at %v, want two announcements in 6s", announced)
	}
}

func TestEmptyReliableSetDoesNotStartCooldown(t *testing.T) {
	h := newHarness(t, true,
		[]detection.RawDetection{det("chair", 0.9, 100)},
		repeat(det("chair", 0.9, 100), 3),
	)

	res := h.step(t, 0)
	if res.Announcement != "" {
		t.Fatal("single detection is not reliable")
	}
	if !h.n.Session().LastAnnouncement().IsZero() {
		t.Error("empty attempt must not touch the cooldown")
	}
	if labels := h.n.Session().Tracker().Labels(); len(labels) != 0 {
		t.Errorf("attempt should clear windows regardless of outcome, have %v", labels)
	}

	res = h.step(t, 100)
	if want := "There is one chair in front of you."; res.Announcement != want {
		t.Errorf("Announcement = %q, want %q", res.Announcement, want)
	}
}

func TestMultipleDetectionsScaleCount(t *testing.T) {
	h := newHarness(t, false,
		repeat(det("chair", 0.9, 100), 3),
		repeat(det("chair", 0.9, 100), 3),
		repeat(det("chair", 0.9, 100), 3),
	)
	h.step(t, 0)
	h.step(t, 100)
	h.n.SetVoice(true)

	res := h.step(t, 200)
	if want := "There are 3 chairs in front of you."; res.Announcement != want {
		t.Errorf("Announcement = %q, want %q", res.Announcement, want)
	}
}

func TestAnnouncementOrderFollowsFirstObservation(t *testing.T) {
	frame := []detection.RawDetection{
		det("bottle", 0.9, 30),
		det("chair", 0.9, 100),
		det("person", 0.9, 300),
	}
	h := newHarness(t, false, frame, frame, frame)
	h.step(t, 0)
	h.step(t, 100)
	h.n.SetVoice(true)

	res := h.step(t, 200)
	want := "There are one bottle, one chair, and one person in front of you."
	if res.Announcement != want {
		t.Errorf("Announcement = %q, want %q", res.Announcement, want)
	}
}

func TestSpeechFailureStillStartsCooldown(t *testing.T) {
	three := repeat(det("car", 0.9, 150), 3)
	h := newHarness(t, true, three, three)
	boom := errors.New("audio device gone")
	h.speaker.SpeakFunc = func(context.Context, string) error { return boom }

	var hookText string
	h.n.onSpeechErr = func(text string, err error) { hookText = text }

	res := h.step(t, 0)
	if !errors.Is(res.SpeechErr, boom) {
		t.Errorf("SpeechErr = %v", res.SpeechErr)
	}
	if hookText != "There is one car in front of you." {
		t.Errorf("hook text = %q", hookText)
	}
	if h.n.Session().LastAnnouncement().IsZero() {
		t.Error("dispatch started, cooldown should update")
	}

	if res := h.step(t, 1000); res.Announcement != "" {
		t.Error("no retry inside the cooldown")
	}
	if h.speaker.Count() != 1 {
		t.Errorf("speaker called %d times", h.speaker.Count())
	}
}

func TestToggleLeavesWindowsAndCooldown(t *testing.T) {
	three := repeat(det("person", 0.9, 340), 3)
	h := newHarness(t, true, three, three)
	h.step(t, 0)
	last := h.n.Session().LastAnnouncement()

	h.step(t, 500)
	before := len(h.n.Session().Tracker().Window("person"))

	var seen []bool
	h.n.onVoice = func(on bool) { seen = append(seen, on) }

	if h.n.ToggleVoice() {
		t.Error("first toggle should disable")
	}
	if !h.n.ToggleVoice() {
		t.Error("second toggle should enable")
	}
	if !reflect.DeepEqual(seen, []bool{false, true}) {
		t.Errorf("voice hook saw %v", seen)
	}
	if got := len(h.n.Session().Tracker().Window("person")); got != before {
		t.Errorf("window changed from %d to %d", before, got)
	}
	if !h.n.Session().LastAnnouncement().Equal(last) {
		t.Error("cooldown changed")
	}

	h.n.SetVoice(true)
	if len(seen) != 2 {
		t.Error("SetVoice to the current value should not fire the hook")
	}
}

func TestDetectionErrorRendersBareFrame(t *testing.T) {
	h := newHarness(t, true)
	boom := errors.New("inference failed")
	h.det.DetectFunc = func(context.Context, image.Image) ([]detection.RawDetection, error) {
		return nil, boom
	}

	_, err := h.n.ProcessFrame(context.Background(), blank)
	if !errors.Is(err, boom) {
		t.Errorf("expected detection error, got %v", err)
	}
	if h.sink.frames != 1 || len(h.sink.anns[0]) != 0 {
		t.Errorf("bare frame should still be rendered, got %d frames", h.sink.frames)
	}
	if h.speaker.Count() != 0 {
		t.Error("no speech on a failed frame")
	}
}

func TestProcessFrameNil(t *testing.T) {
	h := newHarness(t, true)
	if _, err := h.n.ProcessFrame(context.Background(), nil); !errors.Is(err, ErrNilFrame) {
		t.Errorf("expected ErrNilFrame, got %v", err)
	}
}

func TestResultHook(t *testing.T) {
	h := newHarness(t, false, []detection.RawDetection{det("cup", 0.9, 25)})
	var got []Result
	h.n.onResult = func(r Result) { got = append(got, r) }

	h.step(t, 0)
	if len(got) != 1 || got[0].Summary != "There is one cup in front of you." {
		t.Errorf("hook results = %+v", got)
	}
	if got[0].Detections[0].DistanceText() != "2.00m" {
		t.Errorf("distance = %s", got[0].Detections[0].DistanceText())
	}
	if c := got[0].Detections[0].DistanceCategory; c != "moderate" {
		t.Errorf("category = %q, want moderate", c)
	}
}

func TestRunStopsAtEndOfStream(t *testing.T) {
	img := blank.Image
	h := newHarness(t, false,
		[]detection.RawDetection{det("chair", 0.9, 100)},
		nil,
		[]detection.RawDetection{det("chair", 0.9, 100)},
	)
	calls := 0
	h.det.DetectFunc = func(context.Context, image.Image) ([]detection.RawDetection, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("transient")
		}
		return []detection.RawDetection{det("chair", 0.9, 100)}, nil
	}

	err := h.n.Run(context.Background(), vision.NewSliceSource(img, img, img))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.det.Calls() != 3 {
		t.Errorf("detector calls = %d, want 3", h.det.Calls())
	}
	if h.sink.frames != 3 {
		t.Errorf("rendered %d frames, want 3", h.sink.frames)
	}
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.n.Run(ctx, vision.NewSliceSource(blank.Image))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCloseTearsDownSession(t *testing.T) {
	h := newHarness(t, true, []detection.RawDetection{det("chair", 0.9, 100)})
	h.n.SetVoice(false)
	h.step(t, 0)

	h.n.Close()
	if h.n.VoiceEnabled() {
		t.Error("voice should be off after Close")
	}
	if labels := h.n.Session().Tracker().Labels(); len(labels) != 0 {
		t.Errorf("windows should be empty, have %v", labels)
	}
	if h.n.Session().ID == "" {
		t.Error("session should have an ID")
	}
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	boom := errors.New("window closed")
	failing := SinkFunc(func(*vision.Frame, []overlay.Annotation) error { return boom })

	err := MultiSink{a, failing, nil, b}.Render(blank, nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if a.frames != 1 || b.frames != 1 {
		t.Error("every sink should be called")
	}
}
