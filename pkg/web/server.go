// Package web exposes the narrator's controls and a live annotated preview
// over HTTP and websockets.
package web

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-narrator/pkg/describe"
	"github.com/teslashibe/go-narrator/pkg/hub"
	"github.com/teslashibe/go-narrator/pkg/narrator"
	"github.com/teslashibe/go-narrator/pkg/overlay"
	"github.com/teslashibe/go-narrator/pkg/preview"
	"github.com/teslashibe/go-narrator/pkg/vision"
)

const snapshotMaxAge = time.Second

// Controls is what the web API drives. *narrator.Controller implements it.
type Controls interface {
	Start() error
	Stop()
	Running() bool
	VoiceEnabled() bool
	ToggleVoice() bool
	SetVoice(on bool)
	SessionID() string
}

// Status is the snapshot served by /api/status and pushed on /ws/status.
type Status struct {
	Session          string    `json:"session"`
	Running          bool      `json:"running"`
	VoiceEnabled     bool      `json:"voice_enabled"`
	Frame            uint64    `json:"frame"`
	Labels           []string  `json:"labels"`
	Summary          string    `json:"summary"`
	LastAnnouncement string    `json:"last_announcement,omitempty"`
	AnnouncedAt      time.Time `json:"announced_at,omitzero"`
	SpeechError      string    `json:"speech_error,omitempty"`
	PreviewClients   int       `json:"preview_clients"`
	// Live is true while both websocket hubs are running.
	Live bool `json:"live"`
}

// Detections is served by /api/detections.
type Detections struct {
	Frame      uint64               `json:"frame"`
	Counts     []describe.Entry     `json:"counts"`
	Tracking   []describe.Entry     `json:"tracking"`
	Detections []narrator.Detection `json:"detections"`
}

// Config configures the server.
type Config struct {
	Port    string
	Preview preview.Config
	Style   overlay.Style
	Logger  *slog.Logger
}

// Server serves the control API and the preview stream.
type Server struct {
	app      *fiber.App
	port     string
	controls Controls
	logger   *slog.Logger

	renderer *overlay.Renderer
	encoder  *preview.Encoder

	mu          sync.RWMutex
	latest      narrator.Result
	lastSpoken  string
	spokenAt    time.Time
	speechErr   string
	lastPreview []byte
	previewAt   time.Time

	statusHub *hub.Hub
	cameraHub *hub.Hub
}

// NewServer builds the fiber app and its routes.
func NewServer(cfg Config, controls Controls) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:      cfg.Port,
		controls:  controls,
		logger:    logger.With("component", "web"),
		renderer:  overlay.NewRenderer(cfg.Style),
		encoder:   preview.NewEncoder(cfg.Preview),
		statusHub: hub.New("status", hub.Options{Replay: true, Logger: logger}),
		cameraHub: hub.New("camera", hub.Options{Replay: true, ClientBuffer: 8, Logger: logger}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Narrator",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/detections", s.handleDetections)
	api.Get("/preview", s.handlePreview)
	api.Post("/voice/toggle", s.handleToggleVoice)
	api.Put("/voice", s.handleSetVoice)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/camera", websocket.New(s.serveHub(s.cameraHub)))
	app.Get("/ws/status", websocket.New(s.serveHub(s.statusHub)))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and serves on the configured port until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("shutdown failed", "error", err)
		}
	}()

	s.logger.Info("control surface listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Render implements narrator.Sink: it encodes a scaled preview and pushes
// it to /ws/camera. Frames are skipped while nobody is watching.
func (s *Server) Render(frame *vision.Frame, anns []overlay.Annotation) error {
	if frame == nil || frame.Image == nil {
		return nil
	}
	if s.cameraHub.ClientCount() == 0 && !s.snapshotStale() {
		return nil
	}

	data, err := s.encoder.Encode(s.renderer.Render(frame.Image, anns))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastPreview = data
	s.previewAt = time.Now()
	s.mu.Unlock()

	s.cameraHub.BroadcastBinary(data)
	return nil
}

// snapshotStale keeps /api/preview at most snapshotMaxAge behind while no
// websocket client is connected.
func (s *Server) snapshotStale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPreview == nil || time.Since(s.previewAt) > snapshotMaxAge
}

// Publish records a frame result and pushes the new status.
// Pass it to narrator.WithResultHook.
func (s *Server) Publish(res narrator.Result) {
	s.mu.Lock()
	s.latest = res
	if res.Announcement != "" {
		s.lastSpoken = res.Announcement
		s.spokenAt = res.At
		s.speechErr = ""
		if res.SpeechErr != nil {
			s.speechErr = res.SpeechErr.Error()
		}
	}
	s.mu.Unlock()

	s.pushStatus()
}

func (s *Server) pushStatus() {
	if err := s.statusHub.BroadcastJSON(s.Status()); err != nil {
		s.logger.Warn("status broadcast failed", "error", err)
	}
}

// Status returns the current snapshot.
func (s *Server) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := s.latest.Labels
	if labels == nil {
		labels = []string{}
	}
	return Status{
		Session:          s.controls.SessionID(),
		Running:          s.controls.Running(),
		VoiceEnabled:     s.controls.VoiceEnabled(),
		Frame:            s.latest.Seq,
		Labels:           labels,
		Summary:          s.latest.Summary,
		LastAnnouncement: s.lastSpoken,
		AnnouncedAt:      s.spokenAt,
		SpeechError:      s.speechErr,
		PreviewClients:   s.cameraHub.ClientCount(),
		Live:             s.statusHub.IsRunning() && s.cameraHub.IsRunning(),
	}
}

// Detections returns the latest frame's detections.
func (s *Server) Detections() Detections {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := s.latest.Counts.Entries()
	if counts == nil {
		counts = []describe.Entry{}
	}
	tracking := s.latest.Tracking
	if tracking == nil {
		tracking = []describe.Entry{}
	}
	dets := s.latest.Detections
	if dets == nil {
		dets = []narrator.Detection{}
	}
	return Detections{Frame: s.latest.Seq, Counts: counts, Tracking: tracking, Detections: dets}
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
