package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-narrator/pkg/hub"
	"github.com/teslashibe/go-narrator/pkg/narrator"
)

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

func (s *Server) handleDetections(c *fiber.Ctx) error {
	return c.JSON(s.Detections())
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	s.mu.RLock()
	data := s.lastPreview
	s.mu.RUnlock()

	if data == nil {
		return c.Status(fiber.StatusNoContent).Send(nil)
	}
	c.Set(fiber.HeaderContentType, s.encoder.Config().Format.MIME())
	return c.Send(data)
}

// VoiceRequest is the body of PUT /api/voice.
type VoiceRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleToggleVoice(c *fiber.Ctx) error {
	on := s.controls.ToggleVoice()
	s.pushStatus()
	return c.JSON(fiber.Map{"voice_enabled": on})
}

func (s *Server) handleSetVoice(c *fiber.Ctx) error {
	var req VoiceRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": `body must be {"enabled": true|false}`,
		})
	}
	s.controls.SetVoice(*req.Enabled)
	s.pushStatus()
	return c.JSON(fiber.Map{"voice_enabled": s.controls.VoiceEnabled()})
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	err := s.controls.Start()
	switch {
	case errors.Is(err, narrator.ErrAlreadyRunning):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		s.logger.Error("start failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.pushStatus()
	return c.JSON(fiber.Map{"running": true})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	s.controls.Stop()
	s.pushStatus()
	return c.JSON(fiber.Map{"stopping": true})
}

func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.Register(h, conn)
		if client == nil {
			return
		}
		client.Serve()
	}
}
