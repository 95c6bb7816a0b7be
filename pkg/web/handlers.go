package web

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/dittyapp/ditty/pkg/connector"
	"github.com/dittyapp/ditty/pkg/hub"
	"github.com/dittyapp/ditty/pkg/spectrum"
	"github.com/dittyapp/ditty/pkg/visualizer"
)

// barsKey is the fiber local carrying a websocket client's bar count.
const barsKey = "bars"

// Frame is one spectrum frame as served to clients.
type Frame struct {
	Bands []float64       `json:"bands"`
	State connector.State `json:"state"`
	Time  int64           `json:"time"`
}

// Encode renders f reduced to bars bars. It never modifies f.
func (f Frame) Encode(bars int) ([]byte, error) {
	if bars > 0 {
		f.Bands = spectrum.Downsample(nil, f.Bands, bars)
	}
	return json.Marshal(f)
}

var _ hub.Frame = Frame{}

// Status is the response of GET /api/status.
type Status struct {
	State   connector.State  `json:"state"`
	Engine  visualizer.Stats `json:"engine"`
	Clients int              `json:"clients"`
}

// snapshot copies the current spectrum into a new frame.
func (s *Server) snapshot() Frame {
	return Frame{
		Bands: s.engine.SpectrumInto(nil),
		State: s.engine.State(),
		Time:  time.Now().UnixMilli(),
	}
}

// queryBars reads ?bars=N, defaulting to the configured bar count.
func (s *Server) queryBars(c *fiber.Ctx) (int, error) {
	raw := c.Query("bars")
	if raw == "" {
		return s.cfg.Bars, nil
	}
	bars, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("bars must be an integer, got %q", raw))
	}
	if bars != 0 && (bars < MinBars || bars > MaxBars) {
		return 0, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("bars must be between %d and %d", MinBars, MaxBars))
	}
	return bars, nil
}

// handleSpectrum returns the current spectrum, optionally reduced to ?bars=N
func (s *Server) handleSpectrum(c *fiber.Ctx) error {
	bars, err := s.queryBars(c)
	if err != nil {
		return err
	}

	f := s.snapshot()
	if bars > 0 {
		f.Bands = spectrum.Downsample(nil, f.Bands, bars)
	}
	return c.JSON(f)
}

// handleStatus returns connection state and statistics
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(Status{
		State:   s.engine.State(),
		Engine:  s.engine.Stats(),
		Clients: s.spectrumHub.ClientCount(),
	})
}

// handleStart begins capture; acquisition continues in the background
func (s *Server) handleStart(c *fiber.Ctx) error {
	s.engine.Start()
	s.logger.Info("capture start requested", "remote", c.IP())
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"state": s.engine.State(),
	})
}

// handleStop ends capture
func (s *Server) handleStop(c *fiber.Ctx) error {
	s.engine.Stop()
	s.logger.Info("capture stop requested", "remote", c.IP())
	return c.JSON(fiber.Map{
		"state": s.engine.State(),
	})
}

// upgradeSpectrum validates the websocket request before the upgrade
func (s *Server) upgradeSpectrum(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	bars, err := s.queryBars(c)
	if err != nil {
		return err
	}
	c.Locals(barsKey, bars)
	return c.Next()
}

// handleSpectrumWS streams frames to a websocket client
func (s *Server) handleSpectrumWS(conn *websocket.Conn) {
	bars, _ := conn.Locals(barsKey).(int)
	client, err := hub.NewClient(s.spectrumHub, conn, bars)
	if err != nil {
		s.logger.Debug("websocket rejected", "error", err)
		conn.Close()
		return
	}
	client.Run()
}
