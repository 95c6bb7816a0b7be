// Package web serves the spectrum over HTTP and websocket.
//
// The server polls the engine at its own refresh rate; it never waits on
// capture. JSON endpoints expose the current frame, connection status and
// start/stop control; /ws/spectrum pushes frames to every connected client
// through a broadcast hub.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/dittyapp/ditty/pkg/connector"
	"github.com/dittyapp/ditty/pkg/hub"
	"github.com/dittyapp/ditty/pkg/visualizer"
)

// Bar count limits for the bars query parameter.
const (
	MinBars = 8
	MaxBars = 128
)

// Config holds web server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`

	// RefreshRate is how often (Hz) frames are pushed to websocket clients.
	RefreshRate float64 `mapstructure:"refresh_rate" yaml:"refresh_rate" json:"refresh_rate"`

	// Bars is the default number of bars per frame when a request does not
	// give ?bars=N. Zero sends every band.
	Bars int `mapstructure:"bars" yaml:"bars" json:"bars"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:8765",
		RefreshRate: 60,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.RefreshRate <= 0 || c.RefreshRate > 240 {
		return fmt.Errorf("refresh_rate must be in (0, 240], got %v", c.RefreshRate)
	}
	if c.Bars != 0 && (c.Bars < MinBars || c.Bars > MaxBars) {
		return fmt.Errorf("bars must be 0 or in [%d, %d], got %d", MinBars, MaxBars, c.Bars)
	}
	return nil
}

// Engine is the part of the visualizer engine the server drives.
type Engine interface {
	Start()
	Stop()
	SpectrumInto(dst []float64) []float64
	State() connector.State
	Stats() visualizer.Stats
}

// Server is the HTTP and websocket front end.
type Server struct {
	cfg    Config
	engine Engine
	logger *slog.Logger

	app         *fiber.App
	spectrumHub *hub.Hub
}

// NewServer creates a server for engine.
func NewServer(cfg Config, engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	s := &Server{
		cfg:         cfg,
		engine:      engine,
		logger:      logger,
		spectrumHub: hub.New("spectrum", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "ditty",
		DisableStartupMessage: true,
	})

	// CORS for browser front ends served elsewhere
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/spectrum", s.handleSpectrum)
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)

	// WebSocket upgrade, ?bars=N picks the client's bar count
	app.Get("/ws/spectrum", s.upgradeSpectrum, websocket.New(s.handleSpectrumWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the spectrum broadcast hub.
func (s *Server) Hub() *hub.Hub {
	return s.spectrumHub
}

// Run serves on cfg.Addr until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("web server listening", "addr", ln.Addr().String())

	go s.spectrumHub.Run(ctx)
	go s.pushFrames(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// pushFrames broadcasts the current spectrum at the refresh rate while any
// client is connected. Each tick takes a fresh snapshot since clients encode
// it concurrently.
func (s *Server) pushFrames(ctx context.Context) {
	interval := time.Duration(float64(time.Second) / s.cfg.RefreshRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.spectrumHub.ClientCount() == 0 {
				continue
			}
			s.spectrumHub.Broadcast(s.snapshot())
		}
	}
}
