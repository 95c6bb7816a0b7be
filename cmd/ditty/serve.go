package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dittyapp/ditty/internal/log"
	"github.com/dittyapp/ditty/pkg/connector"
	"github.com/dittyapp/ditty/pkg/visualizer"
	"github.com/dittyapp/ditty/pkg/web"
)

var serveNoStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Capture audio and serve the spectrum",
	Long: `Start the engine and the web server. Capture begins immediately unless
--no-start is given, in which case POST /api/start begins it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	f := serveCmd.Flags()
	f.String("backend", "", "audio backend: auto, portaudio, synthetic, file, mock")
	f.String("target", "", "name of the application to tap")
	f.String("device", "", "loopback input device name (portaudio)")
	f.String("file", "", "WAV file to replay (file backend)")
	f.Int("bars", 0, "bars per websocket frame (8-128, 0 for all bands)")
	f.String("scale", "", "magnitude scale: amplitude or decibel")
	f.Duration("retry", 0, "interval between connection attempts")
	f.BoolVar(&serveNoStart, "no-start", false, "wait for POST /api/start before capturing")
}

func serve(ctx context.Context) error {
	logger := log.With("component", "serve")

	engine, err := visualizer.NewFromConfig(cfg.Engine, log.L(),
		connector.WithStateObserver(func(from, to connector.State) {
			logger.Info("capture state", "from", from, "to", to)
		}))
	if err != nil {
		return err
	}
	defer engine.Close()

	server := web.NewServer(cfg.Web, engine, log.L())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		engine.Stop()
		return nil
	})

	if !serveNoStart {
		engine.Start()
	}
	logger.Info("ditty running",
		"version", version,
		"target", cfg.Engine.Source.Target,
		"backend", cfg.Engine.Source.Backend,
		"addr", cfg.Web.Addr)

	err = g.Wait()
	logger.Info("ditty stopped", "frames", engine.Stats().Frames)
	return err
}
