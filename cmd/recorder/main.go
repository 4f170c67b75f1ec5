package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kepler-recorder-go/internal/api"
	"kepler-recorder-go/internal/config"
	"kepler-recorder-go/internal/logging"
	"kepler-recorder-go/internal/models"
	"kepler-recorder-go/internal/services"
	"kepler-recorder-go/internal/services/recorder"
)

type Args struct {
	Once     bool          `arg:"--once" help:"record a single session and exit, overrides LOOP"`
	Loop     bool          `arg:"--loop" help:"record sessions back to back until interrupted"`
	Serve    bool          `arg:"--serve" help:"start the HTTP API and wait for recording requests"`
	Duration time.Duration `arg:"-d,--duration" help:"session duration, overrides RECORD_DURATION"`
	Mode     string        `arg:"-m,--mode" help:"capture mode: stream or poll, overrides CAPTURE_MODE"`
	Cameras  []string      `arg:"-c,--cameras,separate" help:"camera to record, repeatable, overrides CAMERAS"`
}

func (Args) Description() string {
	return "Records the MJPEG streams of every camera of the inference service into one video file per camera."
}

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	console := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = log.Output(console)

	var args Args
	arg.MustParse(&args)

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogdyEnabled {
		if w, _, err := logging.StartLogdy(cfg); err != nil {
			log.Warn().Err(err).Msg("Logdy disabled")
		} else {
			log.Logger = log.Output(zerolog.MultiLevelWriter(console, w))
		}
	}

	if err := run(cfg, args); err != nil {
		var setupErr *recorder.SetupError
		if errors.As(err, &setupErr) {
			log.Error().Err(err).Msg("Recording could not be set up")
			os.Exit(1)
		}
		log.Error().Err(err).Msg("Recorder stopped with error")
	}
}

func run(cfg *config.Config, args Args) error {
	log.Info().
		Str("instance_id", cfg.InstanceID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Str("upstream", cfg.UpstreamURL).
		Str("output_dir", cfg.VideoOutputDir).
		Msg("Starting Kepler Recorder")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc, err := services.NewServiceContainer(cfg)
	if err != nil {
		return err
	}
	rec := sc.Recorder

	var server *api.Server
	serve := args.Serve || cfg.APIEnabled
	if serve {
		apiDeps := api.Deps{Recorder: rec, Disk: sc.Store}
		if sc.Catalog != nil {
			apiDeps.Sessions = sc.Catalog
		}
		server = api.NewServer(ctx, cfg, apiDeps)
		if err := server.Setup(); err != nil {
			sc.Shutdown(context.Background())
			return err
		}
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("API server failed")
				cancel()
			}
		}()
	}

	interrupted := make(chan struct{})
	quit := make(chan os.Signal, 2)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	go func() {
		<-quit
		log.Info().Msg("Shutdown signal received, finalizing recordings")
		rec.Stop()
		close(interrupted)

		<-quit
		log.Warn().Msg("Second signal received, aborting")
		cancel()
	}()

	opts := recorder.Options{
		Cameras:  args.Cameras,
		Duration: args.Duration,
		Mode:     models.CaptureMode(args.Mode),
	}

	loop := (args.Loop || cfg.Loop) && !args.Once

	var runErr error
	switch {
	case loop:
		runErr = rec.Loop(ctx, opts)
	case serve && !args.Once:
		select {
		case <-interrupted:
		case <-ctx.Done():
		}
		waitIdle(ctx, rec)
	default:
		_, runErr = rec.Run(ctx, opts)
	}

	if errors.Is(runErr, recorder.ErrStopped) {
		log.Info().Msg("Stopped before a session started")
		runErr = nil
	}

	shutdown(cfg, server, sc)
	return runErr
}

// waitIdle blocks until a session started over the API has finalized.
func waitIdle(ctx context.Context, rec *recorder.Service) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for rec.Status().Running {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func shutdown(cfg *config.Config, server *api.Server, sc *services.ServiceContainer) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	}
	if err := sc.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Services forced to shutdown")
	} else {
		log.Info().Msg("Recorder shutdown complete")
	}
}
