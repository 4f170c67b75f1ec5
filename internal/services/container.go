package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"kepler-recorder-go/internal/config"
	"kepler-recorder-go/internal/logging"
	"kepler-recorder-go/internal/services/catalog"
	"kepler-recorder-go/internal/services/codec"
	"kepler-recorder-go/internal/services/health"
	"kepler-recorder-go/internal/services/messaging"
	"kepler-recorder-go/internal/services/reconcile"
	"kepler-recorder-go/internal/services/recorder"
	"kepler-recorder-go/internal/services/storage"
	"kepler-recorder-go/internal/services/upstream"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config    *config.Config
	Upstream  *upstream.Client
	Store     *storage.Store
	Catalog   *catalog.Catalog // nil when disabled or unavailable
	Publisher messaging.Publisher
	Health    *health.Service // nil unless GRPC_HEALTH_PORT is set
	Recorder  *recorder.Service
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	sc := &ServiceContainer{
		Config: cfg,
		Upstream: upstream.New(upstream.Options{
			BaseURL:        cfg.UpstreamURL,
			ConfigPath:     cfg.UpstreamConfigPath,
			Timeout:        cfg.UpstreamTimeout,
			ConnectTimeout: cfg.StreamConnectTimeout,
		}),
		Store:     storage.New(cfg.VideoOutputDir),
		Publisher: messaging.NewPublisher(cfg),
	}

	deps := recorder.Deps{
		Upstream:  sc.Upstream,
		Decoder:   codec.Decoder{},
		Sinks:     codec.WriterFactory{Codec: cfg.VideoCodec},
		Store:     sc.Store,
		Publisher: sc.Publisher,
	}

	if cfg.ReconcileEnabled {
		deps.Reconciler = reconcile.New(cfg.FFmpegBin, cfg.ReconcileTimeout, logging.NewServiceLogger(cfg, "reconcile"))
	}

	// The catalog is optional; recordings still land on disk without it
	if cfg.CatalogPath != "" {
		cat, err := catalog.New(cfg.CatalogPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.CatalogPath).Msg("Session catalog unavailable")
		} else {
			sc.Catalog = cat
			deps.Catalog = cat
		}
	}

	if cfg.GRPCHealthPort > 0 {
		hs, err := health.NewService(cfg.GRPCHealthPort)
		if err != nil {
			sc.Shutdown(context.Background())
			return nil, err
		}
		hs.Start()
		sc.Health = hs
		deps.Health = hs
	}

	sc.Recorder = recorder.NewService(cfg, deps)

	return sc, nil
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var firstErr error

	if sc.Health != nil {
		if err := sc.Health.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Health server forced to shutdown")
			firstErr = err
		}
	}

	if sc.Publisher != nil {
		if err := sc.Publisher.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if sc.Catalog != nil {
		if err := sc.Catalog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
