package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"kepler-recorder-go/internal/api/handlers"
	"kepler-recorder-go/internal/config"
)

// Deps are the services the HTTP API reads and controls. Sessions may be
// nil when the catalog is disabled.
type Deps struct {
	Recorder handlers.Recorder
	Sessions handlers.SessionStore
	Disk     handlers.DiskUsage
}

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server

	healthHandler    *handlers.HealthHandler
	recordingHandler *handlers.RecordingHandler
	sessionHandler   *handlers.SessionHandler
	systemHandler    *handlers.SystemHandler
}

// NewServer builds the API. Recordings started over HTTP run under baseCtx.
func NewServer(baseCtx context.Context, cfg *config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		config:           cfg,
		router:           router,
		healthHandler:    handlers.NewHealthHandler(cfg.InstanceID, cfg.Version),
		recordingHandler: handlers.NewRecordingHandler(baseCtx, deps.Recorder),
		sessionHandler:   handlers.NewSessionHandler(deps.Sessions, cfg.CatalogListLimit),
		systemHandler:    handlers.NewSystemHandler(cfg.InstanceID, deps.Disk),
	}
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	return nil
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting recorder API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping recorder API")
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
