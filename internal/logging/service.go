package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kepler-recorder-go/internal/config"
)

// NewServiceLogger returns the global logger tagged with the instance and service name.
func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("instance_id", cfg.InstanceID).Str("service", service).Logger()
}

// WithCamera tags every line with the camera it concerns.
func WithCamera(base zerolog.Logger, camera string) zerolog.Logger {
	return base.With().Str("camera", camera).Logger()
}
