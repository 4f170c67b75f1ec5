package messaging

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"kepler-recorder-go/internal/config"
)

// Publisher sends JSON events. The recorder never fails because of it.
type Publisher interface {
	Publish(subject string, data interface{}) error
	IsConnected() bool
	Shutdown(ctx context.Context) error
}

type Service struct {
	conn *nats.Conn
	cfg  *config.Config
}

func NewService(cfg *config.Config) (*Service, error) {
	opts := []nats.Option{
		nats.Name("kepler-recorder-" + cfg.InstanceID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.NatsURL).Msg("NATS connection established")

	return &Service{
		conn: conn,
		cfg:  cfg,
	}, nil
}

// NewPublisher connects to NATS when enabled and falls back to a no-op
// publisher when disabled or unreachable.
func NewPublisher(cfg *config.Config) Publisher {
	if !cfg.NatsEnabled {
		return Noop{}
	}

	svc, err := NewService(cfg)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.NatsURL).Msg("NATS unavailable, recording events will not be published")
		return Noop{}
	}
	return svc
}

func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.conn.Publish(subject, payload)
}

func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn != nil {
		// Try graceful drain, fallback to immediate close
		if err := s.conn.Drain(); err != nil {
			log.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
			s.conn.Close()
		}
	}
	return nil
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(string, interface{}) error { return nil }
func (Noop) IsConnected() bool                 { return false }
func (Noop) Shutdown(context.Context) error    { return nil }
