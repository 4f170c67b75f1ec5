// Package health exposes the standard gRPC health protocol so orchestrators
// can probe the recorder without the HTTP API.
package health

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RecorderService is the service name whose status follows recording health.
const RecorderService = "recorder"

type Service struct {
	server *grpc.Server
	health *grpchealth.Server
	lis    net.Listener
}

// NewService listens on port (0 picks a free one) and registers the health
// service. Both the overall and the recorder status start as SERVING.
func NewService(port int) (*Service, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen grpc health: %w", err)
	}

	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(RecorderService, healthpb.HealthCheckResponse_SERVING)

	return &Service{server: srv, health: hs, lis: lis}, nil
}

// Addr returns the bound address.
func (s *Service) Addr() string {
	return s.lis.Addr().String()
}

// Start serves in the background.
func (s *Service) Start() {
	go func() {
		log.Info().Str("addr", s.Addr()).Msg("Starting gRPC health server")
		if err := s.server.Serve(s.lis); err != nil && err != grpc.ErrServerStopped {
			log.Error().Err(err).Msg("gRPC health server failed")
		}
	}()
}

// SetRecorderServing flips the recorder service status.
func (s *Service) SetRecorderServing(ok bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(RecorderService, status)
}

// Shutdown marks everything NOT_SERVING and stops the server, forcing it
// when ctx expires first.
func (s *Service) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}
