// Package grpc exposes the standard gRPC health service so orchestrators can
// probe the server. Serving status follows database reachability.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall "".
const ServiceName = "talkboard"

const (
	defaultProbeInterval = 10 * time.Second
	probeTimeout         = 3 * time.Second
)

// Pinger reports whether a dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthServer struct {
	address  string
	db       Pinger
	logger   logging.Logger
	health   *health.Server
	interval time.Duration
}

func NewHealthServer(address string, db Pinger, l logging.Logger) *HealthServer {
	return &HealthServer{
		address:  address,
		db:       db,
		logger:   l.With("module", "grpc_health"),
		health:   health.NewServer(),
		interval: defaultProbeInterval,
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *HealthServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.probe(ctx)
	go s.probeLoop(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC health server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC health server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}

func (s *HealthServer) probeLoop(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.probe(ctx)
		}
	}
}

func (s *HealthServer) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := s.db.PingContext(pctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn(ctx, "database unreachable", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
