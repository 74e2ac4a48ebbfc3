// Package health exposes the cluster producer's readiness gate through the
// standard gRPC health checking protocol.
package health

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the producer.
const ServiceName = "pixelreco.ClusterProducer"

// Gate is the readiness view the health service reports.
type Gate interface {
	Ready() bool
}

// Server serves grpc.health.v1.Health. Both the producer service and the
// overall ("") status follow the gate: SERVING when ready, NOT_SERVING
// otherwise.
type Server struct {
	hs   *grpchealth.Server
	gate Gate
	grpc *grpc.Server
}

// NewServer returns a health server reflecting gate's current state.
func NewServer(gate Gate) *Server {
	s := &Server{hs: grpchealth.NewServer(), gate: gate}
	s.Refresh()
	return s
}

// Refresh re-reads the gate and publishes the resulting status.
func (s *Server) Refresh() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.gate != nil && s.gate.Ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.hs.SetServingStatus(ServiceName, status)
	s.hs.SetServingStatus("", status)
	return status
}

// Register adds the health service to an existing gRPC server.
func (s *Server) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, s.hs)
}

// Serve runs a dedicated gRPC server on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.grpc = grpc.NewServer()
	s.Register(s.grpc)

	errc := make(chan error, 1)
	go func() {
		log.Printf("[Health] gRPC health server listening on %s", lis.Addr())
		errc <- s.grpc.Serve(lis)
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Watchers see NOT_SERVING before the connection closes.
	s.hs.Shutdown()
	s.grpc.GracefulStop()
	<-errc
	log.Printf("[Health] gRPC health server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, lis)
}
