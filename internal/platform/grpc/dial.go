// Package grpc holds the gRPC plumbing encore uses for its health surface.
package grpc

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultClientDialOptions returns plaintext options with trace propagation.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// DialWithHealth opens a client for addr and waits until its health check
// for service reports SERVING. The connection is closed on failure.
func DialWithHealth(ctx context.Context, addr string, service string, logf func(string, ...any), opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("gRPC address is required")
	}
	if len(opts) == 0 {
		opts = DefaultClientDialOptions()
	}
	conn, err := gogrpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := WaitForHealth(ctx, conn, service, logf); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
