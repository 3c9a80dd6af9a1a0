// Package timeouts defines shared timeout constants used across encore
// boundaries.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long a server waits for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// Sponsor caps a single call to the transaction sponsor backend.
const Sponsor = 10 * time.Second
