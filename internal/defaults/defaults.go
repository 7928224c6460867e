// Package defaults centralizes the engine's protocol limits and versions.
package defaults

import "time"

const (
	// ProtocolVersion is the version spoken when the runner does not pin one.
	ProtocolVersion = 2

	// MaxFrameBytes bounds a single inbound event frame.
	MaxFrameBytes = 1 << 20

	// MaxHelloBytes bounds the handshake frame, which is always small.
	MaxHelloBytes = 8 * 1024

	// ShutdownTimeout bounds the OnShutdown hook when the runner stops.
	ShutdownTimeout = 5 * time.Second
)
