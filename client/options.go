package client

import (
	"fmt"

	"github.com/zentinelproxy/zentinel-agent-go/framing"
	"github.com/zentinelproxy/zentinel-agent-go/internal/defaults"
)

// Option configures a proxy-side connection. Omit an option to use the
// library default.
type Option func(*options) error

type options struct {
	name          string
	version       int
	maxFrameBytes int
}

func applyOptions(opts []Option) (options, error) {
	cfg := options{
		name:          "zentinel",
		version:       defaults.ProtocolVersion,
		maxFrameBytes: framing.DefaultMaxFrameBytes,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return options{}, err
		}
	}
	return cfg, nil
}

// WithName sets the proxy name announced in the v2 hello.
func WithName(name string) Option {
	return func(cfg *options) error {
		cfg.name = name
		return nil
	}
}

// WithProtocolVersion pins the protocol version; 1 disables the handshake.
func WithProtocolVersion(v int) Option {
	return func(cfg *options) error {
		if v < 1 {
			return fmt.Errorf("protocol version must be >= 1")
		}
		cfg.version = v
		return nil
	}
}

// WithMaxFrameBytes bounds inbound response frames.
func WithMaxFrameBytes(n int) Option {
	return func(cfg *options) error {
		if n <= 0 {
			return fmt.Errorf("max frame bytes must be > 0")
		}
		cfg.maxFrameBytes = n
		return nil
	}
}
