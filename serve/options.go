package serve

import (
	"fmt"
	"io/fs"

	"github.com/zentinelproxy/zentinel-agent-go/agent"
	"github.com/zentinelproxy/zentinel-agent-go/internal/defaults"
	"github.com/zentinelproxy/zentinel-agent-go/observability"
)

// Option configures a Server. Omit an option to use the library default.
type Option func(*options) error

type options struct {
	failureMode     agent.FailureMode
	protocolVersion int
	maxFrameBytes   int
	socketMode      fs.FileMode
	observer        observability.SessionObserver
}

func applyOptions(opts []Option) (options, error) {
	cfg := options{
		failureMode:     agent.FailOpen,
		protocolVersion: defaults.ProtocolVersion,
		maxFrameBytes:   defaults.MaxFrameBytes,
		socketMode:      0o660,
		observer:        observability.NoopSessionObserver,
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

// WithFailureMode selects the decision substituted on callback fault.
func WithFailureMode(m agent.FailureMode) Option {
	return func(cfg *options) error {
		if m != agent.FailOpen && m != agent.FailClosed {
			return fmt.Errorf("invalid failure mode %q", m)
		}
		cfg.failureMode = m
		return nil
	}
}

// WithProtocolVersion pins the protocol version; 1 disables the handshake.
func WithProtocolVersion(v int) Option {
	return func(cfg *options) error {
		if v < 1 || v > defaults.ProtocolVersion {
			return fmt.Errorf("unsupported protocol version %d", v)
		}
		cfg.protocolVersion = v
		return nil
	}
}

// WithMaxFrameBytes bounds inbound event frames.
func WithMaxFrameBytes(n int) Option {
	return func(cfg *options) error {
		if n <= 0 {
			return fmt.Errorf("max frame bytes must be > 0")
		}
		cfg.maxFrameBytes = n
		return nil
	}
}

// WithSocketMode sets the unix socket file mode; 0 keeps the umask result.
func WithSocketMode(mode fs.FileMode) Option {
	return func(cfg *options) error {
		cfg.socketMode = mode
		return nil
	}
}

// WithObserver attaches a metrics observer to every session.
func WithObserver(obs observability.SessionObserver) Option {
	return func(cfg *options) error {
		if obs == nil {
			obs = observability.NoopSessionObserver
		}
		cfg.observer = obs
		return nil
	}
}
