// Package session owns one transport connection's lifecycle: the optional v2
// capability handshake, the strictly sequential event loop, and teardown.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/zentinelproxy/zentinel-agent-go/agenterrors"
	"github.com/zentinelproxy/zentinel-agent-go/dispatch"
	"github.com/zentinelproxy/zentinel-agent-go/framing"
	"github.com/zentinelproxy/zentinel-agent-go/internal/defaults"
	"github.com/zentinelproxy/zentinel-agent-go/observability"
	"github.com/zentinelproxy/zentinel-agent-go/protocol"
)

// State is the session lifecycle position. Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateHandshaking
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config carries the immutable per-session settings.
type Config struct {
	// ProtocolVersion selects the handshake: 1 skips it, 2 exchanges
	// capabilities before the first event.
	ProtocolVersion int
	// Hello is the capability payload sent during the v2 handshake.
	Hello protocol.CapabilityHello
	// MaxFrameBytes bounds inbound frames; 0 uses the library default.
	MaxFrameBytes int
	// MaxHelloBytes bounds the handshake frame; 0 uses the library default.
	MaxHelloBytes int
	// Observer receives session telemetry; nil means no-op.
	Observer observability.SessionObserver
}

// Session drives one connection. Exactly one dispatch-decide-respond cycle
// runs per accepted frame; the next frame is not read until the previous
// response is fully written.
type Session struct {
	id    string
	conn  FrameConn
	disp  *dispatch.Dispatcher
	cfg   Config
	state atomic.Int32

	closeOnce sync.Once
	closeErr  error
}

// New prepares a session in the Connecting state.
func New(id string, conn FrameConn, d *dispatch.Dispatcher, cfg Config) *Session {
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = defaults.ProtocolVersion
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = defaults.MaxFrameBytes
	}
	if cfg.MaxHelloBytes <= 0 {
		cfg.MaxHelloBytes = defaults.MaxHelloBytes
	}
	if cfg.Observer == nil {
		cfg.Observer = observability.NoopSessionObserver
	}
	return &Session{id: id, conn: conn, disp: d, cfg: cfg}
}

// ID returns the listener-assigned session identifier.
func (s *Session) ID() string { return s.id }

// State reports the current lifecycle state. Safe to call from any goroutine.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Run executes the session to completion. It returns nil on an orderly peer
// disconnect and a structured error otherwise. Cancelling ctx closes the
// transport, which is the only cancellation signal; a running callback is
// never interrupted mid-event.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
		case <-done:
		}
	}()

	obs := s.cfg.Observer
	if s.cfg.ProtocolVersion >= 2 {
		s.setState(StateHandshaking)
		if err := s.handshake(); err != nil {
			s.setState(StateClosing)
			obs.SessionClosed(observability.CloseReasonHandshakeFailed)
			return err
		}
	}
	s.setState(StateReady)

	for {
		payload, err := s.conn.ReadPayload(s.cfg.MaxFrameBytes)
		if err != nil {
			s.setState(StateClosing)
			if ctx.Err() != nil {
				obs.SessionClosed(observability.CloseReasonShutdown)
				return ctx.Err()
			}
			if agenterrors.IsClean(err) {
				obs.SessionClosed(observability.CloseReasonPeerClosed)
				return nil
			}
			obs.FrameError(observability.FrameRead)
			if errors.Is(err, framing.ErrFrameTooLarge) {
				obs.SessionClosed(observability.CloseReasonFrameTooLarge)
			} else {
				obs.SessionClosed(observability.CloseReasonStreamError)
			}
			return agenterrors.Wrap(agenterrors.StageRead, agenterrors.ClassifyReadCode(err), err)
		}

		ev, err := protocol.DecodeEvent(payload)
		if err != nil {
			s.setState(StateClosing)
			obs.SessionClosed(observability.CloseReasonDecodeError)
			return agenterrors.Wrap(agenterrors.StageDecode, agenterrors.CodeDecodeFailed, err)
		}

		resp := s.disp.Dispatch(ctx, ev)
		b, err := json.Marshal(resp)
		if err != nil {
			s.setState(StateClosing)
			obs.SessionClosed(observability.CloseReasonWriteError)
			return agenterrors.Wrap(agenterrors.StageWrite, agenterrors.CodeEncodeFailed, err)
		}
		if err := s.conn.WritePayload(b); err != nil {
			s.setState(StateClosing)
			if ctx.Err() != nil {
				obs.SessionClosed(observability.CloseReasonShutdown)
				return ctx.Err()
			}
			obs.FrameError(observability.FrameWrite)
			obs.SessionClosed(observability.CloseReasonWriteError)
			return agenterrors.Wrap(agenterrors.StageWrite, agenterrors.ClassifyWriteCode(err), err)
		}
	}
}

// handshake runs the v2 capability exchange: the proxy speaks first with its
// hello, the agent answers with the declared capability set.
func (s *Session) handshake() error {
	obs := s.cfg.Observer
	payload, err := s.conn.ReadPayload(s.cfg.MaxHelloBytes)
	if err != nil {
		obs.Handshake(observability.HandshakeResultFrameError)
		return agenterrors.Wrap(agenterrors.StageHandshake, agenterrors.ClassifyReadCode(err), err)
	}
	hello, err := protocol.DecodeProxyHello(payload)
	if err != nil {
		obs.Handshake(observability.HandshakeResultBadHello)
		return agenterrors.Wrap(agenterrors.StageHandshake, agenterrors.CodeBadHello, err)
	}
	if hello.V != s.cfg.ProtocolVersion {
		obs.Handshake(observability.HandshakeResultUnsupportedVersion)
		return agenterrors.Wrap(agenterrors.StageHandshake, agenterrors.CodeUnsupportedVersion,
			errors.New("proxy hello version mismatch"))
	}
	b, err := json.Marshal(s.cfg.Hello)
	if err != nil {
		obs.Handshake(observability.HandshakeResultFrameError)
		return agenterrors.Wrap(agenterrors.StageHandshake, agenterrors.CodeEncodeFailed, err)
	}
	if err := s.conn.WritePayload(b); err != nil {
		obs.Handshake(observability.HandshakeResultFrameError)
		return agenterrors.Wrap(agenterrors.StageHandshake, agenterrors.ClassifyWriteCode(err), err)
	}
	obs.Handshake(observability.HandshakeResultOK)
	return nil
}

// Close flushes nothing (writes are synchronous), releases the transport, and
// moves the session to its terminal state. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		s.closeErr = s.conn.Close()
		s.setState(StateClosed)
	})
	return s.closeErr
}
