// Package observability defines the metric observer seams for the agent
// engine. Library code never logs; it reports through a SessionObserver,
// which defaults to a no-op.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

type HandshakeResult string

const (
	HandshakeResultOK                 HandshakeResult = "ok"
	HandshakeResultBadHello           HandshakeResult = "bad_hello"
	HandshakeResultUnsupportedVersion HandshakeResult = "unsupported_version"
	HandshakeResultFrameError         HandshakeResult = "frame_error"
)

type EventResult string

const (
	EventResultOK            EventResult = "ok"
	EventResultDefault       EventResult = "default"
	EventResultCallbackFault EventResult = "callback_fault"
	EventResultConfigError   EventResult = "config_error"
)

type CloseReason string

const (
	CloseReasonPeerClosed      CloseReason = "peer_closed"
	CloseReasonFrameTooLarge   CloseReason = "frame_too_large"
	CloseReasonStreamError     CloseReason = "stream_error"
	CloseReasonDecodeError     CloseReason = "decode_error"
	CloseReasonWriteError      CloseReason = "write_error"
	CloseReasonHandshakeFailed CloseReason = "handshake_failed"
	CloseReasonShutdown        CloseReason = "shutdown"
)

type FrameDirection string

const (
	FrameRead  FrameDirection = "read"
	FrameWrite FrameDirection = "write"
)

type ConfigResult string

const (
	ConfigResultOK      ConfigResult = "ok"
	ConfigResultInvalid ConfigResult = "invalid"
)

// SessionObserver receives session- and dispatch-level metric events.
type SessionObserver interface {
	SessionCount(n int64)
	Handshake(result HandshakeResult)
	Event(eventType string, result EventResult, d time.Duration)
	Decision(action string)
	ConfigApply(result ConfigResult)
	FrameError(direction FrameDirection)
	SessionClosed(reason CloseReason)
}

type noopSessionObserver struct{}

func (noopSessionObserver) SessionCount(int64)                       {}
func (noopSessionObserver) Handshake(HandshakeResult)                {}
func (noopSessionObserver) Event(string, EventResult, time.Duration) {}
func (noopSessionObserver) Decision(string)                          {}
func (noopSessionObserver) ConfigApply(ConfigResult)                 {}
func (noopSessionObserver) FrameError(FrameDirection)                {}
func (noopSessionObserver) SessionClosed(CloseReason)                {}

// NoopSessionObserver is a zero-cost observer used when metrics are disabled.
var NoopSessionObserver SessionObserver = noopSessionObserver{}

// AtomicSessionObserver swaps its delegate at runtime, so a command can turn
// metrics on or off without restarting the listener.
type AtomicSessionObserver struct {
	once sync.Once
	v    atomic.Value
}

type sessionObserverHolder struct {
	obs SessionObserver
}

// NewAtomicSessionObserver returns an initialized atomic observer.
func NewAtomicSessionObserver() *AtomicSessionObserver {
	a := &AtomicSessionObserver{}
	a.once.Do(func() { a.v.Store(&sessionObserverHolder{obs: NoopSessionObserver}) })
	return a
}

// Set replaces the delegate, falling back to the no-op observer on nil.
func (a *AtomicSessionObserver) Set(obs SessionObserver) {
	if obs == nil {
		obs = NoopSessionObserver
	}
	a.once.Do(func() { a.v.Store(&sessionObserverHolder{obs: NoopSessionObserver}) })
	a.v.Store(&sessionObserverHolder{obs: obs})
}

func (a *AtomicSessionObserver) load() SessionObserver {
	a.once.Do(func() { a.v.Store(&sessionObserverHolder{obs: NoopSessionObserver}) })
	return a.v.Load().(*sessionObserverHolder).obs
}

func (a *AtomicSessionObserver) SessionCount(n int64) { a.load().SessionCount(n) }
func (a *AtomicSessionObserver) Handshake(result HandshakeResult) {
	a.load().Handshake(result)
}
func (a *AtomicSessionObserver) Event(eventType string, result EventResult, d time.Duration) {
	a.load().Event(eventType, result, d)
}
func (a *AtomicSessionObserver) Decision(action string)           { a.load().Decision(action) }
func (a *AtomicSessionObserver) ConfigApply(result ConfigResult)  { a.load().ConfigApply(result) }
func (a *AtomicSessionObserver) FrameError(dir FrameDirection)    { a.load().FrameError(dir) }
func (a *AtomicSessionObserver) SessionClosed(reason CloseReason) { a.load().SessionClosed(reason) }
