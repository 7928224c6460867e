// Package agent defines the surface an agent implementation presents to the
// protocol engine: the callback interface, the capability declaration, and
// the failure-mode policy applied when callbacks fault.
package agent

import (
	"context"
	"time"

	"github.com/zentinelproxy/zentinel-agent-go/protocol"
)

// FailureMode selects the decision substituted when a callback faults.
type FailureMode string

const (
	// FailOpen substitutes an Allow decision on callback fault.
	FailOpen FailureMode = "open"
	// FailClosed substitutes a Block decision with DefaultBlockStatus.
	FailClosed FailureMode = "closed"
)

// DefaultBlockStatus is the deterministic status used for fail-closed blocks.
const DefaultBlockStatus = 500

// Completion summarizes a finished request for request_complete events.
type Completion struct {
	Request  *protocol.Request
	Status   int
	Duration time.Duration
}

// HealthStatus is an agent's self-reported health.
type HealthStatus struct {
	State   protocol.HealthState
	Message string
}

func Healthy() HealthStatus { return HealthStatus{State: protocol.HealthHealthy} }

func Degraded(msg string) HealthStatus {
	return HealthStatus{State: protocol.HealthDegraded, Message: msg}
}

func Unhealthy(msg string) HealthStatus {
	return HealthStatus{State: protocol.HealthUnhealthy, Message: msg}
}

// Agent is implemented by user code. Embed BaseAgent and override the
// callbacks matching the declared capability set; the dispatcher only routes
// subscribed event types, so unimplemented callbacks keep their defaults.
//
// cfg is the connection's current typed config: the last value produced by
// ParseConfig, or DefaultConfig before any configure_update arrived.
type Agent interface {
	Name() string
	Capabilities() *Capabilities

	OnRequestHeaders(ctx context.Context, req *protocol.Request, cfg any) *protocol.Decision
	OnRequestBody(ctx context.Context, req *protocol.Request, cfg any) *protocol.Decision
	OnResponseHeaders(ctx context.Context, req *protocol.Request, resp *protocol.Response, cfg any) *protocol.Decision
	OnResponseBody(ctx context.Context, req *protocol.Request, resp *protocol.Response, cfg any) *protocol.Decision
	OnRequestComplete(ctx context.Context, comp *Completion, cfg any)

	// ParseConfig converts the proxy's raw config map into the agent's typed
	// config. It must be pure: same input, same output, no side effects.
	ParseConfig(raw map[string]any) (any, error)
	// DefaultConfig is the typed config in effect before the first successful
	// ParseConfig on a connection.
	DefaultConfig() any

	HealthCheck(ctx context.Context) HealthStatus
	Metrics(ctx context.Context) map[string]float64

	// OnShutdown runs once when the runner stops, before the process exits.
	OnShutdown(ctx context.Context)
}

// BaseAgent provides pass-through defaults for every optional method, so
// implementations only write the callbacks they declared capabilities for.
type BaseAgent struct{}

func (BaseAgent) OnRequestHeaders(context.Context, *protocol.Request, any) *protocol.Decision {
	return Allow()
}

func (BaseAgent) OnRequestBody(context.Context, *protocol.Request, any) *protocol.Decision {
	return Allow()
}

func (BaseAgent) OnResponseHeaders(context.Context, *protocol.Request, *protocol.Response, any) *protocol.Decision {
	return Allow()
}

func (BaseAgent) OnResponseBody(context.Context, *protocol.Request, *protocol.Response, any) *protocol.Decision {
	return Allow()
}

func (BaseAgent) OnRequestComplete(context.Context, *Completion, any) {}

func (BaseAgent) ParseConfig(raw map[string]any) (any, error) { return raw, nil }

func (BaseAgent) DefaultConfig() any { return nil }

func (BaseAgent) HealthCheck(context.Context) HealthStatus { return Healthy() }

func (BaseAgent) Metrics(context.Context) map[string]float64 { return nil }

func (BaseAgent) OnShutdown(context.Context) {}
