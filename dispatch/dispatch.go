// Package dispatch routes decoded events to agent callbacks. It applies the
// capability filter, supplies defaults for unsubscribed or unknown events,
// and contains callback faults so they become decisions instead of tearing
// down the connection.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/zentinelproxy/zentinel-agent-go/agent"
	"github.com/zentinelproxy/zentinel-agent-go/observability"
	"github.com/zentinelproxy/zentinel-agent-go/protocol"
)

// Dispatcher maps events to callbacks for one connection. It owns the
// connection's ConfigManager and is not safe for concurrent use; each
// session drives its own dispatcher sequentially.
type Dispatcher struct {
	agent agent.Agent
	caps  *agent.Capabilities
	mode  agent.FailureMode
	cfg   *ConfigManager
	obs   observability.SessionObserver
}

// New builds a per-connection dispatcher. mode defaults to FailOpen and obs
// to the no-op observer.
func New(a agent.Agent, mode agent.FailureMode, obs observability.SessionObserver) *Dispatcher {
	if mode != agent.FailClosed {
		mode = agent.FailOpen
	}
	if obs == nil {
		obs = observability.NoopSessionObserver
	}
	return &Dispatcher{
		agent: a,
		caps:  a.Capabilities(),
		mode:  mode,
		cfg:   NewConfigManager(a),
		obs:   obs,
	}
}

// Config exposes the connection's config manager.
func (d *Dispatcher) Config() *ConfigManager { return d.cfg }

// Dispatch resolves one event into its response payload. It never fails and
// never panics: faults are converted per the failure mode, unknown and
// unsubscribed event types get the default response.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *protocol.Event) any {
	start := time.Now()
	resp, result := d.dispatch(ctx, ev)
	d.obs.Event(string(ev.Type), result, time.Since(start))
	if dec, ok := resp.(*protocol.Decision); ok {
		d.obs.Decision(string(dec.Action))
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, ev *protocol.Event) (any, observability.EventResult) {
	switch ev.Type {
	case protocol.EventRequestHeaders:
		if !d.caps.Subscribed(ev.Type) {
			return agent.Allow(), observability.EventResultDefault
		}
		return d.decide(func() *protocol.Decision {
			return d.agent.OnRequestHeaders(ctx, ev.Request, d.cfg.Current())
		})

	case protocol.EventRequestBody:
		if !d.caps.Subscribed(ev.Type) {
			return agent.Allow(), observability.EventResultDefault
		}
		return d.decide(func() *protocol.Decision {
			return d.agent.OnRequestBody(ctx, ev.Request, d.cfg.Current())
		})

	case protocol.EventResponseHeaders:
		if !d.caps.Subscribed(ev.Type) {
			return agent.Allow(), observability.EventResultDefault
		}
		return d.decide(func() *protocol.Decision {
			return d.agent.OnResponseHeaders(ctx, ev.Request, ev.Response, d.cfg.Current())
		})

	case protocol.EventResponseBody:
		if !d.caps.Subscribed(ev.Type) {
			return agent.Allow(), observability.EventResultDefault
		}
		return d.decide(func() *protocol.Decision {
			return d.agent.OnResponseBody(ctx, ev.Request, ev.Response, d.cfg.Current())
		})

	case protocol.EventRequestComplete:
		if !d.caps.Subscribed(ev.Type) {
			return &protocol.Ack{OK: true}, observability.EventResultDefault
		}
		comp := &agent.Completion{
			Request:  ev.Request,
			Status:   ev.Status,
			Duration: time.Duration(ev.DurationMS) * time.Millisecond,
		}
		if err := d.run(func() { d.agent.OnRequestComplete(ctx, comp, d.cfg.Current()) }); err != nil {
			return &protocol.Ack{OK: true}, observability.EventResultCallbackFault
		}
		return &protocol.Ack{OK: true}, observability.EventResultOK

	case protocol.EventConfigure:
		// The config manager always sees the update before any other callback
		// can observe the new config.
		if err := d.cfg.Apply(ev.Config); err != nil {
			d.obs.ConfigApply(observability.ConfigResultInvalid)
			return &protocol.Ack{OK: false, Error: err.Error()}, observability.EventResultConfigError
		}
		d.obs.ConfigApply(observability.ConfigResultOK)
		return &protocol.Ack{OK: true}, observability.EventResultOK

	case protocol.EventHealthCheck:
		if !d.caps.SupportsHealthCheck() {
			return &protocol.HealthResult{Status: protocol.HealthHealthy}, observability.EventResultDefault
		}
		var status agent.HealthStatus
		if err := d.run(func() { status = d.agent.HealthCheck(ctx) }); err != nil {
			return &protocol.HealthResult{Status: protocol.HealthUnhealthy, Message: "health check failed"},
				observability.EventResultCallbackFault
		}
		if status.State == "" {
			status.State = protocol.HealthHealthy
		}
		return &protocol.HealthResult{Status: status.State, Message: status.Message}, observability.EventResultOK

	case protocol.EventMetricsQuery:
		if !d.caps.SupportsMetrics() {
			return &protocol.MetricsResult{Metrics: map[string]float64{}}, observability.EventResultDefault
		}
		var metrics map[string]float64
		if err := d.run(func() { metrics = d.agent.Metrics(ctx) }); err != nil {
			return &protocol.MetricsResult{Metrics: map[string]float64{}}, observability.EventResultCallbackFault
		}
		if metrics == nil {
			metrics = map[string]float64{}
		}
		return &protocol.MetricsResult{Metrics: metrics}, observability.EventResultOK

	default:
		// Unknown event types pass through: the peer may speak a newer
		// protocol revision, and silence here is safer than a dead session.
		return agent.Allow(), observability.EventResultDefault
	}
}

// decide runs a decision callback with fault containment. A panic or a nil
// decision is converted per the failure mode.
func (d *Dispatcher) decide(fn func() *protocol.Decision) (*protocol.Decision, observability.EventResult) {
	var dec *protocol.Decision
	if err := d.run(func() { dec = fn() }); err != nil {
		return d.failureDecision(), observability.EventResultCallbackFault
	}
	if dec == nil {
		dec = agent.Allow()
	}
	return dec, observability.EventResultOK
}

func (d *Dispatcher) failureDecision() *protocol.Decision {
	if d.mode == agent.FailClosed {
		return &protocol.Decision{Action: protocol.ActionBlock, Status: agent.DefaultBlockStatus}
	}
	return agent.Allow()
}

func (d *Dispatcher) run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	fn()
	return nil
}
