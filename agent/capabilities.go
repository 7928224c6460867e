package agent

import "github.com/zentinelproxy/zentinel-agent-go/protocol"

// Capabilities declares which event types an agent subscribes to and which
// optional features it supports. It is authoritative input to the
// dispatcher's own filtering: the proxy is expected to restrict delivery to
// the subscribed set, but the engine defends against peers that do not.
//
// Build it once in Agent.Capabilities; it is treated as immutable after the
// session handshake.
type Capabilities struct {
	events      map[protocol.EventType]struct{}
	order       []protocol.EventType
	healthCheck bool
	metrics     bool
}

// NewCapabilities returns an empty declaration.
func NewCapabilities() *Capabilities {
	return &Capabilities{events: make(map[protocol.EventType]struct{})}
}

// Handle subscribes to an event type. Repeat declarations are ignored.
func (c *Capabilities) Handle(t protocol.EventType) *Capabilities {
	if _, ok := c.events[t]; !ok {
		c.events[t] = struct{}{}
		c.order = append(c.order, t)
	}
	return c
}

func (c *Capabilities) HandleRequestHeaders() *Capabilities {
	return c.Handle(protocol.EventRequestHeaders)
}

func (c *Capabilities) HandleRequestBody() *Capabilities {
	return c.Handle(protocol.EventRequestBody)
}

func (c *Capabilities) HandleResponseHeaders() *Capabilities {
	return c.Handle(protocol.EventResponseHeaders)
}

func (c *Capabilities) HandleResponseBody() *Capabilities {
	return c.Handle(protocol.EventResponseBody)
}

func (c *Capabilities) HandleRequestComplete() *Capabilities {
	return c.Handle(protocol.EventRequestComplete)
}

// WithHealthCheck advertises health_check support.
func (c *Capabilities) WithHealthCheck() *Capabilities {
	c.healthCheck = true
	return c
}

// WithMetrics advertises metrics_query support.
func (c *Capabilities) WithMetrics() *Capabilities {
	c.metrics = true
	return c
}

// Subscribed reports whether t is in the declared event set.
func (c *Capabilities) Subscribed(t protocol.EventType) bool {
	if c == nil {
		return false
	}
	_, ok := c.events[t]
	return ok
}

// SupportsHealthCheck reports the health_check feature flag.
func (c *Capabilities) SupportsHealthCheck() bool { return c != nil && c.healthCheck }

// SupportsMetrics reports the metrics_query feature flag.
func (c *Capabilities) SupportsMetrics() bool { return c != nil && c.metrics }

// Events returns the subscribed event types in declaration order.
func (c *Capabilities) Events() []protocol.EventType {
	if c == nil {
		return nil
	}
	out := make([]protocol.EventType, len(c.order))
	copy(out, c.order)
	return out
}

// Hello builds the handshake payload advertising this declaration.
func (c *Capabilities) Hello(name string) protocol.CapabilityHello {
	events := c.Events()
	if events == nil {
		events = []protocol.EventType{}
	}
	return protocol.CapabilityHello{
		Name:                name,
		Events:              events,
		SupportsHealthCheck: c.SupportsHealthCheck(),
		SupportsMetrics:     c.SupportsMetrics(),
	}
}
