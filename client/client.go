// Package client implements the proxy side of the agent protocol. It exists
// for integration testing and load generation against a running agent; the
// production proxy is a separate process.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/zentinelproxy/zentinel-agent-go/framing"
	"github.com/zentinelproxy/zentinel-agent-go/protocol"
)

// Conn is one proxy-side protocol connection. Calls are sequential by
// protocol design: one event in flight at a time per connection.
type Conn struct {
	nc      net.Conn
	caps    *protocol.CapabilityHello
	version int
	maxLen  int
}

// Dial connects to an agent and, for protocol v2, performs the capability
// handshake before returning.
func Dial(ctx context.Context, network, addr string, opts ...Option) (*Conn, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	c := &Conn{nc: nc, version: cfg.version, maxLen: cfg.maxFrameBytes}
	if cfg.version >= 2 {
		if err := c.handshake(cfg.name); err != nil {
			_ = nc.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Conn) handshake(name string) error {
	if err := framing.WriteJSONFrame(c.nc, protocol.ProxyHello{V: c.version, Name: name}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	payload, err := framing.ReadFrame(c.nc, c.maxLen)
	if err != nil {
		return fmt.Errorf("read capabilities: %w", err)
	}
	caps, err := protocol.DecodeCapabilityHello(payload)
	if err != nil {
		return err
	}
	c.caps = caps
	return nil
}

// Capabilities returns the agent's negotiated capability set, or nil for v1.
func (c *Conn) Capabilities() *protocol.CapabilityHello { return c.caps }

// Do sends one event and returns the raw response payload.
func (c *Conn) Do(ev *protocol.Event) (json.RawMessage, error) {
	if err := framing.WriteJSONFrame(c.nc, ev); err != nil {
		return nil, err
	}
	return framing.ReadFrame(c.nc, c.maxLen)
}

// Decide sends a decision-bearing event and parses the decision.
func (c *Conn) Decide(ev *protocol.Event) (*protocol.Decision, error) {
	payload, err := c.Do(ev)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeDecision(payload)
}

// Configure pushes a raw config map and returns the agent's ack.
func (c *Conn) Configure(raw map[string]any) (*protocol.Ack, error) {
	payload, err := c.Do(&protocol.Event{Type: protocol.EventConfigure, Config: raw})
	if err != nil {
		return nil, err
	}
	var ack protocol.Ack
	if err := json.Unmarshal(payload, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Health queries the agent's health state.
func (c *Conn) Health() (*protocol.HealthResult, error) {
	payload, err := c.Do(&protocol.Event{Type: protocol.EventHealthCheck})
	if err != nil {
		return nil, err
	}
	var hr protocol.HealthResult
	if err := json.Unmarshal(payload, &hr); err != nil {
		return nil, err
	}
	return &hr, nil
}

// Metrics queries the agent's exported counters and gauges.
func (c *Conn) Metrics() (map[string]float64, error) {
	payload, err := c.Do(&protocol.Event{Type: protocol.EventMetricsQuery})
	if err != nil {
		return nil, err
	}
	var mr protocol.MetricsResult
	if err := json.Unmarshal(payload, &mr); err != nil {
		return nil, err
	}
	return mr.Metrics, nil
}

// Close releases the transport.
func (c *Conn) Close() error { return c.nc.Close() }
