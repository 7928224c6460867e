// Package protocol defines the JSON envelopes exchanged between the proxy and
// agents: events flowing proxy->agent and the decisions or acknowledgements
// flowing back. Envelope encoding is deterministic in field presence; unset
// optional fields are omitted rather than emitted as null.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType tags one variant of the event envelope.
type EventType string

const (
	EventRequestHeaders  EventType = "request_headers"
	EventRequestBody     EventType = "request_body"
	EventResponseHeaders EventType = "response_headers"
	EventResponseBody    EventType = "response_body"
	EventRequestComplete EventType = "request_complete"
	EventConfigure       EventType = "configure_update"
	EventHealthCheck     EventType = "health_check"
	EventMetricsQuery    EventType = "metrics_query"
)

// EventTypes lists every known event type in protocol order.
var EventTypes = []EventType{
	EventRequestHeaders,
	EventRequestBody,
	EventResponseHeaders,
	EventResponseBody,
	EventRequestComplete,
	EventConfigure,
	EventHealthCheck,
	EventMetricsQuery,
}

// Decides reports whether events of this type expect a Decision in response.
// The remaining types are answered with acknowledgements or feature results.
func (t EventType) Decides() bool {
	switch t {
	case EventRequestHeaders, EventRequestBody, EventResponseHeaders, EventResponseBody:
		return true
	default:
		return false
	}
}

// Known reports whether t is one of the protocol's event types.
func (t EventType) Known() bool {
	for _, k := range EventTypes {
		if t == k {
			return true
		}
	}
	return false
}

// RequestMetadata carries transport-level facts about the client request.
type RequestMetadata struct {
	ClientIP      string `json:"client_ip,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Request is the read-mostly projection of the client request delivered with
// request-phase events. Agents never mutate it in place; decisions carry
// mutation instructions instead.
type Request struct {
	Method   string           `json:"method"`
	Path     string           `json:"path"`
	Headers  Headers          `json:"headers"`
	Body     []byte           `json:"body,omitempty"`
	Metadata *RequestMetadata `json:"metadata,omitempty"`
}

// Response is the projection of the upstream response delivered with
// response-phase events.
type Response struct {
	Status  int     `json:"status"`
	Headers Headers `json:"headers"`
	Body    []byte  `json:"body,omitempty"`
}

// Event is the tagged envelope the proxy sends for each pipeline step.
type Event struct {
	Type       EventType      `json:"type"`
	Request    *Request       `json:"request,omitempty"`
	Response   *Response      `json:"response,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
	Status     int            `json:"status,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
}

var (
	ErrMissingEventType = errors.New("missing event type")
	ErrMissingRequest   = errors.New("missing request view")
	ErrMissingResponse  = errors.New("missing response view")
)

// DecodeEvent parses and validates one event payload. Unknown event types
// decode successfully; the dispatcher resolves them with its default.
func DecodeEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return nil, ErrMissingEventType
	}
	switch ev.Type {
	case EventRequestHeaders, EventRequestBody:
		if ev.Request == nil {
			return nil, ErrMissingRequest
		}
	case EventResponseHeaders, EventResponseBody:
		if ev.Response == nil {
			return nil, ErrMissingResponse
		}
	}
	return &ev, nil
}

// ProxyHello opens a v2 session: the proxy announces its protocol version
// before any events flow.
type ProxyHello struct {
	V    int    `json:"v"`
	Name string `json:"name,omitempty"`
}

// CapabilityHello is the agent's half of the v2 handshake: its declared name,
// subscribed event types, and optional feature flags. Immutable once sent.
type CapabilityHello struct {
	Name                string      `json:"name"`
	Events              []EventType `json:"events"`
	SupportsHealthCheck bool        `json:"supports_health_check"`
	SupportsMetrics     bool        `json:"supports_metrics"`
}

var ErrBadHello = errors.New("bad hello")

// DecodeProxyHello parses and validates the proxy's opening handshake frame.
func DecodeProxyHello(payload []byte) (*ProxyHello, error) {
	var h ProxyHello
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, ErrBadHello
	}
	if h.V == 0 {
		return nil, ErrBadHello
	}
	return &h, nil
}

// DecodeCapabilityHello parses and validates the agent's handshake frame.
func DecodeCapabilityHello(payload []byte) (*CapabilityHello, error) {
	var h CapabilityHello
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, ErrBadHello
	}
	if h.Name == "" {
		return nil, ErrBadHello
	}
	return &h, nil
}

// Ack acknowledges a non-decision event. Error is set when the event was
// received but could not be applied (for example a config parse failure).
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HealthState is the coarse agent health value.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// HealthResult answers a health_check event.
type HealthResult struct {
	Status  HealthState `json:"status"`
	Message string      `json:"message,omitempty"`
}

// MetricsResult answers a metrics_query event. Metrics is always present on
// the wire, empty when the agent exports nothing.
type MetricsResult struct {
	Metrics map[string]float64 `json:"metrics"`
}
