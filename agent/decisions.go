package agent

import (
	"encoding/json"

	"github.com/zentinelproxy/zentinel-agent-go/protocol"
)

// Allow returns a pass-through decision.
func Allow() *protocol.Decision {
	return &protocol.Decision{Action: protocol.ActionAllow}
}

// Block returns a blocking decision with the given status and plain-text body.
func Block(status int, body string) *protocol.Decision {
	d := &protocol.Decision{Action: protocol.ActionBlock, Status: status}
	if body != "" {
		d.Body = MustBody(body)
	}
	return d
}

// Redirect returns a 302 decision pointing the client at location.
func Redirect(location string) *protocol.Decision {
	return &protocol.Decision{
		Action:          protocol.ActionRedirect,
		Status:          302,
		ResponseHeaders: &protocol.HeaderMutation{Add: [][2]string{{"location", location}}},
	}
}

// Challenge returns a 401 decision asking the proxy to challenge the client.
func Challenge() *protocol.Decision {
	return &protocol.Decision{Action: protocol.ActionChallenge, Status: 401}
}

// MustBody marshals v into a decision body. It panics on unmarshalable
// values, which only happens for programmer errors (channels, cycles).
func MustBody(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
