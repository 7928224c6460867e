package protocol

import (
	"encoding/json"
	"fmt"
)

// Action is the agent's verdict on a decision-bearing event.
type Action string

const (
	ActionAllow     Action = "allow"
	ActionBlock     Action = "block"
	ActionRedirect  Action = "redirect"
	ActionChallenge Action = "challenge"
)

// Valid reports whether a is one of the protocol actions.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionBlock, ActionRedirect, ActionChallenge:
		return true
	}
	return false
}

// HeaderMutation instructs the proxy to mutate headers: adds are applied in
// order, with later entries for the same key overriding earlier ones, then
// removals. A nil *HeaderMutation on the Decision means "no mutation
// requested", which is distinct from a present mutation with empty lists.
type HeaderMutation struct {
	Add    [][2]string `json:"add,omitempty"`
	Remove []string    `json:"remove,omitempty"`
}

// Decision is the agent's verdict plus mutation instructions and audit
// metadata. Its wire form is the decision envelope consumed by the proxy.
type Decision struct {
	Action          Action            `json:"action"`
	Status          int               `json:"status,omitempty"`
	Body            json.RawMessage   `json:"body,omitempty"`
	RequestHeaders  *HeaderMutation   `json:"request_headers,omitempty"`
	ResponseHeaders *HeaderMutation   `json:"response_headers,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	RuleID          string            `json:"rule_id,omitempty"`
	Confidence      *float64          `json:"confidence,omitempty"`
	ReasonCode      string            `json:"reason_code,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// EncodeDecision validates d and returns its wire payload.
func EncodeDecision(d *Decision) ([]byte, error) {
	if err := validateDecision(d); err != nil {
		return nil, err
	}
	return json.Marshal(d)
}

// DecodeDecision parses and validates one decision payload.
func DecodeDecision(payload []byte) (*Decision, error) {
	var d Decision
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	if err := validateDecision(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

func validateDecision(d *Decision) error {
	if d == nil {
		return fmt.Errorf("nil decision")
	}
	if !d.Action.Valid() {
		return fmt.Errorf("invalid action %q", d.Action)
	}
	if d.Confidence != nil && (*d.Confidence < 0 || *d.Confidence > 1) {
		return fmt.Errorf("confidence %v out of range [0,1]", *d.Confidence)
	}
	return nil
}
