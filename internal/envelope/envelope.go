// Package envelope provides the canonical message structure for agent-to-agent
// communication on the bus (C1 in the design).
//
// Every message that crosses the bus is wrapped in an Envelope: a flat,
// self-describing, JSON-serializable structure carrying routing information
// (source, optional target, channel), a correlation id for stitching a
// causal chain across channels, and an opaque payload.
//
// Envelopes are immutable once created; agents forwarding a message build
// a fresh envelope (copying the payload) rather than mutating the one they
// received.
//
// Called by: every agent, the bus adapter, the orchestrator's control path.
// Calls: github.com/google/uuid for identifiers, encoding/json for the
// self-describing wire format.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical message wrapper for bus traffic.
//
// Field order here is the serialization order: Serialize/Parse round-trip
// any well-formed envelope byte-for-byte given the same logical input.
type Envelope struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	SourceAgent   string                 `json:"source_agent"`
	TargetAgent   *string                `json:"target_agent,omitempty"`
	Channel       string                 `json:"channel"`
	Payload       map[string]interface{} `json:"payload"`
	CorrelationID string                 `json:"correlation_id"`
}

// Create builds a new envelope. target is nil for a broadcast message;
// correlationID, if empty, is generated as a fresh UUIDv4 so every envelope
// carries a correlation id even when it starts a new causal chain.
//
// Called by: agents publishing to the bus.
func Create(source, channel string, payload map[string]interface{}, target *string, correlationID string) *Envelope {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return &Envelope{
		ID:            uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		SourceAgent:   source,
		TargetAgent:   target,
		Channel:       channel,
		Payload:       payload,
		CorrelationID: correlationID,
	}
}

// Serialize produces the deterministic self-describing text form of the
// envelope. Two envelopes with identical field values serialize to
// identical bytes.
func (e *Envelope) Serialize() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("envelope: serialize: %w", err)
	}
	return string(data), nil
}

// Parse decodes the text form produced by Serialize back into an Envelope.
// Returns a ParseError if any required field is missing or the payload is
// not a key-value mapping.
func Parse(data string) (*Envelope, error) {
	var raw struct {
		ID            string          `json:"id"`
		Timestamp     time.Time       `json:"timestamp"`
		SourceAgent   string          `json:"source_agent"`
		TargetAgent   *string         `json:"target_agent,omitempty"`
		Channel       string          `json:"channel"`
		Payload       json.RawMessage `json:"payload"`
		CorrelationID string          `json:"correlation_id"`
	}

	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	if raw.ID == "" {
		return nil, &ParseError{Reason: "missing id"}
	}
	if raw.SourceAgent == "" {
		return nil, &ParseError{Reason: "missing source_agent"}
	}
	if raw.Channel == "" {
		return nil, &ParseError{Reason: "missing channel"}
	}

	var payload map[string]interface{}
	if len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return nil, &ParseError{Reason: "payload is not a key-value mapping"}
		}
	} else {
		payload = map[string]interface{}{}
	}

	return &Envelope{
		ID:            raw.ID,
		Timestamp:     raw.Timestamp,
		SourceAgent:   raw.SourceAgent,
		TargetAgent:   raw.TargetAgent,
		Channel:       raw.Channel,
		Payload:       payload,
		CorrelationID: raw.CorrelationID,
	}, nil
}

// ParseError is returned by Parse when the input is not a well-formed
// envelope.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "envelope parse error: " + e.Reason
}
