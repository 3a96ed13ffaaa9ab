package envelope

import (
	"testing"
)

func TestCreateGeneratesIDAndCorrelationID(t *testing.T) {
	env := Create("signal-agent-01", string(ChannelSignals), map[string]interface{}{"instrument": "BTC-USD"}, nil, "")

	if env.ID == "" {
		t.Error("expected generated ID")
	}
	if env.CorrelationID == "" {
		t.Error("expected generated correlation ID when none supplied")
	}
	if env.TargetAgent != nil {
		t.Error("expected nil target for broadcast")
	}
}

func TestCreatePreservesExplicitCorrelationID(t *testing.T) {
	env := Create("signal-agent-01", string(ChannelSignals), nil, nil, "corr-123")
	if env.CorrelationID != "corr-123" {
		t.Errorf("expected correlation id to be preserved, got %q", env.CorrelationID)
	}
}

func TestRoundTrip(t *testing.T) {
	target := "risk-agent-01"
	original := Create("signal-agent-01", string(ChannelSignals), map[string]interface{}{
		"instrument": "BTC-USD",
		"size":       0.1,
	}, &target, "corr-456")

	data, err := original.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if parsed.ID != original.ID ||
		parsed.SourceAgent != original.SourceAgent ||
		parsed.Channel != original.Channel ||
		parsed.CorrelationID != original.CorrelationID ||
		!parsed.Timestamp.Equal(original.Timestamp) {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, original)
	}

	if parsed.TargetAgent == nil || *parsed.TargetAgent != target {
		t.Errorf("expected target %q, got %v", target, parsed.TargetAgent)
	}

	if parsed.Payload["instrument"] != "BTC-USD" {
		t.Errorf("expected payload to round-trip, got %+v", parsed.Payload)
	}
}

func TestParseRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{}`,
		`{"id":"x"}`,
		`{"id":"x","source_agent":"a"}`,
		`not json at all`,
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("expected ParseError for input %q", c)
		}
	}
}

func TestParseRejectsNonMappingPayload(t *testing.T) {
	_, err := Parse(`{"id":"x","source_agent":"a","channel":"signals","correlation_id":"c","payload":"not-a-map"}`)
	if err == nil {
		t.Error("expected ParseError for non-mapping payload")
	}
}

func TestIsValidChannel(t *testing.T) {
	if !IsValidChannel("signals") {
		t.Error("expected signals to be valid")
	}
	if IsValidChannel("not_a_channel") {
		t.Error("expected unknown channel to be invalid")
	}
}
