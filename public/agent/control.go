package agent

import (
	"context"
	"log"

	"github.com/tenzoki/tradecore/internal/envelope"
)

// handleControl dispatches one control-channel envelope. It returns true
// when the agent should exit its main loop (a shutdown command addressed to
// this agent). Unknown commands and commands targeted at a different
// agent_id are silently ignored, not errored.
func (a *BaseAgent) handleControl(ctx context.Context, env *envelope.Envelope) bool {
	if !a.controlTargetsSelf(env) {
		return false
	}

	command, _ := env.Payload["command"].(string)
	switch command {
	case "pause":
		a.pause(ctx)
	case "resume":
		a.resume(ctx)
	case "shutdown":
		return true
	default:
		// Unknown commands are ignored, not errored.
	}
	return false
}

// controlTargetsSelf implements the control-target rule: a control envelope
// with target == null is a broadcast and affects every agent; a control
// envelope with a non-empty target only affects the agent whose agent_id
// matches.
func (a *BaseAgent) controlTargetsSelf(env *envelope.Envelope) bool {
	targetVal, present := env.Payload["target"]
	if !present {
		return true
	}
	targetStr, ok := targetVal.(string)
	if !ok || targetStr == "" {
		return true
	}
	return targetStr == a.cfg.AgentID
}

func (a *BaseAgent) pause(ctx context.Context) {
	if a.State() != StateRunning {
		return
	}
	a.setState(StatePaused)
	if p, ok := a.runner.(Pauser); ok {
		if err := p.OnPause(ctx); err != nil {
			log.Printf("Agent %s: on_pause error: %v", a.cfg.AgentID, err)
		}
	}
}

func (a *BaseAgent) resume(ctx context.Context) {
	if a.State() != StatePaused {
		return
	}
	a.setState(StateRunning)
	if r, ok := a.runner.(Resumer); ok {
		if err := r.OnResume(ctx); err != nil {
			log.Printf("Agent %s: on_resume error: %v", a.cfg.AgentID, err)
		}
	}
}
