// Package agent implements the base agent runtime: a uniform, pausable,
// restartable, heartbeat-emitting state machine shared by every agent type
// in the system. Concrete agent behavior is supplied as a Runner — a small
// capability table (HandleMessage, Cycle, and optional lifecycle hooks) —
// rather than a class hierarchy. Agent "types" are just Runner values
// plugged into the same BaseAgent.
//
// Called by: public/orchestrator (owns and supervises BaseAgent.Run),
// internal/agents/* (supply the Runner implementations).
// Calls: internal/bus, internal/envelope, internal/storage.
package agent

import (
	"context"

	"github.com/tenzoki/tradecore/internal/envelope"
)

// Runner is the capability set every concrete agent type supplies.
// HandleMessage and Cycle are mandatory; the lifecycle hooks are optional —
// a Runner implements only the ones it needs, detected via interface
// assertion in BaseAgent.Run.
type Runner interface {
	// HandleMessage processes one non-control envelope delivered to this
	// agent. An error here is counted in the agent's error metric and
	// logged, but never stops the agent.
	HandleMessage(ctx context.Context, env *envelope.Envelope) error

	// Cycle performs one unit of agent-specific work. It is skipped while
	// the agent is paused.
	Cycle(ctx context.Context) error
}

// Starter is an optional hook invoked once, after subscribe succeeds and
// before the main loop starts (the connecting→running transition).
type Starter interface {
	OnStart(ctx context.Context) error
}

// Stopper is an optional hook invoked once during the stopping transition,
// before the transport closes.
type Stopper interface {
	OnStop(ctx context.Context) error
}

// Pauser is an optional hook invoked when a pause control message takes
// effect (running→paused).
type Pauser interface {
	OnPause(ctx context.Context) error
}

// Resumer is an optional hook invoked when a resume control message takes
// effect (paused→running).
type Resumer interface {
	OnResume(ctx context.Context) error
}

// Publisher is the narrow surface a Runner needs to emit bus traffic of its
// own (HandleMessage and Cycle return only an error). *BaseAgent satisfies
// it.
type Publisher interface {
	Publish(channel string, payload map[string]interface{}, target *string, correlationID string) error
}

// AgentAware is implemented by Runners that publish bus traffic, whether
// from Cycle (a signal agent emitting signals) or from HandleMessage (a risk
// agent forwarding approvals or rejections). BaseAgent.New
// calls SetAgent once, at construction, so the Runner can hold a reference
// to its own runtime without a constructor-time chicken-and-egg problem
// (the Runner must exist before BaseAgent.New can build the BaseAgent that
// wraps it).
type AgentAware interface {
	SetAgent(pub Publisher)
}
