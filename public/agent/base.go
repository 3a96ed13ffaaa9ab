package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tenzoki/tradecore/internal/bus"
	"github.com/tenzoki/tradecore/internal/envelope"
	"github.com/tenzoki/tradecore/internal/storage"
)

// pollInterval is the bus poll cadence of the running-state main loop.
const pollInterval = 100 * time.Millisecond

// pauseSleepInterval is how long the main loop sleeps instead of calling
// Cycle while paused.
const pauseSleepInterval = 500 * time.Millisecond

// heartbeatInterval is the period of the concurrent heartbeat loop.
const heartbeatInterval = 30 * time.Second

// Config is the fixed identity and wiring a BaseAgent is constructed with:
// the agent descriptor fields plus the broker address it connects to. One
// Config/BaseAgent pair is built per agent instance when the orchestrator
// registers it; supervised restarts call Run again on that same BaseAgent,
// so the metrics counters carry over and reset only on process restart.
type Config struct {
	AgentID            string
	AgentType          string
	Capabilities       []string
	SubscribedChannels []string
	BrokerURL          string
}

// BaseAgent is the concrete agent state machine. Every agent type in the
// system is a BaseAgent configured with a different Runner; there is no
// per-type subclass.
//
// Thread safety: Run, Publish, and the accessor methods are safe to call
// concurrently — the heartbeat goroutine reads metrics and state while the
// main loop goroutine mutates them.
type BaseAgent struct {
	cfg    Config
	runner Runner
	bus    bus.Bus
	store  storage.Adapter

	mu        sync.RWMutex
	state     State
	startedAt time.Time
	metrics   Metrics
}

// New builds a BaseAgent in StateIdle. store may be nil for agents that
// don't need to sample/report heartbeat rows (tests typically supply an
// in-memory storage.MemoryAdapter).
func New(cfg Config, runner Runner, b bus.Bus, store storage.Adapter) *BaseAgent {
	a := &BaseAgent{
		cfg:    cfg,
		runner: runner,
		bus:    b,
		store:  store,
		state:  StateIdle,
	}
	if aware, ok := runner.(AgentAware); ok {
		aware.SetAgent(a)
	}
	return a
}

// ID returns the agent's stable identifier.
func (a *BaseAgent) ID() string { return a.cfg.AgentID }

// Type returns the agent's category label (agent_type).
func (a *BaseAgent) Type() string { return a.cfg.AgentType }

// Capabilities returns the capability tags this agent was configured with.
func (a *BaseAgent) Capabilities() []string { return a.cfg.Capabilities }

// State returns the agent's current lifecycle state.
func (a *BaseAgent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *BaseAgent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// MetricsSnapshot returns a copy of the current runtime metrics.
func (a *BaseAgent) MetricsSnapshot() Metrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.metrics
}

// Uptime reports time elapsed since the running transition, or 0 before
// the agent has started.
func (a *BaseAgent) Uptime() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.startedAt.IsZero() {
		return 0
	}
	return time.Since(a.startedAt)
}

// Run executes one full lifecycle: idle → connecting → running ⇄ paused →
// stopping → stopped. It returns nil on a clean shutdown (a control
// "shutdown" command addressed to this agent) and a non-nil error on a
// fatal condition, transport failure or context cancellation. The
// orchestrator's supervised recovery uses this distinction to decide
// whether a clean-exit restart or a counted-restart-with-cap applies.
func (a *BaseAgent) Run(ctx context.Context) error {
	a.setState(StateConnecting)

	if err := a.bus.Connect(a.cfg.BrokerURL); err != nil {
		a.setState(StateStopped)
		return err
	}

	channels := append([]string{string(envelope.ChannelControl)}, a.cfg.SubscribedChannels...)
	if err := a.bus.Subscribe(channels...); err != nil {
		_ = a.bus.Close()
		a.setState(StateStopped)
		return err
	}

	a.mu.Lock()
	a.startedAt = time.Now().UTC()
	a.state = StateRunning
	a.mu.Unlock()

	if starter, ok := a.runner.(Starter); ok {
		if err := starter.OnStart(ctx); err != nil {
			log.Printf("Agent %s: on_start error: %v", a.cfg.AgentID, err)
		}
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		a.heartbeatLoop(hbCtx)
	}()

	defer func() {
		hbCancel()
		<-hbDone
		a.runStop(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if env, ok := a.bus.NextMessage(pollInterval); ok {
			a.bumpReceived()
			if env.Channel == string(envelope.ChannelControl) {
				if a.handleControl(ctx, env) {
					return nil
				}
			} else {
				a.dispatchMessage(ctx, env)
			}
		}

		if a.State() == StatePaused {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pauseSleepInterval):
			}
			continue
		}

		a.runCycle(ctx)
	}
}

// runStop performs the stopping→stopped transition: on_stop hook,
// persistence mark-stopped, transport close.
func (a *BaseAgent) runStop(ctx context.Context) {
	a.setState(StateStopping)

	if stopper, ok := a.runner.(Stopper); ok {
		if err := stopper.OnStop(ctx); err != nil {
			log.Printf("Agent %s: on_stop error: %v", a.cfg.AgentID, err)
		}
	}

	if a.store != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = a.store.Patch(stopCtx, "agents", storage.Filter{"id": a.cfg.AgentID}, storage.Row{"status": "stopped"})
		cancel()
	}

	_ = a.bus.Close()
	a.setState(StateStopped)
}

func (a *BaseAgent) dispatchMessage(ctx context.Context, env *envelope.Envelope) {
	defer a.recoverFromPanic("handle_message")
	if err := a.runner.HandleMessage(ctx, env); err != nil {
		a.bumpErrors()
		log.Printf("Agent %s: handle_message error: %v", a.cfg.AgentID, err)
	}
}

func (a *BaseAgent) runCycle(ctx context.Context) {
	defer a.recoverFromPanic("cycle")
	if err := a.runner.Cycle(ctx); err != nil {
		a.bumpErrors()
		log.Printf("Agent %s: cycle error: %v", a.cfg.AgentID, err)
		return
	}
	a.mu.Lock()
	a.metrics.CyclesRun++
	a.mu.Unlock()
}

// recoverFromPanic absorbs a panicking Runner method so a bug in
// agent-specific logic never terminates the agent loop; the next iteration
// proceeds.
func (a *BaseAgent) recoverFromPanic(where string) {
	if r := recover(); r != nil {
		a.bumpErrors()
		log.Printf("Agent %s: recovered panic in %s: %v", a.cfg.AgentID, where, r)
	}
}

func (a *BaseAgent) bumpReceived() {
	a.mu.Lock()
	a.metrics.MessagesReceived++
	a.mu.Unlock()
}

func (a *BaseAgent) bumpErrors() {
	a.mu.Lock()
	a.metrics.Errors++
	a.mu.Unlock()
}

// Publish wraps envelope.Create and bus.Publish so Runner implementations
// don't need to thread their own agent id through every send, and keeps
// MessagesSent accurate.
func (a *BaseAgent) Publish(channel string, payload map[string]interface{}, target *string, correlationID string) error {
	env := envelope.Create(a.cfg.AgentID, channel, payload, target, correlationID)
	if err := a.bus.Publish(channel, env); err != nil {
		return err
	}
	a.mu.Lock()
	a.metrics.MessagesSent++
	a.mu.Unlock()
	return nil
}

// Store exposes the persistence adapter to Runner implementations that need
// it directly to read or write tables. None of the agents in internal/agents
// use it: the execution agent goes through the gateway, which owns its own
// adapter.
func (a *BaseAgent) Store() storage.Adapter { return a.store }
