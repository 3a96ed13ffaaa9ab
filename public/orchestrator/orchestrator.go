// Package orchestrator implements the supervisor: agent registration,
// supervised spawn with a bounded restart policy, health aggregation, and
// graceful shutdown fan-out over the message bus.
//
// One Orchestrator owns the full set of agent goroutines for a process.
// Agents run in-process; the orchestrator never spawns OS processes.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tenzoki/tradecore/internal/bus"
	"github.com/tenzoki/tradecore/internal/envelope"
	"github.com/tenzoki/tradecore/internal/models"
	"github.com/tenzoki/tradecore/internal/storage"
	"github.com/tenzoki/tradecore/public/agent"
)

// defaultMaxRestarts is the restart cap: once an agent's restart counter
// exceeds this, the orchestrator stops restarting it and emits a critical
// alert, but leaves every other agent running.
const defaultMaxRestarts = 5

// defaultRestartBackoff is the delay before restarting a crashed agent.
const defaultRestartBackoff = 5 * time.Second

// defaultMonitorInterval is the health-aggregation cadence.
const defaultMonitorInterval = 60 * time.Second

// defaultShutdownGrace is the per-task grace window given to an agent during
// Stop() before it is abandoned.
const defaultShutdownGrace = 5 * time.Second

// registeredAgent pairs a running BaseAgent with its supervision state.
type registeredAgent struct {
	id        string
	agentType string
	base      *agent.BaseAgent

	mu       sync.Mutex
	restarts int
	stopped  bool // true once the restart cap was exceeded
}

// Orchestrator is the C5 supervisor. One Orchestrator owns the full set of
// agents for a process.
type Orchestrator struct {
	store          storage.Adapter
	brokerURL      string
	maxRestarts    int
	restartBackoff time.Duration
	monitorEvery   time.Duration
	shutdownGrace  time.Duration

	mu      sync.Mutex
	order   []string
	agents  map[string]*registeredAgent
	running bool

	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	// agentWG tracks only the supervised agent loops; the monitor loop is
	// tracked separately because it exits on cancellation, not on the
	// shutdown broadcast, and must not hold up the grace window.
	agentWG   sync.WaitGroup
	monitorWG sync.WaitGroup

	controlBus bus.Bus
	busFactory func(agentID string) bus.Bus
}

// New builds an Orchestrator over store, connecting every agent (and its
// own control-plane client) to the bus identified by brokerURL.
func New(store storage.Adapter, brokerURL string) *Orchestrator {
	return &Orchestrator{
		store:          store,
		brokerURL:      brokerURL,
		maxRestarts:    defaultMaxRestarts,
		restartBackoff: defaultRestartBackoff,
		monitorEvery:   defaultMonitorInterval,
		shutdownGrace:  defaultShutdownGrace,
		agents:         make(map[string]*registeredAgent),
		controlBus:     bus.NewMemoryBus(),
		busFactory:     func(string) bus.Bus { return bus.NewMemoryBus() },
	}
}

// WithBusFactory overrides how Register builds each agent's private Bus
// client, keyed by agent_id. Tests use this to inject a Bus whose Connect
// fails a controlled number of times for one specific agent, exercising
// the supervised-restart path without depending on a Runner ever
// panicking.
func (o *Orchestrator) WithBusFactory(f func(agentID string) bus.Bus) *Orchestrator {
	o.busFactory = f
	return o
}

// WithMaxRestarts overrides the default restart cap.
func (o *Orchestrator) WithMaxRestarts(n int) *Orchestrator {
	o.maxRestarts = n
	return o
}

// WithRestartBackoff overrides the delay between a crash and its restart
// attempt. Exposed mainly so tests don't have to wait out the real 5s
// backoff.
func (o *Orchestrator) WithRestartBackoff(d time.Duration) *Orchestrator {
	o.restartBackoff = d
	return o
}

// WithMonitorInterval overrides the health-aggregation cadence.
func (o *Orchestrator) WithMonitorInterval(d time.Duration) *Orchestrator {
	o.monitorEvery = d
	return o
}

// Register adds agentID to the orchestrator's registry with the given
// runner and bus wiring. agent_ids must be unique across the registry; the
// very first agent ever registered must be a meta_decision agent, since it
// is the only agent type with veto authority and is structurally prior to
// every other agent.
func (o *Orchestrator) Register(agentID, agentType string, runner agent.Runner, subscribedChannels, capabilities []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.agents[agentID]; exists {
		return fmt.Errorf("orchestrator: agent_id %q already registered", agentID)
	}
	if len(o.order) == 0 && agentType != models.AgentTypeMetaDecision {
		return fmt.Errorf("orchestrator: the first registered agent must be agent_type %q, got %q", models.AgentTypeMetaDecision, agentType)
	}

	cfg := agent.Config{
		AgentID:            agentID,
		AgentType:          agentType,
		Capabilities:       capabilities,
		SubscribedChannels: subscribedChannels,
		BrokerURL:          o.brokerURL,
	}
	base := agent.New(cfg, runner, o.busFactory(agentID), o.store)

	o.agents[agentID] = &registeredAgent{id: agentID, agentType: agentType, base: base}
	o.order = append(o.order, agentID)
	return nil
}

// Start spawns every registered agent under supervised recovery and starts
// the health monitor.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: already running")
	}
	o.running = true
	o.startedAt = time.Now().UTC()
	o.ctx, o.cancel = context.WithCancel(ctx)
	order := append([]string(nil), o.order...)
	agents := make([]*registeredAgent, 0, len(order))
	for _, id := range order {
		agents = append(agents, o.agents[id])
	}
	runCtx := o.ctx
	o.mu.Unlock()

	if err := o.controlBus.Connect(o.brokerURL); err != nil {
		return fmt.Errorf("orchestrator: connect control bus: %w", err)
	}

	for _, ra := range agents {
		o.agentWG.Add(1)
		go o.runAgentWithRecovery(runCtx, ra)
	}

	o.monitorWG.Add(1)
	go o.monitor(runCtx)

	o.upsertSystemHealth(runCtx, "healthy", fmt.Sprintf("starting %d agent(s)", len(agents)))
	log.Printf("[Orchestrator] started with %d agent(s)", len(agents))
	return nil
}

// runAgentWithRecovery wraps a single agent's Run loop in the bounded
// restart policy: a clean exit (nil error) while the
// orchestrator is still running is logged and retried without counting
// against the restart cap; any other exit increments the cap-counted
// restart counter, backs off restartBackoff, and restarts — until the
// counter exceeds maxRestarts, at which point this agent stops being
// restarted (but every other agent keeps running).
func (o *Orchestrator) runAgentWithRecovery(ctx context.Context, ra *registeredAgent) {
	defer o.agentWG.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		err := ra.base.Run(ctx)

		if ctx.Err() != nil || !o.isRunning() {
			return
		}

		if err == nil {
			log.Printf("[Orchestrator] agent %s exited unexpectedly, restarting", ra.id)
			continue
		}

		ra.mu.Lock()
		ra.restarts++
		count := ra.restarts
		ra.mu.Unlock()

		log.Printf("[Orchestrator] agent %s crashed (restart %d): %v", ra.id, count, err)

		if count > o.maxRestarts {
			o.publishAlert(ctx, models.AlertCritical, fmt.Sprintf("Agent %s Failed", ra.id), fmt.Sprintf("exceeded %d restarts: %v", o.maxRestarts, err))
			ra.mu.Lock()
			ra.stopped = true
			ra.mu.Unlock()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(o.restartBackoff):
		}
	}
}

// monitor runs the health-aggregation loop: every monitorEvery tick it
// computes the running fraction across all registered agents and upserts
// system_health accordingly.
func (o *Orchestrator) monitor(ctx context.Context) {
	defer o.monitorWG.Done()

	ticker := time.NewTicker(o.monitorEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			running, total := o.runningCount()
			status := "degraded"
			if total == 0 || running == total {
				status = "healthy"
			}
			log.Printf("[Orchestrator] monitor: %d/%d agents running", running, total)
			o.upsertSystemHealth(ctx, status, fmt.Sprintf("%d/%d running", running, total))
		}
	}
}

func (o *Orchestrator) runningCount() (running, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ra := range o.agents {
		total++
		if ra.base.State() == agent.StateRunning || ra.base.State() == agent.StatePaused {
			running++
		}
	}
	return running, total
}

func (o *Orchestrator) upsertSystemHealth(ctx context.Context, status, details string) {
	if o.store == nil {
		return
	}
	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = o.store.Upsert(hctx, "system_health", storage.Row{
		"component":     "agent_orchestrator",
		"status":        status,
		"details":       details,
		"last_check_at": time.Now().UTC(),
	}, []string{"component"})
}

func (o *Orchestrator) publishAlert(ctx context.Context, severity models.AlertSeverity, title, message string) {
	alert := models.Alert{Severity: severity, Title: title, Message: message, Source: "agent_orchestrator"}

	env := envelope.Create("orchestrator", string(envelope.ChannelAlerts), alert.Payload(), nil, "")
	if err := o.controlBus.Publish(string(envelope.ChannelAlerts), env); err != nil {
		log.Printf("[Orchestrator] failed to publish alert %q: %v", title, err)
	}
	if o.store != nil {
		actx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		_ = o.store.Insert(actx, "alerts", storage.Row{
			"title":      title,
			"message":    message,
			"severity":   string(severity),
			"source":     alert.Source,
			"created_at": time.Now().UTC(),
		})
	}
}
