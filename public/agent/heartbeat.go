package agent

import (
	"context"
	"log"
	"time"

	"github.com/tenzoki/tradecore/internal/envelope"
	"github.com/tenzoki/tradecore/internal/storage"
)

// heartbeatLoop runs concurrently with the main loop for the lifetime of a
// running agent, publishing a heartbeat envelope and upserting the agent's
// row in the `agents` table every heartbeatInterval.
func (a *BaseAgent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.emitHeartbeat(ctx)
		}
	}
}

// emitHeartbeat publishes on the heartbeat channel and upserts the agents
// table row. Both are best-effort: a publish or persistence failure is
// logged, never fatal to the agent.
func (a *BaseAgent) emitHeartbeat(ctx context.Context) {
	status := statusRunning
	if a.State() == StatePaused {
		status = statusPaused
	}

	snapshot := a.MetricsSnapshot()
	now := time.Now().UTC()

	a.mu.Lock()
	a.metrics.LastHeartbeat = now
	a.mu.Unlock()

	payload := map[string]interface{}{
		"agent_id":   a.cfg.AgentID,
		"agent_type": a.cfg.AgentType,
		"status":     status,
		"metrics": map[string]interface{}{
			"messages_received": snapshot.MessagesReceived,
			"messages_sent":     snapshot.MessagesSent,
			"cycles_run":        snapshot.CyclesRun,
			"errors":            snapshot.Errors,
		},
	}
	if err := a.Publish(string(envelope.ChannelHeartbeat), payload, nil, ""); err != nil {
		log.Printf("Agent %s: heartbeat publish failed: %v", a.cfg.AgentID, err)
	}

	if a.store == nil {
		return
	}

	cpu, mem := sampleResourceUsage()
	row := storage.Row{
		"id":             a.cfg.AgentID,
		"name":           a.cfg.AgentID,
		"type":           a.cfg.AgentType,
		"status":         status,
		"last_heartbeat": now,
		"cpu_usage":      cpu,
		"memory_usage":   mem,
		"uptime":         int64(a.Uptime().Seconds()),
		"capabilities":   a.cfg.Capabilities,
		"error_message":  "",
	}
	storeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.store.Upsert(storeCtx, "agents", row, []string{"id"}); err != nil {
		log.Printf("Agent %s: heartbeat upsert failed: %v", a.cfg.AgentID, err)
	}
}

const (
	statusRunning = "running"
	statusPaused  = "paused"
)

// sampleResourceUsage returns best-effort CPU/memory samples. The runtime
// doesn't carry a process-metrics dependency for a single pair of gauges,
// so it reports zero.
func sampleResourceUsage() (cpuUsage, memoryUsage float64) {
	return 0, 0
}
