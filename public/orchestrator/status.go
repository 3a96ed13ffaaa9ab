package orchestrator

import "time"

// AgentStatus is a point-in-time snapshot of one registered agent, returned
// by GetStatus for dashboards and operator tooling.
type AgentStatus struct {
	AgentID   string
	AgentType string
	State     string
	Restarts  int
	Stopped   bool
	Metrics   struct {
		MessagesReceived int64
		MessagesSent     int64
		CyclesRun        int64
		Errors           int64
		LastHeartbeat    time.Time
	}
}

// Status is the full orchestrator snapshot returned by GetStatus.
type Status struct {
	Running    bool
	StartedAt  time.Time
	AgentCount int
	Agents     []AgentStatus
}

// GetStatus reports the orchestrator's current running state and a snapshot
// of every registered agent.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	order := append([]string(nil), o.order...)
	running := o.running
	startedAt := o.startedAt
	agents := make([]*registeredAgent, 0, len(order))
	for _, id := range order {
		agents = append(agents, o.agents[id])
	}
	o.mu.Unlock()

	st := Status{Running: running, StartedAt: startedAt, AgentCount: len(agents)}
	for _, ra := range agents {
		ra.mu.Lock()
		restarts, stopped := ra.restarts, ra.stopped
		ra.mu.Unlock()

		m := ra.base.MetricsSnapshot()
		as := AgentStatus{
			AgentID:   ra.id,
			AgentType: ra.agentType,
			State:     string(ra.base.State()),
			Restarts:  restarts,
			Stopped:   stopped,
		}
		as.Metrics.MessagesReceived = m.MessagesReceived
		as.Metrics.MessagesSent = m.MessagesSent
		as.Metrics.CyclesRun = m.CyclesRun
		as.Metrics.Errors = m.Errors
		as.Metrics.LastHeartbeat = m.LastHeartbeat
		st.Agents = append(st.Agents, as)
	}
	return st
}

func (o *Orchestrator) isRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}
