package agent

import "time"

// Metrics holds an agent's in-memory runtime counters. They reset only on
// process restart — the supervisor reuses the same BaseAgent (and therefore
// the same Metrics) across supervised restarts, so counters are preserved
// across crashes.
type Metrics struct {
	MessagesReceived int64
	MessagesSent     int64
	CyclesRun        int64
	Errors           int64
	LastHeartbeat    time.Time
}
