package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tenzoki/tradecore/internal/envelope"
)

// SendCommand broadcasts (target == nil) or targets (target != nil) a
// control command over the bus. Agents match on the "target" payload key,
// not the envelope's TargetAgent field.
func (o *Orchestrator) SendCommand(command string, target *string) error {
	payload := map[string]interface{}{"command": command}
	if target != nil {
		payload["target"] = *target
	}
	env := envelope.Create("orchestrator", string(envelope.ChannelControl), payload, target, "")
	if err := o.controlBus.Publish(string(envelope.ChannelControl), env); err != nil {
		return fmt.Errorf("orchestrator: send_command %q: %w", command, err)
	}
	return nil
}

// PauseAll broadcasts "pause" to every agent.
func (o *Orchestrator) PauseAll() error { return o.SendCommand("pause", nil) }

// ResumeAll broadcasts "resume" to every agent.
func (o *Orchestrator) ResumeAll() error { return o.SendCommand("resume", nil) }

// PauseAgent pauses a single agent, identified by agentID.
func (o *Orchestrator) PauseAgent(agentID string) error {
	return o.SendCommand("pause", &agentID)
}

// ResumeAgent resumes a single previously paused agent.
func (o *Orchestrator) ResumeAgent(agentID string) error {
	return o.SendCommand("resume", &agentID)
}

// Stop performs the graceful shutdown sequence: broadcast
// shutdown, wait up to shutdownGrace for every agent goroutine to exit on
// its own, then cancel the run context and wait up to shutdownGrace again;
// agent goroutines that still have not exited (a Runner.Cycle that ignores
// its context) are abandoned and Stop returns without them.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: not running")
	}
	o.running = false
	cancel := o.cancel
	o.mu.Unlock()
	defer cancel()

	if err := o.SendCommand("shutdown", nil); err != nil {
		log.Printf("[Orchestrator] shutdown broadcast failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		o.agentWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("[Orchestrator] all agents stopped cleanly")
	case <-time.After(o.shutdownGrace):
		log.Printf("[Orchestrator] shutdown grace period elapsed, cancelling remaining agents")
	}

	// Cancel unconditionally: it also terminates the monitor loop, which
	// only observes ctx.Done(), and is a no-op if agents already exited.
	cancel()
	select {
	case <-done:
	case <-time.After(o.shutdownGrace):
		log.Printf("[Orchestrator] agents still running after cancellation, abandoning them")
	}
	o.monitorWG.Wait()

	o.upsertSystemHealth(context.Background(), "stopped", "orchestrator shut down")
	_ = o.controlBus.Close()
	return nil
}
