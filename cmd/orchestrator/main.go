// Package main is the tradecore process entry point: it loads
// configuration, wires the persistence adapter and bus broker, registers
// the default agent set, and runs the orchestrator until an operating
// system shutdown signal arrives.
//
// Configuration loading strategy:
// 1. Command-line argument: explicit config file path.
// 2. Default file: config/tradecore.yaml in the working directory.
// 3. Built-in defaults (internal/config.Load("") applies them).
//
// Called by: the operating system process launcher.
// Calls: internal/config, internal/storage, internal/gateway, internal/agents,
// public/orchestrator.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/tenzoki/tradecore/internal/agents"
	"github.com/tenzoki/tradecore/internal/config"
	"github.com/tenzoki/tradecore/internal/envelope"
	"github.com/tenzoki/tradecore/internal/gateway"
	"github.com/tenzoki/tradecore/internal/models"
	"github.com/tenzoki/tradecore/internal/storage"
	"github.com/tenzoki/tradecore/public/orchestrator"

	"github.com/google/uuid"
)

func main() {
	cfg, source := loadConfig()
	log.Printf("Starting tradecore using %s", source)
	log.Printf("broker_url=%s total_capital=%s max_order_size=%s max_restarts=%d",
		cfg.BrokerURL, cfg.TotalCapital, cfg.MaxOrderSize, cfg.MaxRestarts)

	store := buildStore(cfg)
	gw := gateway.New(store)
	bookID := uuid.New()

	orch := orchestrator.New(store, cfg.BrokerURL).WithMaxRestarts(cfg.MaxRestarts)

	if err := registerDefaultAgents(orch, cfg, gw, bookID); err != nil {
		log.Fatalf("Failed to register default agents: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start orchestrator: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %s, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	}

	if err := orch.Stop(); err != nil {
		log.Printf("Orchestrator stop error: %v", err)
	}
	log.Println("tradecore stopped")
}

func loadConfig() (*config.Config, string) {
	if len(os.Args) >= 2 {
		configFile := os.Args[1]
		cfg, err := config.Load(configFile)
		if err != nil {
			log.Fatalf("Failed to load config from %s: %v", configFile, err)
		}
		return cfg, fmt.Sprintf("config file: %s", configFile)
	}

	const defaultPath = "config/tradecore.yaml"
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			log.Printf("Warning: %s exists but failed to load: %v", defaultPath, err)
			log.Printf("Using built-in defaults instead")
			cfg, _ = config.Load("")
			return cfg, fmt.Sprintf("built-in defaults (%s failed to parse)", defaultPath)
		}
		return cfg, fmt.Sprintf("%s (default)", defaultPath)
	}

	log.Printf("No config file specified and %s not found", defaultPath)
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to build default config: %v", err)
	}
	return cfg, "built-in defaults"
}

func buildStore(cfg *config.Config) storage.Adapter {
	if cfg.Persistence.BaseURL == "" {
		log.Printf("No persistence.base_url configured, using an in-memory store")
		return storage.NewMemoryAdapter()
	}
	return storage.NewRESTClient(cfg.Persistence.BaseURL, cfg.Persistence.ServiceKey)
}

// registerDefaultAgents wires up the default agent set: one meta_decision
// (structurally first, per the orchestrator's registration invariant), one
// signal, one risk, one execution, and one capital_allocation agent.
func registerDefaultAgents(orch *orchestrator.Orchestrator, cfg *config.Config, gw *gateway.Gateway, bookID uuid.UUID) error {
	meta := agents.NewMetaDecisionAgent(cfg.MinConfidence)
	if err := orch.Register("meta-decision-01", models.AgentTypeMetaDecision, meta,
		[]string{string(envelope.ChannelSignals)}, []string{"veto"}); err != nil {
		return err
	}

	signal := agents.NewSignalAgent("BTC-USD", 0)
	if err := orch.Register("signal-01", models.AgentTypeSignal, signal,
		nil, []string{"signal_generation"}); err != nil {
		return err
	}

	risk := agents.NewRiskAgent(cfg.MaxOrderSizeDecimal())
	if err := orch.Register("risk-01", models.AgentTypeRisk, risk,
		[]string{string(envelope.ChannelRiskCheck)}, []string{"risk_check"}); err != nil {
		return err
	}

	execution := agents.NewExecutionAgent(gw, bookID, noopVenueExecute)
	if err := orch.Register("execution-01", models.AgentTypeExecution, execution,
		[]string{string(envelope.ChannelRiskApproved)}, []string{"order_execution"}); err != nil {
		return err
	}

	capital := agents.NewCapitalAllocationAgent(cfg.TotalCapitalDecimal())
	if err := orch.Register("capital-allocation-01", models.AgentTypeCapitalAllocation, capital,
		[]string{string(envelope.ChannelFills)}, []string{"capital_tracking"}); err != nil {
		return err
	}

	return nil
}

// noopVenueExecute is a placeholder venue adapter: it fills every order at
// the requested size with no price, standing in for real venue connectors.
func noopVenueExecute(ctx context.Context, req *models.OrderRequest, orderID uuid.UUID) (decimal.Decimal, *decimal.Decimal, *string, error) {
	return req.Size, nil, nil, nil
}
