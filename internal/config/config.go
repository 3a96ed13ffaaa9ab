// Package config loads the process-wiring configuration the entry point
// (cmd/orchestrator) needs: bus broker address, persistence base URL,
// total capital, and the enabled venue list.
//
// Configuration is a YAML file with post-unmarshal defaulting and
// validation; a TRADECORE_* environment variable wins over the file value
// when set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	BrokerURL string `yaml:"broker_url"`

	Persistence PersistenceConfig `yaml:"persistence"`

	TotalCapital  string   `yaml:"total_capital"`
	EnabledVenues []string `yaml:"enabled_venues"`
	MaxOrderSize  string   `yaml:"max_order_size"`
	MinConfidence float64  `yaml:"min_confidence"`
	MaxRestarts   int      `yaml:"max_restarts"`
}

// PersistenceConfig wires internal/storage.RESTClient.
type PersistenceConfig struct {
	BaseURL    string `yaml:"base_url"`
	ServiceKey string `yaml:"service_key"`
}

// Load reads filename as YAML, applies defaults, overlays TRADECORE_*
// environment variables, and validates the result.
func Load(filename string) (*Config, error) {
	var cfg Config

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", filename, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", filename, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TRADECORE_BROKER_URL"); v != "" {
		c.BrokerURL = v
	}
	if v := os.Getenv("TRADECORE_PERSISTENCE_BASE_URL"); v != "" {
		c.Persistence.BaseURL = v
	}
	if v := os.Getenv("TRADECORE_PERSISTENCE_SERVICE_KEY"); v != "" {
		c.Persistence.ServiceKey = v
	}
	// TOTAL_CAPITAL and ENABLED_VENUES are also accepted unprefixed, for
	// deployments that share them with other processes.
	if v := firstEnv("TRADECORE_TOTAL_CAPITAL", "TOTAL_CAPITAL"); v != "" {
		c.TotalCapital = v
	}
	if v := firstEnv("TRADECORE_ENABLED_VENUES", "ENABLED_VENUES"); v != "" {
		c.EnabledVenues = strings.Split(v, ",")
	}
	if v := os.Getenv("TRADECORE_MAX_ORDER_SIZE"); v != "" {
		c.MaxOrderSize = v
	}
	if v := os.Getenv("TRADECORE_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MinConfidence = f
		}
	}
	if v := os.Getenv("TRADECORE_MAX_RESTARTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRestarts = n
		}
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) applyDefaults() {
	if c.BrokerURL == "" {
		c.BrokerURL = "memory://tradecore"
	}
	if c.TotalCapital == "" {
		c.TotalCapital = "100000"
	}
	if c.MaxOrderSize == "" {
		c.MaxOrderSize = "10000"
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = 0.5
	}
	if c.MaxRestarts == 0 {
		c.MaxRestarts = 5
	}
}

func (c *Config) validate() error {
	if _, err := decimal.NewFromString(c.TotalCapital); err != nil {
		return fmt.Errorf("config: total_capital %q is not a valid decimal: %w", c.TotalCapital, err)
	}
	if _, err := decimal.NewFromString(c.MaxOrderSize); err != nil {
		return fmt.Errorf("config: max_order_size %q is not a valid decimal: %w", c.MaxOrderSize, err)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("config: min_confidence must be in [0, 1], got %v", c.MinConfidence)
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("config: max_restarts cannot be negative, got %d", c.MaxRestarts)
	}
	if c.Persistence.BaseURL != "" && c.Persistence.ServiceKey == "" {
		return fmt.Errorf("config: persistence.base_url is set but persistence.service_key is empty")
	}
	return nil
}

// TotalCapitalDecimal parses TotalCapital; validate has already confirmed
// it parses, so Load's caller never sees the error path here.
func (c *Config) TotalCapitalDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.TotalCapital)
	return d
}

// MaxOrderSizeDecimal parses MaxOrderSize, mirroring TotalCapitalDecimal.
func (c *Config) MaxOrderSizeDecimal() decimal.Decimal {
	d, _ := decimal.NewFromString(c.MaxOrderSize)
	return d
}
