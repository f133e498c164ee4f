package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode     Mode   `env:"FARUM_MODE" envDefault:"local"`
	Port     string `env:"FARUM_PORT" envDefault:"8080"`
	LogLevel string `env:"FARUM_LOG_LEVEL" envDefault:"info"`

	GCPProjectID string `env:"FARUM_GCP_PROJECT"`
	GCPLocation  string `env:"FARUM_GCP_LOCATION" envDefault:"us-central1"`
	ModelName    string `env:"FARUM_MODEL_NAME" envDefault:"gemini-2.5-flash-lite"`

	StorageBackend string `env:"FARUM_STORAGE_BACKEND" envDefault:"memory"` // "memory" or "firestore"
	// UseMockLLM defaults to true in local mode.
	UseMockLLM     *bool         `env:"FARUM_USE_MOCK_LLM"`
	MockLLMLatency time.Duration `env:"FARUM_MOCK_LLM_LATENCY" envDefault:"800ms"`

	Timing Timing

	RandomSeed uint64 `env:"FARUM_RANDOM_SEED" envDefault:"0"`
	ScriptFile string `env:"FARUM_SCRIPT_FILE"`
}

// Timing holds the session timers.
type Timing struct {
	ConnectDelay       time.Duration `env:"FARUM_CONNECT_DELAY" envDefault:"2s"`
	InboundInterval    time.Duration `env:"FARUM_INBOUND_INTERVAL" envDefault:"15s"`
	InboundProbability float64       `env:"FARUM_INBOUND_PROBABILITY" envDefault:"0.3"`
	WaitTick           time.Duration `env:"FARUM_WAIT_TICK" envDefault:"1s"`
	AIHelpThreshold    int           `env:"FARUM_AI_HELP_THRESHOLD" envDefault:"60"`
	ReplyDelay         time.Duration `env:"FARUM_REPLY_DELAY" envDefault:"500ms"`
	ReadSettleDelay    time.Duration `env:"FARUM_READ_SETTLE_DELAY" envDefault:"3s"`
}

// MockLLM reports whether the mock client should be used.
func (c *Config) MockLLM() bool {
	if c.UseMockLLM != nil {
		return *c.UseMockLLM
	}
	return c.Mode == ModeLocal
}

// Load reads all env vars and builds the config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLocal, ModeGCP:
	default:
		return fmt.Errorf("unknown FARUM_MODE %q", c.Mode)
	}

	// Minimal validation in GCP mode
	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		return errors.New("FARUM_GCP_PROJECT must be set in gcp mode")
	}
	if c.StorageBackend == "firestore" && c.GCPProjectID == "" {
		return errors.New("FARUM_GCP_PROJECT is required for Firestore storage backend")
	}
	if c.StorageBackend != "memory" && c.StorageBackend != "firestore" {
		return fmt.Errorf("unknown FARUM_STORAGE_BACKEND %q", c.StorageBackend)
	}

	t := c.Timing
	if t.ConnectDelay <= 0 || t.InboundInterval <= 0 || t.WaitTick <= 0 {
		return errors.New("channel and wait timers must be positive")
	}
	if t.InboundProbability < 0 || t.InboundProbability > 1 {
		return errors.New("FARUM_INBOUND_PROBABILITY must be within [0, 1]")
	}
	if t.AIHelpThreshold <= 0 {
		return errors.New("FARUM_AI_HELP_THRESHOLD must be positive")
	}
	if t.ReplyDelay < 0 || t.ReadSettleDelay < 0 {
		return errors.New("reply and read delays must not be negative")
	}
	return nil
}
