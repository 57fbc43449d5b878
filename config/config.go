// Package config centralises runtime configuration for the CTA engine daemon.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// DatabaseSettings configures the Postgres snapshot store. An empty DSN
// selects the in-memory store.
type DatabaseSettings struct {
	DSN           string `yaml:"dsn"`
	MigrationsDir string `yaml:"migrations_dir"`
}

// EngineSettings tunes the strategy engine.
type EngineSettings struct {
	// OrderRate caps venue order submissions per second; zero disables it.
	OrderRate float64 `yaml:"order_rate"`
	// OrderBurst is the limiter burst size.
	OrderBurst int `yaml:"order_burst"`
	// InitQueueDepth bounds pending strategy initializations.
	InitQueueDepth int `yaml:"init_queue_depth"`
}

// PaperSettings configures the built-in simulated venue.
type PaperSettings struct {
	// Symbols lists the market-qualified instruments the venue quotes.
	Symbols []string `yaml:"symbols"`
	// TickInterval is the simulated tick cadence.
	TickInterval time.Duration `yaml:"tick_interval"`
	// Seed fixes the price-walk random source; zero derives one from time.
	Seed int64 `yaml:"seed"`
}

// MetricsSettings configures the Prometheus scrape endpoint.
type MetricsSettings struct {
	Addr string `yaml:"addr"`
}

// Settings is the configuration tree loaded from defaults, an optional YAML
// file and environment overrides.
type Settings struct {
	Environment Environment      `yaml:"environment"`
	Database    DatabaseSettings `yaml:"database"`
	Engine      EngineSettings   `yaml:"engine"`
	Paper       PaperSettings    `yaml:"paper"`
	Metrics     MetricsSettings  `yaml:"metrics"`
}

// Default returns the default configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Database: DatabaseSettings{
			DSN:           "",
			MigrationsDir: "db/migrations",
		},
		Engine: EngineSettings{
			OrderRate:      0,
			OrderBurst:     1,
			InitQueueDepth: 64,
		},
		Paper: PaperSettings{
			Symbols:      []string{"BTCUSDT.SIM"},
			TickInterval: time.Second,
			Seed:         0,
		},
		Metrics: MetricsSettings{
			Addr: ":9099",
		},
	}
}

// Load builds settings from defaults, the YAML file at path when non-empty,
// then CTA_* environment overrides.
func Load(path string) (Settings, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// FromEnv loads configuration from defaults and environment variables only.
func FromEnv() Settings {
	cfg := Default()
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Settings) {
	if v := strings.TrimSpace(os.Getenv("CTA_ENV")); v != "" {
		cfg.Environment = Environment(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("CTA_DATABASE_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("CTA_MIGRATIONS_DIR")); v != "" {
		cfg.Database.MigrationsDir = v
	}
	if v := strings.TrimSpace(os.Getenv("CTA_ORDER_RATE")); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate >= 0 {
			cfg.Engine.OrderRate = rate
		}
	}
	if v := strings.TrimSpace(os.Getenv("CTA_ORDER_BURST")); v != "" {
		if burst, err := strconv.Atoi(v); err == nil && burst > 0 {
			cfg.Engine.OrderBurst = burst
		}
	}
	if v := strings.TrimSpace(os.Getenv("CTA_INIT_QUEUE_DEPTH")); v != "" {
		if depth, err := strconv.Atoi(v); err == nil && depth > 0 {
			cfg.Engine.InitQueueDepth = depth
		}
	}
	if v := strings.TrimSpace(os.Getenv("CTA_PAPER_SYMBOLS")); v != "" {
		parts := strings.Split(v, ",")
		symbols := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				symbols = append(symbols, trimmed)
			}
		}
		if len(symbols) > 0 {
			cfg.Paper.Symbols = symbols
		}
	}
	if v := strings.TrimSpace(os.Getenv("CTA_PAPER_TICK_INTERVAL")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
			cfg.Paper.TickInterval = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("CTA_PAPER_SEED")); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Paper.Seed = seed
		}
	}
	if v := strings.TrimSpace(os.Getenv("CTA_METRICS_ADDR")); v != "" {
		cfg.Metrics.Addr = v
	}
}
