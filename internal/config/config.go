// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"coupdegrace/server/logging"
)

var ErrInvalid = errors.New("config: invalid value")

// Config holds every server setting. Flags may override fields after Load.
type Config struct {
	Addr             string        `env:"COUPDEGRACE_ADDR" envDefault:":8080"`
	TickRate         int           `env:"COUPDEGRACE_TICK_RATE" envDefault:"15"`
	Seed             string        `env:"COUPDEGRACE_SEED" envDefault:"prototype"`
	Prototypes       string        `env:"COUPDEGRACE_PROTOTYPES"`
	InteractionRange float64       `env:"COUPDEGRACE_INTERACTION_RANGE" envDefault:"1.5"`
	CommandCapacity  int           `env:"COUPDEGRACE_COMMAND_CAPACITY" envDefault:"1024"`
	PerActorLimit    int           `env:"COUPDEGRACE_PER_ACTOR_LIMIT" envDefault:"32"`
	ShutdownTimeout  time.Duration `env:"COUPDEGRACE_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	LogSinks    []string `env:"COUPDEGRACE_LOG_SINKS" envSeparator:"," envDefault:"console"`
	LogLevel    string   `env:"COUPDEGRACE_LOG_LEVEL" envDefault:"info"`
	LogJSONPath string   `env:"COUPDEGRACE_LOG_JSON_PATH"`
}

var knownSinks = map[string]bool{"console": true, "json": true, "zap": true, "memory": true}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom is Load over an explicit environment, used by tests.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, fmt.Errorf("%w: addr is empty", ErrInvalid))
	}
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: tick rate must be positive, got %d", ErrInvalid, c.TickRate))
	}
	if c.InteractionRange <= 0 {
		errs = append(errs, fmt.Errorf("%w: interaction range must be positive", ErrInvalid))
	}
	if c.CommandCapacity <= 0 {
		errs = append(errs, fmt.Errorf("%w: command capacity must be positive", ErrInvalid))
	}
	if len(c.LogSinks) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one log sink is required", ErrInvalid))
	}
	for _, sink := range c.LogSinks {
		if !knownSinks[sink] {
			errs = append(errs, fmt.Errorf("%w: unknown log sink %q", ErrInvalid, sink))
		}
		if sink == "json" && c.LogJSONPath == "" {
			errs = append(errs, fmt.Errorf("%w: json sink needs COUPDEGRACE_LOG_JSON_PATH", ErrInvalid))
		}
	}
	if _, err := logging.ParseSeverity(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// Logging derives the event router configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = append([]string(nil), c.LogSinks...)
	if severity, err := logging.ParseSeverity(c.LogLevel); err == nil {
		cfg.MinimumSeverity = severity
	}
	cfg.JSON.FilePath = c.LogJSONPath
	cfg.Fields = map[string]any{"seed": c.Seed}
	return cfg
}
