// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jason-s-yu/negotiator/internal/strategy"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all negotiator configuration.
type Config struct {
	Strategy StrategyConfig `yaml:"strategy"`
	Session  SessionConfig  `yaml:"session"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StrategyConfig tunes the negotiation policy.
type StrategyConfig struct {
	ParetoSamples    int     `yaml:"pareto_samples"`
	NashSamples      int     `yaml:"nash_samples"`
	DeadlineTime     float64 `yaml:"deadline_time"`
	SampleAttempts   int     `yaml:"sample_attempts"`
	ProposalAttempts int     `yaml:"proposal_attempts"` // 0 retries until the target is met
	Selection        string  `yaml:"selection"`         // best, last
}

// SessionConfig configures locally simulated sessions.
type SessionConfig struct {
	Rounds      int    `yaml:"rounds"`
	Seed        uint64 `yaml:"seed"`         // 0 picks a random seed per session
	TurnTimeout string `yaml:"turn_timeout"` // idle limit between platform messages
}

// ServerConfig configures the websocket transport.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	Profile   string `yaml:"profile"`
	JWTSecret string `yaml:"jwt_secret"` // empty disables authentication
	Deadline  string `yaml:"deadline"`   // wall-clock session length; empty follows the platform clock
}

// RedisConfig configures the action log. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Queue    string `yaml:"queue"`
}

// DatabaseConfig configures outcome persistence. An empty URL disables it.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	p := strategy.DefaultParams()
	return &Config{
		Strategy: StrategyConfig{
			ParetoSamples:    p.ParetoSamples,
			NashSamples:      p.NashSamples,
			DeadlineTime:     p.DeadlineTime,
			SampleAttempts:   p.SampleAttempts,
			ProposalAttempts: p.ProposalAttempts,
			Selection:        string(p.Selection),
		},
		Session: SessionConfig{
			Rounds:      180,
			TurnTimeout: "60s",
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Profile: "profiles/party_a.yaml",
		},
		Redis: RedisConfig{
			Queue: "negotiation_actions",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path, a .env
// file in the working directory, and finally the process environment.
// A missing config file or .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Server.JWTSecret = secret
	}
	if addr := os.Getenv("NEGOTIATOR_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("NEGOTIATOR_PROFILE"); path != "" {
		c.Server.Profile = path
	}
	if level := os.Getenv("NEGOTIATOR_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("NEGOTIATOR_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if mode := os.Getenv("NEGOTIATOR_SELECTION"); mode != "" {
		c.Strategy.Selection = mode
	}
	if v := os.Getenv("NEGOTIATOR_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NEGOTIATOR_ROUNDS: %w", err)
		}
		c.Session.Rounds = n
	}
	if v := os.Getenv("NEGOTIATOR_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("NEGOTIATOR_SEED: %w", err)
		}
		c.Session.Seed = n
	}
	return nil
}

// Validate rejects values the negotiator cannot run with.
func (c *Config) Validate() error {
	if _, err := c.Strategy.Params(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if c.Session.Rounds <= 0 {
		return fmt.Errorf("session: rounds must be positive, got %d", c.Session.Rounds)
	}
	if _, err := time.ParseDuration(c.Session.TurnTimeout); err != nil {
		return fmt.Errorf("session: turn_timeout: %w", err)
	}
	if c.Server.Deadline != "" {
		if d, err := time.ParseDuration(c.Server.Deadline); err != nil || d <= 0 {
			return fmt.Errorf("server: deadline must be a positive duration, got %q", c.Server.Deadline)
		}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	return nil
}

// Params converts the section into policy parameters.
func (s StrategyConfig) Params() (strategy.Params, error) {
	mode, err := strategy.ParseSelectionMode(s.Selection)
	if err != nil {
		return strategy.Params{}, err
	}
	p := strategy.Params{
		ParetoSamples:    s.ParetoSamples,
		NashSamples:      s.NashSamples,
		DeadlineTime:     s.DeadlineTime,
		SampleAttempts:   s.SampleAttempts,
		ProposalAttempts: s.ProposalAttempts,
		Selection:        mode,
	}
	return p, p.Validate()
}

// GetTurnTimeout returns the per-turn timeout as a duration.
func (c *Config) GetTurnTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.TurnTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetDeadline returns the server-side session length, or 0 when the platform
// drives the clock.
func (c *Config) GetDeadline() time.Duration {
	d, err := time.ParseDuration(c.Server.Deadline)
	if err != nil {
		return 0
	}
	return d
}
