package logging

import (
	"fmt"
	"regexp"

	"go.uber.org/zap/zapcore"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/config"
)

// Config holds logging configuration.
type Config struct {
	Level     zapcore.Level
	Format    string // "json" or "console"
	Stdout    bool
	OTEL      bool
	Caller    bool
	Fields    map[string]string
	Redaction RedactionConfig
}

// RedactionConfig lists field names and value patterns that must never be logged.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Stdout: true,
		Caller: true,
		Fields: map[string]string{
			"service": "finagent",
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"api_key", "token", "secret", "authorization", "bearer",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`\bgsk_[A-Za-z0-9]{8,}`,
				`\btvly-[A-Za-z0-9-]{8,}`,
			},
		},
	}
}

// FromAppConfig builds a logging config from the application config section.
func FromAppConfig(cfg config.LoggingConfig, telemetryEnabled bool) (*Config, error) {
	out := NewDefaultConfig()

	level, err := LevelFromString(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	out.Level = level
	if cfg.Format != "" {
		out.Format = cfg.Format
	}
	out.OTEL = telemetryEnabled

	return out, nil
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Stdout && !c.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}
	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > 200 {
				return fmt.Errorf("redaction pattern too long (max 200 chars): %q", pattern)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("constant field %q must have a non-empty key and value", k)
		}
	}
	return nil
}
