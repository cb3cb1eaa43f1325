// Package config provides configuration loading for finagent.
package config

import (
	"fmt"
	"time"
)

// Agent execution modes.
const (
	AgentModeLLM     = "llm"
	AgentModeOffline = "offline"
)

// Config is the complete finagent configuration.
type Config struct {
	Memory        MemoryConfig        `koanf:"memory"`
	Agent         AgentConfig         `koanf:"agent"`
	Search        SearchConfig        `koanf:"search"`
	Server        ServerConfig        `koanf:"server"`
	NATS          NATSConfig          `koanf:"nats"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// MemoryConfig locates the persisted learning memory.
type MemoryConfig struct {
	Path string `koanf:"path"`
}

// AgentConfig configures the LLM that plans tool calls and writes reports.
type AgentConfig struct {
	// Mode is "llm" for a live OpenAI-compatible endpoint or "offline"
	// for the deterministic planner.
	Mode       string   `koanf:"mode"`
	Model      string   `koanf:"model"`
	BaseURL    string   `koanf:"base_url"`
	APIKey     Secret   `koanf:"api_key"`
	Timeout    Duration `koanf:"timeout"`
	RateLimit  float64  `koanf:"rate_limit"` // requests per second
	Burst      int      `koanf:"burst"`
	MaxRetries int      `koanf:"max_retries"`
}

// SearchConfig configures the Tavily research API.
type SearchConfig struct {
	BaseURL    string   `koanf:"base_url"`
	APIKey     Secret   `koanf:"api_key"`
	MaxResults int      `koanf:"max_results"`
	Timeout    Duration `koanf:"timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// NATSConfig configures run event publishing.
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ObservabilityConfig configures OpenTelemetry export.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"` // "grpc" or "http/protobuf"
	OTLPInsecure    bool   `koanf:"otlp_insecure"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks the configuration for impossible values.
func (c *Config) Validate() error {
	if c.Memory.Path == "" {
		return fmt.Errorf("memory.path is required")
	}

	switch c.Agent.Mode {
	case AgentModeLLM:
		if !c.Agent.APIKey.IsSet() {
			return fmt.Errorf("agent.api_key is required in %q mode (or set GROQ_API_KEY)", AgentModeLLM)
		}
		if !c.Search.APIKey.IsSet() {
			return fmt.Errorf("search.api_key is required in %q mode (or set TAVILY_API_KEY)", AgentModeLLM)
		}
	case AgentModeOffline:
	default:
		return fmt.Errorf("agent.mode must be %q or %q, got %q", AgentModeLLM, AgentModeOffline, c.Agent.Mode)
	}

	if c.Agent.RateLimit <= 0 {
		return fmt.Errorf("agent.rate_limit must be positive, got %v", c.Agent.RateLimit)
	}
	if c.Agent.Burst < 1 {
		return fmt.Errorf("agent.burst must be at least 1, got %d", c.Agent.Burst)
	}
	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("agent.max_retries cannot be negative, got %d", c.Agent.MaxRetries)
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 20 {
		return fmt.Errorf("search.max_results must be between 1 and 20, got %d", c.Search.MaxResults)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}

	if c.Observability.EnableTelemetry && c.Observability.OTLPEndpoint == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when telemetry is enabled")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Memory.Path == "" {
		cfg.Memory.Path = "agent_memory.json"
	}

	// Agent defaults target Groq's OpenAI-compatible endpoint
	if cfg.Agent.Mode == "" {
		cfg.Agent.Mode = AgentModeLLM
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "llama-3.1-8b-instant"
	}
	if cfg.Agent.BaseURL == "" {
		cfg.Agent.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Agent.Timeout == 0 {
		cfg.Agent.Timeout = Duration(60 * time.Second)
	}
	if cfg.Agent.RateLimit == 0 {
		cfg.Agent.RateLimit = 0.5
	}
	if cfg.Agent.Burst == 0 {
		cfg.Agent.Burst = 2
	}
	if cfg.Agent.MaxRetries == 0 {
		cfg.Agent.MaxRetries = 2
	}

	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = "https://api.tavily.com"
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 3
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = Duration(20 * time.Second)
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "finagent"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "finagent"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}
