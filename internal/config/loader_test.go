package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temp dir and clears provider keys.
func setupTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("TAVILY_API_KEY", "")
	return home
}

// writeConfig writes content into the allowed config dir with the given mode.
func writeConfig(t *testing.T, home, content string, mode os.FileMode) string {
	t.Helper()

	dir := filepath.Join(home, ".config", "finagent")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	// WriteFile honours umask; force the mode under test
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("failed to chmod config: %v", err)
	}
	return path
}

func TestLoad_DefaultsOffline(t *testing.T) {
	setupTestHome(t)
	t.Setenv("FINAGENT_AGENT_MODE", "offline")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.Mode != AgentModeOffline {
		t.Errorf("Agent.Mode = %q, want %q", cfg.Agent.Mode, AgentModeOffline)
	}
	if cfg.Memory.Path != "agent_memory.json" {
		t.Errorf("Memory.Path = %q, want agent_memory.json", cfg.Memory.Path)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Agent.Model != "llama-3.1-8b-instant" {
		t.Errorf("Agent.Model = %q", cfg.Agent.Model)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled = true, want false by default")
	}
	if cfg.Observability.EnableTelemetry {
		t.Error("Observability.EnableTelemetry = true, want false by default")
	}
}

func TestLoad_LLMModeRequiresKeys(t *testing.T) {
	setupTestHome(t)

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() error = nil, want missing api key error")
	}
	if !strings.Contains(err.Error(), "agent.api_key") {
		t.Errorf("error = %v, want mention of agent.api_key", err)
	}
}

func TestLoad_ProviderKeyFallback(t *testing.T) {
	setupTestHome(t)
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("TAVILY_API_KEY", "tvly-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.APIKey.Value() != "gsk-test" {
		t.Errorf("Agent.APIKey not taken from GROQ_API_KEY")
	}
	if cfg.Search.APIKey.Value() != "tvly-test" {
		t.Errorf("Search.APIKey not taken from TAVILY_API_KEY")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, `memory:
  path: /tmp/finagent/memory.json
agent:
  mode: offline
  timeout: 45s
server:
  port: 9191
nats:
  enabled: true
  url: nats://127.0.0.1:4222
`, 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Memory.Path != "/tmp/finagent/memory.json" {
		t.Errorf("Memory.Path = %q", cfg.Memory.Path)
	}
	if cfg.Agent.Timeout.Duration() != 45*time.Second {
		t.Errorf("Agent.Timeout = %v, want 45s", cfg.Agent.Timeout.Duration())
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
	if !cfg.NATS.Enabled {
		t.Error("NATS.Enabled = false, want true")
	}
	if cfg.NATS.SubjectPrefix != "finagent" {
		t.Errorf("NATS.SubjectPrefix = %q, want default", cfg.NATS.SubjectPrefix)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, "agent:\n  mode: offline\nserver:\n  port: 9191\n", 0600)
	t.Setenv("FINAGENT_SERVER_PORT", "9292")
	t.Setenv("FINAGENT_MEMORY_PATH", "/var/lib/finagent/memory.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9292 {
		t.Errorf("Server.Port = %d, want 9292 from env", cfg.Server.Port)
	}
	if cfg.Memory.Path != "/var/lib/finagent/memory.json" {
		t.Errorf("Memory.Path = %q, want env override", cfg.Memory.Path)
	}
}

func TestLoad_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	home := setupTestHome(t)
	path := writeConfig(t, home, "agent:\n  mode: offline\n", 0644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() error = nil, want permission error")
	}
	if !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_PathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)

	_, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want path validation error")
	}
	if !strings.Contains(err.Error(), "config path validation failed") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_InvalidMode(t *testing.T) {
	setupTestHome(t)
	t.Setenv("FINAGENT_AGENT_MODE", "psychic")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "agent.mode") {
		t.Fatalf("Load() error = %v, want agent.mode error", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"FINAGENT_AGENT_API_KEY":                 "agent.api_key",
		"FINAGENT_SERVER_SHUTDOWN_TIMEOUT":       "server.shutdown_timeout",
		"FINAGENT_OBSERVABILITY_ENABLE_TELEMETRY": "observability.enable_telemetry",
		"FINAGENT_MEMORY":                        "memory",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoad_Overrides(t *testing.T) {
	setupTestHome(t)
	t.Setenv("FINAGENT_AGENT_MODE", "llm")
	t.Setenv("FINAGENT_MEMORY_PATH", "/tmp/env_memory.json")

	// llm mode would fail validation without keys; the override wins
	cfg, err := Load("", WithAgentMode(AgentModeOffline), WithMemoryPath("/tmp/flag_memory.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.Mode != AgentModeOffline {
		t.Errorf("Agent.Mode = %q, want %q", cfg.Agent.Mode, AgentModeOffline)
	}
	if cfg.Memory.Path != "/tmp/flag_memory.json" {
		t.Errorf("Memory.Path = %q, want /tmp/flag_memory.json", cfg.Memory.Path)
	}

	cfg, err = Load("", WithAgentMode(AgentModeOffline), WithMemoryPath(""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Memory.Path != "/tmp/env_memory.json" {
		t.Errorf("empty override replaced Memory.Path: %q", cfg.Memory.Path)
	}
}
