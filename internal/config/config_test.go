package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Letta.BaseURL != "https://api.letta.com" {
		t.Errorf("expected default letta base url, got %s", cfg.Letta.BaseURL)
	}
	if cfg.Letta.Timeout != 120*time.Second {
		t.Errorf("expected letta timeout 120s, got %v", cfg.Letta.Timeout)
	}
	if cfg.Arena.PersonaTimeout != 2*time.Minute {
		t.Errorf("expected persona timeout 2m, got %v", cfg.Arena.PersonaTimeout)
	}
	if cfg.NATS.Port != 4222 {
		t.Errorf("expected nats port 4222, got %d", cfg.NATS.Port)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected web port 8080, got %d", cfg.Web.Port)
	}
	if !cfg.Web.Enabled {
		t.Error("expected web enabled by default")
	}
	if cfg.Store.Path != "data/agon.db" {
		t.Errorf("expected store path data/agon.db, got %s", cfg.Store.Path)
	}
	if cfg.Artifacts.BasePath != "artifacts" {
		t.Errorf("expected artifacts base path artifacts, got %s", cfg.Artifacts.BasePath)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	// Point config to a non-existent file so we use defaults
	t.Setenv("AGON_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("LETTA_API_TOKEN", "sk-test-token")
	t.Setenv("LETTA_ORCHESTRATOR_AGENT_ID", "agent-planner")
	t.Setenv("AGON_WEB_PASSWORD", "secret")
	t.Setenv("AGON_WEB_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Letta.Token != "sk-test-token" {
		t.Errorf("expected letta token sk-test-token, got %s", cfg.Letta.Token)
	}
	if cfg.Planner.AgentID != "agent-planner" {
		t.Errorf("expected planner agent-planner, got %s", cfg.Planner.AgentID)
	}
	if cfg.Web.Auth != "secret" {
		t.Errorf("expected web auth secret, got %s", cfg.Web.Auth)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected web port 9090, got %d", cfg.Web.Port)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "agon.yaml")

	yaml := `
letta:
  base_url: "http://localhost:8283"
personas:
  - name: vera
    agent_id: "${TEST_AGENT_VERA}"
    personality: "perfectionist engineer"
    keywords: [perfectionist]
  - name: max
    agent_id: "${TEST_AGENT_MAX}"
    personality: "pragmatic shipper"
    keywords: [pragmatic]
web:
  port: 3000
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AGON_CONFIG", cfgPath)
	t.Setenv("TEST_AGENT_VERA", "agent-vera-1")
	os.Unsetenv("TEST_AGENT_MAX")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Letta.BaseURL != "http://localhost:8283" {
		t.Errorf("expected yaml base url, got %s", cfg.Letta.BaseURL)
	}
	if cfg.Web.Port != 3000 {
		t.Errorf("expected web port 3000, got %d", cfg.Web.Port)
	}
	if len(cfg.Personas) != 2 {
		t.Fatalf("expected 2 personas, got %d", len(cfg.Personas))
	}
	if cfg.Personas[0].AgentID != "agent-vera-1" {
		t.Errorf("expected expanded agent id, got %q", cfg.Personas[0].AgentID)
	}

	// The persona whose env var never resolved is skipped, not fatal
	active, skipped := cfg.ActivePersonas()
	if len(active) != 1 || active[0].Name != "vera" {
		t.Errorf("expected only vera active, got %+v", active)
	}
	if len(skipped) != 1 || skipped[0] != "max" {
		t.Errorf("expected max skipped, got %v", skipped)
	}
}
