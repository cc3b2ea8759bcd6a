package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Letta     LettaConfig     `yaml:"letta"`
	Personas  []PersonaConfig `yaml:"personas"`
	Planner   PlannerConfig   `yaml:"planner"`
	Arena     ArenaConfig     `yaml:"arena"`
	NATS      NATSConfig      `yaml:"nats"`
	Store     StoreConfig     `yaml:"store"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Web       WebConfig       `yaml:"web"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// LettaConfig points at the external agent platform. Token may be left
// empty and provisioned later through the encrypted secret store.
type LettaConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Token     string        `yaml:"token"`
	ProjectID string        `yaml:"project_id"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PersonaConfig describes one competing agent. AgentID usually references
// an externally provisioned agent via env expansion (e.g. ${LETTA_AGENT_ONE}).
type PersonaConfig struct {
	Name        string   `yaml:"name"`
	AgentID     string   `yaml:"agent_id"`
	Personality string   `yaml:"personality"`
	Keywords    []string `yaml:"keywords"`
}

// PlannerConfig names the agents used for project decomposition and
// round commentary.
type PlannerConfig struct {
	AgentID            string `yaml:"agent_id"`
	CommentatorAgentID string `yaml:"commentator_agent_id"`
}

type ArenaConfig struct {
	PersonaTimeout time.Duration `yaml:"persona_timeout"`
	RoundTimeout   time.Duration `yaml:"round_timeout"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type ArtifactsConfig struct {
	BasePath string `yaml:"base_path"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

func defaults() Config {
	return Config{
		Letta: LettaConfig{
			BaseURL: "https://api.letta.com",
			Timeout: 120 * time.Second,
		},
		Arena: ArenaConfig{
			PersonaTimeout: 2 * time.Minute,
			RoundTimeout:   15 * time.Minute,
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/agon.db",
		},
		Artifacts: ArtifactsConfig{
			BasePath: "artifacts",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
	}
}

func Load() (*Config, error) {
	// Optional .env, loaded before any env expansion below.
	_ = godotenv.Load()

	cfg := defaults()

	path := os.Getenv("AGON_CONFIG")
	if path == "" {
		path = "config/agon.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LETTA_API_TOKEN"); v != "" {
		cfg.Letta.Token = v
	}
	if v := os.Getenv("LETTA_BASE_URL"); v != "" {
		cfg.Letta.BaseURL = v
	}
	if v := os.Getenv("LETTA_PROJECT_ID"); v != "" {
		cfg.Letta.ProjectID = v
	}
	if v := os.Getenv("LETTA_ORCHESTRATOR_AGENT_ID"); v != "" {
		cfg.Planner.AgentID = v
	}
	if v := os.Getenv("LETTA_AGENT_COMMENTATOR"); v != "" {
		cfg.Planner.CommentatorAgentID = v
	}
	if v := os.Getenv("AGON_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("AGON_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("AGON_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("AGON_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("AGON_ARTIFACTS_PATH"); v != "" {
		cfg.Artifacts.BasePath = v
	}
}

// ActivePersonas filters out personas whose agent_id never resolved
// (an absent env var leaves the expansion empty). Skipped names are
// returned so the caller can log them; a run continues with fewer
// participants.
func (c *Config) ActivePersonas() (active []PersonaConfig, skipped []string) {
	for _, p := range c.Personas {
		if p.AgentID == "" {
			skipped = append(skipped, p.Name)
			continue
		}
		active = append(active, p)
	}
	return active, skipped
}
