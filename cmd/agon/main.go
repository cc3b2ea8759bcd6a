package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mtzanidakis/agon/internal/arena"
	"github.com/mtzanidakis/agon/internal/artifact"
	"github.com/mtzanidakis/agon/internal/broker"
	"github.com/mtzanidakis/agon/internal/config"
	"github.com/mtzanidakis/agon/internal/letta"
	"github.com/mtzanidakis/agon/internal/natsbus"
	"github.com/mtzanidakis/agon/internal/orchestrator"
	"github.com/mtzanidakis/agon/internal/registry"
	"github.com/mtzanidakis/agon/internal/scheduler"
	"github.com/mtzanidakis/agon/internal/store"
	"github.com/mtzanidakis/agon/internal/vault"
	"github.com/mtzanidakis/agon/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("agon %s\n", version)
	case "gateway":
		if err := runGateway(); err != nil {
			slog.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	case "run":
		if err := runInteractive(); err != nil {
			slog.Error("run failed", "error", err)
			os.Exit(1)
		}
	case "export":
		if err := runExport(os.Args[2:]); err != nil {
			slog.Error("export failed", "error", err)
			os.Exit(1)
		}
	case "vault":
		if err := runVault(os.Args[2:]); err != nil {
			slog.Error("vault failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: agon <command>

Commands:
  gateway    Start the agon gateway service
  run        Run a competition interactively
  export     Archive a project's artifacts
  vault      Manage encrypted secrets
  version    Print version
`)
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting agon gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	events, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer events.Close()

	// Persona registry
	reg := registry.New(db, cfg.Personas)
	if err := reg.Sync(); err != nil {
		return fmt.Errorf("sync persona registry: %w", err)
	}

	// Secret vault, used as a token fallback when the env var is unset
	v := openVault()
	if cfg.Letta.Token == "" && v != nil {
		if token := loadStoredToken(db, v); token != "" {
			cfg.Letta.Token = token
			slog.Info("letta token loaded from vault")
		}
	}
	if cfg.Letta.Token == "" {
		slog.Warn("letta token not set, agent calls will be unauthenticated")
	}

	client := letta.NewClient(cfg.Letta)

	// Workflow wiring
	msgs := broker.New(db)
	artifacts := artifact.NewManager(cfg.Artifacts.BasePath)
	planner := orchestrator.New(client, cfg.Planner.AgentID)
	commentator := arena.NewCommentator(client, cfg.Planner.CommentatorAgentID)

	personas, skipped := cfg.ActivePersonas()
	for _, name := range skipped {
		slog.Warn("persona missing agent id, excluded from competition", "persona", name)
	}

	runner := arena.NewRunner(arena.RunnerOpts{
		Client:         client,
		Planner:        planner,
		Selector:       arena.HeuristicSelector{},
		Commentator:    commentator,
		Personas:       toArenaPersonas(personas),
		Store:          db,
		Artifacts:      artifacts,
		Broker:         msgs,
		Events:         events,
		PersonaTimeout: cfg.Arena.PersonaTimeout,
		RoundTimeout:   cfg.Arena.RoundTimeout,
	})

	// Scheduler for recurring competitions
	sched := scheduler.New(db, runner, cfg.Scheduler)
	go sched.Start(ctx)
	slog.Info("scheduler started")

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, runner, reg, client, artifacts, v, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}

func toArenaPersonas(defs []config.PersonaConfig) []arena.Persona {
	out := make([]arena.Persona, 0, len(defs))
	for _, def := range defs {
		out = append(out, arena.Persona{
			Name:        def.Name,
			AgentID:     def.AgentID,
			Personality: def.Personality,
			Keywords:    def.Keywords,
		})
	}
	return out
}

func openVault() *vault.Vault {
	passphrase := os.Getenv("AGON_VAULT_PASSPHRASE")
	if passphrase == "" {
		return nil
	}
	return vault.New(passphrase)
}

// loadStoredToken decrypts the letta_api_token secret if one was stored
// through the vault command.
func loadStoredToken(db *store.Store, v *vault.Vault) string {
	sec, err := db.GetSecret(lettaTokenSecret)
	if err != nil || sec == nil {
		return ""
	}
	plaintext, err := v.Decrypt(sec.Value, sec.Nonce)
	if err != nil {
		slog.Warn("stored letta token could not be decrypted", "error", err)
		return ""
	}
	return string(plaintext)
}
