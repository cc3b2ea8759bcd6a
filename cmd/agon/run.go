package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mtzanidakis/agon/internal/arena"
	"github.com/mtzanidakis/agon/internal/artifact"
	"github.com/mtzanidakis/agon/internal/broker"
	"github.com/mtzanidakis/agon/internal/config"
	"github.com/mtzanidakis/agon/internal/letta"
	"github.com/mtzanidakis/agon/internal/orchestrator"
	"github.com/mtzanidakis/agon/internal/registry"
	"github.com/mtzanidakis/agon/internal/store"
)

const codePreviewLines = 12

func runInteractive() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	if cfg.Letta.Token == "" {
		if v := openVault(); v != nil {
			cfg.Letta.Token = loadStoredToken(db, v)
		}
	}

	reg := registry.New(db, cfg.Personas)
	if err := reg.Sync(); err != nil {
		return fmt.Errorf("sync persona registry: %w", err)
	}

	client := letta.NewClient(cfg.Letta)

	personas, skipped := cfg.ActivePersonas()
	for _, name := range skipped {
		fmt.Printf("Persona %s has no agent id, skipping.\n", name)
	}
	if len(personas) == 0 {
		return fmt.Errorf("no personas with agent ids configured")
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Describe the project to build: ")
	task, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read project description: %w", err)
	}
	task = strings.TrimSpace(task)
	if task == "" {
		return fmt.Errorf("project description is empty")
	}

	ctx := context.Background()

	// Fresh start: clear the remote agents' project memory.
	for _, p := range personas {
		rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		reg.ResetContext(rctx, client, p.AgentID)
		cancel()
	}

	runner := arena.NewRunner(arena.RunnerOpts{
		Client:         client,
		Planner:        orchestrator.New(client, cfg.Planner.AgentID),
		Selector:       &consoleSelector{in: reader},
		Commentator:    arena.NewCommentator(client, cfg.Planner.CommentatorAgentID),
		Personas:       toArenaPersonas(personas),
		Store:          db,
		Artifacts:      artifact.NewManager(cfg.Artifacts.BasePath),
		Broker:         broker.New(db),
		PersonaTimeout: cfg.Arena.PersonaTimeout,
		RoundTimeout:   cfg.Arena.RoundTimeout,
	})

	fmt.Printf("\nStarting competition with %d personas.\n\n", len(personas))

	project, err := runner.RunProject(ctx, task)
	if err != nil {
		return err
	}

	fmt.Printf("\nProject %s finished with status %s.\n", project.ID, project.Status)
	fmt.Printf("Artifacts written under %s.\n", cfg.Artifacts.BasePath)
	return nil
}

// consoleSelector shows every persona's output for the round and asks
// the operator to pick the winner by number.
type consoleSelector struct {
	in *bufio.Reader
}

func (s *consoleSelector) SelectWinner(_ context.Context, subtask arena.Subtask, results []arena.WorkResult, commentary string) (int, error) {
	fmt.Printf("\n=== Round %d: %s ===\n", subtask.RoundNum, subtask.Title)

	for i, r := range results {
		fmt.Printf("\n[%d] %s (%s)\n", i+1, r.AgentName, r.Status)
		for _, line := range r.Progress {
			fmt.Printf("    %s\n", line)
		}
		fmt.Println(previewCode(r.Code))
	}

	if commentary != "" {
		fmt.Printf("\nCommentary:\n%s\n", commentary)
	}

	for {
		fmt.Printf("\nSelect the winner [1-%d]: ", len(results))
		line, err := s.in.ReadString('\n')
		if err != nil {
			// Stdin closed; fall back to the heuristic choice.
			return arena.HeuristicSelector{}.SelectWinner(context.Background(), subtask, results, commentary)
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(results) {
			fmt.Println("Enter a number from the list.")
			continue
		}
		return n - 1, nil
	}
}

func previewCode(code string) string {
	lines := strings.Split(code, "\n")
	if len(lines) > codePreviewLines {
		lines = append(lines[:codePreviewLines], "...")
	}
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
