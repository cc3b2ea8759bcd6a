// Package registry maps logical persona names to externally provisioned
// agent identifiers and keeps the store's persona table in sync with
// config.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mtzanidakis/agon/internal/arena"
	"github.com/mtzanidakis/agon/internal/config"
	"github.com/mtzanidakis/agon/internal/letta"
	"github.com/mtzanidakis/agon/internal/store"
)

const resetMessage = "Forget the current project context. A new competition is starting; wait for the next subtask."

type Registry struct {
	db       *store.Store
	personas []config.PersonaConfig
}

func New(db *store.Store, personas []config.PersonaConfig) *Registry {
	return &Registry{
		db:       db,
		personas: personas,
	}
}

// Sync mirrors the configured personas into the store and removes stale
// rows, so the web layer serves a consistent view.
func (r *Registry) Sync() error {
	ids := make([]string, 0, len(r.personas))
	for _, def := range r.personas {
		ids = append(ids, def.Name)

		p := &store.Persona{
			ID:          def.Name,
			Name:        def.Name,
			AgentID:     def.AgentID,
			Personality: def.Personality,
			Keywords:    def.Keywords,
		}
		if err := r.db.SavePersona(p); err != nil {
			return fmt.Errorf("save persona %s: %w", def.Name, err)
		}
	}

	if err := r.db.DeletePersonasNotIn(ids); err != nil {
		return fmt.Errorf("delete stale personas: %w", err)
	}
	return nil
}

func (r *Registry) Get(name string) (*store.Persona, error) {
	return r.db.GetPersona(name)
}

func (r *Registry) List() ([]store.Persona, error) {
	return r.db.ListPersonas()
}

// Definitions exposes the configured persona set, including entries
// that have no agent bound yet.
func (r *Registry) Definitions() []config.PersonaConfig {
	return r.personas
}

// Personas returns the active persona set for the workflow. Personas
// with no resolved agent_id are skipped with a warning; the run
// continues with fewer participants.
func (r *Registry) Personas() []arena.Persona {
	var out []arena.Persona
	for _, def := range r.personas {
		if def.AgentID == "" {
			slog.Warn("persona has no agent id, skipping", "persona", def.Name)
			continue
		}
		out = append(out, arena.Persona{
			Name:        def.Name,
			AgentID:     def.AgentID,
			Personality: def.Personality,
			Keywords:    def.Keywords,
		})
	}
	return out
}

// EnsureAgent resolves a remote agent for the persona, reusing an
// existing agent with the same name before creating one. Calling it
// twice for the same persona never provisions a duplicate.
func (r *Registry) EnsureAgent(ctx context.Context, dir letta.Directory, name, systemPrompt string) (string, error) {
	if p, err := r.db.GetPersona(name); err == nil && p != nil && p.AgentID != "" {
		return p.AgentID, nil
	}

	agents, err := dir.ListAgents(ctx)
	if err != nil {
		return "", fmt.Errorf("list remote agents: %w", err)
	}
	for _, a := range agents {
		if a.Name == name {
			r.bindAgent(name, a.ID)
			return a.ID, nil
		}
	}

	created, err := dir.CreateAgent(ctx, letta.CreateAgentRequest{
		Name:         name,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("create remote agent: %w", err)
	}

	r.bindAgent(name, created.ID)
	slog.Info("provisioned remote agent", "persona", name, "agent_id", created.ID)
	return created.ID, nil
}

// ResetContext sends the context-reset message to an agent before it is
// reused for a new competition. Best-effort.
func (r *Registry) ResetContext(ctx context.Context, client letta.Messenger, agentID string) {
	if _, err := client.SendMessage(ctx, agentID, resetMessage); err != nil {
		slog.Warn("context reset failed", "agent_id", agentID, "error", err)
	}
}

func (r *Registry) bindAgent(name, agentID string) {
	for i := range r.personas {
		if r.personas[i].Name == name {
			r.personas[i].AgentID = agentID
		}
	}

	p, err := r.db.GetPersona(name)
	if err != nil || p == nil {
		p = &store.Persona{ID: name, Name: name}
	}
	p.AgentID = agentID
	if err := r.db.SavePersona(p); err != nil {
		slog.Warn("bind agent failed", "persona", name, "error", err)
	}
}
