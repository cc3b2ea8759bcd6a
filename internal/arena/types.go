// Package arena runs the competitive workflow: every round the same
// subtask is fanned out to all personas, a winner is selected, and the
// winning code becomes the canonical baseline for the next round.
package arena

import (
	"context"
	"time"
)

// Subtask statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// WorkResult statuses after classification.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultDegraded = "degraded"
)

// Plan/commentary provenance, so callers can tell real agent output from
// templated fallback.
const (
	SourceAgent    = "agent"
	SourceFallback = "fallback"
)

// Subtask is one unit of the decomposed project description, contested
// once per round.
type Subtask struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	RoundNum    int    `json:"round_num"`
	Status      string `json:"status"`
}

// Plan is the ordered subtask list for a project.
type Plan struct {
	Subtasks []Subtask `json:"subtasks"`
	Source   string    `json:"source"`
}

// Persona is a competing agent with a fixed personality embedded into
// every work prompt.
type Persona struct {
	Name        string   `json:"name"`
	AgentID     string   `json:"agent_id"`
	Personality string   `json:"personality"`
	Keywords    []string `json:"keywords,omitempty"`
}

// WorkResult is one persona's output for a subtask. Immutable once
// created; a failed call is recorded as an error result, never dropped.
type WorkResult struct {
	AgentName string         `json:"agent_name"`
	AgentID   string         `json:"agent_id"`
	Code      string         `json:"code"`
	Progress  []string       `json:"progress,omitempty"`
	Status    string         `json:"status"`
	Err       string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"timestamp"`
}

// RoundOutcome summarizes one completed round.
type RoundOutcome struct {
	ProjectID        string       `json:"project_id"`
	RoundNum         int          `json:"round_num"`
	Subtask          Subtask      `json:"subtask"`
	Results          []WorkResult `json:"results"`
	WinnerIndex      int          `json:"winner_index"`
	Winner           string       `json:"winner"`
	Commentary       string       `json:"commentary,omitempty"`
	CommentarySource string       `json:"commentary_source,omitempty"`
}

// Planner decomposes a free-text project description into subtasks.
type Planner interface {
	Plan(ctx context.Context, task string) (*Plan, error)
}

// Selector picks the winning result index for a round. The interactive
// CLI implements it by prompting; service mode uses HeuristicSelector.
type Selector interface {
	SelectWinner(ctx context.Context, subtask Subtask, results []WorkResult, commentary string) (int, error)
}

// HeuristicSelector picks the longest non-error code body, tiebreak by
// persona order. Used where no human is available to decide.
type HeuristicSelector struct{}

func (HeuristicSelector) SelectWinner(_ context.Context, _ Subtask, results []WorkResult, _ string) (int, error) {
	best := 0
	bestLen := -1
	for i, r := range results {
		if r.Status != ResultOK {
			continue
		}
		if len(r.Code) > bestLen {
			best = i
			bestLen = len(r.Code)
		}
	}
	return best, nil
}
