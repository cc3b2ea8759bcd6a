// Package orchestrator decomposes a free-text project description into
// 3-5 subtasks by prompting a planner agent, with a keyword-template
// fallback when the agent fails or returns unparseable text.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mtzanidakis/agon/internal/arena"
	"github.com/mtzanidakis/agon/internal/letta"
)

type Orchestrator struct {
	client  letta.Messenger
	agentID string
}

func New(client letta.Messenger, agentID string) *Orchestrator {
	return &Orchestrator{client: client, agentID: agentID}
}

type planItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Plan asks the planner agent for a JSON array of {title, description}
// objects and parses it leniently. Any failure falls through to the
// keyword templates; the returned Source tells the two apart.
func (o *Orchestrator) Plan(ctx context.Context, task string) (*arena.Plan, error) {
	if o.client != nil && o.agentID != "" {
		raw, err := o.client.SendMessage(ctx, o.agentID, buildPlanPrompt(task))
		if err != nil {
			slog.Warn("planner agent failed, using fallback", "error", err)
		} else if items := parsePlanItems(raw); len(items) > 0 {
			return &arena.Plan{Subtasks: toSubtasks(items), Source: arena.SourceAgent}, nil
		} else {
			slog.Warn("planner reply unparseable, using fallback")
		}
	}
	return &arena.Plan{Subtasks: toSubtasks(fallbackPlan(task)), Source: arena.SourceFallback}, nil
}

func buildPlanPrompt(task string) string {
	return fmt.Sprintf(`You are a project planner for a coding competition.
Break the following project into 3-5 concrete frontend/backend subtasks.
Output ONLY a JSON array, no prose, no code fences.

Schema for each item: {"title": "...", "description": "..."}

Project: %s`, task)
}

// parsePlanItems tolerates prose and code fences around the JSON: it
// strips fences, then falls back to extracting the first balanced
// [...] block. Items without a title are dropped.
func parsePlanItems(raw string) []planItem {
	text := stripFences(raw)

	var items []planItem
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		if arr := extractJSONArray(text); arr != "" {
			_ = json.Unmarshal([]byte(arr), &items)
		}
	}

	out := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it.Title) == "" {
			continue
		}
		if strings.TrimSpace(it.Description) == "" {
			it.Description = it.Title
		}
		out = append(out, it)
	}
	return out
}

func toSubtasks(items []planItem) []arena.Subtask {
	subtasks := make([]arena.Subtask, 0, len(items))
	for i, it := range items {
		subtasks = append(subtasks, arena.Subtask{
			ID:          uuid.New().String(),
			Title:       it.Title,
			Description: it.Description,
			RoundNum:    i + 1,
			Status:      arena.StatusPending,
		})
	}
	return subtasks
}

// extractJSONArray returns the first balanced top-level JSON array.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if idx := strings.IndexByte(t, '\n'); idx != -1 {
		t = t[idx+1:]
	}
	if j := strings.LastIndex(t, "```"); j != -1 {
		t = t[:j]
	}
	return strings.TrimSpace(t)
}
