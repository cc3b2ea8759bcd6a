package arena

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mtzanidakis/agon/internal/letta"
)

// Commentator narrates round outcomes. When the remote agent fails the
// fallback enumerates each persona's declared personality keywords, and
// the returned source marks the commentary as degraded output.
type Commentator struct {
	client  letta.Messenger
	agentID string
}

func NewCommentator(client letta.Messenger, agentID string) *Commentator {
	return &Commentator{client: client, agentID: agentID}
}

func (c *Commentator) Narrate(ctx context.Context, subtask Subtask, results []WorkResult, personas []Persona) (text, source string) {
	if c.client != nil && c.agentID != "" {
		reply, err := c.client.SendMessage(ctx, c.agentID, buildCommentaryPrompt(subtask, results))
		if err == nil && strings.TrimSpace(reply) != "" {
			return strings.TrimSpace(reply), SourceAgent
		}
		if err != nil {
			slog.Warn("commentator agent failed, using fallback", "subtask", subtask.Title, "error", err)
		}
	}
	return fallbackCommentary(subtask, personas), SourceFallback
}

var keywordBlurbs = map[string]string{
	"perfectionist": "went for technical excellence",
	"pragmatic":     "shipped the simplest thing that works",
	"creative":      "took an unconventional angle",
	"speed":         "raced to a working version",
	"minimalist":    "kept it lean",
}

func fallbackCommentary(subtask Subtask, personas []Persona) string {
	var parts []string
	for _, p := range personas {
		blurb := "brought their own style"
		for _, kw := range p.Keywords {
			if b, ok := keywordBlurbs[strings.ToLower(kw)]; ok {
				blurb = b
				break
			}
		}
		parts = append(parts, fmt.Sprintf("%s %s", p.Name, blurb))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("The agents battled it out over %q.", subtask.Title)
	}
	return fmt.Sprintf("On %q: %s.", subtask.Title, strings.Join(parts, "; "))
}
