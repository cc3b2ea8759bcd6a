package arena

import (
	"fmt"
	"strings"
)

// buildWorkPrompt assembles the identical per-persona prompt: fixed
// personality, the contested subtask, and the current canonical baseline.
func buildWorkPrompt(p Persona, subtask Subtask, canonicalCode string) string {
	var sb strings.Builder

	sb.WriteString("## Your Personality\n\n")
	sb.WriteString(p.Personality)
	sb.WriteString("\n\n## Subtask\n\n")
	fmt.Fprintf(&sb, "%s\n\n%s\n\n", subtask.Title, subtask.Description)

	if canonicalCode != "" {
		sb.WriteString("## Current Canonical Code\n\nBuild on this baseline. It is the winning code from the previous round:\n\n```tsx\n")
		sb.WriteString(canonicalCode)
		sb.WriteString("\n```\n\n")
	}

	sb.WriteString("Respond in exactly this format:\n\n")
	sb.WriteString(codeMarker)
	sb.WriteString("\n<your complete code>\n\n")
	sb.WriteString(progressMarker)
	sb.WriteString("\n- <four short lines describing how you approached the work>\n")

	return sb.String()
}

// buildLearningMessage is broadcast to every persona after a winner is
// chosen so the losers can adapt next round.
func buildLearningMessage(winner WorkResult, subtask Subtask) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Round result for %q: %s won.\n\n", subtask.Title, winner.AgentName)
	sb.WriteString("The winning code is now the canonical baseline. Study it and build on it next round:\n\n```tsx\n")
	sb.WriteString(winner.Code)
	sb.WriteString("\n```\n")

	return sb.String()
}

// buildCommentaryPrompt asks the commentator agent for a short take on
// the round's batch of results.
func buildCommentaryPrompt(subtask Subtask, results []WorkResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Give a 1-2 sentence colourful take on this round. Subtask: %s.\n\n", subtask.Title)
	for _, r := range results {
		status := "delivered code"
		if r.Status != ResultOK {
			status = "failed to deliver"
		}
		fmt.Fprintf(&sb, "- %s %s (%d bytes)\n", r.AgentName, status, len(r.Code))
	}

	return sb.String()
}
