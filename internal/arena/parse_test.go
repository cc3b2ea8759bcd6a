package arena

import (
	"strings"
	"testing"
)

func TestParseWorkReplyMarkers(t *testing.T) {
	reply := `CODE:
export const Todo = () => <div>todo</div>;

PROGRESS_MESSAGES:
- Sketched the component
- Wired up the handlers
`
	code, progress := parseWorkReply(reply)
	if !strings.Contains(code, "export const Todo") {
		t.Errorf("code not extracted: %q", code)
	}
	if strings.Contains(code, "PROGRESS_MESSAGES") {
		t.Errorf("progress section leaked into code: %q", code)
	}
	if len(progress) != 2 {
		t.Fatalf("expected 2 progress lines, got %d: %v", len(progress), progress)
	}
	if progress[0] != "Sketched the component" {
		t.Errorf("bullet prefix not stripped: %q", progress[0])
	}
}

func TestParseWorkReplyProgressFirst(t *testing.T) {
	reply := `PROGRESS_MESSAGES:
1. Planned the layout
2. Built it

CODE:
const x = 1;`
	code, progress := parseWorkReply(reply)
	if code != "const x = 1;" {
		t.Errorf("unexpected code: %q", code)
	}
	if len(progress) != 2 || progress[0] != "Planned the layout" {
		t.Errorf("unexpected progress: %v", progress)
	}
}

func TestParseWorkReplyNoMarkers(t *testing.T) {
	code, progress := parseWorkReply("```tsx\nconst App = () => null;\n```")
	if code != "const App = () => null;" {
		t.Errorf("expected fenced body as code, got %q", code)
	}
	if len(progress) != len(cannedProgress) {
		t.Errorf("expected canned progress, got %v", progress)
	}
}

func TestParseWorkReplyFencedCodeSection(t *testing.T) {
	reply := "CODE:\n```tsx\nconst A = 1;\n```\nPROGRESS_MESSAGES:\n- done"
	code, progress := parseWorkReply(reply)
	if code != "const A = 1;" {
		t.Errorf("fence not stripped: %q", code)
	}
	if len(progress) != 1 || progress[0] != "done" {
		t.Errorf("unexpected progress: %v", progress)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"```\nbody\n```", "body"},
		{"```tsx\nbody\n```", "body"},
		{"  ```json\n[1]\n```  ", "[1]"},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeuristicSelector(t *testing.T) {
	results := []WorkResult{
		{AgentName: "a", Code: "// Error: boom", Status: ResultError},
		{AgentName: "b", Code: "short", Status: ResultOK},
		{AgentName: "c", Code: "a much longer piece of code", Status: ResultOK},
	}

	idx, err := HeuristicSelector{}.SelectWinner(nil, Subtask{}, results, "")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if idx != 2 {
		t.Errorf("expected index 2, got %d", idx)
	}

	// All failed: first entry wins by default
	failed := []WorkResult{
		{AgentName: "a", Status: ResultError},
		{AgentName: "b", Status: ResultError},
	}
	idx, err = HeuristicSelector{}.SelectWinner(nil, Subtask{}, failed, "")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if idx != 0 {
		t.Errorf("expected index 0 when nothing is ok, got %d", idx)
	}
}
