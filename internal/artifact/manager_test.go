package artifact

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestAgentRoundRoundTrip(t *testing.T) {
	m := NewManager(t.TempDir())

	code := "const TodoList = () => null;"
	summary := "# vera — round 1\n\ndid the thing\n"
	meta := RoundMetadata{AgentID: "agent-vera", Subtask: "Create Todo Component", Status: "ok"}
	if err := m.SaveAgentRound("p1", "vera", 1, code, meta, summary); err != nil {
		t.Fatalf("save round: %v", err)
	}

	arts, err := m.RoundArtifacts("p1", 1)
	if err != nil {
		t.Fatalf("round artifacts: %v", err)
	}
	if len(arts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(arts))
	}
	a := arts[0]
	if a.Code != code {
		t.Errorf("code mismatch: %q", a.Code)
	}
	if a.Summary != summary {
		t.Errorf("summary mismatch: %q", a.Summary)
	}
	if a.Metadata.AgentName != "vera" || a.Metadata.RoundNum != 1 {
		t.Errorf("metadata not filled in: %+v", a.Metadata)
	}
	if a.Metadata.Subtask != "Create Todo Component" {
		t.Errorf("subtask not preserved: %q", a.Metadata.Subtask)
	}
	if a.Metadata.SavedAt.IsZero() {
		t.Error("expected SavedAt to be set")
	}
}

func TestCanonicalCode(t *testing.T) {
	m := NewManager(t.TempDir())

	// Missing canonical is empty, not an error
	code, err := m.CanonicalCode("p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "" {
		t.Errorf("expected empty canonical, got %q", code)
	}

	if err := m.SaveCanonicalCode("p1", "v1"); err != nil {
		t.Fatalf("save canonical: %v", err)
	}
	// A new winner fully replaces the baseline
	if err := m.SaveCanonicalCode("p1", "v2"); err != nil {
		t.Fatalf("save canonical: %v", err)
	}
	code, _ = m.CanonicalCode("p1")
	if code != "v2" {
		t.Errorf("expected v2, got %q", code)
	}
}

func TestProjectMetadata(t *testing.T) {
	m := NewManager(t.TempDir())

	got, err := m.ProjectMetadata("p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing metadata")
	}

	meta := ProjectMetadata{ProjectID: "p1", Task: "Build a todo app", Subtasks: []string{"A", "B"}, Winners: []string{"vera"}, CurrentRound: 1}
	if err := m.SaveProjectMetadata(meta); err != nil {
		t.Fatalf("save metadata: %v", err)
	}

	got, err = m.ProjectMetadata("p1")
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if got == nil || got.Task != "Build a todo app" || len(got.Winners) != 1 {
		t.Errorf("metadata mismatch: %+v", got)
	}
}

func TestFinalArtifacts(t *testing.T) {
	m := NewManager(t.TempDir())

	_ = m.SaveAgentRound("p1", "vera", 1, "vera-r1", RoundMetadata{}, "")
	_ = m.SaveAgentRound("p1", "vera", 2, "vera-r2", RoundMetadata{}, "")
	_ = m.SaveAgentRound("p1", "max", 1, "max-r1", RoundMetadata{}, "")
	_ = m.SaveCanonicalCode("p1", "vera-r2")

	finals, canonical, err := m.FinalArtifacts("p1")
	if err != nil {
		t.Fatalf("final artifacts: %v", err)
	}
	if canonical != "vera-r2" {
		t.Errorf("canonical mismatch: %q", canonical)
	}
	if len(finals) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(finals))
	}
	if finals["vera"].Code != "vera-r2" {
		t.Errorf("expected vera's latest round, got %q", finals["vera"].Code)
	}
	if finals["max"].Code != "max-r1" {
		t.Errorf("expected max's only round, got %q", finals["max"].Code)
	}
}

func TestRoundArtifactsSkipCanonical(t *testing.T) {
	m := NewManager(t.TempDir())

	_ = m.SaveAgentRound("p1", "vera", 1, "code", RoundMetadata{}, "")
	_ = m.SaveCanonicalCode("p1", "code")

	arts, err := m.RoundArtifacts("p1", 1)
	if err != nil {
		t.Fatalf("round artifacts: %v", err)
	}
	if len(arts) != 1 || arts[0].AgentName != "vera" {
		t.Errorf("canonical dir must not appear as an agent: %+v", arts)
	}
}

func TestExport(t *testing.T) {
	m := NewManager(t.TempDir())

	_ = m.SaveAgentRound("p1", "vera", 1, "const A = 1;", RoundMetadata{}, "notes")
	_ = m.SaveCanonicalCode("p1", "const A = 1;")

	var buf bytes.Buffer
	if err := m.Export("p1", &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	zr, err := zstd.NewReader(&buf)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer zr.Close()

	found := map[string]bool{}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar next: %v", err)
		}
		found[hdr.Name] = true
	}

	for _, name := range []string{"vera/round_1/code.tsx", "vera/round_1/metadata.json", "vera/round_1/summary.md", "canonical/code.tsx"} {
		if !found[name] {
			t.Errorf("archive missing %s (have %v)", name, found)
		}
	}
}

func TestExportMissingProject(t *testing.T) {
	m := NewManager(t.TempDir())
	var buf bytes.Buffer
	if err := m.Export("nope", &buf); err == nil {
		t.Error("expected error for missing project")
	}
}
