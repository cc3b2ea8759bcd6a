package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mtzanidakis/agon/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(config.StoreConfig{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPersonaCRUD(t *testing.T) {
	s := newTestStore(t)

	p := &Persona{ID: "vera", Name: "vera", AgentID: "agent-1", Personality: "perfectionist engineer", Keywords: []string{"perfectionist", "typescript"}}
	if err := s.SavePersona(p); err != nil {
		t.Fatalf("save persona: %v", err)
	}

	got, err := s.GetPersona("vera")
	if err != nil {
		t.Fatalf("get persona: %v", err)
	}
	if got == nil {
		t.Fatal("expected persona, got nil")
	}
	if got.AgentID != "agent-1" {
		t.Errorf("expected agent-1, got %q", got.AgentID)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "perfectionist" {
		t.Errorf("keywords not preserved: %v", got.Keywords)
	}

	// Not found
	got, err = s.GetPersona("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent persona")
	}

	// DeletePersonasNotIn
	_ = s.SavePersona(&Persona{ID: "max", Name: "max"})
	_ = s.SavePersona(&Persona{ID: "iris", Name: "iris"})
	if err := s.DeletePersonasNotIn([]string{"vera", "max"}); err != nil {
		t.Fatalf("delete personas not in: %v", err)
	}
	personas, _ := s.ListPersonas()
	if len(personas) != 2 {
		t.Errorf("expected 2 personas, got %d", len(personas))
	}
}

func TestProjectLifecycle(t *testing.T) {
	s := newTestStore(t)

	p := &Project{ID: "p1", Task: "Build a todo app", Status: "running", PlanSource: "fallback"}
	if err := s.SaveProject(p); err != nil {
		t.Fatalf("save project: %v", err)
	}

	got, err := s.GetProject("p1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got == nil {
		t.Fatal("expected project, got nil")
	}
	if got.Status != "running" || got.PlanSource != "fallback" {
		t.Errorf("unexpected project: %+v", got)
	}
	if got.CompletedAt != nil {
		t.Error("expected nil CompletedAt for running project")
	}

	// Subtasks round-trip in round order
	for i, title := range []string{"Create Todo Component", "Add State Management"} {
		err := s.SaveSubtask(&Subtask{ID: string(rune('a' + i)), ProjectID: "p1", Title: title, Description: title, RoundNum: i + 1, Status: "pending"})
		if err != nil {
			t.Fatalf("save subtask: %v", err)
		}
	}
	subtasks, err := s.ListSubtasks("p1")
	if err != nil {
		t.Fatalf("list subtasks: %v", err)
	}
	if len(subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(subtasks))
	}
	if subtasks[0].Title != "Create Todo Component" {
		t.Errorf("subtasks out of order: %q first", subtasks[0].Title)
	}

	if err := s.UpdateSubtaskStatus("a", "completed"); err != nil {
		t.Fatalf("update subtask status: %v", err)
	}
	subtasks, _ = s.ListSubtasks("p1")
	if subtasks[0].Status != "completed" {
		t.Errorf("expected completed, got %q", subtasks[0].Status)
	}

	// Completing the project sets completed_at
	winners, _ := json.Marshal([]string{"vera", "max"})
	if err := s.UpdateProject("p1", "completed", 2, winners); err != nil {
		t.Fatalf("update project: %v", err)
	}
	got, _ = s.GetProject("p1")
	if got.Status != "completed" {
		t.Errorf("expected completed, got %q", got.Status)
	}
	if got.CurrentRound != 2 {
		t.Errorf("expected round 2, got %d", got.CurrentRound)
	}
	if got.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	var w []string
	if err := json.Unmarshal(got.Winners, &w); err != nil || len(w) != 2 {
		t.Errorf("winners not preserved: %s", got.Winners)
	}

	projects, err := s.ListProjects()
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 1 {
		t.Errorf("expected 1 project, got %d", len(projects))
	}
}

func TestRoundUpsert(t *testing.T) {
	s := newTestStore(t)
	_ = s.SaveProject(&Project{ID: "p1", Task: "t", Status: "running"})

	results, _ := json.Marshal([]map[string]string{{"agent_name": "vera"}})
	r := &Round{ProjectID: "p1", RoundNum: 1, SubtaskID: "a", Status: "running", StartedAt: time.Now()}
	if err := s.SaveRound(r); err != nil {
		t.Fatalf("save round: %v", err)
	}

	// Same key updates in place
	done := time.Now()
	r.Status = "completed"
	r.Results = results
	r.Winner = "vera"
	r.Commentary = "close one"
	r.CommentarySource = "fallback"
	r.CompletedAt = &done
	if err := s.SaveRound(r); err != nil {
		t.Fatalf("update round: %v", err)
	}

	got, err := s.GetRound("p1", 1)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if got == nil {
		t.Fatal("expected round, got nil")
	}
	if got.Winner != "vera" || got.Status != "completed" {
		t.Errorf("unexpected round: %+v", got)
	}
	if got.CommentarySource != "fallback" {
		t.Errorf("expected fallback commentary source, got %q", got.CommentarySource)
	}

	rounds, _ := s.ListRounds("p1")
	if len(rounds) != 1 {
		t.Errorf("expected 1 round, got %d", len(rounds))
	}

	got, err = s.GetRound("p1", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing round")
	}
}

func TestMessagesAndStats(t *testing.T) {
	s := newTestStore(t)

	msgs := []*Message{
		{MessageID: "m1", FromAgent: "vera", ToAgent: "max", Content: "hello", Type: "direct"},
		{MessageID: "m2", FromAgent: "max", Content: "hi all", Type: "broadcast"},
		{MessageID: "m3", FromAgent: "vera", ToAgent: "iris", Content: "private", Type: "direct"},
	}
	for _, m := range msgs {
		if err := s.SaveMessage(m); err != nil {
			t.Fatalf("save message: %v", err)
		}
	}

	// max sees the direct message and the broadcast, not iris's mail
	got, err := s.GetMessages("max", 10)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages for max, got %d", len(got))
	}
	if got[0].Content != "hello" {
		t.Errorf("expected chronological order, got %q first", got[0].Content)
	}

	recent, err := s.GetRecentMessages(2)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 recent messages, got %d", len(recent))
	}

	stats, err := s.GetAgentMessageStats()
	if err != nil {
		t.Fatalf("agent stats: %v", err)
	}
	if stats["vera"].MessageCount != 2 {
		t.Errorf("expected 2 messages from vera, got %d", stats["vera"].MessageCount)
	}
	if stats["max"].MessageCount != 1 {
		t.Errorf("expected 1 message from max, got %d", stats["max"].MessageCount)
	}
}

func TestScheduledRuns(t *testing.T) {
	s := newTestStore(t)

	past := time.Now().Add(-time.Minute).UTC()
	future := time.Now().Add(time.Hour).UTC()

	due := &ScheduledRun{ID: "r1", Name: "nightly", Schedule: "0 3 * * *", Task: "Build a todo app", Status: "active", NextRunAt: &past}
	notDue := &ScheduledRun{ID: "r2", Name: "weekly", Schedule: "0 3 * * 0", Task: "Build a blog", Status: "active", NextRunAt: &future}
	for _, r := range []*ScheduledRun{due, notDue} {
		if err := s.SaveScheduledRun(r); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}

	runs, err := s.GetDueRuns(time.Now())
	if err != nil {
		t.Fatalf("get due runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Fatalf("expected only r1 due, got %+v", runs)
	}

	next := time.Now().Add(24 * time.Hour).UTC()
	if err := s.UpdateRunResult("r1", "ok", "", &next); err != nil {
		t.Fatalf("update run result: %v", err)
	}
	got, _ := s.GetScheduledRun("r1")
	if got.LastStatus != "ok" {
		t.Errorf("expected last status ok, got %q", got.LastStatus)
	}
	if got.LastRunAt == nil {
		t.Error("expected LastRunAt to be set")
	}
	if got.NextRunAt == nil || !got.NextRunAt.After(time.Now()) {
		t.Error("expected NextRunAt in the future")
	}

	// r1 is no longer due
	runs, _ = s.GetDueRuns(time.Now())
	if len(runs) != 0 {
		t.Errorf("expected no due runs, got %d", len(runs))
	}

	if err := s.DeleteScheduledRun("r2"); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	all, _ := s.ListScheduledRuns()
	if len(all) != 1 {
		t.Errorf("expected 1 run left, got %d", len(all))
	}
}

func TestSecrets(t *testing.T) {
	s := newTestStore(t)

	sec := &Secret{Name: "letta_api_token", Value: []byte{0x01, 0x02}, Nonce: []byte{0x03}}
	if err := s.SaveSecret(sec); err != nil {
		t.Fatalf("save secret: %v", err)
	}

	got, err := s.GetSecret("letta_api_token")
	if err != nil {
		t.Fatalf("get secret: %v", err)
	}
	if got == nil {
		t.Fatal("expected secret, got nil")
	}
	if len(got.Value) != 2 || len(got.Nonce) != 1 {
		t.Errorf("blob columns not preserved: %+v", got)
	}

	// Upsert replaces the blobs
	sec.Value = []byte{0x09}
	if err := s.SaveSecret(sec); err != nil {
		t.Fatalf("update secret: %v", err)
	}
	got, _ = s.GetSecret("letta_api_token")
	if len(got.Value) != 1 {
		t.Error("expected updated value")
	}

	names, _ := s.ListSecretNames()
	if len(names) != 1 || names[0] != "letta_api_token" {
		t.Errorf("unexpected names: %v", names)
	}

	if err := s.DeleteSecret("letta_api_token"); err != nil {
		t.Fatalf("delete secret: %v", err)
	}
	got, _ = s.GetSecret("letta_api_token")
	if got != nil {
		t.Error("expected nil after delete")
	}
}
