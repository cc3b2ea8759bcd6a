// Package artifact persists each round's generated code and metadata
// under a fixed directory convention:
//
//	<base>/<project>/<agent>/round_<n>/{code.tsx, metadata.json, summary.md}
//	<base>/<project>/canonical/code.tsx
//	<base>/<project>/metadata.json
//
// Read-back assumes this exact layout and silently skips missing files.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const codeFile = "code.tsx"

type Manager struct {
	base string
}

func NewManager(basePath string) *Manager {
	return &Manager{base: basePath}
}

// RoundMetadata is written next to each round's code file.
type RoundMetadata struct {
	AgentName string         `json:"agent_name"`
	AgentID   string         `json:"agent_id,omitempty"`
	RoundNum  int            `json:"round_num"`
	Subtask   string         `json:"subtask,omitempty"`
	Status    string         `json:"status,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	SavedAt   time.Time      `json:"saved_at"`
}

// ProjectMetadata mirrors the project's winner history to disk.
type ProjectMetadata struct {
	ProjectID    string   `json:"project_id"`
	Task         string   `json:"task,omitempty"`
	Subtasks     []string `json:"subtasks,omitempty"`
	Winners      []string `json:"winners"`
	CurrentRound int      `json:"current_round"`
}

// RoundArtifact is one persona's persisted output for a round.
type RoundArtifact struct {
	AgentName string        `json:"agent_name"`
	RoundNum  int           `json:"round_num"`
	Code      string        `json:"code"`
	Summary   string        `json:"summary,omitempty"`
	Metadata  RoundMetadata `json:"metadata"`
}

func (m *Manager) SaveAgentRound(projectID, agentName string, roundNum int, code string, meta RoundMetadata, summary string) error {
	dir := m.roundDir(projectID, agentName, roundNum)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create round dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, codeFile), []byte(code), 0o644); err != nil {
		return fmt.Errorf("write code: %w", err)
	}

	meta.AgentName = agentName
	meta.RoundNum = roundNum
	if meta.SavedAt.IsZero() {
		meta.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	if summary != "" {
		if err := os.WriteFile(filepath.Join(dir, "summary.md"), []byte(summary), 0o644); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	return nil
}

// SaveCanonicalCode overwrites the project's canonical baseline.
func (m *Manager) SaveCanonicalCode(projectID, code string) error {
	dir := filepath.Join(m.base, projectID, "canonical")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create canonical dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, codeFile), []byte(code), 0o644); err != nil {
		return fmt.Errorf("write canonical code: %w", err)
	}
	return nil
}

func (m *Manager) CanonicalCode(projectID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(m.base, projectID, "canonical", codeFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read canonical code: %w", err)
	}
	return string(data), nil
}

func (m *Manager) SaveProjectMetadata(meta ProjectMetadata) error {
	dir := filepath.Join(m.base, meta.ProjectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("write project metadata: %w", err)
	}
	return nil
}

func (m *Manager) ProjectMetadata(projectID string) (*ProjectMetadata, error) {
	data, err := os.ReadFile(filepath.Join(m.base, projectID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read project metadata: %w", err)
	}
	var meta ProjectMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse project metadata: %w", err)
	}
	return &meta, nil
}

// RoundArtifacts reads every persona's artifact for one round. Agents
// without a directory for that round are skipped.
func (m *Manager) RoundArtifacts(projectID string, roundNum int) ([]RoundArtifact, error) {
	entries, err := os.ReadDir(filepath.Join(m.base, projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read project dir: %w", err)
	}

	var artifacts []RoundArtifact
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "canonical" {
			continue
		}
		a, ok := m.readRound(projectID, e.Name(), roundNum)
		if ok {
			artifacts = append(artifacts, a)
		}
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].AgentName < artifacts[j].AgentName })
	return artifacts, nil
}

// FinalArtifacts aggregates the latest round artifact per agent plus the
// canonical code, for display once a project completes.
func (m *Manager) FinalArtifacts(projectID string) (map[string]RoundArtifact, string, error) {
	entries, err := os.ReadDir(filepath.Join(m.base, projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read project dir: %w", err)
	}

	out := make(map[string]RoundArtifact)
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "canonical" {
			continue
		}
		for round := m.lastRound(projectID, e.Name()); round >= 1; round-- {
			if a, ok := m.readRound(projectID, e.Name(), round); ok {
				out[e.Name()] = a
				break
			}
		}
	}

	canonical, err := m.CanonicalCode(projectID)
	if err != nil {
		return out, "", err
	}
	return out, canonical, nil
}

func (m *Manager) readRound(projectID, agentName string, roundNum int) (RoundArtifact, bool) {
	dir := m.roundDir(projectID, agentName, roundNum)

	code, err := os.ReadFile(filepath.Join(dir, codeFile))
	if err != nil {
		return RoundArtifact{}, false
	}

	a := RoundArtifact{
		AgentName: agentName,
		RoundNum:  roundNum,
		Code:      string(code),
	}

	if data, err := os.ReadFile(filepath.Join(dir, "metadata.json")); err == nil {
		_ = json.Unmarshal(data, &a.Metadata)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "summary.md")); err == nil {
		a.Summary = string(data)
	}
	return a, true
}

func (m *Manager) lastRound(projectID, agentName string) int {
	entries, err := os.ReadDir(filepath.Join(m.base, projectID, agentName))
	if err != nil {
		return 0
	}
	last := 0
	for _, e := range entries {
		var n int
		if _, err := fmt.Sscanf(e.Name(), "round_%d", &n); err == nil && n > last {
			last = n
		}
	}
	return last
}

func (m *Manager) roundDir(projectID, agentName string, roundNum int) string {
	return filepath.Join(m.base, projectID, agentName, fmt.Sprintf("round_%d", roundNum))
}

func (m *Manager) projectDir(projectID string) string {
	return filepath.Join(m.base, projectID)
}
