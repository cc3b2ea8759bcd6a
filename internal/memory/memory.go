// Package memory holds the cross-round state shared between workflow
// steps: last-write-wins, no versioning, no persistence across restarts.
package memory

import "sync"

type Memory struct {
	mu   sync.RWMutex
	data map[string]any
}

func New() *Memory {
	return &Memory{data: make(map[string]any)}
}

func (m *Memory) Read(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *Memory) Write(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

const projectContextKey = "project_context"

// ProjectContext is the only state that feeds forward between rounds.
// CanonicalCode is the most recently selected winning code; each winner
// fully replaces it.
type ProjectContext struct {
	ProjectID     string   `json:"project_id"`
	CanonicalCode string   `json:"canonical_code"`
	CurrentRound  int      `json:"current_round"`
	Progress      []string `json:"progress,omitempty"`
}

func (m *Memory) ProjectContext() ProjectContext {
	v, ok := m.Read(projectContextKey)
	if !ok {
		return ProjectContext{}
	}
	pc, ok := v.(ProjectContext)
	if !ok {
		return ProjectContext{}
	}
	return pc
}

func (m *Memory) SetProjectContext(pc ProjectContext) {
	m.Write(projectContextKey, pc)
}
