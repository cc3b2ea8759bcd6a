package letta

import (
	"context"
	"fmt"
	"sync"
)

// MockCall records one SendMessage invocation.
type MockCall struct {
	AgentID string
	Text    string
}

// Mock is a scripted Messenger/Directory for tests. Reply decides the
// response per call; when nil every call echoes a canned line.
type Mock struct {
	mu          sync.Mutex
	Reply       func(agentID, text string) (string, error)
	calls       []MockCall
	agents      []Agent
	createCalls int
}

func (m *Mock) SendMessage(_ context.Context, agentID, text string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{AgentID: agentID, Text: text})
	reply := m.Reply
	m.mu.Unlock()

	if reply != nil {
		return reply(agentID, text)
	}
	return "ok", nil
}

func (m *Mock) ListAgents(_ context.Context) ([]Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Agent, len(m.agents))
	copy(out, m.agents)
	return out, nil
}

func (m *Mock) CreateAgent(_ context.Context, req CreateAgentRequest) (*Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	a := Agent{ID: fmt.Sprintf("agent-%d", len(m.agents)+1), Name: req.Name}
	m.agents = append(m.agents, a)
	return &a, nil
}

// SeedAgent pre-registers a remote agent, as if provisioned earlier.
func (m *Mock) SeedAgent(a Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = append(m.agents, a)
}

func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the prompts sent to one agent.
func (m *Mock) CallsFor(agentID string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCall
	for _, c := range m.calls {
		if c.AgentID == agentID {
			out = append(out, c)
		}
	}
	return out
}

func (m *Mock) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}
