package letta

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mtzanidakis/agon/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.LettaConfig{BaseURL: url, Token: "test-token", ProjectID: "proj-1"})
}

func TestSendMessagePicksAssistantReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/agents/agent-1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("missing auth header, got %q", got)
		}
		if got := r.Header.Get("X-Project-Id"); got != "proj-1" {
			t.Errorf("missing project header, got %q", got)
		}

		var body struct {
			Messages []wireMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
			t.Errorf("unexpected request body: %+v", body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{
				{"message_type": "reasoning_message", "content": "thinking..."},
				{"message_type": "assistant_message", "content": "here is the code"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.SendMessage(context.Background(), "agent-1", "do the thing")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if got != "here is the code" {
		t.Errorf("expected assistant content, got %q", got)
	}
}

func TestSendMessageFallsBackToAnyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{
				{"content": "untyped reply"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.SendMessage(context.Background(), "agent-1", "hello")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if got != "untyped reply" {
		t.Errorf("expected untyped content, got %q", got)
	}
}

func TestSendMessageRetriesRateLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("backoff sleep")
	}

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{
				{"message_type": "assistant_message", "content": "second try"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	got, err := c.SendMessage(context.Background(), "agent-1", "hello")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if got != "second try" {
		t.Errorf("expected retried reply, got %q", got)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestSendMessageClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "bad token"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.SendMessage(context.Background(), "agent-1", "hello"); err == nil {
		t.Fatal("expected error for 401")
	}
	if calls.Load() != 1 {
		t.Errorf("401 must not be retried, got %d calls", calls.Load())
	}
}

func TestListAndCreateAgents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/agents":
			json.NewEncoder(w).Encode([]Agent{{ID: "a1", Name: "vera"}})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/agents":
			var req CreateAgentRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(Agent{ID: "a2", Name: req.Name})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	agents, err := c.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 1 || agents[0].Name != "vera" {
		t.Errorf("unexpected agents: %+v", agents)
	}

	created, err := c.CreateAgent(context.Background(), CreateAgentRequest{Name: "max"})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if created.ID != "a2" || created.Name != "max" {
		t.Errorf("unexpected created agent: %+v", created)
	}
}
