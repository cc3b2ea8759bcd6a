// Package letta is a thin client for the Letta agent platform, consumed
// as an opaque prompt-completion service: send a user message to an agent,
// get the assistant text back.
package letta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mtzanidakis/agon/internal/config"
)

// Messenger is the narrow surface the workflow needs. The HTTP client
// implements it; tests substitute a scripted mock.
type Messenger interface {
	SendMessage(ctx context.Context, agentID, text string) (string, error)
}

// Directory covers agent provisioning and lookup.
type Directory interface {
	ListAgents(ctx context.Context) ([]Agent, error)
	CreateAgent(ctx context.Context, req CreateAgentRequest) (*Agent, error)
}

type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateAgentRequest struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system,omitempty"`
	Model        string `json:"model,omitempty"`
}

type Client struct {
	baseURL   string
	token     string
	projectID string
	http      *http.Client
}

func NewClient(cfg config.LettaConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		token:     cfg.Token,
		projectID: cfg.ProjectID,
		http:      &http.Client{Timeout: timeout},
	}
}

type wireMessage struct {
	Role        string `json:"role,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	Content     string `json:"content"`
}

// SendMessage posts a user message to the agent and returns the first
// assistant message from the reply batch.
func (c *Client) SendMessage(ctx context.Context, agentID, text string) (string, error) {
	body := map[string]any{
		"messages": []wireMessage{{Role: "user", Content: text}},
	}

	var resp struct {
		Messages []wireMessage `json:"messages"`
	}
	path := fmt.Sprintf("/v1/agents/%s/messages", agentID)
	if err := c.postJSON(ctx, path, body, &resp); err != nil {
		return "", err
	}

	for _, m := range resp.Messages {
		if m.MessageType == "assistant_message" && m.Content != "" {
			return m.Content, nil
		}
	}
	// Some agent configurations omit the message_type field.
	for _, m := range resp.Messages {
		if m.Content != "" {
			return m.Content, nil
		}
	}
	return "", fmt.Errorf("agent %s returned no assistant message", agentID)
}

func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/agents", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("list agents: status %d", res.StatusCode)
	}

	var agents []Agent
	if err := json.NewDecoder(res.Body).Decode(&agents); err != nil {
		return nil, fmt.Errorf("decode agents: %w", err)
	}
	return agents, nil
}

func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (*Agent, error) {
	var agent Agent
	if err := c.postJSON(ctx, "/v1/agents", req, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

const maxAttempts = 3

// postJSON posts and decodes, retrying rate limits (429), server errors
// and timeouts with exponential backoff.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if isTimeout(err) {
				continue
			}
			return fmt.Errorf("post %s: %w", path, err)
		}

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			err := json.NewDecoder(res.Body).Decode(out)
			res.Body.Close()
			if err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		res.Body.Close()
		detail := apiErr.Error
		if detail == "" {
			detail = apiErr.Message
		}
		lastErr = fmt.Errorf("post %s: status %d: %s", path, res.StatusCode, detail)

		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			continue
		}
		return lastErr
	}
	return lastErr
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.projectID != "" {
		req.Header.Set("X-Project-Id", c.projectID)
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
