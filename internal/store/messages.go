package store

import (
	"fmt"
	"time"
)

type Message struct {
	ID        int64     `json:"id"`
	MessageID string    `json:"message_id"`
	FromAgent string    `json:"from_agent"`
	ToAgent   string    `json:"to_agent,omitempty"`
	Content   string    `json:"content"`
	Type      string    `json:"message_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) SaveMessage(msg *Message) error {
	var to any
	if msg.ToAgent != "" {
		to = msg.ToAgent
	}
	result, err := s.db.Exec(`
		INSERT INTO messages (message_id, from_agent, to_agent, content, message_type)
		VALUES (?, ?, ?, ?, ?)`,
		msg.MessageID, msg.FromAgent, to, msg.Content, msg.Type)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	msg.ID, _ = result.LastInsertId()
	return nil
}

// GetMessages returns messages addressed to the given agent (plus
// broadcasts) in chronological order.
func (s *Store) GetMessages(agent string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, message_id, from_agent, to_agent, content, message_type, created_at
		FROM messages
		WHERE to_agent = ? OR to_agent IS NULL
		ORDER BY id DESC
		LIMIT ?`, agent, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, rows.Err()
}

func (s *Store) GetRecentMessages(limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, message_id, from_agent, to_agent, content, message_type, created_at
		FROM messages
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent messages: %w", err)
	}
	defer rows.Close()

	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	return messages, rows.Err()
}

type AgentMessageStats struct {
	Agent        string
	MessageCount int
	LastActive   time.Time
}

// GetAgentMessageStats aggregates per-sender message volume, used by the
// agent-stats endpoint.
func (s *Store) GetAgentMessageStats() (map[string]AgentMessageStats, error) {
	rows, err := s.db.Query(`
		SELECT from_agent, COUNT(*) as cnt, COALESCE(MAX(created_at), '') as last_active
		FROM messages
		GROUP BY from_agent`)
	if err != nil {
		return nil, fmt.Errorf("get agent message stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]AgentMessageStats)
	for rows.Next() {
		var st AgentMessageStats
		var lastActive string
		if err := rows.Scan(&st.Agent, &st.MessageCount, &lastActive); err != nil {
			return nil, fmt.Errorf("scan agent stats: %w", err)
		}
		if lastActive != "" {
			st.LastActive, _ = time.Parse("2006-01-02 15:04:05", lastActive)
		}
		stats[st.Agent] = st
	}
	return stats, rows.Err()
}

func collectMessages(rows interface {
	Next() bool
	Scan(dest ...any) error
}) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var m Message
		var toAgent, msgType *string
		if err := rows.Scan(&m.ID, &m.MessageID, &m.FromAgent, &toAgent, &m.Content, &msgType, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toAgent != nil {
			m.ToAgent = *toAgent
		}
		if msgType != nil {
			m.Type = *msgType
		}
		messages = append(messages, m)
	}
	return messages, nil
}
