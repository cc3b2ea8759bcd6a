// Package broker records directed messages between personas for display
// and commentary context. Append-only, no delivery guarantees, no
// consumer acknowledgement; ordering is append order only.
package broker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/agon/internal/store"
)

type Message struct {
	ID        string    `json:"id"`
	FromAgent string    `json:"from_agent"`
	ToAgent   string    `json:"to_agent,omitempty"`
	Content   string    `json:"content"`
	Type      string    `json:"message_type,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

type Broker struct {
	mu       sync.Mutex
	all      []Message
	byAgent  map[string][]Message
	db       *store.Store
}

// New creates a broker. db may be nil; when set, each message is also
// mirrored into the sqlite messages table for the stats endpoint.
func New(db *store.Store) *Broker {
	return &Broker{
		byAgent: make(map[string][]Message),
		db:      db,
	}
}

// Send appends a directed message and returns its id.
func (b *Broker) Send(from, to, content, msgType string) string {
	msg := Message{
		ID:        uuid.New().String(),
		FromAgent: from,
		ToAgent:   to,
		Content:   content,
		Type:      msgType,
		CreatedAt: time.Now().UTC(),
	}

	b.mu.Lock()
	b.all = append(b.all, msg)
	if to != "" {
		b.byAgent[to] = append(b.byAgent[to], msg)
	}
	b.mu.Unlock()

	b.persist(msg)
	return msg.ID
}

// Broadcast appends a message with no recipient, visible to everyone.
func (b *Broker) Broadcast(from, content, msgType string) string {
	return b.Send(from, "", content, msgType)
}

// Recent returns the last messages addressed to the agent plus
// broadcasts, in append order.
func (b *Broker) Recent(agent string, limit int) []Message {
	if limit <= 0 {
		limit = 20
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Message
	for _, m := range b.all {
		if m.ToAgent == "" || m.ToAgent == agent {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// All returns the full log in append order.
func (b *Broker) All() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.all))
	copy(out, b.all)
	return out
}

func (b *Broker) persist(msg Message) {
	if b.db == nil {
		return
	}
	err := b.db.SaveMessage(&store.Message{
		MessageID: msg.ID,
		FromAgent: msg.FromAgent,
		ToAgent:   msg.ToAgent,
		Content:   msg.Content,
		Type:      msg.Type,
	})
	if err != nil {
		slog.Warn("persist message failed", "from", msg.FromAgent, "error", err)
	}
}
