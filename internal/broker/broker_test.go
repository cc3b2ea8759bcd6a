package broker

import (
	"path/filepath"
	"testing"

	"github.com/mtzanidakis/agon/internal/config"
	"github.com/mtzanidakis/agon/internal/store"
)

func TestSendAndRecent(t *testing.T) {
	b := New(nil)

	b.Send("vera", "max", "first", "progress")
	b.Broadcast("arena", "round over", "learning")
	b.Send("vera", "iris", "not for max", "progress")

	got := b.Recent("max", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages for max, got %d", len(got))
	}
	if got[0].Content != "first" || got[1].Content != "round over" {
		t.Errorf("unexpected order: %+v", got)
	}

	if len(b.All()) != 3 {
		t.Errorf("expected 3 messages total, got %d", len(b.All()))
	}
}

func TestRecentLimit(t *testing.T) {
	b := New(nil)
	for i := 0; i < 5; i++ {
		b.Broadcast("arena", "msg", "note")
	}

	got := b.Recent("anyone", 3)
	if len(got) != 3 {
		t.Errorf("expected limit of 3, got %d", len(got))
	}
}

func TestPersistMirrorsToStore(t *testing.T) {
	db, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	b := New(db)
	id := b.Send("vera", "max", "hello", "progress")
	if id == "" {
		t.Fatal("expected message id")
	}

	msgs, err := db.GetMessages("max", 10)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(msgs))
	}
	if msgs[0].MessageID != id || msgs[0].FromAgent != "vera" {
		t.Errorf("persisted message mismatch: %+v", msgs[0])
	}
}
