package archive

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/casahub/concierge/internal/conversation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := conversation.State{
		SessionID:    "sess-1",
		CreatedAt:    at,
		LastActiveAt: at.Add(time.Minute),
		History: []conversation.Turn{
			conversation.UserTurn("quiero una pickup", at),
			conversation.ToolCallTurn("c1", "viewHub", json.RawMessage(`{}`), at.Add(time.Second)),
			conversation.ToolResultTurn("c1", "viewHub", json.RawMessage(`{"climate":{"low":23,"high":25}}`), at.Add(2*time.Second)),
		},
	}

	if err := s.Archive(context.Background(), state); err != nil {
		t.Fatalf("archive: %v", err)
	}

	got, err := s.Load(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.SessionID != "sess-1" || !got.Finalized {
		t.Errorf("loaded state = %+v", got)
	}
	if len(got.History) != 3 {
		t.Fatalf("history len = %d, want 3", len(got.History))
	}
	if got.History[0].Content != "quiero una pickup" {
		t.Errorf("turn 0 content = %q", got.History[0].Content)
	}
	if got.History[1].Kind != conversation.KindAssistantToolCall || got.History[1].ToolCallID != "c1" {
		t.Errorf("turn 1 = %+v", got.History[1])
	}
	if string(got.History[2].Result) != `{"climate":{"low":23,"high":25}}` {
		t.Errorf("turn 2 result = %s", got.History[2].Result)
	}
	if !got.History[0].At.Equal(at) {
		t.Errorf("turn 0 at = %v, want %v", got.History[0].At, at)
	}
}

func TestArchiveIdempotent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	at := time.Now().UTC().Truncate(time.Millisecond)
	state := conversation.State{
		SessionID:    "sess",
		CreatedAt:    at,
		LastActiveAt: at,
		History:      []conversation.Turn{conversation.UserTurn("hola", at)},
	}

	if err := s.Archive(context.Background(), state); err != nil {
		t.Fatalf("first archive: %v", err)
	}

	state.History = append(state.History, conversation.AssistantTextTurn("¡Hola!", at))
	if err := s.Archive(context.Background(), state); err != nil {
		t.Fatalf("second archive: %v", err)
	}

	got, err := s.Load(context.Background(), "sess")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.History) != 2 {
		t.Errorf("history len = %d, want 2 (replaced, not duplicated)", len(got.History))
	}
}

func TestLoadUnknownSession(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if _, err := s.Load(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	_ = s.Close()
}
