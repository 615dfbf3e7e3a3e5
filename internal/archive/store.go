package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/casahub/concierge/internal/conversation"
)

// Store writes finalized conversations to SQLite.
type Store struct {
	db *sql.DB
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Archive persists the conversation. Re-archiving the same session replaces
// the previous record, so late finalize retries stay idempotent.
func (s *Store) Archive(ctx context.Context, st conversation.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO conversations (session_id, created_at, last_active_at, turn_count)
		VALUES (?, ?, ?, ?)`,
		st.SessionID,
		st.CreatedAt.UTC().Format(time.RFC3339Nano),
		st.LastActiveAt.UTC().Format(time.RFC3339Nano),
		len(st.History),
	)
	if err != nil {
		return fmt.Errorf("archive: insert conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, st.SessionID); err != nil {
		return fmt.Errorf("archive: clear turns: %w", err)
	}

	for seq, t := range st.History {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO turns (session_id, seq, kind, content, tool_call_id, tool_name, args, result, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			st.SessionID, seq, string(t.Kind), t.Content,
			t.ToolCallID, t.ToolName, string(t.Args), string(t.Result),
			t.At.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("archive: insert turn %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	return nil
}

// Load reads an archived conversation back, mainly for admin inspection
// and tests. Returns sql.ErrNoRows wrapped if the session was never archived.
func (s *Store) Load(ctx context.Context, sessionID string) (conversation.State, error) {
	var st conversation.State
	var createdAt, lastActiveAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, created_at, last_active_at
		FROM conversations WHERE session_id = ?`, sessionID,
	).Scan(&st.SessionID, &createdAt, &lastActiveAt)
	if err != nil {
		return conversation.State{}, fmt.Errorf("archive: load %s: %w", sessionID, err)
	}
	if st.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return conversation.State{}, fmt.Errorf("archive: parse created_at: %w", err)
	}
	if st.LastActiveAt, err = time.Parse(time.RFC3339Nano, lastActiveAt); err != nil {
		return conversation.State{}, fmt.Errorf("archive: parse last_active_at: %w", err)
	}
	st.Finalized = true

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, content, tool_call_id, tool_name, args, result, at
		FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return conversation.State{}, fmt.Errorf("archive: load turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var t conversation.Turn
		var kind, args, result, at string
		if err := rows.Scan(&kind, &t.Content, &t.ToolCallID, &t.ToolName, &args, &result, &at); err != nil {
			return conversation.State{}, fmt.Errorf("archive: scan turn: %w", err)
		}
		t.Kind = conversation.Kind(kind)
		if args != "" {
			t.Args = []byte(args)
		}
		if result != "" {
			t.Result = []byte(result)
		}
		if t.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return conversation.State{}, fmt.Errorf("archive: parse turn time: %w", err)
		}
		st.History = append(st.History, t)
	}
	if err := rows.Err(); err != nil {
		return conversation.State{}, fmt.Errorf("archive: iterate turns: %w", err)
	}
	return st, nil
}

// Interface guard.
var _ conversation.Archiver = (*Store)(nil)
