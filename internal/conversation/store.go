package conversation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Archiver persists a finalized conversation. Implementations must be safe
// for concurrent use; the store invokes them off the response path.
type Archiver interface {
	Archive(ctx context.Context, state State) error
}

// Store is a concurrency-safe, in-memory conversation store. Histories are
// append-only: the only mutation is whole-history replacement through
// Replace, which rejects any history that is not an extension of the stored
// one. The `now` function is injectable for deterministic testing.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*State

	// maxSessions limits concurrent sessions. Zero means unlimited.
	maxSessions int

	archiver Archiver
	logger   *slog.Logger

	now func() time.Time
}

// NewStore creates a ready-to-use conversation store. The archiver may be
// nil, in which case Finalize only marks the session closed.
func NewStore(archiver Archiver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*State),
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}
}

// SetMaxSessions configures the session cap. Zero means unlimited.
func (s *Store) SetMaxSessions(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSessions = limit
}

// Create makes a new session with a fresh random ID and returns its snapshot.
func (s *Store) Create() (State, error) {
	id, err := generateID()
	if err != nil {
		return State{}, err
	}
	return s.GetOrCreate(id)
}

// GetOrCreate returns the session for the given ID, creating it if absent.
// Creation fails with ErrMaxSessions once the cap is reached.
func (s *Store) GetOrCreate(sessionID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[sessionID]; ok {
		return st.snapshot(), nil
	}

	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		return State{}, ErrMaxSessions
	}

	now := s.now()
	st := &State{
		SessionID:    sessionID,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	s.sessions[sessionID] = st
	return st.snapshot(), nil
}

// Get returns a snapshot of the session, or ErrSessionNotFound.
func (s *Store) Get(sessionID string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return State{}, fmt.Errorf("conversation: %q: %w", sessionID, ErrSessionNotFound)
	}
	return st.snapshot(), nil
}

// Replace atomically swaps the session history for next. next must extend
// the stored history turn for turn or the call fails with ErrHistoryRewrite,
// and the resulting history must satisfy the call/result pairing protocol.
// The stored copy never aliases the caller's slice.
func (s *Store) Replace(sessionID string, next []Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("conversation: %q: %w", sessionID, ErrSessionNotFound)
	}
	if st.Finalized {
		return fmt.Errorf("conversation: %q: %w", sessionID, ErrSessionFinalized)
	}
	if !extends(st.History, next) {
		return fmt.Errorf("conversation: %q: %w", sessionID, ErrHistoryRewrite)
	}
	if err := CheckConsistency(next); err != nil {
		return err
	}

	st.History = make([]Turn, len(next))
	copy(st.History, next)
	st.LastActiveAt = s.now()
	return nil
}

// Touch updates the session's LastActiveAt timestamp. No-op if absent.
func (s *Store) Touch(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[sessionID]; ok {
		st.LastActiveAt = s.now()
	}
}

// Finalize marks the session closed and hands it to the archiver in a
// background goroutine. Archival failures are logged, never surfaced to the
// caller. Finalizing twice is an error.
func (s *Store) Finalize(sessionID string) error {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("conversation: %q: %w", sessionID, ErrSessionNotFound)
	}
	if st.Finalized {
		s.mu.Unlock()
		return fmt.Errorf("conversation: %q: %w", sessionID, ErrSessionFinalized)
	}
	st.Finalized = true
	snap := st.snapshot()
	s.mu.Unlock()

	if s.archiver == nil {
		return nil
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.archiver.Archive(ctx, snap); err != nil {
			s.logger.Error("conversation archive failed",
				"session_id", snap.SessionID, "error", err)
		}
	}()
	return nil
}

// Delete removes the session. No-op if absent.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Prune removes sessions idle longer than maxIdle and returns the count.
// Intended for a periodic background job.
func (s *Store) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pruned := 0
	for id, st := range s.sessions {
		if now.Sub(st.LastActiveAt) > maxIdle {
			delete(s.sessions, id)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// List returns snapshots of every live session, ordered by creation time.
func (s *Store) List() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]State, 0, len(s.sessions))
	for _, st := range s.sessions {
		out = append(out, st.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ActiveIDs returns a snapshot of live session IDs, for lane cleanup.
func (s *Store) ActiveIDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{}, len(s.sessions))
	for id := range s.sessions {
		ids[id] = struct{}{}
	}
	return ids
}

// extends reports whether next is old plus zero or more appended turns.
func extends(old, next []Turn) bool {
	if len(next) < len(old) {
		return false
	}
	for i := range old {
		if !sameTurn(old[i], next[i]) {
			return false
		}
	}
	return true
}

func sameTurn(a, b Turn) bool {
	return a.Kind == b.Kind &&
		a.Content == b.Content &&
		a.ToolCallID == b.ToolCallID &&
		a.ToolName == b.ToolName &&
		string(a.Args) == string(b.Args) &&
		string(a.Result) == string(b.Result) &&
		a.At.Equal(b.At)
}

// generateID produces a 32-character hex string from 16 random bytes.
func generateID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("conversation: crypto/rand unavailable: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
