package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/casahub/concierge/internal/conversation"
)

// handleCreateSession mints a fresh session and returns its ID.
func (g *Gateway) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st, err := g.sessions.Create()
		if err != nil {
			if errors.Is(err, conversation.ErrMaxSessions) {
				http.Error(w, "session limit reached", http.StatusTooManyRequests)
				return
			}
			g.logger.Error("create session failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": st.SessionID})
	}
}

// sessionJSON is a serializable session snapshot for the admin API.
type sessionJSON struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	LastActiveAt string `json:"last_active_at"`
	Turns        int    `json:"turns"`
	Finalized    bool   `json:"finalized"`
}

// handleListSessions returns all live sessions as JSON.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		states := g.sessions.List()
		sessions := make([]sessionJSON, 0, len(states))
		for _, st := range states {
			sessions = append(sessions, sessionJSON{
				ID:           st.SessionID,
				CreatedAt:    st.CreatedAt.UTC().Format(time.RFC3339),
				LastActiveAt: st.LastActiveAt.UTC().Format(time.RFC3339),
				Turns:        len(st.History),
				Finalized:    st.Finalized,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sessions)
	}
}

// handleDeleteSession finalizes a session (triggering archival) and removes
// it from the store.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}

		if err := g.sessions.Finalize(id); err != nil {
			if errors.Is(err, conversation.ErrSessionNotFound) {
				http.Error(w, "session not found", http.StatusNotFound)
				return
			}
			// Already finalized: deletion still proceeds.
			if !errors.Is(err, conversation.ErrSessionFinalized) {
				g.logger.Error("finalize session failed", "session_id", id, "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}
		g.sessions.Delete(id)

		w.WriteHeader(http.StatusNoContent)
	}
}
