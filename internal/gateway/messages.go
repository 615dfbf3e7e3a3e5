package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/casahub/concierge/internal/agent"
	"github.com/casahub/concierge/internal/conversation"
	"github.com/casahub/concierge/pkg/fragment"
)

// messageRequest is the body of POST /v1/sessions/{id}/messages.
type messageRequest struct {
	Text string `json:"text"`
}

// errorBody is the JSON error envelope for non-SSE failures.
type errorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// handleSendMessage submits one user message and answers with an SSE stream
// of fragment events: `fragment` for structured views, `delta` for partial
// text, then a final `done`. Failures before any event are plain JSON.
func (g *Gateway) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		start := time.Now()
		// Generation is detached from the request context: a reader that
		// disconnects stops observing, but the turn runs to completion and
		// settles history. The loop's model timeout still bounds it.
		frag, err := g.loop.HandleUserMessage(context.WithoutCancel(r.Context()), id, req.Text)
		if err != nil {
			g.metrics.RecordTurn("error", time.Since(start))
			writeTurnError(w, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		if frag.IsStreaming() {
			g.streamSSE(w, flusher, r, frag)
			g.metrics.RecordTurn("text", time.Since(start))
		} else {
			writeSSE(w, "fragment", frag)
			flusher.Flush()
			g.metrics.RecordTurn("tool", time.Since(start))
		}

		writeSSE(w, "done", map[string]bool{"done": true})
		flusher.Flush()
	}
}

// streamSSE forwards a live text stream as delta events until the terminal
// transition, re-sending only the unseen suffix on each wakeup.
func (g *Gateway) streamSSE(w http.ResponseWriter, flusher http.Flusher, r *http.Request, frag *fragment.Fragment) {
	ts := frag.Stream
	seen := 0
	for {
		snap, done := ts.Snapshot()
		if len(snap) > seen {
			writeSSE(w, "delta", map[string]string{"text": snap[seen:]})
			flusher.Flush()
			seen = len(snap)
		}
		if done {
			if err := ts.Err(); err != nil {
				writeSSE(w, "error", errorBody{
					Kind:      string(agent.Classify(err)),
					Message:   err.Error(),
					Retryable: agent.Retryable(err),
				})
				flusher.Flush()
			}
			return
		}

		select {
		case <-ts.Changed(seen):
		case <-r.Context().Done():
			// Client went away. The loop goroutine still settles history.
			return
		}
	}
}

// writeSSE emits one SSE event with a JSON-encoded payload.
func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// writeTurnError maps a turn failure onto an HTTP status and JSON body.
func writeTurnError(w http.ResponseWriter, err error) {
	kind := agent.Classify(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, conversation.ErrMaxSessions):
		status = http.StatusTooManyRequests
	case kind == agent.KindValidation:
		status = http.StatusBadRequest
	case kind == agent.KindModelInvocation:
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]errorBody{"error": {
		Kind:      string(kind),
		Message:   err.Error(),
		Retryable: agent.Retryable(err),
	}})
}
