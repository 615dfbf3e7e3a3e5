package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"

	"github.com/casahub/concierge/internal/agent"
	"github.com/casahub/concierge/pkg/fragment"
)

// wsEvent is one frame sent to a WebSocket chat client. Type is "fragment",
// "delta", "done", or "error"; the other fields follow the type.
type wsEvent struct {
	Type      string             `json:"type"`
	Fragment  *fragment.Fragment `json:"fragment,omitempty"`
	Text      string             `json:"text,omitempty"`
	Kind      string             `json:"kind,omitempty"`
	Message   string             `json:"message,omitempty"`
	Retryable bool               `json:"retryable,omitempty"`
}

// handleChatSocket upgrades to WebSocket and relays user messages to the
// loop, one at a time. Each inbound frame is {"text": ...}; responses use
// the same event vocabulary as the SSE endpoint.
func (g *Gateway) handleChatSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			http.Error(w, "missing session query parameter", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Warn("websocket accept failed", "error", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusInternalError, "unexpected close") }()

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				// Normal close or client gone.
				return
			}

			var req messageRequest
			if err := json.Unmarshal(data, &req); err != nil {
				g.sendWS(ctx, conn, wsEvent{Type: "error", Kind: "validation", Message: "invalid JSON frame"})
				continue
			}

			g.relayTurn(ctx, conn, sessionID, req.Text)
		}
	}
}

// relayTurn runs one turn and forwards its fragments over the socket.
// Generation is detached from the socket context so a dropped connection
// never truncates a turn mid-flight.
func (g *Gateway) relayTurn(ctx context.Context, conn *websocket.Conn, sessionID, text string) {
	frag, err := g.loop.HandleUserMessage(context.WithoutCancel(ctx), sessionID, text)
	if err != nil {
		g.sendWS(ctx, conn, wsEvent{
			Type:      "error",
			Kind:      string(agent.Classify(err)),
			Message:   err.Error(),
			Retryable: agent.Retryable(err),
		})
		return
	}

	if frag.IsStreaming() {
		ts := frag.Stream
		seen := 0
		for {
			snap, done := ts.Snapshot()
			if len(snap) > seen {
				g.sendWS(ctx, conn, wsEvent{Type: "delta", Text: snap[seen:]})
				seen = len(snap)
			}
			if done {
				if err := ts.Err(); err != nil {
					g.sendWS(ctx, conn, wsEvent{
						Type:      "error",
						Kind:      string(agent.Classify(err)),
						Message:   err.Error(),
						Retryable: agent.Retryable(err),
					})
				}
				break
			}
			select {
			case <-ts.Changed(seen):
			case <-ctx.Done():
				return
			}
		}
	} else {
		g.sendWS(ctx, conn, wsEvent{Type: "fragment", Fragment: frag})
	}

	g.sendWS(ctx, conn, wsEvent{Type: "done"})
}

// sendWS writes one JSON frame, logging on failure.
func (g *Gateway) sendWS(ctx context.Context, conn *websocket.Conn, ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		if !errors.Is(err, context.Canceled) {
			g.logger.Debug("websocket write failed", "error", err)
		}
	}
}
