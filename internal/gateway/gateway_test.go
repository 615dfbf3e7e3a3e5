package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/casahub/concierge/internal/agent"
	"github.com/casahub/concierge/internal/config"
	"github.com/casahub/concierge/internal/conversation"
	"github.com/casahub/concierge/internal/hub"
	"github.com/casahub/concierge/internal/provider"
	"github.com/casahub/concierge/internal/provider/providertest"
	"github.com/casahub/concierge/internal/tool"
)

// newTestGateway wires a gateway over a mock provider and real hub tools.
func newTestGateway(t *testing.T, p provider.Provider, cfg config.ServerConfig) (*Gateway, *httptest.Server) {
	t.Helper()

	reg := tool.NewRegistry()
	if err := hub.RegisterTools(reg, hub.NewStore(hub.DefaultState())); err != nil {
		t.Fatalf("register tools: %v", err)
	}
	sessions := conversation.NewStore(nil, nil)
	loop := agent.NewLoop(p, reg, sessions, agent.Config{}, nil)

	g := New(cfg, loop, sessions, p, nil)
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return g, srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	t.Parallel()

	_, srv := newTestGateway(t, &providertest.MockProvider{}, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Model != "mock-model" {
		t.Errorf("health = %+v", health)
	}
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	_, srv := newTestGateway(t, &providertest.MockProvider{}, config.ServerConfig{})

	resp := postJSON(t, srv.URL+"/v1/sessions", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body["session_id"]) != 32 {
		t.Errorf("session_id = %q", body["session_id"])
	}
}

func TestSendMessageStreamsText(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{Content: "Hola, "},
			provider.StreamChunk{Content: "¿en qué te ayudo?"},
		),
	}
	_, srv := newTestGateway(t, mock, config.ServerConfig{})

	resp := postJSON(t, srv.URL+"/v1/sessions/sess-1/messages", `{"text":"hola"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, "event: delta") {
		t.Errorf("no delta events in %q", body)
	}
	if !strings.Contains(body, "Hola, ") || !strings.Contains(body, "¿en qué te ayudo?") {
		t.Errorf("text missing from stream: %q", body)
	}
	if !strings.Contains(body, "event: done") {
		t.Errorf("no done event in %q", body)
	}
}

func TestSendMessageToolFragment(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{ToolCalls: []provider.ToolCall{{
				ID: "c1", Name: hub.ToolViewCameras, Arguments: json.RawMessage(`{}`),
			}}},
		),
	}
	_, srv := newTestGateway(t, mock, config.ServerConfig{})

	resp := postJSON(t, srv.URL+"/v1/sessions/sess-1/messages", `{"text":"cámaras"}`)
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	body := string(raw)
	if !strings.Contains(body, "event: fragment") {
		t.Errorf("no fragment event in %q", body)
	}
	if !strings.Contains(body, `"kind":"cameras"`) {
		t.Errorf("cameras fragment missing: %q", body)
	}
	if !strings.Contains(body, "event: done") {
		t.Errorf("no done event in %q", body)
	}
}

func TestSendMessageValidation(t *testing.T) {
	t.Parallel()

	_, srv := newTestGateway(t, &providertest.MockProvider{}, config.ServerConfig{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty text", `{"text":"  "}`, http.StatusBadRequest},
		{"malformed body", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := postJSON(t, srv.URL+"/v1/sessions/sess/messages", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestProviderFailureIsBadGateway(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{Err: provider.ErrProviderDown},
		),
	}
	_, srv := newTestGateway(t, mock, config.ServerConfig{})

	resp := postJSON(t, srv.URL+"/v1/sessions/sess/messages", `{"text":"hola"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	var body map[string]errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body["error"].Retryable {
		t.Errorf("error body = %+v, want retryable", body["error"])
	}
}

func TestAdminRequiresBearer(t *testing.T) {
	t.Parallel()

	_, srv := newTestGateway(t, &providertest.MockProvider{}, config.ServerConfig{AdminToken: "hunter2"})

	resp, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", resp.StatusCode)
	}
}

func TestAdminNotMountedWithoutToken(t *testing.T) {
	t.Parallel()

	_, srv := newTestGateway(t, &providertest.MockProvider{}, config.ServerConfig{})

	resp, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, &providertest.MockProvider{}, config.ServerConfig{AdminToken: "tok"})
	if _, err := g.sessions.GetOrCreate("victim"); err != nil {
		t.Fatalf("create: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/victim", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if g.sessions.Len() != 0 {
		t.Error("session survived delete")
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/ghost", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete ghost: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ghost status = %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, &providertest.MockProvider{}, config.ServerConfig{})
	g.metrics.RecordTurn("text", 50*time.Millisecond)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	body := string(raw)
	if !strings.Contains(body, "concierge_turns_total") {
		t.Errorf("turns counter missing from scrape: %q", body)
	}
	if !strings.Contains(body, "concierge_active_sessions") {
		t.Errorf("sessions gauge missing from scrape: %q", body)
	}
}

func TestChatSocket(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{Content: "¡Hola!"},
		),
	}
	_, srv := newTestGateway(t, mock, config.ServerConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?session=sess"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"text":"hola"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var sawDelta, sawDone bool
	for !sawDone {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var ev wsEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode frame %q: %v", data, err)
		}
		switch ev.Type {
		case "delta":
			sawDelta = true
		case "done":
			sawDone = true
		case "error":
			t.Fatalf("error frame: %+v", ev)
		}
	}
	if !sawDelta {
		t.Error("no delta frames before done")
	}
}

func TestClientDisconnectDoesNotAbortTurn(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	mock := &providertest.MockProvider{
		StreamFunc: func(ctx context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			ch := make(chan provider.StreamChunk)
			go func() {
				defer close(ch)
				ch <- provider.StreamChunk{Content: "Hola, "}
				select {
				case <-release:
				case <-ctx.Done():
					ch <- provider.StreamChunk{Err: ctx.Err()}
					return
				}
				ch <- provider.StreamChunk{Content: "¿en qué te ayudo?"}
			}()
			return ch, nil
		},
	}
	g, srv := newTestGateway(t, mock, config.ServerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		srv.URL+"/v1/sessions/sess-1/messages", strings.NewReader(`{"text":"hola"}`))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	// Observe the first delta, then drop the connection mid-stream.
	buf := make([]byte, 1)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	cancel()
	resp.Body.Close()
	close(release)

	// The writer keeps generating and settles the full turn.
	deadline := time.After(5 * time.Second)
	for {
		st, err := g.sessions.Get("sess-1")
		if err == nil && len(st.History) == 2 {
			const want = "Hola, ¿en qué te ayudo?"
			if got := st.History[1].Content; got != want {
				t.Fatalf("assistant turn = %q, want %q", got, want)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("turn never settled after client disconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAdminSessionTimestampsAreUTC(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, &providertest.MockProvider{}, config.ServerConfig{AdminToken: "tok"})
	st, err := g.sessions.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var sessions []struct {
		ID        string `json:"id"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %+v", sessions)
	}

	parsed, err := time.Parse(time.RFC3339, sessions[0].CreatedAt)
	if err != nil {
		t.Fatalf("created_at %q is not RFC3339: %v", sessions[0].CreatedAt, err)
	}
	// The serialized instant must match the stored one, not just its wall
	// clock digits relabeled as UTC.
	if parsed.Unix() != st.CreatedAt.Unix() {
		t.Errorf("created_at = %v, want instant %v", parsed, st.CreatedAt)
	}
}
