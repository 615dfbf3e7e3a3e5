package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/casahub/concierge/internal/conversation"
	"github.com/casahub/concierge/internal/hub"
	"github.com/casahub/concierge/internal/provider"
	"github.com/casahub/concierge/internal/provider/providertest"
	"github.com/casahub/concierge/internal/tool"
	"github.com/casahub/concierge/pkg/fragment"
)

// newTestLoop wires a loop against the real hub tools and a mock provider.
func newTestLoop(t *testing.T, p provider.Provider) (*Loop, *conversation.Store, *hub.Store) {
	t.Helper()

	reg := tool.NewRegistry()
	hubStore := hub.NewStore(hub.DefaultState())
	if err := hub.RegisterTools(reg, hubStore); err != nil {
		t.Fatalf("register tools: %v", err)
	}
	sessions := conversation.NewStore(nil, nil)
	loop := NewLoop(p, reg, sessions, Config{}, nil)
	return loop, sessions, hubStore
}

func waitDone(t *testing.T, ts interface{ DoneCh() <-chan struct{} }) {
	t.Helper()
	select {
	case <-ts.DoneCh():
	case <-time.After(5 * time.Second):
		t.Fatal("stream never finished")
	}
}

func TestStreamedTextTurn(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{Content: "¡Hola! "},
			provider.StreamChunk{Content: "¿Para qué usarás "},
			provider.StreamChunk{Content: "el vehículo?"},
			provider.StreamChunk{FinishReason: provider.FinishReasonStop},
		),
	}
	loop, sessions, _ := newTestLoop(t, mock)

	frag, err := loop.HandleUserMessage(context.Background(), "sess", "Quiero un auto")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !frag.IsStreaming() {
		t.Fatalf("fragment kind = %s, want streaming", frag.Kind)
	}

	waitDone(t, frag.Stream)

	const want = "¡Hola! ¿Para qué usarás el vehículo?"
	if got, done := frag.Stream.Snapshot(); !done || got != want {
		t.Errorf("snapshot = (%q, %v), want (%q, true)", got, done, want)
	}
	if err := frag.Stream.Err(); err != nil {
		t.Errorf("stream error: %v", err)
	}

	// DoneCh fires only after history settles.
	st, err := sessions.Get("sess")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(st.History) != 2 {
		t.Fatalf("history len = %d, want 2", len(st.History))
	}
	if st.History[0].Kind != conversation.KindUser || st.History[0].Content != "Quiero un auto" {
		t.Errorf("turn 0 = %+v", st.History[0])
	}
	if st.History[1].Kind != conversation.KindAssistantText || st.History[1].Content != want {
		t.Errorf("turn 1 = %+v", st.History[1])
	}
}

func TestToolCallTurn(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{ToolCalls: []provider.ToolCall{{
				ID:        "call-1",
				Name:      hub.ToolViewCameras,
				Arguments: json.RawMessage(`{}`),
			}}},
		),
	}
	loop, sessions, _ := newTestLoop(t, mock)

	frag, err := loop.HandleUserMessage(context.Background(), "sess", "muéstrame las cámaras")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if frag.Kind != fragment.KindCameras {
		t.Errorf("fragment kind = %s, want cameras", frag.Kind)
	}

	st, err := sessions.Get("sess")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(st.History) != 3 {
		t.Fatalf("history len = %d, want 3", len(st.History))
	}
	kinds := []conversation.Kind{
		st.History[0].Kind, st.History[1].Kind, st.History[2].Kind,
	}
	want := []conversation.Kind{
		conversation.KindUser,
		conversation.KindAssistantToolCall,
		conversation.KindToolResult,
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("turn %d kind = %s, want %s", i, kinds[i], want[i])
		}
	}
	if st.History[1].ToolCallID != "call-1" || st.History[2].ToolCallID != "call-1" {
		t.Errorf("call/result IDs = %q / %q, want both call-1",
			st.History[1].ToolCallID, st.History[2].ToolCallID)
	}
	var payload string
	if err := json.Unmarshal(st.History[2].Result, &payload); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if payload != "The active cameras are currently displayed on the screen" {
		t.Errorf("result payload = %q", payload)
	}
	if !conversation.Terminal(st.History) {
		t.Error("history not terminal after tool turn")
	}
}

func TestToolCallWithoutIDGetsOne(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{ToolCalls: []provider.ToolCall{{
				Name:      hub.ToolViewUsage,
				Arguments: json.RawMessage(`{"type":"electricity"}`),
			}}},
		),
	}
	loop, sessions, _ := newTestLoop(t, mock)

	if _, err := loop.HandleUserMessage(context.Background(), "sess", "consumo"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	st, _ := sessions.Get("sess")
	if len(st.History) != 3 {
		t.Fatalf("history len = %d, want 3", len(st.History))
	}
	id := st.History[1].ToolCallID
	if id == "" {
		t.Error("tool call turn has empty ID")
	}
	if st.History[2].ToolCallID != id {
		t.Errorf("result ID %q does not match call ID %q", st.History[2].ToolCallID, id)
	}
}

func TestValidationFailureAppendsNothing(t *testing.T) {
	t.Parallel()

	// updateHub without climate must be rejected before any side effect.
	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{ToolCalls: []provider.ToolCall{{
				ID:        "call-1",
				Name:      hub.ToolUpdateHub,
				Arguments: json.RawMessage(`{"hub":{"lights":[],"locks":[]}}`),
			}}},
		),
	}
	loop, sessions, hubStore := newTestLoop(t, mock)
	before := hubStore.Snapshot()

	_, err := loop.HandleUserMessage(context.Background(), "sess", "apaga todo")
	if !errors.Is(err, tool.ErrInvalidArgs) {
		t.Fatalf("got %v, want ErrInvalidArgs", err)
	}
	if Classify(err) != KindValidation {
		t.Errorf("kind = %s, want validation", Classify(err))
	}
	if Retryable(err) {
		t.Error("validation failure reported retryable")
	}

	st, _ := sessions.Get("sess")
	if len(st.History) != 1 || st.History[0].Kind != conversation.KindUser {
		t.Errorf("history = %+v, want only the user turn", st.History)
	}
	if after := hubStore.Snapshot(); after.Climate != before.Climate {
		t.Error("hub mutated despite validation failure")
	}
}

func TestProviderFailureIsRetryable(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{Err: provider.ErrProviderDown},
		),
	}
	loop, sessions, _ := newTestLoop(t, mock)

	_, err := loop.HandleUserMessage(context.Background(), "sess", "hola")
	if err == nil {
		t.Fatal("expected error")
	}
	if Classify(err) != KindModelInvocation {
		t.Errorf("kind = %s, want model_invocation", Classify(err))
	}
	if !Retryable(err) {
		t.Error("provider failure not retryable")
	}

	// The user turn survives so a retry replays identical history.
	st, _ := sessions.Get("sess")
	if len(st.History) != 1 || st.History[0].Kind != conversation.KindUser {
		t.Errorf("history = %+v, want only the user turn", st.History)
	}
}

func TestMidStreamFailure(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{Content: "Claro, "},
			provider.StreamChunk{Err: provider.ErrRateLimit},
		),
	}
	loop, sessions, _ := newTestLoop(t, mock)

	frag, err := loop.HandleUserMessage(context.Background(), "sess", "hola")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	waitDone(t, frag.Stream)

	if err := frag.Stream.Err(); !errors.Is(err, provider.ErrRateLimit) {
		t.Errorf("stream error = %v, want ErrRateLimit", err)
	}
	// No assistant turn lands on a failed stream.
	st, _ := sessions.Get("sess")
	if len(st.History) != 1 {
		t.Errorf("history len = %d, want 1", len(st.History))
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	t.Parallel()

	loop, sessions, _ := newTestLoop(t, &providertest.MockProvider{})

	_, err := loop.HandleUserMessage(context.Background(), "sess", "   \n\t ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("got %v, want ErrEmptyMessage", err)
	}
	if Classify(err) != KindValidation {
		t.Errorf("kind = %s, want validation", Classify(err))
	}
	if sessions.Len() != 0 {
		t.Error("session created for rejected message")
	}
}

func TestEmptyCompletionIsInvocationError(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{FinishReason: provider.FinishReasonStop},
		),
	}
	loop, _, _ := newTestLoop(t, mock)

	_, err := loop.HandleUserMessage(context.Background(), "sess", "hola")
	if err == nil {
		t.Fatal("expected error for empty completion")
	}
	if Classify(err) != KindModelInvocation {
		t.Errorf("kind = %s, want model_invocation", Classify(err))
	}
}

func TestSecondMessageSeesFullHistory(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{}
	mock.StreamFunc = providertest.StaticStream(
		provider.StreamChunk{Content: "¿Cuántos pasajeros?"},
	)
	loop, _, _ := newTestLoop(t, mock)

	frag, err := loop.HandleUserMessage(context.Background(), "sess", "quiero una SUV")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	waitDone(t, frag.Stream)

	mock.StreamFunc = providertest.StaticStream(
		provider.StreamChunk{Content: "Entendido."},
	)
	frag, err = loop.HandleUserMessage(context.Background(), "sess", "somos cinco")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	waitDone(t, frag.Stream)

	req := mock.LastRequest
	if req.SystemPrompt == "" {
		t.Error("system prompt missing from request")
	}
	roles := make([]provider.MessageRole, len(req.Messages))
	for i, m := range req.Messages {
		roles[i] = m.Role
	}
	want := []provider.MessageRole{
		provider.MessageRoleUser,
		provider.MessageRoleAssistant,
		provider.MessageRoleUser,
	}
	if len(roles) != len(want) {
		t.Fatalf("message roles = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("message %d role = %s, want %s", i, roles[i], want[i])
		}
	}
	if len(req.Tools) != 4 {
		t.Errorf("tool definitions = %d, want 4", len(req.Tools))
	}
}

func TestSameSessionSerialized(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	mock := &providertest.MockProvider{
		StreamFunc: func(context.Context, provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			started <- struct{}{}
			ch := make(chan provider.StreamChunk, 1)
			go func() {
				<-release
				ch <- provider.StreamChunk{ToolCalls: []provider.ToolCall{{
					ID: "c", Name: hub.ToolViewCameras, Arguments: json.RawMessage(`{}`),
				}}}
				close(ch)
			}()
			return ch, nil
		},
	}
	loop, _, _ := newTestLoop(t, mock)

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := loop.HandleUserMessage(context.Background(), "sess", "cámaras")
			done <- err
		}()
	}

	// Only one invocation may be in flight while the first is blocked.
	<-started
	select {
	case <-started:
		t.Fatal("second invocation started while first held the lane")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
}

func TestTruncatedStreamNotRecorded(t *testing.T) {
	t.Parallel()

	// A provider stream that ends before completion delivers a terminal
	// Err chunk; the partial text must never land as a finished turn.
	truncated := fmt.Errorf("%w: stream closed before completion", provider.ErrProviderDown)
	mock := &providertest.MockProvider{
		StreamFunc: providertest.StaticStream(
			provider.StreamChunk{Content: "Claro, te recom"},
			provider.StreamChunk{Err: truncated},
		),
	}
	loop, sessions, _ := newTestLoop(t, mock)

	frag, err := loop.HandleUserMessage(context.Background(), "sess", "recomiéndame un auto")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	waitDone(t, frag.Stream)

	if err := frag.Stream.Err(); !errors.Is(err, provider.ErrProviderDown) {
		t.Errorf("stream error = %v, want ErrProviderDown", err)
	}
	st, _ := sessions.Get("sess")
	if len(st.History) != 1 || st.History[0].Kind != conversation.KindUser {
		t.Errorf("history = %+v, want only the user turn", st.History)
	}
}
