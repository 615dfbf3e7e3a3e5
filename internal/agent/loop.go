// Package agent implements the orchestration loop that couples user input,
// the model provider, tool dispatch, and the append-only conversation
// history into single coherent turns.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/casahub/concierge/internal/conversation"
	"github.com/casahub/concierge/internal/provider"
	"github.com/casahub/concierge/internal/tool"
	"github.com/casahub/concierge/pkg/fragment"
	"github.com/casahub/concierge/pkg/stream"
)

// Loop drives one conversation turn at a time per session: record the user
// turn, invoke the model over the full history, then either stream text or
// dispatch a single validated tool call, and settle history before the turn
// is observable as terminal.
type Loop struct {
	provider provider.Provider
	registry *tool.Registry
	sessions *conversation.Store
	lanes    *conversation.LaneLock
	config   Config
	logger   *slog.Logger
	tracer   trace.Tracer

	// now is injectable for deterministic testing.
	now func() time.Time
}

// NewLoop creates a Loop with the given collaborators.
func NewLoop(p provider.Provider, reg *tool.Registry, sessions *conversation.Store, cfg Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		provider: p,
		registry: reg,
		sessions: sessions,
		lanes:    conversation.NewLaneLock(),
		config:   cfg.withDefaults(),
		logger:   logger,
		tracer:   otel.Tracer("concierge/agent"),
		now:      time.Now,
	}
}

// Lanes exposes the per-session lock for background cleanup jobs.
func (l *Loop) Lanes() *conversation.LaneLock {
	return l.lanes
}

// HandleUserMessage processes one user message for the session and returns
// the renderable fragment for the assistant's response.
//
// For tool turns the call returns only after history holds the paired
// tool-call and tool-result turns. For text turns it returns a live stream
// fragment immediately; the full assistant turn is appended to history
// before the stream's DoneCh fires. In both cases, by the time the turn is
// observable as terminal the history is self-consistent.
//
// Messages within one session are serialized; the session lane stays held
// until the turn settles, streaming included.
func (l *Loop) HandleUserMessage(ctx context.Context, sessionID, text string) (*fragment.Fragment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := l.tracer.Start(ctx, "agent.turn",
		trace.WithAttributes(attribute.String("session.id", sessionID)))

	l.lanes.Acquire(sessionID)
	releaseLane := sync.OnceFunc(func() {
		l.lanes.Release(sessionID)
		span.End()
	})

	frag, err := l.handleLocked(ctx, sessionID, text, releaseLane)
	if err != nil {
		span.RecordError(err)
		releaseLane()
		return nil, err
	}
	if !frag.IsStreaming() {
		releaseLane()
	}
	return frag, nil
}

// handleLocked runs the turn with the session lane held. On the streaming
// text path it hands releaseLane to a goroutine and returns immediately;
// every other path leaves release to the caller.
func (l *Loop) handleLocked(parent context.Context, sessionID, text string, releaseLane func()) (*fragment.Fragment, error) {
	st, err := l.sessions.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}
	if st.Finalized {
		return nil, fmt.Errorf("agent: %q: %w", sessionID, ErrSessionFinalized)
	}

	history := append(st.History, conversation.UserTurn(text, l.now()))
	if err := l.sessions.Replace(sessionID, history); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(parent, l.config.ModelTimeout)

	req := provider.CompletionRequest{
		SystemPrompt: l.config.SystemPrompt,
		Messages:     buildMessages(history),
		Tools:        toolDefinitions(l.registry),
	}

	ch, err := l.provider.Stream(ctx, req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("agent: model invocation: %w", err)
	}

	// Consume until the first decisive chunk: content begins a streaming
	// text turn, a tool call begins a tool turn.
	var toolCalls []provider.ToolCall
	for chunk := range ch {
		if chunk.Err != nil {
			drain(ch)
			cancel()
			return nil, fmt.Errorf("agent: model invocation: %w", chunk.Err)
		}
		if chunk.Content != "" {
			frag := l.streamText(cancel, sessionID, history, chunk.Content, ch, releaseLane)
			return frag, nil
		}
		if len(chunk.ToolCalls) > 0 {
			toolCalls = append(toolCalls, chunk.ToolCalls...)
			break
		}
	}

	// Tool path consumes the rest of the stream before dispatching.
	for chunk := range ch {
		if chunk.Err != nil {
			drain(ch)
			cancel()
			return nil, fmt.Errorf("agent: model invocation: %w", chunk.Err)
		}
		toolCalls = append(toolCalls, chunk.ToolCalls...)
	}
	cancel()

	if len(toolCalls) == 0 {
		return nil, fmt.Errorf("agent: model invocation: provider returned an empty completion")
	}
	return l.dispatchTool(parent, sessionID, history, toolCalls)
}

// streamText forwards the remaining provider chunks into a live text
// stream. The assistant turn is appended to history before the stream is
// marked done, so readers that observe DoneCh see settled history. The
// session lane and the invocation context are released when the stream
// finishes either way.
func (l *Loop) streamText(cancel context.CancelFunc, sessionID string, history []conversation.Turn, first string, ch <-chan provider.StreamChunk, releaseLane func()) *fragment.Fragment {
	ts := stream.NewText()
	_ = ts.Update(first)

	go func() {
		defer releaseLane()
		defer cancel()

		full := first
		for chunk := range ch {
			if chunk.Err != nil {
				drain(ch)
				l.logger.Error("stream failed mid-turn",
					"session_id", sessionID, "error", chunk.Err)
				_ = ts.Fail(fmt.Errorf("agent: model invocation: %w", chunk.Err))
				return
			}
			if chunk.Content != "" {
				full += chunk.Content
				_ = ts.Update(chunk.Content)
			}
			if len(chunk.ToolCalls) > 0 {
				// The model contract is one branch per turn. A tool call
				// after text began is dropped, not half-honored.
				l.logger.Warn("tool call after text began, ignoring",
					"session_id", sessionID, "tool", chunk.ToolCalls[0].Name)
			}
		}

		next := append(history, conversation.AssistantTextTurn(full, l.now()))
		if err := l.sessions.Replace(sessionID, next); err != nil {
			l.logger.Error("failed to record assistant turn",
				"session_id", sessionID, "error", err)
			_ = ts.Fail(err)
			return
		}
		_ = ts.Done()
	}()

	frag := fragment.NewTextStream(ts)
	return &frag
}

// dispatchTool validates and executes the model's tool call, then lands the
// tool-call and tool-result turns in one atomic history write.
func (l *Loop) dispatchTool(ctx context.Context, sessionID string, history []conversation.Turn, toolCalls []provider.ToolCall) (*fragment.Fragment, error) {
	tc := toolCalls[0]
	if len(toolCalls) > 1 {
		// The model contract emits a single call per turn. Extras are
		// dropped so history never holds an unexecuted call.
		l.logger.Warn("multiple tool calls in one turn, honoring the first",
			"session_id", sessionID, "honored", tc.Name, "dropped", len(toolCalls)-1)
	}
	if tc.ID == "" {
		tc.ID = uuid.NewString()
	}

	// Validation happens before any side effect or history write. A failed
	// validation leaves only the user turn recorded.
	if err := l.registry.ValidateArgs(tc.Name, tc.Arguments); err != nil {
		return nil, fmt.Errorf("agent: tool %q: %w", tc.Name, err)
	}

	ctx, span := l.tracer.Start(ctx, "tool.execute",
		trace.WithAttributes(attribute.String("tool.name", tc.Name)))
	res, err := l.registry.Execute(ctx, tc.Name, tc.Arguments)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("agent: tool %q: %w", tc.Name, err)
	}
	span.End()

	now := l.now()
	next := append(history,
		conversation.ToolCallTurn(tc.ID, tc.Name, tc.Arguments, now),
		conversation.ToolResultTurn(tc.ID, tc.Name, res.Payload, now),
	)
	if err := l.sessions.Replace(sessionID, next); err != nil {
		return nil, err
	}

	l.logger.Info("tool turn completed",
		"session_id", sessionID, "tool", tc.Name)
	return &res.Fragment, nil
}

// buildMessages projects conversation history onto the provider wire shape.
func buildMessages(history []conversation.Turn) []provider.LLMMessage {
	msgs := make([]provider.LLMMessage, 0, len(history))
	for _, t := range history {
		switch t.Kind {
		case conversation.KindUser:
			msgs = append(msgs, provider.LLMMessage{
				Role:    provider.MessageRoleUser,
				Content: t.Content,
			})
		case conversation.KindAssistantText:
			msgs = append(msgs, provider.LLMMessage{
				Role:    provider.MessageRoleAssistant,
				Content: t.Content,
			})
		case conversation.KindAssistantToolCall:
			msgs = append(msgs, provider.LLMMessage{
				Role: provider.MessageRoleAssistant,
				ToolCalls: []provider.ToolCall{{
					ID:        t.ToolCallID,
					Name:      t.ToolName,
					Arguments: t.Args,
				}},
			})
		case conversation.KindToolResult:
			msgs = append(msgs, provider.LLMMessage{
				Role:    provider.MessageRoleTool,
				Content: string(t.Result),
				ToolID:  t.ToolCallID,
			})
		}
	}
	return msgs
}

// toolDefinitions projects the registry onto the provider wire shape.
func toolDefinitions(reg *tool.Registry) []provider.ToolDefinition {
	defs := reg.Definitions()
	out := make([]provider.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, provider.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return out
}

// drain empties a provider stream so its goroutine can exit.
func drain(ch <-chan provider.StreamChunk) {
	for range ch {
	}
}
