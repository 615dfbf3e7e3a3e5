// Package conversation holds the server-authoritative conversation model:
// immutable turns, per-session state, an append-only store, and per-session
// lane locking so each session processes one message at a time.
package conversation

import (
	"encoding/json"
	"time"
)

// Kind discriminates the turn variants.
type Kind string

const (
	// KindUser is free-form text submitted by the end user.
	KindUser Kind = "user"
	// KindAssistantText is a completed assistant text response.
	KindAssistantText Kind = "assistant_text"
	// KindAssistantToolCall records the model's decision to invoke a tool.
	KindAssistantToolCall Kind = "assistant_tool_call"
	// KindToolResult records the serialized outcome of a tool invocation.
	// Its ToolCallID must match a preceding KindAssistantToolCall turn.
	KindToolResult Kind = "tool_result"
)

// Turn is one immutable entry in a conversation history. It is a tagged
// union: Kind selects which fields are meaningful. Turns are never mutated
// after being appended; history changes only by whole-slice replacement
// through the Store.
type Turn struct {
	Kind       Kind            `json:"kind"`
	Content    string          `json:"content,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	At         time.Time       `json:"at"`
}

// UserTurn builds a user text turn.
func UserTurn(content string, at time.Time) Turn {
	return Turn{Kind: KindUser, Content: content, At: at}
}

// AssistantTextTurn builds a completed assistant text turn.
func AssistantTextTurn(content string, at time.Time) Turn {
	return Turn{Kind: KindAssistantText, Content: content, At: at}
}

// ToolCallTurn builds an assistant tool-call turn.
func ToolCallTurn(callID, toolName string, args json.RawMessage, at time.Time) Turn {
	return Turn{
		Kind:       KindAssistantToolCall,
		ToolCallID: callID,
		ToolName:   toolName,
		Args:       args,
		At:         at,
	}
}

// ToolResultTurn builds a tool-result turn paired with a prior tool call.
func ToolResultTurn(callID, toolName string, result json.RawMessage, at time.Time) Turn {
	return Turn{
		Kind:       KindToolResult,
		ToolCallID: callID,
		ToolName:   toolName,
		Result:     result,
		At:         at,
	}
}
