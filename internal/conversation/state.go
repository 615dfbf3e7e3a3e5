package conversation

import (
	"fmt"
	"time"
)

// State is the full server-side view of one session. The store hands out
// snapshot copies; callers never hold a reference to live store data.
type State struct {
	SessionID    string    `json:"session_id"`
	History      []Turn    `json:"history"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	Finalized    bool      `json:"finalized"`
}

// snapshot returns a copy whose History slice does not alias the original.
// Turn values are immutable so a shallow element copy is sufficient.
func (s *State) snapshot() State {
	cp := *s
	cp.History = make([]Turn, len(s.History))
	copy(cp.History, s.History)
	return cp
}

// CheckConsistency verifies the call/result pairing protocol over a history:
// every tool-result turn must reference the ToolCallID of an earlier
// tool-call turn, and no tool-call may receive two results. A violation is
// a protocol inconsistency, reported via ErrProtocolViolation.
func CheckConsistency(history []Turn) error {
	open := make(map[string]bool)
	for i, t := range history {
		switch t.Kind {
		case KindAssistantToolCall:
			if t.ToolCallID == "" {
				return fmt.Errorf("conversation: turn %d: tool call without id: %w", i, ErrProtocolViolation)
			}
			open[t.ToolCallID] = true
		case KindToolResult:
			if !open[t.ToolCallID] {
				return fmt.Errorf("conversation: turn %d: result for unknown call %q: %w", i, t.ToolCallID, ErrProtocolViolation)
			}
			open[t.ToolCallID] = false
		}
	}
	return nil
}

// Terminal reports whether the history is in a settled state: every
// tool-call turn has a matching result.
func Terminal(history []Turn) bool {
	open := make(map[string]bool)
	for _, t := range history {
		switch t.Kind {
		case KindAssistantToolCall:
			open[t.ToolCallID] = true
		case KindToolResult:
			delete(open, t.ToolCallID)
		}
	}
	return len(open) == 0
}
