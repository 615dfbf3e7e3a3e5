package agent

import (
	"errors"

	"github.com/casahub/concierge/internal/conversation"
	"github.com/casahub/concierge/internal/provider"
	"github.com/casahub/concierge/internal/tool"
	"github.com/casahub/concierge/pkg/fragment"
)

// Sentinel errors for turn rejection.
var (
	ErrEmptyMessage     = errors.New("agent: empty message")
	ErrSessionFinalized = errors.New("agent: session finalized")
)

// ErrorKind classifies a failed turn for callers that render errors.
type ErrorKind string

const (
	// KindValidation covers rejected input and tool arguments that failed
	// schema validation. Never retryable.
	KindValidation ErrorKind = "validation"
	// KindModelInvocation covers provider failures before or during
	// generation. Retryable: no turn beyond the user's was recorded.
	KindModelInvocation ErrorKind = "model_invocation"
	// KindToolExecution covers tool handlers that failed after validation.
	KindToolExecution ErrorKind = "tool_execution"
	// KindProtocol covers internal history-coherence violations.
	KindProtocol ErrorKind = "protocol"
)

// Classify maps an error from HandleUserMessage onto the turn taxonomy.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrSessionFinalized),
		errors.Is(err, conversation.ErrSessionFinalized),
		errors.Is(err, conversation.ErrMaxSessions),
		errors.Is(err, tool.ErrInvalidArgs),
		errors.Is(err, tool.ErrToolNotFound):
		return KindValidation
	case errors.Is(err, tool.ErrExecution):
		return KindToolExecution
	case errors.Is(err, conversation.ErrProtocolViolation),
		errors.Is(err, conversation.ErrHistoryRewrite):
		return KindProtocol
	default:
		return KindModelInvocation
	}
}

// Retryable reports whether resubmitting the same message may succeed.
// Only model-invocation failures qualify: the user turn was recorded and
// nothing else was, so a retry reinvokes the model on identical history.
func Retryable(err error) bool {
	if Classify(err) != KindModelInvocation {
		return false
	}
	if errors.Is(err, provider.ErrContextLength) || errors.Is(err, provider.ErrAuthentication) {
		return false
	}
	return true
}

// ErrorFragment renders err as a user-visible error fragment.
func ErrorFragment(err error) *fragment.Fragment {
	f := fragment.NewError(string(Classify(err)), err.Error(), Retryable(err))
	return &f
}
