package conversation

import "errors"

var (
	// ErrSessionNotFound indicates the session ID is not in the store.
	ErrSessionNotFound = errors.New("conversation: session not found")

	// ErrSessionFinalized indicates a write to a closed session.
	ErrSessionFinalized = errors.New("conversation: session finalized")

	// ErrHistoryRewrite indicates a Replace whose new history does not
	// extend the stored one. History is append-only; rewrites are rejected.
	ErrHistoryRewrite = errors.New("conversation: history rewrite rejected")

	// ErrProtocolViolation indicates a broken tool call/result pairing.
	ErrProtocolViolation = errors.New("conversation: protocol violation")

	// ErrMaxSessions indicates the session cap was reached.
	ErrMaxSessions = errors.New("conversation: session limit reached")
)
