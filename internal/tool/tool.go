// Package tool defines the capability contract the model may invoke instead
// of producing plain text, and the registry that validates and dispatches
// those invocations by name.
package tool

import (
	"context"
	"encoding/json"

	"github.com/casahub/concierge/pkg/fragment"
)

// Result is the outcome of a tool execution: the fragment handed to the
// presentation layer and the payload recorded as the tool-result turn in
// conversation history.
type Result struct {
	Fragment fragment.Fragment
	Payload  json.RawMessage
}

// Tool is the interface all concierge tools implement.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Schema returns a JSON Schema describing the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with already-validated arguments.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// Definition is a tool's callable surface as advertised to the model.
type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// TextPayload wraps a plain string as a JSON tool-result payload.
func TextPayload(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}
