// Package fragment defines the renderable unit the agent core hands to a
// presentation surface for each assistant turn. A fragment is either plain
// text, a live text stream, or a structured view a renderer turns into UI.
package fragment

import (
	"encoding/json"

	"github.com/casahub/concierge/pkg/stream"
)

// Role identifies who a fragment is attributed to.
type Role string

// Role values.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind discriminates which fields of a Fragment are meaningful.
type Kind string

// Supported fragment kinds.
const (
	KindText       Kind = "text"
	KindTextStream Kind = "text_stream"
	KindCameras    Kind = "cameras"
	KindHub        Kind = "hub"
	KindUsage      Kind = "usage"
	KindError      Kind = "error"
)

// UsageType enumerates the usage categories a usage view can show.
type UsageType string

// Usage categories.
const (
	UsageElectricity UsageType = "electricity"
	UsageWater       UsageType = "water"
	UsageGas         UsageType = "gas"
)

// ErrorInfo describes a failed turn in a renderable form.
type ErrorInfo struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Fragment is a flat union of the renderable views. The Kind field
// discriminates which of the remaining fields carry data.
type Fragment struct {
	Role  Role            `json:"role"`
	Kind  Kind            `json:"kind"`
	Text  string          `json:"text,omitempty"`
	Hub   json.RawMessage `json:"hub,omitempty"`
	Usage UsageType       `json:"usage,omitempty"`
	Err   *ErrorInfo      `json:"error,omitempty"`

	// Stream carries the live channel for KindTextStream fragments.
	// It is in-process only and never serialized; renderers re-render on
	// every observed update until the stream is done.
	Stream *stream.Text `json:"-"`
}

// IsStreaming reports whether the fragment wraps a live text stream.
func (f Fragment) IsStreaming() bool {
	return f.Kind == KindTextStream && f.Stream != nil
}

// NewUserText creates a user-attributed plain text fragment.
func NewUserText(text string) Fragment {
	return Fragment{Role: RoleUser, Kind: KindText, Text: text}
}

// NewTextStream creates an assistant fragment wrapping a live text stream.
func NewTextStream(ts *stream.Text) Fragment {
	return Fragment{Role: RoleAssistant, Kind: KindTextStream, Stream: ts}
}

// NewCameras creates the "cameras are now visible" view fragment.
func NewCameras() Fragment {
	return Fragment{Role: RoleAssistant, Kind: KindCameras}
}

// NewHub creates a hub view fragment carrying a hub state snapshot as JSON.
func NewHub(snapshot json.RawMessage) Fragment {
	cp := make(json.RawMessage, len(snapshot))
	copy(cp, snapshot)
	return Fragment{Role: RoleAssistant, Kind: KindHub, Hub: cp}
}

// NewUsage creates a usage view fragment for the given category.
func NewUsage(t UsageType) Fragment {
	return Fragment{Role: RoleAssistant, Kind: KindUsage, Usage: t}
}

// NewError creates a fragment describing a failed turn.
func NewError(kind, message string, retryable bool) Fragment {
	return Fragment{
		Role: RoleAssistant,
		Kind: KindError,
		Err:  &ErrorInfo{Kind: kind, Message: message, Retryable: retryable},
	}
}
