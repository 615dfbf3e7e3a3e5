package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/casahub/concierge/internal/tool"
	"github.com/casahub/concierge/pkg/fragment"
)

// Tool names as advertised to the model.
const (
	ToolViewCameras = "viewCameras"
	ToolViewHub     = "viewHub"
	ToolUpdateHub   = "updateHub"
	ToolViewUsage   = "viewUsage"
)

// cameraResultText is the tool-result payload recorded when cameras are shown.
const cameraResultText = "The active cameras are currently displayed on the screen"

// hubUpdatedText is the tool-result payload recorded after a hub replacement.
const hubUpdatedText = "The hub has been updated with the new values"

// RegisterTools registers the four hub tools against the given store.
func RegisterTools(reg *tool.Registry, store *Store) error {
	tools := []tool.Tool{
		&ViewCamerasTool{},
		&ViewHubTool{store: store},
		&UpdateHubTool{store: store},
		&ViewUsageTool{},
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("hub: register %s: %w", t.Name(), err)
		}
	}
	return nil
}

// ViewCamerasTool shows the active cameras. It takes no arguments and
// never touches the store, so repeated calls are idempotent.
type ViewCamerasTool struct{}

func (t *ViewCamerasTool) Name() string        { return ToolViewCameras }
func (t *ViewCamerasTool) Description() string { return "view current active cameras" }

func (t *ViewCamerasTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}

func (t *ViewCamerasTool) Execute(context.Context, json.RawMessage) (tool.Result, error) {
	return tool.Result{
		Fragment: fragment.NewCameras(),
		Payload:  tool.TextPayload(cameraResultText),
	}, nil
}

// ViewHubTool returns a snapshot of the current hub state.
type ViewHubTool struct {
	store *Store
}

func (t *ViewHubTool) Name() string { return ToolViewHub }

func (t *ViewHubTool) Description() string {
	return "view the hub that contains current quick summary and actions for temperature, lights, and locks"
}

func (t *ViewHubTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}

func (t *ViewHubTool) Execute(context.Context, json.RawMessage) (tool.Result, error) {
	snapshot := t.store.Snapshot()
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return tool.Result{}, fmt.Errorf("marshal hub state: %w", err)
	}
	return tool.Result{
		Fragment: fragment.NewHub(raw),
		Payload:  raw,
	}, nil
}

// updateHubArgs is the validated argument shape for UpdateHubTool.
type updateHubArgs struct {
	Hub State `json:"hub"`
}

// UpdateHubTool replaces the hub state wholesale with the model-supplied
// value. There is no partial merge: lights and locks not present in the
// new value are gone.
type UpdateHubTool struct {
	store *Store
}

func (t *UpdateHubTool) Name() string        { return ToolUpdateHub }
func (t *UpdateHubTool) Description() string { return "update the hub with new values" }

func (t *UpdateHubTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"hub": {
				"type": "object",
				"properties": {
					"climate": {
						"type": "object",
						"properties": {
							"low":  {"type": "number"},
							"high": {"type": "number"}
						},
						"required": ["low", "high"]
					},
					"lights": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"name":   {"type": "string"},
								"status": {"type": "boolean"}
							},
							"required": ["name", "status"]
						}
					},
					"locks": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"name":     {"type": "string"},
								"isLocked": {"type": "boolean"}
							},
							"required": ["name", "isLocked"]
						}
					}
				},
				"required": ["climate", "lights", "locks"]
			}
		},
		"required": ["hub"]
	}`)
}

func (t *UpdateHubTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var parsed updateHubArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return tool.Result{}, fmt.Errorf("decode hub replacement: %w", err)
	}

	t.store.Replace(parsed.Hub)

	raw, err := json.Marshal(t.store.Snapshot())
	if err != nil {
		return tool.Result{}, fmt.Errorf("marshal hub state: %w", err)
	}
	return tool.Result{
		Fragment: fragment.NewHub(raw),
		Payload:  tool.TextPayload(hubUpdatedText),
	}, nil
}

// viewUsageArgs is the validated argument shape for ViewUsageTool.
type viewUsageArgs struct {
	Type fragment.UsageType `json:"type"`
}

// ViewUsageTool shows usage for one of the known categories. Read-only.
type ViewUsageTool struct{}

func (t *ViewUsageTool) Name() string        { return ToolViewUsage }
func (t *ViewUsageTool) Description() string { return "view current usage for electricity, water, or gas" }

func (t *ViewUsageTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"type": {"type": "string", "enum": ["electricity", "water", "gas"]}
		},
		"required": ["type"]
	}`)
}

func (t *ViewUsageTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var parsed viewUsageArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return tool.Result{}, fmt.Errorf("decode usage request: %w", err)
	}
	payload := fmt.Sprintf("The current usage for %s is currently displayed on the screen", parsed.Type)
	return tool.Result{
		Fragment: fragment.NewUsage(parsed.Type),
		Payload:  tool.TextPayload(payload),
	}, nil
}

// Interface guards.
var (
	_ tool.Tool = (*ViewCamerasTool)(nil)
	_ tool.Tool = (*ViewHubTool)(nil)
	_ tool.Tool = (*UpdateHubTool)(nil)
	_ tool.Tool = (*ViewUsageTool)(nil)
)
