package tool

import "errors"

var (
	// ErrToolNotFound is returned when a tool is not found in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrEmptyToolName is returned when a tool name is empty.
	ErrEmptyToolName = errors.New("tool name must not be empty")

	// ErrDuplicateTool is returned when registering a tool with a name that
	// already exists in the registry.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrBadSchema is returned when a tool's parameter schema does not compile.
	ErrBadSchema = errors.New("tool schema does not compile")

	// ErrInvalidArgs is returned when tool arguments fail schema validation.
	// Validation happens strictly before any side effect.
	ErrInvalidArgs = errors.New("tool arguments failed validation")

	// ErrExecution is returned when a tool handler fails after validation.
	ErrExecution = errors.New("tool execution failed")
)
