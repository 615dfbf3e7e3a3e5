package tool

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry holds registered tools and dispatches their execution.
// It is instance-based (not global) for better testability.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool to the registry, compiling its parameter schema.
// It returns ErrEmptyToolName, ErrDuplicateTool, or ErrBadSchema as
// appropriate.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}

	schema, err := jsonschema.CompileString(name+".schema.json", string(t.Schema()))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadSchema, name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.entries[name] = &entry{tool: t, schema: schema}
	return nil
}

// Get returns the tool with the given name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return e.tool, nil
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definitions returns all registered tool definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.entries))
	for name, e := range r.entries {
		defs = append(defs, Definition{
			Name:        name,
			Description: e.tool.Description(),
			Parameters:  e.tool.Schema(),
		})
	}
	slices.SortFunc(defs, func(a, b Definition) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return defs
}

// ValidateArgs checks args against the named tool's parameter schema
// without executing anything. A nil or empty args value is treated as the
// empty object, matching how models encode "no arguments".
func (r *Registry) ValidateArgs(name string, args json.RawMessage) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("%w: %s: malformed JSON: %w", ErrInvalidArgs, name, err)
	}
	if err := e.schema.Validate(decoded); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidArgs, name, err)
	}
	return nil
}

// Execute validates args and runs the named tool. Validation happens
// strictly before the handler is invoked, so a validation failure never
// leaves partial effects. Panics in handlers are recovered and reported
// as ErrExecution.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (result Result, err error) {
	if err := r.ValidateArgs(name, args); err != nil {
		return Result{}, err
	}

	t, err := r.Get(name)
	if err != nil {
		return Result{}, err
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = Result{}
			err = fmt.Errorf("%w: %s: panic: %v", ErrExecution, name, rec)
		}
	}()

	res, err := t.Execute(ctx, args)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrExecution, name, err)
	}
	return res, nil
}
