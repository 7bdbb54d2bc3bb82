// Package tool defines the static catalog of operations the agent can
// perform: their names, parameter schemas, and side-effect classes.
// The registry is immutable once startup registration completes.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Effect classifies what a tool touches when it runs.
type Effect string

const (
	EffectReadOnly  Effect = "read-only"
	EffectMutatesFS Effect = "mutates-filesystem"
	EffectNetwork   Effect = "network-call"
)

// Param describes one parameter in a tool's schema.
type Param struct {
	Name        string
	Type        string // "string", "boolean", "number", "array"
	Description string
	Required    bool
}

// Spec is the callable contract for a registered tool.
type Spec struct {
	Name        string
	Description string
	Params      []Param
	Effect      Effect
}

// Args is the argument mapping for one invocation.
type Args map[string]interface{}

// Mutation records the file state change a handler performed, captured
// before the write so the executor can commit it to the edit history.
type Mutation struct {
	Path     string
	Existed  bool
	Previous string
	Content  string
	Removed  bool
}

// Result is what a handler returns on success.
type Result struct {
	Payload  string
	Warning  string
	Mutation *Mutation
}

// Handler executes one tool call.
type Handler func(ctx context.Context, sessionID string, args Args) (*Result, error)

var (
	ErrDuplicateTool = errors.New("tool already registered")
	ErrUnknownTool   = errors.New("unknown tool")
	ErrInvalidArgs   = errors.New("invalid tool arguments")
)

// Registry manages available tools and their handlers.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	tools    map[string]Spec
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Spec),
		handlers: make(map[string]Handler),
	}
}

// Register adds a tool to the registry. Registration order is preserved
// so the backend always sees a stable catalog.
func (r *Registry) Register(spec Spec, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, spec.Name)
	}

	r.order = append(r.order, spec.Name)
	r.tools[spec.Name] = spec
	r.handlers[spec.Name] = handler
	return nil
}

// Resolve returns the spec for a tool name.
func (r *Registry) Resolve(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.tools[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return spec, nil
}

// Handler returns the handler for a tool name.
func (r *Registry) Handler(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return h, nil
}

// List returns all registered specs in registration order.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name])
	}
	return specs
}

// Has checks if a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Normalize validates args against the tool's schema and returns a copy
// holding only declared parameters. Required parameters must be present
// and every supplied value must match its declared type.
func (r *Registry) Normalize(name string, args Args) (Args, error) {
	spec, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	out := make(Args, len(spec.Params))
	for _, p := range spec.Params {
		v, ok := args[p.Name]
		if !ok {
			if p.Required {
				return nil, fmt.Errorf("%w: missing required parameter %q for %q", ErrInvalidArgs, p.Name, name)
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return nil, fmt.Errorf("%w: parameter %q of %q expects %s", ErrInvalidArgs, p.Name, name, p.Type)
		}
		out[p.Name] = v
	}
	return out, nil
}

func typeMatches(declared string, v interface{}) bool {
	switch declared {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "array":
		switch v.(type) {
		case []interface{}, []string:
			return true
		}
		return false
	default:
		return false
	}
}

// String returns the string value of an argument, or the fallback.
func (a Args) String(name, fallback string) string {
	if v, ok := a[name].(string); ok {
		return v
	}
	return fallback
}

// Bool returns the boolean value of an argument, or the fallback.
func (a Args) Bool(name string, fallback bool) bool {
	if v, ok := a[name].(bool); ok {
		return v
	}
	return fallback
}
