package tools

import (
	"context"
	"errors"
	"fmt"
)

// Tool defines the interface for all agent capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Result is a tool-specific payload. Render produces the text form fed
// back into the conversation.
type Result interface {
	Render() string
}

var (
	// ErrUnknownTool means the requested tool name is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArgument means a required argument is missing or mistyped.
	ErrInvalidArgument = errors.New("invalid tool argument")
)

// ExecutionError wraps a transport-level failure from a tool handler.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Registry manages the set of available tools and dispatches by name.
// It is stateless apart from the registration order, which is preserved
// so prompt listings stay deterministic.
type Registry struct {
	byName map[string]Tool
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	if _, exists := r.byName[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.byName[t.Name()] = t
}

func (r *Registry) Get(name string) Tool {
	return r.byName[name]
}

// List returns the registered tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Invoke validates the arguments against the tool's schema and runs the
// handler. Transport failures come back as *ExecutionError; validation
// failures wrap ErrUnknownTool or ErrInvalidArgument.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (Result, error) {
	t := r.Get(name)
	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(t.Parameters(), args); err != nil {
		return nil, err
	}
	res, err := t.Execute(ctx, args)
	if err != nil {
		var execErr *ExecutionError
		if errors.As(err, &execErr) || errors.Is(err, ErrInvalidArgument) {
			return nil, err
		}
		return nil, &ExecutionError{Tool: name, Err: err}
	}
	return res, nil
}

// validateArgs performs minimal JSON-schema validation: required keys must
// be present, string properties must be non-empty strings, and numeric
// properties must be numbers.
func validateArgs(schema map[string]any, args map[string]any) error {
	props, _ := schema["properties"].(map[string]any)
	required, _ := schema["required"].([]string)
	if required == nil {
		// Schemas decoded from JSON carry []any instead.
		if raw, ok := schema["required"].([]any); ok {
			for _, v := range raw {
				if s, ok := v.(string); ok {
					required = append(required, s)
				}
			}
		}
	}

	for _, key := range required {
		if _, present := args[key]; !present {
			return fmt.Errorf("%w: missing required %q", ErrInvalidArgument, key)
		}
	}

	for key, val := range args {
		spec, ok := props[key].(map[string]any)
		if !ok {
			continue
		}
		switch spec["type"] {
		case "string":
			s, ok := val.(string)
			if !ok {
				return fmt.Errorf("%w: %q must be a string", ErrInvalidArgument, key)
			}
			if s == "" && isRequired(required, key) {
				return fmt.Errorf("%w: %q must not be empty", ErrInvalidArgument, key)
			}
		case "integer", "number":
			switch val.(type) {
			case float64, int, int64:
			default:
				return fmt.Errorf("%w: %q must be a number", ErrInvalidArgument, key)
			}
		}
	}
	return nil
}

func isRequired(required []string, key string) bool {
	for _, r := range required {
		if r == key {
			return true
		}
	}
	return false
}

// intArg reads an integer argument that may arrive as a JSON float64.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return fallback
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
