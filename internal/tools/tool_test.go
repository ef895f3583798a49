package tools

import (
	"context"
	"errors"
	"testing"
)

type echoResult string

func (e echoResult) Render() string { return string(e) }

type fakeTool struct {
	name   string
	params map[string]any
	err    error
	calls  int
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool for tests" }

func (f *fakeTool) Parameters() map[string]any {
	if f.params != nil {
		return f.params
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
		"required": []string{"query"},
	}
}

func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return echoResult("ran " + f.name), nil
}

func TestRegistry_InvokeUnknownTool(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Invoke(context.Background(), "missing", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistry_InvokeValidatesArgs(t *testing.T) {
	reg := NewRegistry()
	tool := &fakeTool{name: "search"}
	reg.Register(tool)
	ctx := context.Background()

	// Missing required key.
	_, err := reg.Invoke(ctx, "search", map[string]any{})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for missing key, got %v", err)
	}

	// Wrong type for a string property.
	_, err = reg.Invoke(ctx, "search", map[string]any{"query": 42})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for wrong type, got %v", err)
	}

	// Empty required string.
	_, err = reg.Invoke(ctx, "search", map[string]any{"query": ""})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for empty string, got %v", err)
	}

	// Wrong type for a numeric property.
	_, err = reg.Invoke(ctx, "search", map[string]any{"query": "ok", "count": "three"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for bad number, got %v", err)
	}
	if tool.calls != 0 {
		t.Errorf("Handler should not run on invalid args, ran %d times", tool.calls)
	}

	// Valid call, numbers may arrive as float64 from JSON decoding.
	res, err := reg.Invoke(ctx, "search", map[string]any{"query": "ok", "count": float64(3)})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Render() != "ran search" {
		t.Errorf("Unexpected result: %q", res.Render())
	}
}

func TestRegistry_InvokeWrapsHandlerErrors(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "flaky", err: errors.New("connection reset")})

	_, err := reg.Invoke(context.Background(), "flaky", map[string]any{"query": "x"})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Expected *ExecutionError, got %v", err)
	}
	if execErr.Tool != "flaky" {
		t.Errorf("Expected tool name in error, got %q", execErr.Tool)
	}
	if execErr.Unwrap() == nil || execErr.Unwrap().Error() != "connection reset" {
		t.Errorf("Unwrap lost the cause: %v", execErr.Unwrap())
	}
}

func TestRegistry_ListPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "b"})
	reg.Register(&fakeTool{name: "a"})
	reg.Register(&fakeTool{name: "b"}) // re-register must not duplicate

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("Expected 2 tools, got %d", len(list))
	}
	if list[0].Name() != "b" || list[1].Name() != "a" {
		t.Errorf("Registration order lost: %s, %s", list[0].Name(), list[1].Name())
	}
}

func TestIntArg(t *testing.T) {
	args := map[string]any{"f": float64(7), "i": 8, "s": "nine"}
	if got := intArg(args, "f", 0); got != 7 {
		t.Errorf("float64: got %d", got)
	}
	if got := intArg(args, "i", 0); got != 8 {
		t.Errorf("int: got %d", got)
	}
	if got := intArg(args, "s", 5); got != 5 {
		t.Errorf("fallback: got %d", got)
	}
	if got := intArg(args, "missing", 5); got != 5 {
		t.Errorf("missing: got %d", got)
	}
}
