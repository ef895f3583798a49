package toolcall

import (
	"testing"
)

func TestExtract_DelimitedBlock(t *testing.T) {
	text := `I will look that up.
[[TOOLCALL]]
{"tool": "web_search", "arguments": {"query": "capital of France"}}
[[/TOOLCALL]]`

	call := Extract(text)
	if call == nil {
		t.Fatal("expected a call, got nil")
	}
	if call.Tool != "web_search" {
		t.Errorf("expected web_search, got %q", call.Tool)
	}
	if call.Arguments["query"] != "capital of France" {
		t.Errorf("wrong query: %v", call.Arguments["query"])
	}
}

func TestExtract_FencedJSON(t *testing.T) {
	text := "```json\n{\"tool\": \"web_search\", \"arguments\": {\"query\": \"capital of France\"}}\n```"

	call := Extract(text)
	if call == nil {
		t.Fatal("expected a call, got nil")
	}
	if call.Tool != "web_search" {
		t.Errorf("expected web_search, got %q", call.Tool)
	}
	if call.Arguments["query"] != "capital of France" {
		t.Errorf("wrong query: %v", call.Arguments["query"])
	}
}

func TestExtract_SingleQuotesAndBareKeys(t *testing.T) {
	text := "{tool: 'read_url', arguments: {url: 'https://x.com'}}"

	call := Extract(text)
	if call == nil {
		t.Fatal("expected a call, got nil")
	}
	if call.Tool != "read_url" {
		t.Errorf("expected read_url, got %q", call.Tool)
	}
	if call.Arguments["url"] != "https://x.com" {
		t.Errorf("wrong url: %v", call.Arguments["url"])
	}
}

func TestExtract_TrailingCommasAndComments(t *testing.T) {
	text := `{
	// pick the search tool
	"tool": "web_search",
	"arguments": {
		"query": "golang generics", /* refine later */
	},
}`

	call := Extract(text)
	if call == nil {
		t.Fatal("expected a call, got nil")
	}
	if call.Arguments["query"] != "golang generics" {
		t.Errorf("wrong query: %v", call.Arguments["query"])
	}
}

func TestExtract_UnterminatedObject(t *testing.T) {
	text := `{"tool": "web_search", "arguments": {"query": "truncated output"`

	call := Extract(text)
	if call == nil {
		t.Fatal("expected a call from a truncated object, got nil")
	}
	if call.Arguments["query"] != "truncated output" {
		t.Errorf("wrong query: %v", call.Arguments["query"])
	}
}

func TestExtract_SurroundingProse(t *testing.T) {
	text := `Here's what I'll do next: {"tool": "web_search", "arguments": {"query": "weather in Pune"}} and then read the results.`

	call := Extract(text)
	if call == nil {
		t.Fatal("expected a call embedded in prose, got nil")
	}
	if call.Tool != "web_search" {
		t.Errorf("expected web_search, got %q", call.Tool)
	}
}

func TestExtract_LegacyShapes(t *testing.T) {
	cases := []struct {
		name string
		text string
		tool string
		key  string
		want string
	}{
		{
			name: "tool_call wrapper",
			text: `{"tool_call": {"tool": "web_search", "arguments": {"query": "x"}}}`,
			tool: "web_search",
			key:  "query",
			want: "x",
		},
		{
			name: "action key",
			text: `{"action": "read_url", "arguments": {"url": "https://a.com"}}`,
			tool: "read_url",
			key:  "url",
			want: "https://a.com",
		},
		{
			name: "tool_code flat",
			text: `{"tool_code": "read_url", "url": "https://b.com"}`,
			tool: "read_url",
			key:  "url",
			want: "https://b.com",
		},
		{
			name: "flat query",
			text: `{"tool": "web_search", "query": "y"}`,
			tool: "web_search",
			key:  "query",
			want: "y",
		},
	}

	for _, tc := range cases {
		call := Extract(tc.text)
		if call == nil {
			t.Fatalf("%s: expected a call, got nil", tc.name)
		}
		if call.Tool != tc.tool {
			t.Errorf("%s: expected tool %q, got %q", tc.name, tc.tool, call.Tool)
		}
		if call.Arguments[tc.key] != tc.want {
			t.Errorf("%s: expected %s=%q, got %v", tc.name, tc.key, tc.want, call.Arguments[tc.key])
		}
	}
}

func TestExtract_RejectsPlainJSON(t *testing.T) {
	texts := []string{
		`The result is {"temperature": 21, "unit": "celsius"}.`,
		`{"name": "Alice", "age": 30}`,
		`Just a normal sentence with no JSON at all.`,
		``,
	}
	for _, text := range texts {
		if call := Extract(text); call != nil {
			t.Errorf("expected nil for %q, got %+v", text, call)
		}
	}
}

func TestExtract_RejectsScalarArguments(t *testing.T) {
	text := `{"tool": "web_search", "arguments": "capital of France"}`
	if call := Extract(text); call != nil {
		t.Errorf("scalar arguments should be rejected, got %+v", call)
	}
}

func TestExtract_LooseFallback(t *testing.T) {
	text := `I need to run tool = "web_search" with query = "largest moon of Saturn" now.`

	call := Extract(text)
	if call == nil {
		t.Fatal("expected loose extraction to fire, got nil")
	}
	if call.Tool != "web_search" {
		t.Errorf("expected web_search, got %q", call.Tool)
	}
	if call.Arguments["query"] != "largest moon of Saturn" {
		t.Errorf("wrong query: %v", call.Arguments["query"])
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	call := &Call{Tool: "web_search", Arguments: map[string]any{"query": "roundtrip", "engine": "bing"}}
	again := Extract(call.Serialize())
	if again == nil {
		t.Fatal("serialized call did not parse back")
	}
	if again.Tool != call.Tool {
		t.Errorf("tool changed: %q vs %q", again.Tool, call.Tool)
	}
	if again.Arguments["query"] != "roundtrip" || again.Arguments["engine"] != "bing" {
		t.Errorf("arguments changed: %v", again.Arguments)
	}
	if again.Signature() != call.Signature() {
		t.Errorf("signature not stable across a round trip")
	}
}

func TestSignature_OrderIndependent(t *testing.T) {
	a := &Call{Tool: "web_search", Arguments: map[string]any{"query": "q", "engine": "bing"}}
	b := &Call{Tool: "web_search", Arguments: map[string]any{"engine": "bing", "query": "q"}}
	if a.Signature() != b.Signature() {
		t.Errorf("signatures differ for equal calls:\n%s\n%s", a.Signature(), b.Signature())
	}
	c := &Call{Tool: "web_search", Arguments: map[string]any{"query": "other"}}
	if a.Signature() == c.Signature() {
		t.Error("different arguments produced the same signature")
	}
}

func TestNormalize_CollapsesStringNewlines(t *testing.T) {
	text := "{\"tool\": \"web_search\", \"arguments\": {\"query\": \"line one\nline two\"}}"
	call := Extract(text)
	if call == nil {
		t.Fatal("expected a call, got nil")
	}
	if call.Arguments["query"] != "line one line two" {
		t.Errorf("newline not collapsed: %v", call.Arguments["query"])
	}
}
