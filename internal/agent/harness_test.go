package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/mthakur/oriole/internal/tools"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// fakeLLM scripts model behavior by inspecting the flattened prompt text.
// When chunks are set and the caller asked for streaming, they are pushed
// through the streaming callback before the response returns.
type fakeLLM struct {
	mu      sync.Mutex
	reply   func(prompt string) string
	chunks  []string
	err     error
	prompts []string
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prompt := flattenMessages(messages)
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	if opts.StreamingFunc != nil {
		for _, chunk := range f.chunks {
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}

	out := ""
	if f.reply != nil {
		out = f.reply(prompt)
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: out}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeLLM) promptsMatching(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

func flattenMessages(messages []llms.MessageContent) string {
	var b strings.Builder
	for _, m := range messages {
		for _, part := range m.Parts {
			if t, ok := part.(llms.TextContent); ok {
				b.WriteString(t.Text)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// stubTool is a scriptable registry entry for executor and loop tests.
type stubTool struct {
	name  string
	fn    func(args map[string]any) (tools.Result, error)
	calls []map[string]any
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }

func (s *stubTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	s.calls = append(s.calls, args)
	return s.fn(args)
}

func searchStep(query string) *PlanStep {
	return &PlanStep{
		Description: "Search the web for " + query,
		Tool:        "web_search",
		Arguments:   map[string]any{"query": query},
	}
}

func pendingReadStep() *PlanStep {
	return &PlanStep{
		Description: "Read a result",
		Tool:        "read_url",
		Arguments:   map[string]any{"url": PendingResolution},
	}
}

func summarizeStep() *PlanStep {
	return &PlanStep{
		Description: "Summarize findings",
		Tool:        "summarize",
		Arguments:   map[string]any{"snippets": []any{}},
	}
}
