package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mthakur/oriole/internal/relay"
)

// InstantAnswer is the structured quick-answer payload from the knowledge API.
type InstantAnswer struct {
	Heading  string         `json:"heading"`
	Answer   string         `json:"answer"`
	Abstract string         `json:"abstract"`
	Source   string         `json:"source"`
	Raw      map[string]any `json:"-"`
}

func (a InstantAnswer) Render() string {
	text := a.Answer
	if text == "" {
		text = a.Abstract
	}
	if text == "" {
		return "No instant answer available."
	}
	var b strings.Builder
	if a.Heading != "" {
		b.WriteString(a.Heading + ": ")
	}
	b.WriteString(text)
	if a.Source != "" {
		b.WriteString("\nSource: " + a.Source)
	}
	return b.String()
}

const defaultInstantEndpoint = "https://api.duckduckgo.com/"

// InstantTool fetches a structured quick answer, trying a direct fetch first
// and falling back to the relay pool.
type InstantTool struct {
	Pool     *relay.Pool
	Client   *http.Client
	Endpoint string
}

func NewInstantTool(pool *relay.Pool) *InstantTool {
	return &InstantTool{
		Pool:     pool,
		Client:   &http.Client{Timeout: 15 * time.Second},
		Endpoint: defaultInstantEndpoint,
	}
}

func (t *InstantTool) Name() string { return "instant_answer" }

func (t *InstantTool) Description() string {
	return "Look up a quick factual answer from a knowledge API. Best for definitions, conversions and well-known facts."
}

func (t *InstantTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The question or term to look up",
			},
		},
		"required": []string{"query"},
	}
}

func (t *InstantTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return nil, fmt.Errorf("%w: %q must not be empty", ErrInvalidArgument, "query")
	}

	target := fmt.Sprintf("%s?q=%s&format=json&no_html=1&skip_disambig=1",
		strings.TrimRight(t.Endpoint, "/")+"/", url.QueryEscape(query))

	body, err := t.fetchDirect(ctx, target)
	if err != nil {
		body, err = t.Pool.Fetch(ctx, target)
		if err != nil {
			return nil, &ExecutionError{Tool: t.Name(), Err: err}
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ExecutionError{Tool: t.Name(), Err: fmt.Errorf("decoding answer payload: %w", err)}
	}

	answer := InstantAnswer{
		Heading:  str(raw["Heading"]),
		Answer:   str(raw["Answer"]),
		Abstract: str(raw["AbstractText"]),
		Source:   str(raw["AbstractURL"]),
		Raw:      raw,
	}
	if answer.Abstract == "" {
		answer.Abstract = firstRelatedTopic(raw)
	}
	return answer, nil
}

func (t *InstantTool) fetchDirect(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// firstRelatedTopic digs the first topic text out of the RelatedTopics list
// when the payload has no abstract of its own.
func firstRelatedTopic(raw map[string]any) string {
	topics, _ := raw["RelatedTopics"].([]any)
	for _, t := range topics {
		m, ok := t.(map[string]any)
		if !ok {
			continue
		}
		if text := str(m["Text"]); text != "" {
			return text
		}
	}
	return ""
}
