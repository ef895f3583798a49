package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// ChatModel wraps a langchaingo model behind the narrow transport the
// agent needs: system prompt plus history in, reply text out.
type ChatModel struct {
	Model llms.Model
}

func NewChatModel(model llms.Model) *ChatModel {
	return &ChatModel{Model: model}
}

// Ask sends the system prompt and history and returns the reply text.
func (c *ChatModel) Ask(ctx context.Context, system string, history []Message) (string, error) {
	resp, err := c.Model.GenerateContent(ctx, buildMessages(system, history))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// AskStream is the streaming variant: onChunk receives incremental text and
// the full reply is returned once the stream finishes.
func (c *ChatModel) AskStream(ctx context.Context, system string, history []Message, onChunk func(string)) (string, error) {
	var full strings.Builder
	resp, err := c.Model.GenerateContent(ctx, buildMessages(system, history),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			full.Write(chunk)
			if onChunk != nil {
				onChunk(string(chunk))
			}
			return nil
		}))
	if err != nil {
		return "", err
	}
	if full.Len() > 0 {
		return full.String(), nil
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// Prompt is a convenience for one-off instructions with no history.
func (c *ChatModel) Prompt(ctx context.Context, instruction string) (string, error) {
	return c.Ask(ctx, "", []Message{{Role: "human", Content: instruction}})
}

func buildMessages(system string, history []Message) []llms.MessageContent {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, system))
	}
	for _, m := range history {
		messages = append(messages, llms.TextParts(chatRole(m.Role), m.Content))
	}
	return messages
}

func chatRole(role string) schema.ChatMessageType {
	switch role {
	case "system":
		return schema.ChatMessageTypeSystem
	case "ai":
		return schema.ChatMessageTypeAI
	case "tool":
		return schema.ChatMessageType("tool")
	default:
		return schema.ChatMessageTypeHuman
	}
}

// ModelRefiner backs the search tool's query refinement with a model call.
type ModelRefiner struct {
	Model *ChatModel
}

func (r *ModelRefiner) RefineQuery(ctx context.Context, query string, found int) (string, error) {
	reply, err := r.Model.Prompt(ctx, fmt.Sprintf(
		"The web search %q returned only %d useful results. Propose one improved search query. Reply with the query text only, or repeat the original query if it cannot be improved.",
		query, found))
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(strings.Trim(strings.TrimSpace(reply), `"`))
	// A multi-line reply means the model started explaining instead of
	// answering; take the first line.
	if idx := strings.IndexByte(reply, '\n'); idx >= 0 {
		reply = strings.TrimSpace(reply[:idx])
	}
	return reply, nil
}
