package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSplitIntoBatches(t *testing.T) {
	snippets := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
		strings.Repeat("d", 40),
	}
	batches := SplitIntoBatches(snippets, 100)
	if len(batches) != 2 {
		t.Fatalf("Expected 2 batches, got %d", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[1]) != 2 {
		t.Errorf("Unexpected batch sizes: %d, %d", len(batches[0]), len(batches[1]))
	}

	// Order preserved across the split.
	var flat []string
	for _, b := range batches {
		flat = append(flat, b...)
	}
	for i := range snippets {
		if flat[i] != snippets[i] {
			t.Fatalf("Snippet %d reordered", i)
		}
	}
}

func TestSplitIntoBatches_OversizeSnippet(t *testing.T) {
	snippets := []string{
		strings.Repeat("a", 10),
		strings.Repeat("x", 500), // alone exceeds the budget
		strings.Repeat("b", 10),
	}
	batches := SplitIntoBatches(snippets, 100)
	if len(batches) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(batches))
	}
	if len(batches[1]) != 1 || len(batches[1][0]) != 500 {
		t.Errorf("Oversize snippet must get its own batch intact, got %v", batches[1])
	}
}

func TestSplitIntoBatches_Empty(t *testing.T) {
	if batches := SplitIntoBatches(nil, 100); batches != nil {
		t.Errorf("Expected no batches, got %v", batches)
	}
}

func TestSummarizer_NoSnippets(t *testing.T) {
	llm := &fakeLLM{}
	s := NewSummarizer(NewChatModel(llm), 0)

	answer, err := s.Summarize(context.Background(), nil, "anything")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if answer != "No relevant information found." {
		t.Errorf("Unexpected answer: %q", answer)
	}
	if llm.callCount() != 0 {
		t.Errorf("No snippets should mean no model calls, got %d", llm.callCount())
	}
}

func TestSummarizer_SingleSnippet(t *testing.T) {
	llm := &fakeLLM{reply: func(prompt string) string {
		switch {
		case strings.Contains(prompt, "Summarize the key facts"):
			return "condensed facts"
		case strings.Contains(prompt, "Using only the research summary"):
			if !strings.Contains(prompt, "condensed facts") {
				t.Error("Synthesis prompt missing the condensed summary")
			}
			return "the final answer"
		default:
			t.Errorf("Unexpected prompt:\n%s", prompt)
			return ""
		}
	}}
	s := NewSummarizer(NewChatModel(llm), 0)

	answer, err := s.Summarize(context.Background(), []string{"one long snippet"}, "the question")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if answer != "the final answer" {
		t.Errorf("Unexpected answer: %q", answer)
	}
	if llm.callCount() != 2 {
		t.Errorf("Expected one summary and one synthesis call, got %d", llm.callCount())
	}
}

func TestSummarizer_BatchesLargeInput(t *testing.T) {
	llm := &fakeLLM{reply: func(prompt string) string {
		if strings.Contains(prompt, "Summarize the key facts") {
			return "short summary"
		}
		return "final"
	}}
	s := NewSummarizer(NewChatModel(llm), 100)

	snippets := []string{
		strings.Repeat("a", 80),
		strings.Repeat("b", 80),
		strings.Repeat("c", 80),
	}
	answer, err := s.Summarize(context.Background(), snippets, "q")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if answer != "final" {
		t.Errorf("Unexpected answer: %q", answer)
	}
	// Three snippets over a 100-char budget means three batch summaries,
	// whose joined length is under budget, plus one synthesis call.
	if got := llm.promptsMatching("Summarize the key facts"); got != 3 {
		t.Errorf("Expected 3 batch summaries, got %d", got)
	}
	if got := llm.promptsMatching("Using only the research summary"); got != 1 {
		t.Errorf("Expected 1 synthesis call, got %d", got)
	}
}

func TestSummarizer_ModelFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("provider down")}
	s := NewSummarizer(NewChatModel(llm), 0)

	_, err := s.Summarize(context.Background(), []string{"snippet"}, "q")
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("Expected *SynthesisError, got %v", err)
	}
	if synthErr.Stage != "summarization" {
		t.Errorf("Unexpected stage: %q", synthErr.Stage)
	}
	if !strings.Contains(synthErr.Error(), "provider down") {
		t.Errorf("Cause missing from message: %v", synthErr)
	}
}
