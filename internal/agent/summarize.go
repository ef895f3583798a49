package agent

import (
	"context"
	"fmt"
	"strings"
)

// SynthesisError is a failed summarization or final-answer model call. The
// turn is reported failed rather than retried indefinitely.
type SynthesisError struct {
	Stage string
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

const (
	defaultSummaryBudget = 5800
	maxSummaryRounds     = 4
)

// Summarizer condenses collected snippets into a final answer via recursive
// batched summarization.
type Summarizer struct {
	Model  *ChatModel
	Budget int // character budget per model call
}

func NewSummarizer(model *ChatModel, budget int) *Summarizer {
	if budget <= 0 {
		budget = defaultSummaryBudget
	}
	return &Summarizer{Model: model, Budget: budget}
}

// SplitIntoBatches partitions snippets into contiguous batches whose
// concatenated lengths stay within the budget. A batch never splits a
// snippet; a snippet that alone exceeds the budget gets its own batch.
func SplitIntoBatches(snippets []string, budget int) [][]string {
	var batches [][]string
	var current []string
	size := 0
	for _, s := range snippets {
		if len(current) > 0 && size+len(s) > budget {
			batches = append(batches, current)
			current = nil
			size = 0
		}
		current = append(current, s)
		size += len(s)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// Summarize runs the batched-summarization protocol over the snippets and
// then synthesizes a final answer to the question. With no snippets it
// reports that nothing relevant was found, skipping synthesis.
func (s *Summarizer) Summarize(ctx context.Context, snippets []string, question string) (string, error) {
	if len(snippets) == 0 {
		return "No relevant information found.", nil
	}

	combined, err := s.condense(ctx, snippets)
	if err != nil {
		return "", err
	}
	return s.synthesize(ctx, combined, question)
}

// condense reduces the snippets to a single text within budget. A single
// snippet is summarized directly; multiple snippets go through batch rounds
// that recurse over the batch summaries until the concatenation converges.
func (s *Summarizer) condense(ctx context.Context, snippets []string) (string, error) {
	if len(snippets) == 1 {
		return s.summarizeText(ctx, snippets[0])
	}

	current := snippets
	for round := 0; round < maxSummaryRounds; round++ {
		batches := SplitIntoBatches(current, s.Budget)

		summaries := make([]string, 0, len(batches))
		for _, batch := range batches {
			summary, err := s.summarizeText(ctx, strings.Join(batch, "\n\n"))
			if err != nil {
				return "", err
			}
			summaries = append(summaries, summary)
		}

		joined := strings.Join(summaries, "\n\n")
		if len(joined) <= s.Budget || len(summaries) == 1 {
			return joined, nil
		}
		current = summaries
	}
	// Rounds exhausted without converging; whatever we have is the summary.
	return strings.Join(current, "\n\n"), nil
}

func (s *Summarizer) summarizeText(ctx context.Context, text string) (string, error) {
	reply, err := s.Model.Prompt(ctx, fmt.Sprintf(batchSummaryPrompt, text))
	if err != nil {
		return "", &SynthesisError{Stage: "summarization", Err: err}
	}
	return strings.TrimSpace(reply), nil
}

func (s *Summarizer) synthesize(ctx context.Context, summary, question string) (string, error) {
	reply, err := s.Model.Prompt(ctx, fmt.Sprintf(finalAnswerPrompt, question, summary))
	if err != nil {
		return "", &SynthesisError{Stage: "final answer synthesis", Err: err}
	}
	return strings.TrimSpace(reply), nil
}
