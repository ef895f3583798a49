package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mthakur/oriole/internal/observability"
	"github.com/mthakur/oriole/internal/tools"
)

const (
	defaultChunkSize    = 2000
	defaultMaxChunks    = 5
	defaultMaxReadTotal = 10000
)

// textResult adapts loose text (summaries, notices) to the tool result shape.
type textResult string

func (t textResult) Render() string { return string(t) }

// Executor walks a plan sequentially, resolving placeholder arguments
// against prior step outputs and dispatching through the tool registry.
// The plan may grow (fallback insertion) or shrink (pruned reads) during
// the walk; the loop re-reads the plan length every iteration.
type Executor struct {
	Registry   *tools.Registry
	Model      *ChatModel
	Summarizer *Summarizer

	ChunkSize    int
	MaxChunks    int
	MaxReadTotal int
}

func NewExecutor(registry *tools.Registry, model *ChatModel, summarizer *Summarizer) *Executor {
	return &Executor{
		Registry:     registry,
		Model:        model,
		Summarizer:   summarizer,
		ChunkSize:    defaultChunkSize,
		MaxChunks:    defaultMaxChunks,
		MaxReadTotal: defaultMaxReadTotal,
	}
}

// Run executes the plan in order. Execution halts at the first handler
// error; skipped steps do not halt. Results come back in execution order.
func (e *Executor) Run(ctx context.Context, sess *Session, plan *Plan, question string, narrate func(string)) []StepResult {
	if narrate == nil {
		narrate = func(string) {}
	}

	var results []StepResult
	var lastResults tools.SearchResults
	readOrdinal := 0

	for i := 0; i < plan.Len(); i++ {
		step := plan.Steps[i]
		if step.Status != StepPending {
			continue
		}
		step.Status = StepInProgress
		narrate(fmt.Sprintf("Step %d: %s", step.Index, step.Description))

		switch {
		case step.Tool == "summarize":
			// Intercepted before generic dispatch: inject everything
			// collected so far and synthesize the final answer.
			observability.SetStatus(observability.PhaseSummarizing, question)
			step.Arguments["snippets"] = sess.Snippets
			answer, err := e.Summarizer.Summarize(ctx, sess.Snippets, question)
			if err != nil {
				step.Status = StepError
				results = append(results, StepResult{Step: step, Err: err})
				narrate(fmt.Sprintf("Could not produce a summary: %v", err))
				return results
			}
			step.Status = StepDone
			sess.Append("tool", answer)
			results = append(results, StepResult{Step: step, Result: textResult(answer)})

		case step.Tool == "read_url" && step.Unresolved("url"):
			idx := readOrdinal
			readOrdinal++
			if idx >= len(lastResults) {
				step.Status = StepSkipped
				narrate(fmt.Sprintf("Skipping step %d: no search result available to read.", step.Index))
				continue
			}
			step.Arguments["url"] = lastResults[idx].URL
			if halt := e.runRead(ctx, sess, step, question, narrate, &results); halt {
				return results
			}

		case step.Tool == "read_url":
			if halt := e.runRead(ctx, sess, step, question, narrate, &results); halt {
				return results
			}

		case step.Tool == "web_search":
			res, err := e.Registry.Invoke(ctx, step.Tool, step.Arguments)
			if err != nil {
				step.Status = StepError
				results = append(results, StepResult{Step: step, Err: err})
				narrate(fmt.Sprintf("Search failed: %v", err))
				return results
			}
			found, _ := res.(tools.SearchResults)
			found = tools.Dedupe(found)

			if len(found) == 0 {
				e.insertInstantFallback(plan, i, step, narrate)
				step.Status = StepDone
				results = append(results, StepResult{Step: step, Result: found})
				continue
			}

			lastResults = found
			readOrdinal = 0
			step.Status = StepDone
			sess.Append("tool", found.Render())
			results = append(results, StepResult{Step: step, Result: found})
			narrate(fmt.Sprintf("Found %d results.", len(found)))

			query, _ := step.Arguments["query"].(string)
			e.assignReads(ctx, plan, i, query, found, narrate)

		default:
			res, err := e.Registry.Invoke(ctx, step.Tool, step.Arguments)
			if err != nil {
				step.Status = StepError
				results = append(results, StepResult{Step: step, Err: err})
				narrate(fmt.Sprintf("Step %d failed: %v", step.Index, err))
				return results
			}
			step.Status = StepDone
			sess.Append("tool", res.Render())
			// An instant answer counts as a finding for summarization.
			if ia, ok := res.(tools.InstantAnswer); ok && (ia.Answer != "" || ia.Abstract != "") {
				sess.PushSnippet(ia.Render())
			}
			results = append(results, StepResult{Step: step, Result: res})
		}
	}
	return results
}

// runRead performs adaptive chunked reading of a resolved URL: fetch a
// chunk, ask the model whether more is needed, continue up to the chunk and
// total-length caps. The concatenated text becomes one collected snippet.
// Returns true when plan execution must halt.
func (e *Executor) runRead(ctx context.Context, sess *Session, step *PlanStep, question string, narrate func(string), results *[]StepResult) bool {
	target, _ := step.Arguments["url"].(string)
	start := 0
	var parts []string
	total := 0

	for chunk := 0; chunk < e.MaxChunks; chunk++ {
		res, err := e.Registry.Invoke(ctx, "read_url", map[string]any{
			"url":    target,
			"start":  start,
			"length": e.ChunkSize,
		})
		if err != nil {
			step.Status = StepError
			*results = append(*results, StepResult{Step: step, Err: err})
			narrate(fmt.Sprintf("Reading %s failed: %v", target, err))
			return true
		}
		rr, _ := res.(tools.ReadResult)
		if rr.Content == "" {
			break
		}
		parts = append(parts, rr.Content)
		total += len(rr.Content)
		start += e.ChunkSize

		if !rr.HasMore || total >= e.MaxReadTotal {
			break
		}
		if !e.wantsMore(ctx, question, rr.Content) {
			break
		}
	}

	combined := strings.Join(parts, "")
	step.Status = StepDone
	if combined == "" {
		narrate(fmt.Sprintf("No readable content at %s.", target))
		*results = append(*results, StepResult{Step: step, Result: tools.ReadResult{}})
		return false
	}

	sess.PushSnippet(combined)
	sess.Append("tool", preview(combined, 500))
	narrate(fmt.Sprintf("Read %d characters from %s: %s", len(combined), target, preview(combined, 200)))
	*results = append(*results, StepResult{Step: step, Result: tools.ReadResult{Content: combined}})
	return false
}

// wantsMore asks the model whether the page needs further reading.
func (e *Executor) wantsMore(ctx context.Context, question, lastChunk string) bool {
	reply, err := e.Model.Prompt(ctx, fmt.Sprintf(needMorePrompt, question, preview(lastChunk, 1000)))
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToUpper(reply), "MORE")
}

// insertInstantFallback synthesizes an instant_answer step right after the
// failed search, unless the plan already carries one for this query.
func (e *Executor) insertInstantFallback(plan *Plan, pos int, step *PlanStep, narrate func(string)) {
	query, _ := step.Arguments["query"].(string)
	if query == "" || plan.Contains("instant_answer", "query", query) {
		narrate("Search returned no results.")
		return
	}
	plan.InsertAfter(pos, &PlanStep{
		Description: fmt.Sprintf("Look up an instant answer for %q", query),
		Tool:        "instant_answer",
		Arguments:   map[string]any{"query": query},
	})
	narrate(fmt.Sprintf("Search returned no results; falling back to an instant answer for %q.", query))
}

// assignReads asks the model which results deserve a full read and rewrites
// the pending read_url steps accordingly. Steps with no corresponding
// selection are pruned from the plan.
func (e *Executor) assignReads(ctx context.Context, plan *Plan, pos int, query string, found tools.SearchResults, narrate func(string)) {
	// Positions of pending sentinel reads after the search step. The scan
	// stops at the next web_search: reads past it belong to that search's
	// results, not to this one's.
	var pending []int
	for j := pos + 1; j < plan.Len(); j++ {
		s := plan.Steps[j]
		if s.Tool == "web_search" {
			break
		}
		if s.Tool == "read_url" && s.Status == StepPending && s.Unresolved("url") {
			pending = append(pending, j)
		}
	}
	if len(pending) == 0 {
		return
	}

	selected := e.selectResults(ctx, query, found)
	for k, j := range pending {
		if k < len(selected) {
			r := found[selected[k]-1]
			plan.Steps[j].Arguments["url"] = r.URL
			plan.Steps[j].Description = fmt.Sprintf("Read %q", r.Title)
		}
	}
	// Prune leftover reads from the back so earlier positions stay valid.
	for k := len(pending) - 1; k >= len(selected); k-- {
		narrate(fmt.Sprintf("Dropping step %d: no result selected for it.", plan.Steps[pending[k]].Index))
		plan.RemoveAt(pending[k])
	}
}

var indexListRe = regexp.MustCompile(`[\d, ]+`)

// selectResults asks the model for the numbers worth reading. On any parse
// failure it falls back to the first three results.
func (e *Executor) selectResults(ctx context.Context, query string, found tools.SearchResults) []int {
	reply, err := e.Model.Prompt(ctx, fmt.Sprintf(selectResultsPrompt, query, found.Render()))
	var picks []int
	if err == nil {
		picks = parseIndexList(reply, len(found))
	}
	if len(picks) == 0 {
		n := 3
		if len(found) < n {
			n = len(found)
		}
		for i := 1; i <= n; i++ {
			picks = append(picks, i)
		}
	}
	return picks
}

// parseIndexList extracts 1-based indices from a comma-separated reply,
// filtering to the valid range and dropping duplicates.
func parseIndexList(reply string, max int) []int {
	var m string
	for _, candidate := range indexListRe.FindAllString(reply, -1) {
		if strings.ContainsAny(candidate, "0123456789") {
			m = candidate
			break
		}
	}
	if m == "" {
		return nil
	}
	seen := map[int]bool{}
	var picks []int
	for _, f := range strings.FieldsFunc(m, func(r rune) bool { return r == ',' || r == ' ' }) {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > max || seen[n] {
			continue
		}
		seen[n] = true
		picks = append(picks, n)
	}
	return picks
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
