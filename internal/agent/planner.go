package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
)

// Planner turns a user query into an executable plan. The template strategy
// expands search terms into search/read/summarize steps; the free-text
// strategy parses a model-written numbered plan.
type Planner struct {
	Model        *ChatModel
	ReadsPerTerm int
	Strategy     string // "template" (default) or "freeform"
}

func NewPlanner(model *ChatModel, readsPerTerm int) *Planner {
	if readsPerTerm <= 0 {
		readsPerTerm = 2
	}
	return &Planner{Model: model, ReadsPerTerm: readsPerTerm}
}

// Plan builds a plan with the configured strategy.
func (p *Planner) Plan(ctx context.Context, sess *Session, query string) *Plan {
	if p.Strategy == "freeform" {
		return p.PlanFromText(ctx, sess, query)
	}
	return p.CreatePlan(ctx, sess, query)
}

// CreatePlan builds a plan via the template strategy. It never fails: when
// term generation errors, the raw query becomes the sole term.
func (p *Planner) CreatePlan(ctx context.Context, sess *Session, query string) *Plan {
	terms := p.generateTerms(ctx, sess, query)

	plan := &Plan{}
	for _, term := range terms {
		plan.Append(&PlanStep{
			Description: fmt.Sprintf("Search the web for %q", term),
			Tool:        "web_search",
			Arguments:   map[string]any{"query": term},
		})
		for i := 0; i < p.ReadsPerTerm; i++ {
			plan.Append(&PlanStep{
				Description: fmt.Sprintf("Read result %d for %q", i+1, term),
				Tool:        "read_url",
				Arguments:   map[string]any{"url": PendingResolution},
			})
		}
	}
	plan.Append(&PlanStep{
		Description: "Summarize findings and answer the question",
		Tool:        "summarize",
		Arguments:   map[string]any{"snippets": []any{}},
	})
	return plan
}

// generateTerms asks the model for search terms, falling back to the raw
// query. Very short queries are prefixed with the remembered topic so
// follow-ups like "how old is he" stay anchored.
func (p *Planner) generateTerms(ctx context.Context, sess *Session, query string) []string {
	base := query
	if len(strings.Fields(query)) <= 2 && sess != nil && sess.Topic() != "" {
		base = sess.Topic() + " " + query
	}

	if p.Model == nil {
		return []string{base}
	}
	reply, err := p.Model.Prompt(ctx, fmt.Sprintf(termGenerationPrompt, base))
	if err != nil {
		log.Printf("[PLANNER] term generation failed, using raw query: %v", err)
		return []string{base}
	}
	terms := parseTermList(reply)
	if len(terms) == 0 {
		return []string{base}
	}
	return terms
}

// parseTermList extracts a JSON string array from a model reply, tolerating
// surrounding prose and code fences.
func parseTermList(reply string) []string {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil
	}
	var raw []string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil
	}
	var terms []string
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) > 3 {
		terms = terms[:3]
	}
	return terms
}

var planLineRe = regexp.MustCompile(`(?i)^\s*(?:step\s*)?(\d+)\s*[.:)]\s*(.+)$`)
var bulletLineRe = regexp.MustCompile(`^\s*[-*]\s+(.+)$`)
var urlRe = regexp.MustCompile(`https?://\S+`)

// PlanFromText builds a plan via the free-text strategy: ask the model for a
// numbered plan and parse each qualifying line into a step. Steps whose tool
// cannot be inferred from the wording are resolved with a nested model call.
func (p *Planner) PlanFromText(ctx context.Context, sess *Session, query string) *Plan {
	if p.Model == nil {
		return p.CreatePlan(ctx, sess, query)
	}
	reply, err := p.Model.Prompt(ctx, fmt.Sprintf(freePlanPrompt, query))
	if err != nil {
		log.Printf("[PLANNER] free-text planning failed, using template: %v", err)
		return p.CreatePlan(ctx, sess, query)
	}

	plan := &Plan{}
	for _, line := range strings.Split(reply, "\n") {
		desc := ""
		if m := planLineRe.FindStringSubmatch(line); m != nil {
			desc = strings.TrimSpace(m[2])
		} else if m := bulletLineRe.FindStringSubmatch(line); m != nil {
			desc = strings.TrimSpace(m[1])
		}
		if desc == "" {
			continue
		}

		tool := inferTool(desc)
		if tool == "" {
			tool = p.resolveTool(ctx, desc)
		}
		plan.Append(&PlanStep{
			Description: desc,
			Tool:        tool,
			Arguments:   argumentsFor(tool, desc, query),
		})
	}

	if plan.Len() == 0 {
		return p.CreatePlan(ctx, sess, query)
	}
	// A usable plan always ends in summarization.
	if plan.Steps[plan.Len()-1].Tool != "summarize" {
		plan.Append(&PlanStep{
			Description: "Summarize findings and answer the question",
			Tool:        "summarize",
			Arguments:   map[string]any{"snippets": []any{}},
		})
	}
	return plan
}

// inferTool maps a step description to a tool by wording alone.
func inferTool(desc string) string {
	lower := strings.ToLower(desc)
	switch {
	case strings.Contains(lower, "summar") || strings.Contains(lower, "synthesi"):
		return "summarize"
	case urlRe.MatchString(desc),
		strings.Contains(lower, "read"),
		strings.Contains(lower, "open"),
		strings.Contains(lower, "visit"):
		return "read_url"
	case strings.Contains(lower, "define") || strings.Contains(lower, "look up"):
		return "instant_answer"
	case strings.Contains(lower, "search") || strings.Contains(lower, "find"):
		return "web_search"
	default:
		return ""
	}
}

// resolveTool asks the model which tool a step needs when inference fails.
func (p *Planner) resolveTool(ctx context.Context, desc string) string {
	reply, err := p.Model.Prompt(ctx, fmt.Sprintf(inferToolPrompt, desc, desc))
	if err == nil {
		lower := strings.ToLower(reply)
		for _, name := range []string{"web_search", "read_url", "instant_answer", "summarize"} {
			if strings.Contains(lower, name) {
				return name
			}
		}
	}
	return "web_search"
}

func argumentsFor(tool, desc, query string) map[string]any {
	switch tool {
	case "web_search":
		return map[string]any{"query": desc}
	case "read_url":
		if u := urlRe.FindString(desc); u != "" {
			return map[string]any{"url": strings.TrimRight(u, ".,)")}
		}
		return map[string]any{"url": PendingResolution}
	case "instant_answer":
		return map[string]any{"query": desc}
	case "summarize":
		return map[string]any{"snippets": []any{}}
	default:
		return map[string]any{"query": query}
	}
}
