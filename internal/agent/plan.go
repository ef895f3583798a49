package agent

import (
	"fmt"
	"strings"

	"github.com/mthakur/oriole/internal/tools"
)

// StepStatus tracks a plan step through its lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepDone       StepStatus = "done"
	StepError      StepStatus = "error"
	StepSkipped    StepStatus = "skipped"
)

// PendingResolution marks an argument to be filled from a prior step's
// output before the step executes.
const PendingResolution = "PENDING_RESOLUTION"

// PlanStep is a single sub-task in a plan.
type PlanStep struct {
	Index       int            `json:"index"`
	Description string         `json:"description"`
	Tool        string         `json:"tool"`
	Arguments   map[string]any `json:"arguments"`
	Status      StepStatus     `json:"status"`
}

// Unresolved reports whether an argument still carries the sentinel.
func (s *PlanStep) Unresolved(key string) bool {
	v, _ := s.Arguments[key].(string)
	return v == PendingResolution
}

// Plan is a mutable ordered sequence of steps. Execution order is the
// slice order; indices are kept contiguous starting at 1.
type Plan struct {
	Steps []*PlanStep
}

func (p *Plan) Len() int { return len(p.Steps) }

// Append adds a step at the end and renumbers.
func (p *Plan) Append(step *PlanStep) {
	if step.Status == "" {
		step.Status = StepPending
	}
	if step.Arguments == nil {
		step.Arguments = map[string]any{}
	}
	p.Steps = append(p.Steps, step)
	p.Renumber()
}

// InsertAfter places a step immediately after position i and renumbers.
func (p *Plan) InsertAfter(i int, step *PlanStep) {
	if step.Status == "" {
		step.Status = StepPending
	}
	if step.Arguments == nil {
		step.Arguments = map[string]any{}
	}
	if i < 0 || i >= len(p.Steps) {
		p.Steps = append(p.Steps, step)
	} else {
		p.Steps = append(p.Steps[:i+1], append([]*PlanStep{step}, p.Steps[i+1:]...)...)
	}
	p.Renumber()
}

// RemoveAt deletes the step at position i and renumbers.
func (p *Plan) RemoveAt(i int) {
	if i < 0 || i >= len(p.Steps) {
		return
	}
	p.Steps = append(p.Steps[:i], p.Steps[i+1:]...)
	p.Renumber()
}

// Renumber reassigns contiguous 1-based indices after any mutation.
func (p *Plan) Renumber() {
	for i, s := range p.Steps {
		s.Index = i + 1
	}
}

// Contains reports whether any step uses the tool with the given argument.
func (p *Plan) Contains(tool, argKey string, argVal any) bool {
	for _, s := range p.Steps {
		if s.Tool == tool && s.Arguments[argKey] == argVal {
			return true
		}
	}
	return false
}

// Render produces a user-facing listing of the plan.
func (p *Plan) Render() string {
	var b strings.Builder
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "%d. [%s] %s\n", s.Index, s.Status, s.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// StepResult records the outcome of one executed step.
type StepResult struct {
	Step   *PlanStep
	Result tools.Result
	Err    error
}
