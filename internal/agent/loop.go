package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/mthakur/oriole/internal/governance"
	"github.com/mthakur/oriole/internal/observability"
	"github.com/mthakur/oriole/internal/toolcall"
	"github.com/mthakur/oriole/internal/tools"
)

// ErrLoopDetected means the same tool call was repeated past the threshold.
var ErrLoopDetected = errors.New("tool call loop detected")

const defaultLoopThreshold = 3

// HistoryStore persists conversation messages across restarts.
type HistoryStore interface {
	AddMessage(chatID, role, content string) error
}


// Loop is the outer conversation driver: it sends model requests, extracts
// tool calls from replies, dispatches them, and decides when to stop.
type Loop struct {
	Model    *ChatModel
	Registry *tools.Registry
	Planner  *Planner
	Executor *Executor
	Policy   governance.PolicyEngine
	Logger   *observability.Logger
	Store    HistoryStore // optional

	LoopThreshold int

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewLoop(model *ChatModel, registry *tools.Registry, planner *Planner, executor *Executor, policy governance.PolicyEngine, logger *observability.Logger) *Loop {
	return &Loop{
		Model:         model,
		Registry:      registry,
		Planner:       planner,
		Executor:      executor,
		Policy:        policy,
		Logger:        logger,
		LoopThreshold: defaultLoopThreshold,
		sessions:      make(map[string]*Session),
	}
}

// Session returns the conversation state for a chat, creating it on first use.
func (l *Loop) Session(chatID string) *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	sess, ok := l.sessions[chatID]
	if !ok {
		sess = NewSession(chatID)
		l.sessions[chatID] = sess
	}
	return sess
}

// Respond handles one ad-hoc user message: ask the model, run any tool call
// it issues, and return the final answer text.
func (l *Loop) Respond(ctx context.Context, chatID, text string, narrate func(string)) (string, error) {
	if narrate == nil {
		narrate = func(string) {}
	}
	sess := l.Session(chatID)
	sess.ResetGuard()
	sess.RememberTopic(text)
	sess.Append("human", text)
	l.persist(chatID, "human", text)

	observability.SetStatus(observability.PhaseChatting, text)
	defer observability.SetStatus(observability.PhaseIdle, "")

	reply, err := l.Model.Ask(ctx, BuildSystemPrompt(l.Registry), sess.History)
	if err != nil {
		return "", err
	}
	sess.Append("ai", reply)
	if l.Logger != nil {
		l.Logger.LogLLM(sess.ChatID, sess.ID, text, preview(reply, 200))
	}

	call := toolcall.Extract(reply)
	if call == nil {
		if strings.Contains(reply, "[[TOOLCALL]]") {
			narrate("I could not parse the tool call the model attempted; showing its reply as-is.")
		}
		l.persist(chatID, "ai", reply)
		return reply, nil
	}

	l.ProcessToolCall(ctx, sess, call, narrate)

	answer := l.lastAnswer(sess)
	l.persist(chatID, "ai", answer)
	return answer, nil
}

// ProcessToolCall dispatches one tool call with loop protection, feeds the
// result back into the conversation, and lets the model reason once more,
// recursing when that reply is itself a tool call. All output goes through
// the narrator and the session history.
func (l *Loop) ProcessToolCall(ctx context.Context, sess *Session, call *toolcall.Call, narrate func(string)) {
	if narrate == nil {
		narrate = func(string) {}
	}

	signature := call.Signature()
	repeats := sess.ObserveCall(signature)
	threshold := l.LoopThreshold
	if threshold <= 0 {
		threshold = defaultLoopThreshold
	}
	if repeats > threshold {
		if l.Logger != nil {
			l.Logger.LogLoopDetected(sess.ChatID, sess.ID, signature, repeats)
		}
		msg := fmt.Sprintf("Stopping: the %s tool was called %d times in a row with identical arguments.", call.Tool, repeats)
		sess.Append("system", msg)
		narrate(msg)
		return
	}

	if l.Policy != nil {
		verdict, err := l.Policy.Evaluate(ctx, governance.Request{
			Tool:      call.Tool,
			Arguments: call.Arguments,
			ChatID:    sess.ChatID,
		})
		if err == nil && verdict.Effect == governance.EffectDeny {
			msg := "Tool call blocked: " + verdict.Reason
			sess.Append("system", msg)
			narrate(msg)
			return
		}
	}

	if l.Logger != nil {
		l.Logger.LogToolCall(sess.ChatID, sess.ID, call.Tool, call.Arguments)
	}

	res, err := l.Registry.Invoke(ctx, call.Tool, call.Arguments)
	if err != nil {
		// The error goes back to the model so it can recover; the loop
		// guard bounds how often it may retry the same call.
		msg := l.describeToolError(call.Tool, err)
		sess.Append("tool", msg)
		narrate(msg)
	} else {
		rendered := res.Render()
		if strings.TrimSpace(rendered) != "" {
			sess.Append("tool", preview(rendered, 4000))
		}
		if l.Logger != nil {
			l.Logger.LogToolResult(sess.ChatID, sess.ID, call.Tool, preview(rendered, 200))
		}

		// If the newest history entry still reads as a serialized tool
		// call, the model chained calls without narrating in between.
		// Re-invoking it here would feed the chain, so halt instead.
		if last, ok := sess.Last(); ok && toolcall.Extract(last.Content) != nil {
			narrate("Stopping: the model issued another tool call without reasoning about the previous result.")
			return
		}
	}

	reply, err := l.Model.Ask(ctx, BuildSystemPrompt(l.Registry), sess.History)
	if err != nil {
		narrate(fmt.Sprintf("Model request failed after the tool result: %v", err))
		return
	}
	sess.Append("ai", reply)

	if next := toolcall.Extract(reply); next != nil {
		l.ProcessToolCall(ctx, sess, next, narrate)
	}
}

// Research runs the full plan-driven workflow for a query and returns the
// synthesized answer.
func (l *Loop) Research(ctx context.Context, chatID, query string, narrate func(string)) (string, error) {
	if narrate == nil {
		narrate = func(string) {}
	}
	sess := l.Session(chatID)
	sess.ResetGuard()
	sess.ClearSnippets()
	sess.Append("human", query)
	l.persist(chatID, "human", query)

	observability.SetStatus(observability.PhasePlanning, query)
	defer observability.SetStatus(observability.PhaseIdle, "")

	plan := l.Planner.Plan(ctx, sess, query)
	sess.RememberTopic(query)
	if l.Logger != nil {
		l.Logger.LogPlan(sess.ChatID, sess.ID, plan.Steps)
	}
	narrate("Plan:\n" + plan.Render())

	observability.SetStatus(observability.PhaseExecuting, query)
	results := l.Executor.Run(ctx, sess, plan, query, func(msg string) { narrate(msg) })
	if l.Logger != nil {
		for _, r := range results {
			l.Logger.LogStep(sess.ChatID, sess.ID, r.Step.Index, r.Step.Tool, string(r.Step.Status))
			if found, ok := r.Result.(tools.SearchResults); ok {
				q, _ := r.Step.Arguments["query"].(string)
				l.Logger.LogSearch(sess.ChatID, sess.ID, q, len(found))
			}
		}
	}

	answer := ""
	for _, r := range results {
		if r.Step.Tool == "summarize" && r.Err == nil && r.Result != nil {
			answer = r.Result.Render()
		}
	}
	if l.Logger != nil && answer != "" {
		l.Logger.LogSummary(sess.ChatID, sess.ID, len(sess.Snippets), preview(answer, 200))
	}
	if answer == "" {
		if len(results) > 0 && results[len(results)-1].Err != nil {
			answer = fmt.Sprintf("Research stopped early: %v", results[len(results)-1].Err)
		} else {
			answer = "No relevant information found."
		}
	}

	sess.Append("ai", answer)
	l.persist(chatID, "ai", answer)
	return answer, nil
}

func (l *Loop) describeToolError(tool string, err error) string {
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return fmt.Sprintf("Error: tool %q is not available.", tool)
	case errors.Is(err, tools.ErrInvalidArgument):
		return fmt.Sprintf("Error: invalid arguments for %s: %v", tool, err)
	default:
		return fmt.Sprintf("Error: %s failed: %v", tool, err)
	}
}

// lastAnswer walks the history backwards for the newest model reply that is
// not itself a tool call.
func (l *Loop) lastAnswer(sess *Session) string {
	for i := len(sess.History) - 1; i >= 0; i-- {
		m := sess.History[i]
		if m.Role != "ai" {
			continue
		}
		if toolcall.Extract(m.Content) == nil {
			return m.Content
		}
	}
	return "I could not produce an answer this time."
}

func (l *Loop) persist(chatID, role, content string) {
	if l.Store == nil {
		return
	}
	if err := l.Store.AddMessage(chatID, role, content); err != nil {
		// History persistence is best-effort; the in-memory session is
		// authoritative for the current run.
		log.Printf("failed to persist message: %v", err)
	}
}
