package agent

import (
	"fmt"
	"strings"

	"github.com/mthakur/oriole/internal/tools"
)

// BuildSystemPrompt assembles the conversational system prompt, including
// the tool-call protocol and the registered tool descriptions.
func BuildSystemPrompt(reg *tools.Registry) string {
	var b strings.Builder
	b.WriteString(`You are Oriole, a research assistant that can use external tools to answer questions with current information.

To use a tool, reply with exactly one tool call wrapped in delimiters:

[[TOOLCALL]]
{"tool": "<name>", "arguments": {...}}
[[/TOOLCALL]]

After a tool result arrives, reason about it in plain text before deciding whether another tool call is needed. When you have enough information, answer the user directly without a tool call.

Available tools:
`)
	for _, t := range reg.List() {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
	}
	return b.String()
}

const termGenerationPrompt = `Generate up to 3 concise web search queries that together would answer the question below. Respond with a JSON array of strings and nothing else.

Question: %s`

const freePlanPrompt = `Break the request below into a short numbered list of research steps. One step per line, in the form "Step N: <what to do>". Use steps like searching the web, reading a specific page, or summarizing findings.

Request: %s`

const inferToolPrompt = `Which single tool best performs this step: %s
Answer with exactly one of: web_search, read_url, instant_answer, summarize.

Step: %s`

const selectResultsPrompt = `Here are numbered search results for %q:

%s
Which results are worth reading in full? Reply with a comma-separated list of result numbers only (e.g. "1, 3").`

const needMorePrompt = `You are reading a web page in chunks to answer: %q

Latest chunk:
%s

Do you need to read more of this page? Reply with exactly MORE or ENOUGH.`

const batchSummaryPrompt = `Summarize the key facts in the following material. Be concise and keep concrete names, numbers and dates.

%s`

const finalAnswerPrompt = `Using only the research summary below, answer the user's question concisely.

Question: %s

Research summary:
%s`
