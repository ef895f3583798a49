package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Call is a structured tool invocation extracted from model output.
type Call struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Serialize renders the canonical wire form of a call. Map keys are
// emitted in sorted order, so equal calls serialize identically.
func (c *Call) Serialize() string {
	args := c.Arguments
	if args == nil {
		args = map[string]any{}
	}
	b, _ := json.Marshal(map[string]any{"tool": c.Tool, "arguments": args})
	return string(b)
}

// Signature identifies a call for loop detection. Two invocations with the
// same tool and arguments always produce the same signature.
func (c *Call) Signature() string {
	return c.Serialize()
}

// strategy is one parse attempt. Strategies are tried in order; the first
// one to produce a call wins.
type strategy func(text string) *Call

var strategies = []strategy{
	extractDelimited,
	extractJSON,
	extractLoose,
}

// Extract pulls a tool call out of free-form model text. It returns nil when
// no strategy recognizes one; it never panics on malformed input.
func Extract(text string) *Call {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for _, try := range strategies {
		if call := try(text); call != nil {
			return call
		}
	}
	return nil
}

var delimitedRe = regexp.MustCompile(`(?s)\[\[TOOLCALL\]\](.*?)\[\[/TOOLCALL\]\]`)

// extractDelimited handles the explicit [[TOOLCALL]]...[[/TOOLCALL]] wrapper.
// Explicit delimiters outrank every other shape.
func extractDelimited(text string) *Call {
	m := delimitedRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return decodeCandidate(m[1])
}

// extractJSON scans for balanced {...} blocks and tries each as a tool call.
// Blocks that decode but do not resemble a tool-call schema are ignored so
// ordinary JSON in a model reply never false-positives.
func extractJSON(text string) *Call {
	cleaned := stripFences(text)
	for _, block := range jsonBlocks(cleaned) {
		if call := decodeCandidate(block); call != nil {
			return call
		}
	}
	// The whole text may be a single unterminated object.
	if strings.Contains(cleaned, "{") {
		start := strings.Index(cleaned, "{")
		return decodeCandidate(cleaned[start:])
	}
	return nil
}

var (
	looseNameRe  = regexp.MustCompile(`"?(?:tool|action)"?\s*[:=]\s*"?([A-Za-z_][\w-]*)"?`)
	looseValueRe = map[string]*regexp.Regexp{
		"query":   regexp.MustCompile(`"?query"?\s*[:=]\s*"([^"]+)"`),
		"queries": regexp.MustCompile(`"?queries"?\s*[:=]\s*"([^"]+)"`),
		"url":     regexp.MustCompile(`"?url"?\s*[:=]\s*"([^"]+)"`),
		"engine":  regexp.MustCompile(`"?engine"?\s*[:=]\s*"([^"]+)"`),
	}
)

// extractLoose is the last resort: key/value regex scraping when JSON
// parsing fails entirely.
func extractLoose(text string) *Call {
	cleaned := normalize(stripFences(text))
	m := looseNameRe.FindStringSubmatch(cleaned)
	if m == nil {
		return nil
	}
	args := map[string]any{}
	for key, re := range looseValueRe {
		if v := re.FindStringSubmatch(cleaned); v != nil {
			args[key] = v[1]
		}
	}
	if len(args) == 0 {
		return nil
	}
	return &Call{Tool: m[1], Arguments: args}
}

// decodeCandidate normalizes a raw block and tries to shape it into a call.
func decodeCandidate(raw string) *Call {
	cleaned := normalize(stripFences(raw))
	if cleaned == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(cleaned), &m); err != nil {
		return nil
	}
	return normalizeShape(m)
}

// normalizeShape converts the accepted legacy shapes to the canonical
// {tool, arguments} form. Objects without a recognizable tool name key are
// rejected outright.
func normalizeShape(m map[string]any) *Call {
	// {"tool_call": {...}} wraps the real call one level down.
	if inner, ok := m["tool_call"].(map[string]any); ok {
		return normalizeShape(inner)
	}

	var tool string
	switch {
	case stringField(m, "tool") != "":
		tool = stringField(m, "tool")
	case stringField(m, "action") != "":
		tool = stringField(m, "action")
	case stringField(m, "tool_code") != "":
		tool = stringField(m, "tool_code")
	default:
		return nil
	}

	if rawArgs, present := m["arguments"]; present {
		args, ok := rawArgs.(map[string]any)
		if !ok {
			// Arguments must be a mapping, never a scalar.
			return nil
		}
		return &Call{Tool: tool, Arguments: args}
	}

	// Legacy flat shapes: every remaining field becomes an argument.
	args := map[string]any{}
	for k, v := range m {
		switch k {
		case "tool", "action", "tool_code", "tool_call":
			continue
		}
		args[k] = v
	}
	return &Call{Tool: tool, Arguments: args}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

var fenceRe = regexp.MustCompile("(?m)^\\s*```[a-zA-Z_]*\\s*$|```")

func stripFences(text string) string {
	return fenceRe.ReplaceAllString(text, "")
}

// normalize applies the tolerance pipeline, in order: comments, trailing
// commas, newline collapse inside strings, single quotes, bare keys,
// brace auto-close.
func normalize(text string) string {
	text = strings.TrimSpace(text)
	text = stripComments(text)
	text = stripTrailingCommas(text)
	text = collapseStringNewlines(text)
	text = normalizeQuotes(text)
	text = quoteBareKeys(text)
	text = balanceBraces(text)
	return strings.TrimSpace(text)
}

// stripComments removes // and /* */ comments outside of quoted strings.
// Both quote characters delimit strings here, since single-quoted values
// have not been normalized yet.
func stripComments(s string) string {
	var b strings.Builder
	var quote rune
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if quote != 0 {
			b.WriteRune(ch)
			if ch == quote && (i == 0 || runes[i-1] != '\\') {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '"' || ch == '\'':
			quote = ch
			b.WriteRune(ch)
		case ch == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			if i < len(runes) {
				b.WriteRune('\n')
			}
		case ch == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++ // skip the trailing '/'
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// collapseStringNewlines replaces raw newlines inside quoted values with a
// space so the block survives json.Unmarshal.
func collapseStringNewlines(s string) string {
	var b strings.Builder
	var quote rune
	prev := rune(0)
	for _, ch := range s {
		if quote != 0 && (ch == '\n' || ch == '\r') {
			b.WriteRune(' ')
			prev = ' '
			continue
		}
		if quote == 0 && (ch == '"' || ch == '\'') {
			quote = ch
		} else if ch == quote && prev != '\\' {
			quote = 0
		}
		b.WriteRune(ch)
		prev = ch
	}
	return b.String()
}

// normalizeQuotes rewrites single-quoted strings as double-quoted ones,
// escaping any double quotes already inside.
func normalizeQuotes(s string) string {
	var b strings.Builder
	var quote rune
	prev := rune(0)
	for _, ch := range s {
		switch {
		case quote == 0 && ch == '\'':
			quote = '\''
			b.WriteRune('"')
		case quote == '\'' && ch == '\'' && prev != '\\':
			quote = 0
			b.WriteRune('"')
		case quote == '\'' && ch == '"':
			b.WriteString(`\"`)
		case quote == 0 && ch == '"':
			quote = '"'
			b.WriteRune(ch)
		case quote == '"' && ch == '"' && prev != '\\':
			quote = 0
			b.WriteRune(ch)
		default:
			b.WriteRune(ch)
		}
		prev = ch
	}
	return b.String()
}

var bareKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

func quoteBareKeys(s string) string {
	return bareKeyRe.ReplaceAllString(s, `$1"$2":`)
}

// balanceBraces appends missing closing braces when the model truncated
// its output mid-object.
func balanceBraces(s string) string {
	depth := 0
	var quote rune
	prev := rune(0)
	for _, ch := range s {
		if quote != 0 {
			if ch == quote && prev != '\\' {
				quote = 0
			}
			prev = ch
			continue
		}
		switch ch {
		case '"':
			quote = ch
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
		prev = ch
	}
	if depth > 0 {
		s += strings.Repeat("}", depth)
	}
	return s
}

// jsonBlocks returns every top-level balanced {...} region in the text.
// Quotes only matter inside a block; apostrophes in surrounding prose must
// not hide an object that follows them.
func jsonBlocks(s string) []string {
	var blocks []string
	depth := 0
	start := -1
	var quote rune
	prev := rune(0)
	for i, ch := range s {
		if depth == 0 {
			if ch == '{' {
				start = i
				depth = 1
				quote = 0
				prev = ch
			}
			continue
		}
		if quote != 0 {
			if ch == quote && prev != '\\' {
				quote = 0
			}
			prev = ch
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				blocks = append(blocks, s[start:i+1])
				start = -1
			}
		}
		prev = ch
	}
	return blocks
}
