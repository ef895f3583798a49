package agent

import (
	"strings"

	"github.com/google/uuid"
)

// Message is one conversation history entry.
type Message struct {
	Role    string `json:"role"` // system, human, ai, tool
	Content string `json:"content"`
}

// Session is the explicit per-conversation state: history, loop-guard
// bookkeeping and the snippets accumulated for summarization. Everything
// that used to be ambient lives here so nothing is process-global.
type Session struct {
	ID     string
	ChatID string

	History []Message

	lastSignature string
	repeatCount   int

	Snippets []string

	// lastTopic remembers the subject of the previous turn so very short
	// follow-up queries can be prefixed with it.
	lastTopic string
}

func NewSession(chatID string) *Session {
	return &Session{ID: uuid.NewString(), ChatID: chatID}
}

func (s *Session) Append(role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content})
}

// Last returns the most recent history entry.
func (s *Session) Last() (Message, bool) {
	if len(s.History) == 0 {
		return Message{}, false
	}
	return s.History[len(s.History)-1], true
}

// ObserveCall records a tool-call signature and returns how many times in a
// row it has now been seen. A distinct signature resets the count to 1.
func (s *Session) ObserveCall(signature string) int {
	if signature == s.lastSignature {
		s.repeatCount++
	} else {
		s.lastSignature = signature
		s.repeatCount = 1
	}
	return s.repeatCount
}

// ResetGuard clears loop-protection state at the start of a user turn.
func (s *Session) ResetGuard() {
	s.lastSignature = ""
	s.repeatCount = 0
}

func (s *Session) PushSnippet(snippet string) {
	if strings.TrimSpace(snippet) == "" {
		return
	}
	s.Snippets = append(s.Snippets, snippet)
}

func (s *Session) ClearSnippets() {
	s.Snippets = nil
}

func (s *Session) Topic() string { return s.lastTopic }

// RememberTopic keeps a query as the conversation topic when it is
// substantial enough to anchor short follow-ups.
func (s *Session) RememberTopic(query string) {
	if len(strings.Fields(query)) >= 3 {
		s.lastTopic = query
	}
}
