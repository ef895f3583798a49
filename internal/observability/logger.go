package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeToolCall   EventType = "tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypePlan       EventType = "plan"
	EventTypeStep       EventType = "step"
	EventTypeSearch     EventType = "search"
	EventTypeSummary    EventType = "summary"
	EventTypeLoopGuard  EventType = "loop_guard"
	EventTypeLLM        EventType = "llm"
	EventTypeHeartbeat  EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	TurnID    string    `json:"turn_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogToolCall(chatID, turnID, tool string, args any) {
	l.Log(Event{
		Type:   EventTypeToolCall,
		ChatID: chatID,
		TurnID: turnID,
		Data: map[string]any{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(chatID, turnID, tool, result string) {
	l.Log(Event{
		Type:   EventTypeToolResult,
		ChatID: chatID,
		TurnID: turnID,
		Data: map[string]string{
			"tool":   tool,
			"result": result,
		},
	})
}

func (l *Logger) LogPlan(chatID, turnID string, steps any) {
	l.Log(Event{
		Type:   EventTypePlan,
		ChatID: chatID,
		TurnID: turnID,
		Data:   map[string]any{"steps": steps},
	})
}

func (l *Logger) LogStep(chatID, turnID string, index int, tool, status string) {
	l.Log(Event{
		Type:   EventTypeStep,
		ChatID: chatID,
		TurnID: turnID,
		Data: map[string]any{
			"index":  index,
			"tool":   tool,
			"status": status,
		},
	})
}

func (l *Logger) LogSearch(chatID, turnID, query string, results int) {
	l.Log(Event{
		Type:   EventTypeSearch,
		ChatID: chatID,
		TurnID: turnID,
		Data: map[string]any{
			"query":   query,
			"results": results,
		},
	})
}

func (l *Logger) LogSummary(chatID, turnID string, snippets int, answer string) {
	l.Log(Event{
		Type:   EventTypeSummary,
		ChatID: chatID,
		TurnID: turnID,
		Data: map[string]any{
			"snippets": snippets,
			"answer":   answer,
		},
	})
}

func (l *Logger) LogLoopDetected(chatID, turnID, signature string, repeats int) {
	l.Log(Event{
		Type:   EventTypeLoopGuard,
		ChatID: chatID,
		TurnID: turnID,
		Data: map[string]any{
			"signature": signature,
			"repeats":   repeats,
		},
	})
}

func (l *Logger) LogLLM(chatID, turnID string, prompt any, response string) {
	l.Log(Event{
		Type:   EventTypeLLM,
		ChatID: chatID,
		TurnID: turnID,
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}
