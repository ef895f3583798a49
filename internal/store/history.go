package store

import (
	"database/sql"

	_ "github.com/glebarez/go-sqlite"
)

// Message is one persisted conversation entry.
type Message struct {
	Role    string
	Content string
}

// HistoryStore persists chat messages in SQLite.
type HistoryStore struct {
	DB *sql.DB
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT,
		role TEXT,
		content TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		return nil, err
	}

	return &HistoryStore{DB: db}, nil
}

func (h *HistoryStore) AddMessage(chatID, role, content string) error {
	_, err := h.DB.Exec(`INSERT INTO messages (chat_id, role, content) VALUES (?, ?, ?)`,
		chatID, role, content)
	return err
}

// GetHistory returns the most recent messages for a chat in chronological order.
func (h *HistoryStore) GetHistory(chatID string, limit int) ([]Message, error) {
	rows, err := h.DB.Query(
		`SELECT role, content FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?`,
		chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// ClearHistory removes every message for a chat.
func (h *HistoryStore) ClearHistory(chatID string) error {
	_, err := h.DB.Exec(`DELETE FROM messages WHERE chat_id = ?`, chatID)
	return err
}

func (h *HistoryStore) Close() error {
	return h.DB.Close()
}
