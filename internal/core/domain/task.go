package domain

import "time"

type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// Message is one turn in a task's conversation log. Append-only,
// ordered by CreatedAt ascending.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// Task pairs a conversation log with one evolving report artifact.
// Owned exclusively by a single user.
type Task struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Report    Report    `json:"report"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskSummary is the list projection of a task.
type TaskSummary struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	LastMessagePreview string    `json:"last_message_preview"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (t *Task) Summary() TaskSummary {
	preview := ""
	if n := len(t.Messages); n > 0 {
		preview = t.Messages[n-1].Content
	}
	return TaskSummary{
		ID:                 t.ID,
		Title:              t.Title,
		LastMessagePreview: preview,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
