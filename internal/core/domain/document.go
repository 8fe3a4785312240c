package domain

import "time"

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

// Document is one uploaded evidence file tracked through asynchronous
// ingestion. Owned by exactly one user, not scoped to a task.
type Document struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	OriginalName string         `json:"original_name"`
	StoredName   string         `json:"stored_name"`
	Size         int64          `json:"size"`
	Status       DocumentStatus `json:"status"`
	Notes        string         `json:"notes"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
