package ports

import (
	"context"
	"io"
	"time"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	TouchUser(ctx context.Context, id string, at time.Time) error
}

// SessionStore persists opaque bearer sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// TaskStore persists tasks with their message logs and reports.
type TaskStore interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	ListTaskSummaries(ctx context.Context, userID string) ([]domain.TaskSummary, error)
	GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error)
	RenameTask(ctx context.Context, userID, taskID, title string, at time.Time) error
	DeleteTask(ctx context.Context, userID, taskID string) error
	AppendMessage(ctx context.Context, userID, taskID string, message domain.Message) error
	SaveReport(ctx context.Context, userID, taskID string, report domain.Report, at time.Time) error
}

// DocumentStore persists evidence metadata.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *domain.Document) error
	ListDocuments(ctx context.Context, userID string) ([]domain.Document, error)
	GetDocument(ctx context.Context, userID, docID string) (*domain.Document, error)
	// GetDocumentByID is the worker-side lookup, unscoped by owner.
	GetDocumentByID(ctx context.Context, docID string) (*domain.Document, error)
	ListProcessedDocuments(ctx context.Context, userID string) ([]domain.Document, error)
	UpdateDocumentStatus(ctx context.Context, docID string, status domain.DocumentStatus, notes string) error
	DeleteDocument(ctx context.Context, userID, docID string) error
}

// ObjectStorage stores uploaded evidence files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes evidence ingestion events.
// CancelPending is best-effort: drivers that dispatch in-process drop
// the scheduled event, distributed drivers rely on the consumer
// re-checking document existence.
type MessageQueue interface {
	PublishEvidenceQueued(ctx context.Context, documentID string) error
	SubscribeEvidenceQueued(ctx context.Context, handler func(context.Context, string) error) error
	CancelPending(documentID string)
}

// TextExtractor extracts plain text from a stored evidence file.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}
