package ports

import (
	"context"
	"io"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

// Authenticator is the inbound contract for login and token resolution.
type Authenticator interface {
	Login(ctx context.Context, email, password, name string) (*domain.LoginResult, error)
	Resolve(ctx context.Context, token string) (*domain.User, error)
}

// TaskRegistry is the inbound contract for task lifecycle operations.
type TaskRegistry interface {
	List(ctx context.Context, userID string) ([]domain.TaskSummary, error)
	Create(ctx context.Context, userID, title string) (*domain.Task, error)
	Get(ctx context.Context, userID, taskID string) (*domain.Task, error)
	Rename(ctx context.Context, userID, taskID, title string) (*domain.TaskSummary, error)
	Delete(ctx context.Context, userID, taskID string) error
}

// BriefSynthesizer is the inbound contract for report-mutating turns.
type BriefSynthesizer interface {
	Invoke(ctx context.Context, userID, taskID, prompt string) (*domain.BriefTurn, error)
	ReplaceReport(ctx context.Context, userID, taskID string, patch domain.ReportPatch) (*domain.Report, error)
}

// EvidenceService is the inbound contract for evidence upload and retrieval.
type EvidenceService interface {
	Upload(ctx context.Context, userID, filename string, size int64, body io.Reader) (*domain.Document, error)
	List(ctx context.Context, userID string) ([]domain.Document, error)
	Download(ctx context.Context, userID, docID string) (*domain.Document, io.ReadCloser, error)
	Delete(ctx context.Context, userID, docID string) error
}

// EvidenceProcessor is the inbound contract for asynchronous ingestion.
type EvidenceProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
