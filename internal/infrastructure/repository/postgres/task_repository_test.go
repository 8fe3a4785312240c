package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

func newTaskRepoWithMock(t *testing.T) (*TaskRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &TaskRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestRenameTaskReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE tasks").
		WithArgs("owner", "missing", "Renamed", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RenameTask(context.Background(), "owner", "missing", "Renamed", at)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendMessageRollsBackWhenTaskMissing(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	msg := domain.Message{
		ID:        "msg-1",
		Role:      domain.RoleUser,
		Content:   "What changed this quarter?",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tasks SET updated_at").
		WithArgs("owner", "missing", msg.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AppendMessage(context.Background(), "owner", "missing", msg)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetTaskLoadsReportAndMessages(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reportJSON := `{"title":"Acme Expansion — Intelligence Brief","executive_summary":"Summary.","sections":[],"recommendations":[],"next_steps":[],"last_updated":"2026-03-01T09:00:00Z","revision_history":[]}`

	mock.ExpectQuery("SELECT id, user_id, title, report").
		WithArgs("owner", "task-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "report", "created_at", "updated_at"}).
			AddRow("task-1", "owner", "Acme Expansion", []byte(reportJSON), created, created))

	mock.ExpectQuery("SELECT id, role, content, created_at").
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "content", "created_at"}).
			AddRow("msg-1", "user", "What changed?", created).
			AddRow("msg-2", "agent", "I analyzed the question.", created.Add(time.Second)))

	task, err := repo.GetTask(context.Background(), "owner", "task-1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if task.Report.Title != "Acme Expansion — Intelligence Brief" {
		t.Fatalf("unexpected report title %q", task.Report.Title)
	}
	if len(task.Messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(task.Messages))
	}
	if task.Messages[1].Role != domain.RoleAgent {
		t.Fatalf("unexpected role %q", task.Messages[1].Role)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
