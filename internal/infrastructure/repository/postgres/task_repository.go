package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateTask(ctx context.Context, task *domain.Task) error {
	reportJSON, err := json.Marshal(task.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create task tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO tasks (id, user_id, title, report, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, task.ID, task.UserID, task.Title, reportJSON, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	for _, msg := range task.Messages {
		if err := insertMessage(ctx, tx, task.ID, msg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create task tx: %w", err)
	}
	return nil
}

func (r *TaskRepository) ListTaskSummaries(ctx context.Context, userID string) ([]domain.TaskSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT t.id, t.title,
	COALESCE((
		SELECT m.content FROM messages m
		WHERE m.task_id = t.id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT 1
	), ''),
	t.created_at, t.updated_at
FROM tasks t
WHERE t.user_id = $1
ORDER BY t.created_at, t.id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list task summaries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TaskSummary, 0)
	for rows.Next() {
		var s domain.TaskSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.LastMessagePreview, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task summaries: %w", err)
	}
	return out, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, title, report, created_at, updated_at
FROM tasks
WHERE user_id = $1 AND id = $2
`, userID, taskID)

	var task domain.Task
	var reportRaw []byte
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &reportRaw, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get task", fmt.Errorf("id=%s", taskID))
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if err := json.Unmarshal(reportRaw, &task.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}

	messages, err := r.listMessages(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.Messages = messages
	return &task, nil
}

func (r *TaskRepository) listMessages(ctx context.Context, taskID string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, role, content, created_at
FROM messages
WHERE task_id = $1
ORDER BY created_at, id
`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		var role string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = domain.MessageRole(role)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func (r *TaskRepository) RenameTask(ctx context.Context, userID, taskID, title string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE tasks
SET title = $3, updated_at = $4
WHERE user_id = $1 AND id = $2
`, userID, taskID, title, at)
	if err != nil {
		return fmt.Errorf("rename task: %w", err)
	}
	return requireRow(result, "rename task", taskID)
}

func (r *TaskRepository) DeleteTask(ctx context.Context, userID, taskID string) error {
	// Messages cascade with the task row.
	result, err := r.db.ExecContext(ctx, `
DELETE FROM tasks WHERE user_id = $1 AND id = $2
`, userID, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireRow(result, "delete task", taskID)
}

func (r *TaskRepository) AppendMessage(ctx context.Context, userID, taskID string, message domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append message tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
UPDATE tasks SET updated_at = $3 WHERE user_id = $1 AND id = $2
`, userID, taskID, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch task: %w", err)
	}
	if err := requireRow(result, "append message", taskID); err != nil {
		return err
	}

	if err := insertMessage(ctx, tx, taskID, message); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append message tx: %w", err)
	}
	return nil
}

func (r *TaskRepository) SaveReport(ctx context.Context, userID, taskID string, report domain.Report, at time.Time) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE tasks
SET report = $3, updated_at = $4
WHERE user_id = $1 AND id = $2
`, userID, taskID, reportJSON, at)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return requireRow(result, "save report", taskID)
}

func insertMessage(ctx context.Context, tx *sql.Tx, taskID string, msg domain.Message) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO messages (id, task_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5)
`, msg.ID, taskID, string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func requireRow(result sql.Result, op, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
