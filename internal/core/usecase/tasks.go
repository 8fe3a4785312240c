package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/intel-workbench/internal/core/domain"
	"github.com/avolkov/intel-workbench/internal/core/ports"
)

const defaultTaskTitle = "Untitled Task"

// TaskRegistryUseCase implements task lifecycle operations.
type TaskRegistryUseCase struct {
	tasks ports.TaskStore
	users ports.UserStore
	locks *UserLocks
	now   func() time.Time
}

func NewTaskRegistryUseCase(tasks ports.TaskStore, users ports.UserStore, locks *UserLocks) *TaskRegistryUseCase {
	if locks == nil {
		locks = NewUserLocks()
	}
	return &TaskRegistryUseCase{
		tasks: tasks,
		users: users,
		locks: locks,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (uc *TaskRegistryUseCase) List(ctx context.Context, userID string) ([]domain.TaskSummary, error) {
	summaries, err := uc.tasks.ListTaskSummaries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return summaries, nil
}

func (uc *TaskRegistryUseCase) Create(ctx context.Context, userID, title string) (*domain.Task, error) {
	unlock := uc.locks.lock(userID)
	defer unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTaskTitle
	}

	now := uc.now()
	task := &domain.Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Messages:  []domain.Message{},
		Report:    DefaultReport(title, now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if err := uc.users.TouchUser(ctx, userID, now); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}
	return task, nil
}

func (uc *TaskRegistryUseCase) Get(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	task, err := uc.tasks.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Rename is a no-op when the trimmed title is empty: the existing title
// is kept and returned unchanged.
func (uc *TaskRegistryUseCase) Rename(ctx context.Context, userID, taskID, title string) (*domain.TaskSummary, error) {
	unlock := uc.locks.lock(userID)
	defer unlock()

	task, err := uc.tasks.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task for rename: %w", err)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		summary := task.Summary()
		return &summary, nil
	}

	now := uc.now()
	if err := uc.tasks.RenameTask(ctx, userID, taskID, title, now); err != nil {
		return nil, fmt.Errorf("rename task: %w", err)
	}
	if err := uc.users.TouchUser(ctx, userID, now); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}

	task.Title = title
	task.UpdatedAt = now
	summary := task.Summary()
	return &summary, nil
}

func (uc *TaskRegistryUseCase) Delete(ctx context.Context, userID, taskID string) error {
	unlock := uc.locks.lock(userID)
	defer unlock()

	if err := uc.tasks.DeleteTask(ctx, userID, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := uc.users.TouchUser(ctx, userID, uc.now()); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}
