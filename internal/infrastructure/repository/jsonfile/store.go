// Package jsonfile implements the persistence ports on a single JSON
// document on local disk. It is the zero-dependency driver for demo
// and development runs; postgres is the production driver.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

type state struct {
	Users     map[string]*domain.User     `json:"users"`
	Sessions  map[string]*domain.Session  `json:"sessions"`
	Tasks     map[string]*domain.Task     `json:"tasks"`
	Documents map[string]*domain.Document `json:"documents"`
}

func newState() *state {
	return &state{
		Users:     make(map[string]*domain.User),
		Sessions:  make(map[string]*domain.Session),
		Tasks:     make(map[string]*domain.Task),
		Documents: make(map[string]*domain.Document),
	}
}

// Store keeps the whole dataset in memory and rewrites the backing
// file after every mutation. All access goes through one mutex, which
// is plenty for a single-process demo deployment.
type Store struct {
	path string

	mu    sync.Mutex
	state *state
}

func Open(path string) (*Store, error) {
	if path == "" {
		path = "./data/store.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &Store{path: path, state: newState()}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, s.state); err != nil {
			return nil, fmt.Errorf("decode store file: %w", err)
		}
	}
	if s.state.Users == nil {
		s.state.Users = make(map[string]*domain.User)
	}
	if s.state.Sessions == nil {
		s.state.Sessions = make(map[string]*domain.Session)
	}
	if s.state.Tasks == nil {
		s.state.Tasks = make(map[string]*domain.Task)
	}
	if s.state.Documents == nil {
		s.state.Documents = make(map[string]*domain.Document)
	}
	return s, nil
}

// flush must be called with the mutex held.
func (s *Store) flush() error {
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	s.state.Users[user.ID] = &clone
	return s.flush()
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.state.Users[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get user", fmt.Errorf("id=%s", id))
	}
	clone := *user
	return &clone, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.state.Users {
		if strings.EqualFold(user.Email, email) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get user by email", fmt.Errorf("email=%s", email))
}

func (s *Store) TouchUser(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.state.Users[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "touch user", fmt.Errorf("id=%s", id))
	}
	user.UpdatedAt = at
	return s.flush()
}

func (s *Store) CreateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Sessions[session.Token] = &session
	return s.flush()
}

func (s *Store) GetSession(_ context.Context, token string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.state.Sessions[token]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get session", errors.New("unknown token"))
	}
	clone := *session
	return &clone, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.Sessions, token)
	return s.flush()
}

func (s *Store) CreateTask(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := cloneTask(task)
	s.state.Tasks[task.ID] = clone
	return s.flush()
}

func (s *Store) ListTaskSummaries(_ context.Context, userID string) ([]domain.TaskSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TaskSummary, 0)
	for _, task := range s.state.Tasks {
		if task.UserID == userID {
			out = append(out, task.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetTask(_ context.Context, userID, taskID string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.ownedTask(userID, taskID, "get task")
	if err != nil {
		return nil, err
	}
	return cloneTask(task), nil
}

func (s *Store) RenameTask(_ context.Context, userID, taskID, title string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.ownedTask(userID, taskID, "rename task")
	if err != nil {
		return err
	}
	task.Title = title
	task.UpdatedAt = at
	return s.flush()
}

func (s *Store) DeleteTask(_ context.Context, userID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ownedTask(userID, taskID, "delete task"); err != nil {
		return err
	}
	delete(s.state.Tasks, taskID)
	return s.flush()
}

func (s *Store) AppendMessage(_ context.Context, userID, taskID string, message domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.ownedTask(userID, taskID, "append message")
	if err != nil {
		return err
	}
	task.Messages = append(task.Messages, message)
	task.UpdatedAt = message.CreatedAt
	return s.flush()
}

func (s *Store) SaveReport(_ context.Context, userID, taskID string, report domain.Report, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.ownedTask(userID, taskID, "save report")
	if err != nil {
		return err
	}
	task.Report = report
	task.UpdatedAt = at
	return s.flush()
}

func (s *Store) ownedTask(userID, taskID, op string) (*domain.Task, error) {
	task, ok := s.state.Tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("id=%s", taskID))
	}
	return task, nil
}

func (s *Store) CreateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *doc
	s.state.Documents[doc.ID] = &clone
	return s.flush()
}

func (s *Store) ListDocuments(_ context.Context, userID string) ([]domain.Document, error) {
	return s.listDocuments(userID, func(domain.DocumentStatus) bool { return true })
}

func (s *Store) ListProcessedDocuments(_ context.Context, userID string) ([]domain.Document, error) {
	return s.listDocuments(userID, func(status domain.DocumentStatus) bool {
		return status == domain.StatusProcessed
	})
}

func (s *Store) listDocuments(userID string, keep func(domain.DocumentStatus) bool) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Document, 0)
	for _, doc := range s.state.Documents {
		if doc.UserID == userID && keep(doc.Status) {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetDocument(_ context.Context, userID, docID string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.state.Documents[docID]
	if !ok || doc.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%s", docID))
	}
	clone := *doc
	return &clone, nil
}

func (s *Store) GetDocumentByID(_ context.Context, docID string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.state.Documents[docID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%s", docID))
	}
	clone := *doc
	return &clone, nil
}

func (s *Store) UpdateDocumentStatus(_ context.Context, docID string, status domain.DocumentStatus, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.state.Documents[docID]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update document status", fmt.Errorf("id=%s", docID))
	}
	doc.Status = status
	doc.Notes = notes
	doc.UpdatedAt = time.Now().UTC()
	return s.flush()
}

func (s *Store) DeleteDocument(_ context.Context, userID, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.state.Documents[docID]
	if !ok || doc.UserID != userID {
		return domain.WrapError(domain.ErrNotFound, "delete document", fmt.Errorf("id=%s", docID))
	}
	delete(s.state.Documents, docID)
	return s.flush()
}

func cloneTask(task *domain.Task) *domain.Task {
	clone := *task
	clone.Messages = append([]domain.Message(nil), task.Messages...)
	clone.Report = cloneReport(task.Report)
	return &clone
}

func cloneReport(report domain.Report) domain.Report {
	out := report
	out.Sections = append([]domain.Section(nil), report.Sections...)
	for i := range out.Sections {
		out.Sections[i].Bullets = append([]string(nil), report.Sections[i].Bullets...)
	}
	out.Recommendations = append([]string(nil), report.Recommendations...)
	out.NextSteps = append([]string(nil), report.NextSteps...)
	out.RevisionHistory = append([]domain.Revision(nil), report.RevisionHistory...)
	return out
}

