package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

// memStore is an in-memory implementation of every repository port,
// shared across use case tests.
type memStore struct {
	users    map[string]*domain.User
	sessions map[string]domain.Session
	tasks    map[string]*domain.Task
	docs     map[string]*domain.Document
	docOrder []string
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*domain.User),
		sessions: make(map[string]domain.Session),
		tasks:    make(map[string]*domain.Task),
		docs:     make(map[string]*domain.Document),
	}
}

func (s *memStore) CreateUser(_ context.Context, user *domain.User) error {
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get user", fmt.Errorf("id=%s", id))
	}
	copied := *user
	return &copied, nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get user by email", fmt.Errorf("email=%s", email))
}

func (s *memStore) TouchUser(_ context.Context, id string, at time.Time) error {
	user, ok := s.users[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "touch user", fmt.Errorf("id=%s", id))
	}
	user.UpdatedAt = at
	return nil
}

func (s *memStore) CreateSession(_ context.Context, session domain.Session) error {
	s.sessions[session.Token] = session
	return nil
}

func (s *memStore) GetSession(_ context.Context, token string) (*domain.Session, error) {
	session, ok := s.sessions[token]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get session", errors.New("unknown token"))
	}
	return &session, nil
}

func (s *memStore) DeleteSession(_ context.Context, token string) error {
	delete(s.sessions, token)
	return nil
}

func (s *memStore) CreateTask(_ context.Context, task *domain.Task) error {
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *memStore) ListTaskSummaries(_ context.Context, userID string) ([]domain.TaskSummary, error) {
	out := make([]domain.TaskSummary, 0)
	for _, task := range s.tasks {
		if task.UserID == userID {
			out = append(out, task.Summary())
		}
	}
	return out, nil
}

func (s *memStore) GetTask(_ context.Context, userID, taskID string) (*domain.Task, error) {
	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get task", fmt.Errorf("id=%s", taskID))
	}
	copied := *task
	return &copied, nil
}

func (s *memStore) RenameTask(_ context.Context, userID, taskID, title string, at time.Time) error {
	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return domain.WrapError(domain.ErrNotFound, "rename task", fmt.Errorf("id=%s", taskID))
	}
	task.Title = title
	task.UpdatedAt = at
	return nil
}

func (s *memStore) DeleteTask(_ context.Context, userID, taskID string) error {
	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return domain.WrapError(domain.ErrNotFound, "delete task", fmt.Errorf("id=%s", taskID))
	}
	delete(s.tasks, taskID)
	return nil
}

func (s *memStore) AppendMessage(_ context.Context, userID, taskID string, message domain.Message) error {
	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return domain.WrapError(domain.ErrNotFound, "append message", fmt.Errorf("id=%s", taskID))
	}
	task.Messages = append(task.Messages, message)
	return nil
}

func (s *memStore) SaveReport(_ context.Context, userID, taskID string, report domain.Report, at time.Time) error {
	task, ok := s.tasks[taskID]
	if !ok || task.UserID != userID {
		return domain.WrapError(domain.ErrNotFound, "save report", fmt.Errorf("id=%s", taskID))
	}
	task.Report = report
	task.UpdatedAt = at
	return nil
}

func (s *memStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	copied := *doc
	s.docs[doc.ID] = &copied
	s.docOrder = append(s.docOrder, doc.ID)
	return nil
}

func (s *memStore) ListDocuments(_ context.Context, userID string) ([]domain.Document, error) {
	out := make([]domain.Document, 0)
	for _, id := range s.docOrder {
		doc, ok := s.docs[id]
		if ok && doc.UserID == userID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *memStore) GetDocument(_ context.Context, userID, docID string) (*domain.Document, error) {
	doc, ok := s.docs[docID]
	if !ok || doc.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%s", docID))
	}
	copied := *doc
	return &copied, nil
}

func (s *memStore) GetDocumentByID(_ context.Context, docID string) (*domain.Document, error) {
	doc, ok := s.docs[docID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%s", docID))
	}
	copied := *doc
	return &copied, nil
}

func (s *memStore) ListProcessedDocuments(_ context.Context, userID string) ([]domain.Document, error) {
	out := make([]domain.Document, 0)
	for _, id := range s.docOrder {
		doc, ok := s.docs[id]
		if ok && doc.UserID == userID && doc.Status == domain.StatusProcessed {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *memStore) UpdateDocumentStatus(_ context.Context, docID string, status domain.DocumentStatus, notes string) error {
	doc, ok := s.docs[docID]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update document status", fmt.Errorf("id=%s", docID))
	}
	doc.Status = status
	doc.Notes = notes
	return nil
}

func (s *memStore) DeleteDocument(_ context.Context, userID, docID string) error {
	doc, ok := s.docs[docID]
	if !ok || doc.UserID != userID {
		return domain.WrapError(domain.ErrNotFound, "delete document", fmt.Errorf("id=%s", docID))
	}
	delete(s.docs, docID)
	return nil
}

type fakeStorage struct {
	files map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string][]byte)}
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = raw
	return nil
}

func (f *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.files[key]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", key, fs.ErrNotExist)
	}
	return io.NopCloser(strings.NewReader(string(raw))), nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	if _, ok := f.files[key]; !ok {
		return fmt.Errorf("delete %s: %w", key, fs.ErrNotExist)
	}
	delete(f.files, key)
	return nil
}

type fakeQueue struct {
	published []string
	canceled  []string
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(context.Context, *domain.Document) (string, error) {
	return f.text, f.err
}

func (q *fakeQueue) PublishEvidenceQueued(_ context.Context, documentID string) error {
	q.published = append(q.published, documentID)
	return nil
}

func (q *fakeQueue) SubscribeEvidenceQueued(ctx context.Context, _ func(context.Context, string) error) error {
	<-ctx.Done()
	return nil
}

func (q *fakeQueue) CancelPending(documentID string) {
	q.canceled = append(q.canceled, documentID)
}
