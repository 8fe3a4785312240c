package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/intel-workbench/internal/core/domain"
	"github.com/avolkov/intel-workbench/internal/core/ports"
)

const (
	queuedNote    = "Queued for ingestion."
	processedNote = "Processed and ready for analysis."
)

// EvidenceUseCase orchestrates evidence upload, retrieval and deletion.
type EvidenceUseCase struct {
	docs    ports.DocumentStore
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	users   ports.UserStore
	locks   *UserLocks
	now     func() time.Time
}

func NewEvidenceUseCase(
	docs ports.DocumentStore,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	users ports.UserStore,
	locks *UserLocks,
) *EvidenceUseCase {
	if locks == nil {
		locks = NewUserLocks()
	}
	return &EvidenceUseCase{
		docs:    docs,
		storage: storage,
		queue:   queue,
		users:   users,
		locks:   locks,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *EvidenceUseCase) Upload(ctx context.Context, userID, filename string, size int64, body io.Reader) (*domain.Document, error) {
	if body == nil || strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload evidence", errors.New("file payload is required"))
	}

	unlock := uc.locks.lock(userID)
	defer unlock()

	id := uuid.NewString()
	storedName := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := uc.now()

	if err := uc.storage.Save(ctx, storedName, body); err != nil {
		return nil, fmt.Errorf("save evidence file: %w", err)
	}

	doc := &domain.Document{
		ID:           id,
		UserID:       userID,
		OriginalName: filename,
		StoredName:   storedName,
		Size:         size,
		Status:       domain.StatusProcessing,
		Notes:        queuedNote,
		UploadedAt:   now,
		UpdatedAt:    now,
	}
	if err := uc.docs.CreateDocument(ctx, doc); err != nil {
		// The stored file must not outlive a rejected upload.
		_ = uc.storage.Delete(ctx, storedName)
		return nil, fmt.Errorf("create evidence metadata: %w", err)
	}

	if err := uc.queue.PublishEvidenceQueued(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	if err := uc.users.TouchUser(ctx, userID, now); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}
	return doc, nil
}

func (uc *EvidenceUseCase) List(ctx context.Context, userID string) ([]domain.Document, error) {
	docs, err := uc.docs.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return docs, nil
}

// Download streams the stored bytes. Metadata without a backing file
// maps to ErrGone, not ErrNotFound.
func (uc *EvidenceUseCase) Download(ctx context.Context, userID, docID string) (*domain.Document, io.ReadCloser, error) {
	doc, err := uc.docs.GetDocument(ctx, userID, docID)
	if err != nil {
		return nil, nil, fmt.Errorf("get evidence: %w", err)
	}

	reader, err := uc.storage.Open(ctx, doc.StoredName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, domain.WrapError(domain.ErrGone, "open evidence file", err)
		}
		return nil, nil, fmt.Errorf("open evidence file: %w", err)
	}
	return doc, reader, nil
}

// Delete removes metadata and the stored file, and drops any pending
// ingestion transition so a deleted document is never resurrected.
func (uc *EvidenceUseCase) Delete(ctx context.Context, userID, docID string) error {
	unlock := uc.locks.lock(userID)
	defer unlock()

	doc, err := uc.docs.GetDocument(ctx, userID, docID)
	if err != nil {
		return fmt.Errorf("get evidence: %w", err)
	}

	uc.queue.CancelPending(doc.ID)

	if err := uc.storage.Delete(ctx, doc.StoredName); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete evidence file: %w", err)
	}
	if err := uc.docs.DeleteDocument(ctx, userID, docID); err != nil {
		return fmt.Errorf("delete evidence metadata: %w", err)
	}
	if err := uc.users.TouchUser(ctx, userID, uc.now()); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "evidence.bin"
	}
	return base
}
