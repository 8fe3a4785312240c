package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, user_id, original_name, stored_name, size, status, notes, uploaded_at, updated_at`

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, doc.ID, doc.UserID, doc.OriginalName, doc.StoredName, doc.Size, string(doc.Status), doc.Notes, doc.UploadedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	return r.list(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE user_id = $1
ORDER BY uploaded_at, id
`, userID)
}

func (r *DocumentRepository) ListProcessedDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	return r.list(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE user_id = $1 AND status = '`+string(domain.StatusProcessed)+`'
ORDER BY uploaded_at, id
`, userID)
}

func (r *DocumentRepository) list(ctx context.Context, query, userID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) GetDocument(ctx context.Context, userID, docID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE user_id = $1 AND id = $2
`, userID, docID)
	return oneDocument(row, docID)
}

func (r *DocumentRepository) GetDocumentByID(ctx context.Context, docID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, docID)
	return oneDocument(row, docID)
}

func (r *DocumentRepository) UpdateDocumentStatus(ctx context.Context, docID string, status domain.DocumentStatus, notes string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, notes = $3, updated_at = $4
WHERE id = $1
`, docID, string(status), notes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRow(result, "update document status", docID)
}

func (r *DocumentRepository) DeleteDocument(ctx context.Context, userID, docID string) error {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM documents WHERE user_id = $1 AND id = $2
`, userID, docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireRow(result, "delete document", docID)
}

type documentScanner interface {
	Scan(dest ...any) error
}

func oneDocument(row documentScanner, docID string) (*domain.Document, error) {
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%s", docID))
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

func scanDocument(row documentScanner) (domain.Document, error) {
	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.OriginalName,
		&doc.StoredName,
		&doc.Size,
		&status,
		&doc.Notes,
		&doc.UploadedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Status = domain.DocumentStatus(status)
	return doc, nil
}
