package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avolkov/intel-workbench/internal/core/domain"
	"github.com/avolkov/intel-workbench/internal/core/ports"
)

// ProcessEvidenceUseCase performs the simulated asynchronous ingestion:
// after a fixed delay the document flips from processing to processed,
// or to failed when text extraction rejects the file.
type ProcessEvidenceUseCase struct {
	docs      ports.DocumentStore
	extractor ports.TextExtractor
	delay     time.Duration
}

func NewProcessEvidenceUseCase(docs ports.DocumentStore, extractor ports.TextExtractor, delay time.Duration) *ProcessEvidenceUseCase {
	return &ProcessEvidenceUseCase{
		docs:      docs,
		extractor: extractor,
		delay:     delay,
	}
}

func (uc *ProcessEvidenceUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if uc.delay > 0 {
		timer := time.NewTimer(uc.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	// Re-read current state: the document may have been deleted while
	// the transition was pending. That is a no-op, not an error.
	doc, err := uc.docs.GetDocumentByID(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			slog.Info("evidence_vanished_before_processing", "document_id", documentID)
			return nil
		}
		return fmt.Errorf("fetch evidence by id: %w", err)
	}
	if doc.Status != domain.StatusProcessing {
		return nil
	}

	if _, err := uc.extractor.Extract(ctx, doc); err != nil {
		note := fmt.Sprintf("Ingestion failed: %v", err)
		if markErr := uc.docs.UpdateDocumentStatus(ctx, doc.ID, domain.StatusFailed, note); markErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, markErr)
		}
		return err
	}

	if err := uc.docs.UpdateDocumentStatus(ctx, doc.ID, domain.StatusProcessed, processedNote); err != nil {
		return fmt.Errorf("set status=processed: %w", err)
	}
	return nil
}
