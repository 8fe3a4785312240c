package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		retryable     bool
		recordFailure bool
	}{
		{"context canceled", context.Canceled, false, false},
		{"connection closed", nats.ErrConnectionClosed, true, true},
		{"timeout", nats.ErrTimeout, true, true},
		{"bad subject", nats.ErrBadSubject, false, true},
		{"max payload", nats.ErrMaxPayload, false, true},
		{"unknown", errors.New("boom"), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyNATSError(tt.err)
			if got.Retryable != tt.retryable {
				t.Fatalf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if got.RecordFailure != tt.recordFailure {
				t.Fatalf("RecordFailure = %v, want %v", got.RecordFailure, tt.recordFailure)
			}
		})
	}
}

func TestWrapTemporaryMarksRetryableFailures(t *testing.T) {
	err := wrapTemporaryIfNeeded(nats.ErrConnectionClosed)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected a temporary error, got %v", err)
	}

	err = wrapTemporaryIfNeeded(nats.ErrBadSubject)
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent error should not be marked temporary: %v", err)
	}
}
