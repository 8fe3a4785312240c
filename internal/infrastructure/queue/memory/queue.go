// Package memory dispatches ingestion events in-process with one-shot
// timers, for single-binary deployments and tests. Pending dispatches
// are keyed by document id so a delete can cancel them, and the timers
// never keep the process alive on their own. Events whose delay elapses
// before a subscriber registers are held and handed over on subscribe,
// so nothing published during startup is lost.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Queue struct {
	dispatchDelay time.Duration

	mu      sync.Mutex
	handler func(context.Context, string) error
	pending map[string]*time.Timer
	backlog []string
	baseCtx context.Context
}

func New(dispatchDelay time.Duration) *Queue {
	return &Queue{
		dispatchDelay: dispatchDelay,
		pending:       make(map[string]*time.Timer),
	}
}

func (q *Queue) PublishEvidenceQueued(_ context.Context, documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending[documentID] = time.AfterFunc(q.dispatchDelay, func() {
		q.dispatch(documentID)
	})
	return nil
}

func (q *Queue) dispatch(documentID string) {
	q.mu.Lock()
	delete(q.pending, documentID)
	if q.handler == nil {
		// Delay elapsed with no subscriber yet; hold the event until
		// one registers.
		q.backlog = append(q.backlog, documentID)
		q.mu.Unlock()
		return
	}
	handler := q.handler
	ctx := q.baseCtx
	q.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if err := handler(ctx, documentID); err != nil {
		slog.Error("ingest_handler_error", "document_id", documentID, "error", err)
	}
}

// SubscribeEvidenceQueued registers the handler, replays any events that
// fired before a subscriber existed, and blocks until ctx is done,
// mirroring the distributed driver's contract.
func (q *Queue) SubscribeEvidenceQueued(ctx context.Context, handler func(context.Context, string) error) error {
	q.mu.Lock()
	q.handler = handler
	q.baseCtx = ctx
	backlog := q.backlog
	q.backlog = nil
	q.mu.Unlock()

	for _, documentID := range backlog {
		if ctx.Err() != nil {
			break
		}
		if err := handler(ctx, documentID); err != nil {
			slog.Error("ingest_handler_error", "document_id", documentID, "error", err)
		}
	}

	<-ctx.Done()

	q.mu.Lock()
	for id, timer := range q.pending {
		timer.Stop()
		delete(q.pending, id)
	}
	q.backlog = nil
	q.handler = nil
	q.mu.Unlock()
	return nil
}

// CancelPending drops a scheduled or held dispatch so a deleted
// document's metadata is never resurrected by a late transition.
func (q *Queue) CancelPending(documentID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if timer, ok := q.pending[documentID]; ok {
		timer.Stop()
		delete(q.pending, documentID)
	}
	for i, id := range q.backlog {
		if id == documentID {
			q.backlog = append(q.backlog[:i], q.backlog[i+1:]...)
			break
		}
	}
}
