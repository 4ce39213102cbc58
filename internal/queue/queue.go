// ==============================================================================
// RETRYABLE TASK QUEUE - internal/queue/queue.go
// ==============================================================================
// Wraps document-analysis calls in a retry queue. Submission tries one
// synchronous attempt first; only when that attempt does not complete does
// the item stay queued for a later background pass. Service overload is a
// cheap transient: the item stays queued with attempts unchanged. Any other
// failure consumes an attempt, and the item fails hard once attempts reach
// maxAttempts. Failed items only re-enter the queue through an explicit
// operator reset.
// ==============================================================================
package queue

import (
	"context"
	"sort"
	"time"

	"driverid/internal/docanalysis"
	"driverid/internal/domain"
	driveriderrors "driverid/pkg/errors"
	"driverid/pkg/logger"

	"github.com/google/uuid"
)

// Store persists queue items.
type Store interface {
	Save(ctx context.Context, item *domain.QueueItem) error
	Get(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error)
	List(ctx context.Context, statuses ...domain.QueueStatus) ([]*domain.QueueItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Sink receives terminal queue outcomes.
type Sink interface {
	OnAnalysisCompleted(ctx context.Context, item *domain.QueueItem)
	OnAnalysisFailed(ctx context.Context, item *domain.QueueItem)
}

// RetryPolicy is the queue's explicit retry contract: the attempt bound, the
// pacing between items in a background pass, and the classifier that
// separates transient overload from hard failure. Transient errors leave the
// item queued without consuming an attempt.
type RetryPolicy struct {
	MaxAttempts    int
	InterItemDelay time.Duration
	IsTransient    func(error) bool
}

// DefaultRetryPolicy treats analysis-service overload as the only transient
// failure.
func DefaultRetryPolicy(maxAttempts int, interItemDelay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    maxAttempts,
		InterItemDelay: interItemDelay,
		IsTransient: func(err error) bool {
			return driveriderrors.Is(err, driveriderrors.ErrServiceOverloaded)
		},
	}
}

// Queue is the retryable task queue over the analysis service.
type Queue struct {
	store    Store
	analyzer docanalysis.Analyzer
	sink     Sink
	logger   logger.Logger
	policy   RetryPolicy
	now      func() time.Time
	sleep    func(time.Duration)
}

func New(store Store, analyzer docanalysis.Analyzer, log logger.Logger, policy RetryPolicy) *Queue {
	if policy.IsTransient == nil {
		policy.IsTransient = DefaultRetryPolicy(policy.MaxAttempts, policy.InterItemDelay).IsTransient
	}
	return &Queue{
		store:    store,
		analyzer: analyzer,
		logger:   log,
		policy:   policy,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// SetSink wires the completion/failure hooks. Set after construction because
// the reconciler and the queue reference each other.
func (q *Queue) SetSink(sink Sink) {
	q.sink = sink
}

// WithClock swaps the time and sleep sources. Tests only.
func (q *Queue) WithClock(now func() time.Time, sleep func(time.Duration)) *Queue {
	q.now = now
	q.sleep = sleep
	return q
}

// Submit enqueues an item and immediately tries it once synchronously. The
// returned item reflects the attempt's outcome: completed, still queued
// (overload), or failed.
func (q *Queue) Submit(ctx context.Context, item *domain.QueueItem) (*domain.QueueItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.Status = domain.QueueStatusQueued
	item.MaxAttempts = q.policy.MaxAttempts
	item.CreatedAt = q.now()

	if err := q.store.Save(ctx, item); err != nil {
		return nil, driveriderrors.Wrap(err, "failed to enqueue item")
	}

	// The caller observes the synchronous outcome directly, so the sink is
	// not notified here; it only fires for background passes.
	if err := q.process(ctx, item, false); err != nil {
		return nil, err
	}
	return item, nil
}

// ProcessPending runs one background pass: every queued item, highest
// priority first (stable for ties), with a fixed delay between items to
// respect downstream rate limits.
func (q *Queue) ProcessPending(ctx context.Context) error {
	items, err := q.store.List(ctx, domain.QueueStatusQueued)
	if err != nil {
		return driveriderrors.Wrap(err, "failed to list queued items")
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority.Rank() > items[j].Priority.Rank()
	})

	for i, item := range items {
		if i > 0 {
			q.sleep(q.policy.InterItemDelay)
		}
		if err := q.process(ctx, item, true); err != nil {
			return err
		}
	}
	return nil
}

// RetryFailed is the explicit operator reset: every failed item returns to
// queued with its attempt count cleared.
func (q *Queue) RetryFailed(ctx context.Context) (int, error) {
	items, err := q.store.List(ctx, domain.QueueStatusFailed)
	if err != nil {
		return 0, driveriderrors.Wrap(err, "failed to list failed items")
	}

	for _, item := range items {
		item.Status = domain.QueueStatusQueued
		item.Attempts = 0
		item.Error = ""
		if err := q.store.Save(ctx, item); err != nil {
			return 0, driveriderrors.Wrap(err, "failed to reset item")
		}
	}
	return len(items), nil
}

// Items lists queue items, optionally filtered by status.
func (q *Queue) Items(ctx context.Context, statuses ...domain.QueueStatus) ([]*domain.QueueItem, error) {
	return q.store.List(ctx, statuses...)
}

// process runs one attempt of one item. Only storage errors propagate;
// analysis outcomes are recorded on the item.
func (q *Queue) process(ctx context.Context, item *domain.QueueItem, notifySink bool) error {
	item.Status = domain.QueueStatusProcessing
	attemptedAt := q.now()
	item.LastAttempt = &attemptedAt
	if err := q.store.Save(ctx, item); err != nil {
		return driveriderrors.Wrap(err, "failed to mark item processing")
	}

	result, err := q.analyzer.Analyze(ctx, item.Request.Image, item.Request.ReferenceAddress)
	switch {
	case err == nil:
		item.Status = domain.QueueStatusCompleted
		item.Result = result
		item.Error = ""

	case q.policy.IsTransient(err):
		// Transient failures go back to queued without consuming an attempt.
		item.Status = domain.QueueStatusQueued
		item.Error = err.Error()
		q.logger.Warn("Transient analysis failure, item re-queued", map[string]interface{}{
			"item_id": item.ID.String(),
		})

	default:
		item.Attempts++
		item.Error = err.Error()
		if item.Attempts >= item.MaxAttempts {
			item.Status = domain.QueueStatusFailed
			q.logger.Error("Queue item exhausted its attempts", map[string]interface{}{
				"item_id":  item.ID.String(),
				"attempts": item.Attempts,
				"error":    err.Error(),
			})
		} else {
			item.Status = domain.QueueStatusQueued
			q.logger.Warn("Analysis attempt failed, will retry", map[string]interface{}{
				"item_id":  item.ID.String(),
				"attempts": item.Attempts,
				"error":    err.Error(),
			})
		}
	}

	if err := q.store.Save(ctx, item); err != nil {
		return driveriderrors.Wrap(err, "failed to persist item outcome")
	}

	if notifySink && q.sink != nil {
		switch item.Status {
		case domain.QueueStatusCompleted:
			q.sink.OnAnalysisCompleted(ctx, item)
		case domain.QueueStatusFailed:
			q.sink.OnAnalysisFailed(ctx, item)
		}
	}
	return nil
}
