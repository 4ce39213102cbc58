package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"driverid/internal/domain"
	driveriderrors "driverid/pkg/errors"
	"driverid/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAnalyzer returns its scripted outcomes in order, then repeats the
// last one.
type scriptedAnalyzer struct {
	mu       sync.Mutex
	script   []error
	analyzed [][]byte
}

func (a *scriptedAnalyzer) Analyze(ctx context.Context, image []byte, referenceAddress string) (*domain.PoaExtraction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyzed = append(a.analyzed, image)

	var err error
	if len(a.script) > 0 {
		err = a.script[0]
		if len(a.script) > 1 {
			a.script = a.script[1:]
		}
	}
	if err != nil {
		return nil, err
	}
	return &domain.PoaExtraction{Valid: true, Confidence: domain.ConfidenceHigh}, nil
}

type recordingSink struct {
	mu        sync.Mutex
	completed []*domain.QueueItem
	failed    []*domain.QueueItem
}

func (s *recordingSink) OnAnalysisCompleted(ctx context.Context, item *domain.QueueItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, item)
}

func (s *recordingSink) OnAnalysisFailed(ctx context.Context, item *domain.QueueItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, item)
}

func newTestQueue(analyzer *scriptedAnalyzer, delay time.Duration, sleeps *[]time.Duration) *Queue {
	q := New(NewMemoryStore(), analyzer, logger.NewNop(), DefaultRetryPolicy(3, delay))
	q.WithClock(time.Now, func(d time.Duration) {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
	})
	return q
}

func item(priority domain.QueuePriority, image string) *domain.QueueItem {
	return &domain.QueueItem{
		DocumentType: domain.QueueDocPoa,
		Priority:     priority,
		Request:      domain.AnalysisRequest{Image: []byte(image)},
	}
}

func TestSubmit_SynchronousSuccess(t *testing.T) {
	analyzer := &scriptedAnalyzer{}
	q := newTestQueue(analyzer, 0, nil)

	out, err := q.Submit(context.Background(), item(domain.PriorityNormal, "img-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.QueueStatusCompleted, out.Status)
	assert.NotNil(t, out.Result)
	assert.Zero(t, out.Attempts, "success consumes no attempt")
}

func TestSubmit_OverloadDoesNotConsumeAttempts(t *testing.T) {
	analyzer := &scriptedAnalyzer{script: []error{
		driveriderrors.ErrServiceOverloaded,
		driveriderrors.ErrServiceOverloaded,
		driveriderrors.ErrServiceOverloaded,
		driveriderrors.ErrServiceOverloaded,
		nil,
	}}
	q := newTestQueue(analyzer, 0, nil)

	out, err := q.Submit(context.Background(), item(domain.PriorityNormal, "img-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusQueued, out.Status)
	assert.Zero(t, out.Attempts)

	// However many overloaded passes run, attempts never move.
	for i := 0; i < 3; i++ {
		require.NoError(t, q.ProcessPending(context.Background()))
	}
	items, err := q.Items(context.Background(), domain.QueueStatusQueued)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Zero(t, items[0].Attempts)

	// The service recovers and the item completes.
	require.NoError(t, q.ProcessPending(context.Background()))
	items, err = q.Items(context.Background(), domain.QueueStatusCompleted)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSubmit_HardFailureExhaustsAtThreeAttempts(t *testing.T) {
	analyzer := &scriptedAnalyzer{script: []error{driveriderrors.ErrAnalysisFailed}}
	sink := &recordingSink{}
	q := newTestQueue(analyzer, 0, nil)
	q.SetSink(sink)

	out, err := q.Submit(context.Background(), item(domain.PriorityNormal, "img-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusQueued, out.Status)
	assert.Equal(t, 1, out.Attempts)

	require.NoError(t, q.ProcessPending(context.Background()))
	require.NoError(t, q.ProcessPending(context.Background()))

	failed, err := q.Items(context.Background(), domain.QueueStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].Attempts)

	// A further pass finds nothing queued.
	require.NoError(t, q.ProcessPending(context.Background()))
	assert.Len(t, analyzer.analyzed, 3)

	// The sink heard about the terminal failure exactly once.
	assert.Len(t, sink.failed, 1)
	assert.Empty(t, sink.completed)
}

func TestRetryFailed_ResetsAttempts(t *testing.T) {
	analyzer := &scriptedAnalyzer{script: []error{
		driveriderrors.ErrAnalysisFailed,
		driveriderrors.ErrAnalysisFailed,
		driveriderrors.ErrAnalysisFailed,
		nil,
	}}
	q := newTestQueue(analyzer, 0, nil)

	_, err := q.Submit(context.Background(), item(domain.PriorityNormal, "img-1"))
	require.NoError(t, err)
	require.NoError(t, q.ProcessPending(context.Background()))
	require.NoError(t, q.ProcessPending(context.Background()))

	n, err := q.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	queued, err := q.Items(context.Background(), domain.QueueStatusQueued)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Zero(t, queued[0].Attempts)
	assert.Empty(t, queued[0].Error)

	// The reset item goes through on the next pass.
	require.NoError(t, q.ProcessPending(context.Background()))
	completed, err := q.Items(context.Background(), domain.QueueStatusCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestProcessPending_PriorityOrderWithStableTies(t *testing.T) {
	// Everything overloads on submit so all items stay queued, then one pass
	// records the processing order.
	analyzer := &scriptedAnalyzer{script: []error{
		driveriderrors.ErrServiceOverloaded,
		driveriderrors.ErrServiceOverloaded,
		driveriderrors.ErrServiceOverloaded,
		driveriderrors.ErrServiceOverloaded,
		nil,
	}}
	q := newTestQueue(analyzer, 0, nil)

	for _, it := range []*domain.QueueItem{
		item(domain.PriorityNormal, "normal-first"),
		item(domain.PriorityUrgent, "urgent"),
		item(domain.PriorityNormal, "normal-second"),
		item(domain.PriorityHigh, "high"),
	} {
		_, err := q.Submit(context.Background(), it)
		require.NoError(t, err)
	}

	analyzer.mu.Lock()
	analyzer.analyzed = nil
	analyzer.mu.Unlock()

	require.NoError(t, q.ProcessPending(context.Background()))

	var order []string
	for _, img := range analyzer.analyzed {
		order = append(order, string(img))
	}
	assert.Equal(t, []string{"urgent", "high", "normal-first", "normal-second"}, order)
}

func TestProcessPending_InterItemDelay(t *testing.T) {
	analyzer := &scriptedAnalyzer{script: []error{
		driveriderrors.ErrServiceOverloaded,
		driveriderrors.ErrServiceOverloaded,
		nil,
	}}
	var sleeps []time.Duration
	q := newTestQueue(analyzer, 250*time.Millisecond, &sleeps)

	_, err := q.Submit(context.Background(), item(domain.PriorityNormal, "a"))
	require.NoError(t, err)
	_, err = q.Submit(context.Background(), item(domain.PriorityNormal, "b"))
	require.NoError(t, err)

	require.NoError(t, q.ProcessPending(context.Background()))

	// Two items, one inter-item pause.
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, sleeps)
}

func TestSubmit_AssignsIDAndPolicy(t *testing.T) {
	analyzer := &scriptedAnalyzer{}
	q := newTestQueue(analyzer, 0, nil)

	out, err := q.Submit(context.Background(), item(domain.PriorityLow, "img"))
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", out.ID.String())
	assert.Equal(t, 3, out.MaxAttempts)
	assert.False(t, out.CreatedAt.IsZero())
}

func TestCustomTransientClassifier(t *testing.T) {
	timeout := driveriderrors.New("analysis timed out")
	analyzer := &scriptedAnalyzer{script: []error{timeout, nil}}
	q := New(NewMemoryStore(), analyzer, logger.NewNop(), RetryPolicy{
		MaxAttempts: 1,
		IsTransient: func(err error) bool { return driveriderrors.Is(err, timeout) },
	})
	q.WithClock(time.Now, func(time.Duration) {})

	out, err := q.Submit(context.Background(), item(domain.PriorityNormal, "img"))
	require.NoError(t, err)

	// With MaxAttempts 1 a hard failure would fail the item outright, but
	// the custom classifier treats the timeout as transient.
	assert.Equal(t, domain.QueueStatusQueued, out.Status)
	assert.Equal(t, 0, out.Attempts)

	require.NoError(t, q.ProcessPending(context.Background()))
	stored, err := q.store.Get(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusCompleted, stored.Status)
}
