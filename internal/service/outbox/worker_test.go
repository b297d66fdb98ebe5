package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/resale/internal/clock"
	"github.com/vladislavdragonenkov/resale/internal/domain"
	"github.com/vladislavdragonenkov/resale/internal/storage/memory"
)

func enqueue(t *testing.T, repo domain.OutboxRepository, aggregateID, eventType string) domain.OutboxMessage {
	t.Helper()
	msg, err := repo.Enqueue(context.Background(), domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       []byte(`{"order_id":"` + aggregateID + `"}`),
	})
	require.NoError(t, err)
	return msg
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	t.Parallel()

	repo := memory.NewStore().Repositories().Outbox
	enqueue(t, repo, "order-1", domain.EventOrderCreated)
	enqueue(t, repo, "order-1", domain.EventOrderPaid)
	publisher := &stubPublisher{}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))

	res := worker.ProcessOnce(context.Background())
	assert.Equal(t, Result{Sent: 2}, res)
	assert.Equal(t, []string{domain.EventOrderCreated, domain.EventOrderPaid}, publisher.eventTypes())

	pending, err := repo.PullPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, Result{}, worker.ProcessOnce(context.Background()))
}

func TestWorker_ProcessOnce_MarkFailedAndDLQAfterRetries(t *testing.T) {
	t.Parallel()

	repo := memory.NewStore().Repositories().Outbox
	msg := enqueue(t, repo, "order-2", domain.EventOrderExpired)
	publisher := &stubPublisher{err: errors.New("broker unavailable")}
	dlq := &stubPublisher{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	worker := NewWorker(repo, publisher,
		WithDLQPublisher(dlq),
		WithClock(clock.NewManual(at)),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)

	res := worker.ProcessOnce(context.Background())
	assert.Equal(t, Result{Failed: 1}, res)
	assert.Equal(t, 3, publisher.calls())
	require.Equal(t, 1, dlq.calls())

	var dead DeadLetter
	require.NoError(t, json.Unmarshal(dlq.published[0].Payload, &dead))
	assert.Equal(t, msg.ID, dead.OutboxID)
	assert.Equal(t, domain.EventOrderExpired, dead.EventType)
	assert.JSONEq(t, `{"order_id":"order-2"}`, string(dead.Payload))
	assert.Contains(t, dead.PublishError, "broker unavailable")
	assert.True(t, dead.PublishedAt.Equal(at))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	repo := memory.NewStore().Repositories().Outbox
	enqueue(t, repo, "order-3", domain.EventOrderPaid)
	publisher := &stubPublisher{
		sequenceErrors: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil},
	}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))

	assert.Equal(t, Result{Sent: 1}, worker.ProcessOnce(context.Background()))
	assert.Equal(t, 3, publisher.calls())
}

func TestWorker_RetryBackoff(t *testing.T) {
	t.Parallel()

	worker := NewWorker(nil, nil, WithRetryBaseDelay(10*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, worker.retryBackoff(1))
	assert.Equal(t, 20*time.Millisecond, worker.retryBackoff(2))
	assert.Equal(t, 40*time.Millisecond, worker.retryBackoff(3))
	assert.Equal(t, time.Duration(1<<63-1), worker.retryBackoff(80))

	assert.Zero(t, NewWorker(nil, nil, WithRetryBaseDelay(0)).retryBackoff(3))
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := memory.NewStore().Repositories().Outbox
	worker := NewWorker(repo, &stubPublisher{}, WithPollInterval(5*time.Millisecond), WithRetryBaseDelay(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	callCount      int
	published      []domain.OutboxMessage
}

func (s *stubPublisher) Publish(event domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	err := s.err
	if len(s.sequenceErrors) > 0 {
		err = s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
	}
	if err == nil {
		s.published = append(s.published, event)
	}
	return err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubPublisher) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.published))
	for _, e := range s.published {
		types = append(types, e.EventType)
	}
	return types
}

var _ domain.OutboxPublisher = (*stubPublisher)(nil)
