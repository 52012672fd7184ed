package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msantanna/splitledger/internal/domain"
)

type fakeEventStore struct {
	mu        sync.Mutex
	pending   []domain.PaymentEvent
	processed []uuid.UUID
	failed    []uuid.UUID
	claimErr  error
}

func (f *fakeEventStore) ClaimPending(_ context.Context, limit int) ([]domain.PaymentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	claimed := f.pending[:limit]
	f.pending = f.pending[limit:]
	return claimed, nil
}

func (f *fakeEventStore) MarkProcessed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeEventStore) MarkFailed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeEventStore) processedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

type fakeSplitEngine struct {
	calls   []uuid.UUID
	failFor map[uuid.UUID]error
}

func (f *fakeSplitEngine) ProcessPaymentSplit(_ context.Context, paymentID uuid.UUID) ([]domain.SplitExecution, error) {
	f.calls = append(f.calls, paymentID)
	if err, ok := f.failFor[paymentID]; ok {
		return nil, err
	}
	return []domain.SplitExecution{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingEvent(paymentID uuid.UUID) domain.PaymentEvent {
	now := time.Now().UTC()
	return domain.PaymentEvent{
		ID:        uuid.New(),
		PaymentID: paymentID,
		EventType: domain.PaymentEventTypeCompleted,
		Status:    domain.PaymentEventStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPoll_ProcessesClaimedEvents(t *testing.T) {
	paymentA, paymentB := uuid.New(), uuid.New()
	eventA, eventB := pendingEvent(paymentA), pendingEvent(paymentB)

	store := &fakeEventStore{pending: []domain.PaymentEvent{eventA, eventB}}
	engine := &fakeSplitEngine{failFor: map[uuid.UUID]error{}}
	c := New(store, engine, discardLogger(), time.Second, 10)

	c.poll(context.Background())

	assert.Equal(t, []uuid.UUID{paymentA, paymentB}, engine.calls)
	assert.ElementsMatch(t, []uuid.UUID{eventA.ID, eventB.ID}, store.processed)
	assert.Empty(t, store.failed)
	assert.Empty(t, store.pending)
}

func TestPoll_EngineErrorMarksEventFailed(t *testing.T) {
	paymentA, paymentB := uuid.New(), uuid.New()
	eventA, eventB := pendingEvent(paymentA), pendingEvent(paymentB)

	store := &fakeEventStore{pending: []domain.PaymentEvent{eventA, eventB}}
	engine := &fakeSplitEngine{failFor: map[uuid.UUID]error{
		paymentA: domain.ErrNoSplitRules,
	}}
	c := New(store, engine, discardLogger(), time.Second, 10)

	c.poll(context.Background())

	// One bad event must not stall the batch.
	assert.Equal(t, []uuid.UUID{eventA.ID}, store.failed)
	assert.Equal(t, []uuid.UUID{eventB.ID}, store.processed)
}

func TestPoll_RespectsBatchSize(t *testing.T) {
	store := &fakeEventStore{}
	for range 5 {
		store.pending = append(store.pending, pendingEvent(uuid.New()))
	}
	engine := &fakeSplitEngine{failFor: map[uuid.UUID]error{}}
	c := New(store, engine, discardLogger(), time.Second, 2)

	c.poll(context.Background())
	assert.Len(t, engine.calls, 2)
	assert.Len(t, store.pending, 3)

	c.poll(context.Background())
	assert.Len(t, engine.calls, 4)
}

func TestPoll_ClaimErrorSkipsCycle(t *testing.T) {
	store := &fakeEventStore{claimErr: errors.New("connection reset")}
	engine := &fakeSplitEngine{failFor: map[uuid.UUID]error{}}
	c := New(store, engine, discardLogger(), time.Second, 10)

	c.poll(context.Background())
	assert.Empty(t, engine.calls)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	store := &fakeEventStore{pending: []domain.PaymentEvent{pendingEvent(uuid.New())}}
	engine := &fakeSplitEngine{failFor: map[uuid.UUID]error{}}
	c := New(store, engine, discardLogger(), 5*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return store.processedCount() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}
