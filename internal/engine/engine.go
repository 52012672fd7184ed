// Package engine orchestrates split settlement: for each completed payment it
// validates the contract's rule set, executes the rules in priority order
// through the external transfer provider, and records the outcome in the
// execution store and the ledger.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msantanna/splitledger/internal/domain"
)

type paymentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

type ruleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SplitRule, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]domain.SplitRule, error)
}

type executionStore interface {
	Create(ctx context.Context, exec *domain.SplitExecution) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SplitExecution, error)
	GetByPaymentAndRule(ctx context.Context, paymentID, ruleID uuid.UUID) (*domain.SplitExecution, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.SplitExecution, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, externalRef *string, executedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, executedAt time.Time) error
	MarkPending(ctx context.Context, id uuid.UUID) error
}

type recorder interface {
	RecordSplitEntry(ctx context.Context, p *domain.Payment, rule *domain.SplitRule, value decimal.Decimal) error
	RecordPaymentIntake(ctx context.Context, p *domain.Payment) error
}

// TransferResult is what the external rail reports back for a successful
// transfer. ExternalRef may be empty when the provider issues no reference.
type TransferResult struct {
	ExternalRef string
}

// TransferProvider moves money to a beneficiary. Implementations may block;
// the engine bounds every call with its configured timeout and treats a
// deadline exactly like a provider rejection.
type TransferProvider interface {
	Transfer(ctx context.Context, beneficiaryRef string, amount decimal.Decimal) (*TransferResult, error)
}

type Engine struct {
	payments paymentStore
	rules    ruleStore
	execs    executionStore
	ledger   recorder
	provider TransferProvider

	transferTimeout time.Duration

	// Serializes runs per payment within this process. Cross-process overlap
	// is caught by the unique (payment_id, split_rule_id) execution claim.
	mu    sync.Mutex
	locks map[uuid.UUID]*paymentLock
}

type paymentLock struct {
	mu   sync.Mutex
	refs int
}

func NewEngine(
	payments paymentStore,
	rules ruleStore,
	execs executionStore,
	ledger recorder,
	provider TransferProvider,
	transferTimeout time.Duration,
) *Engine {
	return &Engine{
		payments:        payments,
		rules:           rules,
		execs:           execs,
		ledger:          ledger,
		provider:        provider,
		transferTimeout: transferTimeout,
		locks:           make(map[uuid.UUID]*paymentLock),
	}
}

// lockPayment acquires the per-payment lock and returns its release func.
// Entries are refcounted and removed when the last holder releases, so the
// map does not grow with payment history in a long-lived worker.
func (e *Engine) lockPayment(paymentID uuid.UUID) func() {
	e.mu.Lock()
	l, ok := e.locks[paymentID]
	if !ok {
		l = &paymentLock{}
		e.locks[paymentID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, paymentID)
		}
		e.mu.Unlock()
	}
}
