package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/msantanna/splitledger/internal/domain"
)

// Summary reports the current split state of a payment. Rules with no
// execution record count as pending, so executed + pending + failed always
// equals the rule count.
func (e *Engine) Summary(ctx context.Context, paymentID uuid.UUID) (*domain.SplitSummary, error) {
	p, err := e.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	rules, err := e.rules.ListByContract(ctx, p.ContractID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	execs, err := e.execs.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	s := domain.BuildSplitSummary(p, rules, execs)
	return &s, nil
}
