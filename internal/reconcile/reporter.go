// Package reconcile is a read model over executions and ledger entries. It
// confirms that what the engine says it executed and what the ledger says it
// recorded agree, and surfaces any disagreement instead of correcting it.
package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msantanna/splitledger/internal/domain"
	"github.com/msantanna/splitledger/internal/metrics"
)

type paymentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

type ruleStore interface {
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]domain.SplitRule, error)
}

type executionStore interface {
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.SplitExecution, error)
}

type entryStore interface {
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.LedgerEntry, error)
}

// Report is the reconciliation view of one payment: the execution summary
// plus the ledger totals it was checked against.
type Report struct {
	Summary       domain.SplitSummary
	LedgerDebits  decimal.Decimal
	LedgerCredits decimal.Decimal
	// SplitCredits excludes the payment intake entry; it must equal the sum
	// of completed execution values.
	SplitCredits decimal.Decimal
	Balanced     bool
}

type Reporter struct {
	payments paymentStore
	rules    ruleStore
	execs    executionStore
	entries  entryStore
}

func NewReporter(payments paymentStore, rules ruleStore, execs executionStore, entries entryStore) *Reporter {
	return &Reporter{payments: payments, rules: rules, execs: execs, entries: entries}
}

// ReportForPayment builds the reconciliation report and cross-checks it.
// A mismatch between split-entry credits and completed execution totals
// returns the report together with a *domain.IntegrityError.
func (r *Reporter) ReportForPayment(ctx context.Context, paymentID uuid.UUID) (*Report, error) {
	p, err := r.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("ReportForPayment: %w", err)
	}

	rules, err := r.rules.ListByContract(ctx, p.ContractID)
	if err != nil {
		return nil, fmt.Errorf("ReportForPayment: %w", err)
	}

	execs, err := r.execs.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("ReportForPayment: %w", err)
	}

	entries, err := r.entries.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("ReportForPayment: %w", err)
	}

	report := &Report{Summary: domain.BuildSplitSummary(p, rules, execs)}

	for _, e := range entries {
		report.LedgerDebits = report.LedgerDebits.Add(e.Debit)
		report.LedgerCredits = report.LedgerCredits.Add(e.Credit)
		if e.SplitRuleID != nil {
			report.SplitCredits = report.SplitCredits.Add(e.Credit)
		}
	}
	report.Balanced = report.LedgerCredits.Sub(report.LedgerDebits).IsZero()

	if !report.SplitCredits.Equal(report.Summary.ExecutedAmount) {
		metrics.IntegrityFailures.Inc()
		return report, &domain.IntegrityError{
			PaymentID:     paymentID,
			LedgerCredits: report.SplitCredits,
			ExecutedTotal: report.Summary.ExecutedAmount,
		}
	}
	if !report.Balanced {
		metrics.IntegrityFailures.Inc()
		return report, &domain.IntegrityError{
			PaymentID:     paymentID,
			LedgerCredits: report.LedgerCredits,
			ExecutedTotal: report.LedgerDebits,
		}
	}

	return report, nil
}
