// Package ledger records balanced debit/credit entries for split settlement
// and answers balance queries over them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msantanna/splitledger/internal/domain"
	"github.com/msantanna/splitledger/internal/logging"
)

type entryStore interface {
	Create(ctx context.Context, entry *domain.LedgerEntry) error
	SumDebit(ctx context.Context, contractID uuid.UUID, from, to *time.Time) (decimal.Decimal, error)
	SumCredit(ctx context.Context, contractID uuid.UUID, from, to *time.Time) (decimal.Decimal, error)
	SumDebitByCompany(ctx context.Context, companyRef string, from, to *time.Time) (decimal.Decimal, error)
	SumCreditByCompany(ctx context.Context, companyRef string, from, to *time.Time) (decimal.Decimal, error)
}

type Recorder struct {
	entries  entryStore
	currency string
}

func NewRecorder(entries entryStore, currency string) *Recorder {
	return &Recorder{entries: entries, currency: currency}
}

// RecordEntry appends one balanced entry. Amounts are rounded to cents with
// banker's rounding here and nowhere earlier, so calculation keeps full
// precision and cumulative drift stays within one cent per entry.
func (r *Recorder) RecordEntry(ctx context.Context, paymentID, contractID uuid.UUID, ruleID *uuid.UUID, debit, credit decimal.Decimal, note string) error {
	entry := &domain.LedgerEntry{
		ID:          uuid.New(),
		PaymentID:   paymentID,
		ContractID:  contractID,
		SplitRuleID: ruleID,
		Debit:       debit.RoundBank(2),
		Credit:      credit.RoundBank(2),
		Currency:    r.currency,
		CreatedAt:   time.Now().UTC(),
	}
	if note != "" {
		entry.Note = &note
	}

	if err := r.entries.Create(ctx, entry); err != nil {
		return fmt.Errorf("RecordEntry: %w", err)
	}
	return nil
}

// RecordSplitEntry writes the single entry a completed execution produces:
// debit on the paying contract, matching credit for the beneficiary. A
// re-delivered write for the same (payment, rule) is silently dropped.
func (r *Recorder) RecordSplitEntry(ctx context.Context, p *domain.Payment, rule *domain.SplitRule, value decimal.Decimal) error {
	note := fmt.Sprintf("split to %s", rule.BeneficiaryRef)
	err := r.RecordEntry(ctx, p.ID, p.ContractID, &rule.ID, value, value, note)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEntry) {
			logging.FromContext(ctx).Info("ledger entry already recorded",
				"payment_id", p.ID,
				"split_rule_id", rule.ID,
			)
			return nil
		}
		return fmt.Errorf("RecordSplitEntry: %w", err)
	}
	return nil
}

// RecordPaymentIntake writes the one entry recognizing the payment itself.
// At most one exists per payment; re-delivery is dropped like split entries.
func (r *Recorder) RecordPaymentIntake(ctx context.Context, p *domain.Payment) error {
	err := r.RecordEntry(ctx, p.ID, p.ContractID, nil, p.Amount, p.Amount, "payment received")
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEntry) {
			return nil
		}
		return fmt.Errorf("RecordPaymentIntake: %w", err)
	}
	return nil
}

// Balance is credits minus debits for a contract up to asOf (inclusive); nil
// asOf means all entries.
func (r *Recorder) Balance(ctx context.Context, contractID uuid.UUID, asOf *time.Time) (decimal.Decimal, error) {
	credit, err := r.entries.SumCredit(ctx, contractID, nil, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}
	debit, err := r.entries.SumDebit(ctx, contractID, nil, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}
	return credit.Sub(debit), nil
}

// CompanyBalance is credits minus debits across every contract of one
// company, up to asOf (inclusive); nil asOf means all entries.
func (r *Recorder) CompanyBalance(ctx context.Context, companyRef string, asOf *time.Time) (decimal.Decimal, error) {
	credit, err := r.entries.SumCreditByCompany(ctx, companyRef, nil, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("CompanyBalance: %w", err)
	}
	debit, err := r.entries.SumDebitByCompany(ctx, companyRef, nil, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("CompanyBalance: %w", err)
	}
	return credit.Sub(debit), nil
}

func (r *Recorder) CompanyTotalDebit(ctx context.Context, companyRef string, from, to *time.Time) (decimal.Decimal, error) {
	sum, err := r.entries.SumDebitByCompany(ctx, companyRef, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("CompanyTotalDebit: %w", err)
	}
	return sum, nil
}

func (r *Recorder) CompanyTotalCredit(ctx context.Context, companyRef string, from, to *time.Time) (decimal.Decimal, error) {
	sum, err := r.entries.SumCreditByCompany(ctx, companyRef, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("CompanyTotalCredit: %w", err)
	}
	return sum, nil
}

func (r *Recorder) TotalDebit(ctx context.Context, contractID uuid.UUID, from, to *time.Time) (decimal.Decimal, error) {
	sum, err := r.entries.SumDebit(ctx, contractID, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("TotalDebit: %w", err)
	}
	return sum, nil
}

func (r *Recorder) TotalCredit(ctx context.Context, contractID uuid.UUID, from, to *time.Time) (decimal.Decimal, error) {
	sum, err := r.entries.SumCredit(ctx, contractID, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("TotalCredit: %w", err)
	}
	return sum, nil
}
