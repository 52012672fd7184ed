package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SplitExecutionStatus string

const (
	SplitExecutionStatusPending   SplitExecutionStatus = "pending"
	SplitExecutionStatusCompleted SplitExecutionStatus = "completed"
	SplitExecutionStatusFailed    SplitExecutionStatus = "failed"
)

// SplitExecution records one attempt to carry out a rule against a payment.
// Exactly one exists per (payment, rule) pair; only its status, external
// reference and failure reason ever change.
type SplitExecution struct {
	ID            uuid.UUID
	PaymentID     uuid.UUID
	SplitRuleID   uuid.UUID
	Value         decimal.Decimal
	Status        SplitExecutionStatus
	ExternalRef   *string
	FailureReason *string
	ExecutedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SplitSummary aggregates the execution state of a single payment.
// ExecutedRules + PendingRules + FailedRules always equals TotalRules;
// rules without an execution record count as pending.
type SplitSummary struct {
	PaymentID       uuid.UUID
	TotalAmount     decimal.Decimal
	ExecutedAmount  decimal.Decimal
	RemainingAmount decimal.Decimal
	TotalRules      int
	ExecutedRules   int
	PendingRules    int
	FailedRules     int
}

// BuildSplitSummary folds a payment's rules and executions into a summary.
// Executed values are rounded to cents the same way the ledger records them
// so the two views stay comparable.
//
// Coverage is the union of the live rules and the rules referenced by
// executions: executions outlive a rule's soft-delete, and the money they
// moved must keep counting. Live rules without an execution count as pending.
func BuildSplitSummary(p *Payment, rules []SplitRule, execs []SplitExecution) SplitSummary {
	byRule := make(map[uuid.UUID]SplitExecution, len(execs))
	for _, e := range execs {
		byRule[e.SplitRuleID] = e
	}

	s := SplitSummary{
		PaymentID:   p.ID,
		TotalAmount: p.Amount,
	}

	counted := make(map[uuid.UUID]bool, len(rules))
	for _, rule := range rules {
		counted[rule.ID] = true
		exec, ok := byRule[rule.ID]
		if !ok {
			s.PendingRules++
			continue
		}
		s.tally(exec)
	}

	for _, e := range execs {
		if counted[e.SplitRuleID] {
			continue
		}
		counted[e.SplitRuleID] = true
		s.tally(e)
	}

	s.TotalRules = len(counted)
	s.RemainingAmount = s.TotalAmount.Sub(s.ExecutedAmount)
	return s
}

func (s *SplitSummary) tally(exec SplitExecution) {
	switch exec.Status {
	case SplitExecutionStatusCompleted:
		s.ExecutedRules++
		s.ExecutedAmount = s.ExecutedAmount.Add(exec.Value.RoundBank(2))
	case SplitExecutionStatusFailed:
		s.FailedRules++
	default:
		s.PendingRules++
	}
}
