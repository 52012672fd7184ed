package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msantanna/splitledger/internal/domain"
	"github.com/msantanna/splitledger/internal/logging"
	"github.com/msantanna/splitledger/internal/metrics"
	"github.com/msantanna/splitledger/internal/split"
)

// ProcessPaymentSplit runs the full split for one completed payment: rule-set
// validation, over-allocation check, then per-rule execution in ascending
// priority order. Each rule gets a Pending execution persisted before its
// transfer is attempted, so a crash leaves an auditable record instead of
// lost work.
//
// Provider failures and timeouts become Failed executions and the run
// continues; validation errors abort before any execution exists; store
// errors abort immediately, leaving unattempted rules absent so a later run
// picks them up.
func (e *Engine) ProcessPaymentSplit(ctx context.Context, paymentID uuid.UUID) ([]domain.SplitExecution, error) {
	unlock := e.lockPayment(paymentID)
	defer unlock()

	log := logging.FromContext(ctx)

	p, err := e.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("ProcessPaymentSplit: %w", err)
	}
	if p.Status != domain.PaymentStatusCompleted {
		return nil, fmt.Errorf("ProcessPaymentSplit: payment %s is %s: %w", p.ID, p.Status, domain.ErrPaymentNotCompleted)
	}

	rules, err := e.rules.ListByContract(ctx, p.ContractID)
	if err != nil {
		return nil, fmt.Errorf("ProcessPaymentSplit: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("ProcessPaymentSplit: contract %s: %w", p.ContractID, domain.ErrNoSplitRules)
	}

	if err := split.ValidateRules(rules); err != nil {
		return nil, fmt.Errorf("ProcessPaymentSplit: %w", err)
	}

	if total := split.TotalValue(p.Amount, rules); total.GreaterThan(p.Amount) {
		return nil, fmt.Errorf("ProcessPaymentSplit: rules allocate %s of %s: %w",
			total, p.Amount, domain.ErrOverAllocation)
	}

	existing, err := e.execs.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("ProcessPaymentSplit: %w", err)
	}
	byRule := make(map[uuid.UUID]*domain.SplitExecution, len(existing))
	for i := range existing {
		byRule[existing[i].SplitRuleID] = &existing[i]
	}

	if allCompleted(rules, byRule) {
		log.Info("payment already fully split, returning existing executions", "payment_id", p.ID)
		metrics.ReplayedRuns.Inc()
		return existing, nil
	}

	if err := e.ledger.RecordPaymentIntake(ctx, p); err != nil {
		return nil, fmt.Errorf("ProcessPaymentSplit: %w", err)
	}

	executions := make([]domain.SplitExecution, 0, len(rules))
	for _, rule := range rules {
		exec := byRule[rule.ID]

		switch {
		case exec != nil && exec.Status == domain.SplitExecutionStatusCompleted:
			// Already settled on an earlier run; never re-transfer.
			executions = append(executions, *exec)
			continue
		case exec != nil && exec.Status == domain.SplitExecutionStatusFailed:
			// Retry is explicit via RetrySplitExecution, not part of a run.
			executions = append(executions, *exec)
			continue
		case exec == nil:
			exec, err = e.createPendingExecution(ctx, p, rule)
			if err != nil {
				if errors.Is(err, domain.ErrDuplicateExecution) {
					// Another worker claimed this rule mid-run; leave it alone.
					log.Warn("execution claimed concurrently", "payment_id", p.ID, "split_rule_id", rule.ID)
					continue
				}
				return nil, fmt.Errorf("ProcessPaymentSplit: %w", err)
			}
		}

		// exec is Pending here: freshly created, or left over from a crash.
		if err := e.settle(ctx, p, &rule, exec); err != nil {
			return nil, fmt.Errorf("ProcessPaymentSplit: %w", err)
		}
		executions = append(executions, *exec)
	}

	log.Info("payment split processed",
		"payment_id", p.ID,
		"contract_id", p.ContractID,
		"rules", len(rules),
		"executions", len(executions),
	)

	return executions, nil
}

// ExecuteSplitRule settles a single rule against a payment. If a Completed
// execution already exists it is returned as-is without contacting the
// provider.
func (e *Engine) ExecuteSplitRule(ctx context.Context, p *domain.Payment, rule *domain.SplitRule) (*domain.SplitExecution, error) {
	unlock := e.lockPayment(p.ID)
	defer unlock()

	exec, err := e.execs.GetByPaymentAndRule(ctx, p.ID, rule.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("ExecuteSplitRule: %w", err)
	}

	if exec != nil && exec.Status == domain.SplitExecutionStatusCompleted {
		return exec, nil
	}

	if exec == nil {
		exec, err = e.createPendingExecution(ctx, p, *rule)
		if err != nil {
			return nil, fmt.Errorf("ExecuteSplitRule: %w", err)
		}
	}

	if err := e.settle(ctx, p, rule, exec); err != nil {
		return nil, fmt.Errorf("ExecuteSplitRule: %w", err)
	}
	return exec, nil
}

func (e *Engine) createPendingExecution(ctx context.Context, p *domain.Payment, rule domain.SplitRule) (*domain.SplitExecution, error) {
	now := time.Now().UTC()
	exec := &domain.SplitExecution{
		ID:          uuid.New(),
		PaymentID:   p.ID,
		SplitRuleID: rule.ID,
		Value:       split.Amount(rule, p.Amount),
		Status:      domain.SplitExecutionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.execs.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("createPendingExecution: %w", err)
	}
	return exec, nil
}

// settle attempts the transfer for a Pending execution and records the
// outcome. A provider error marks the execution Failed and returns nil; only
// store failures come back as errors, because proceeding without a durable
// record risks a double transfer on the next run.
func (e *Engine) settle(ctx context.Context, p *domain.Payment, rule *domain.SplitRule, exec *domain.SplitExecution) error {
	log := logging.FromContext(ctx)
	now := time.Now().UTC()

	result, transferErr := e.transfer(ctx, rule.BeneficiaryRef, exec.Value)
	if transferErr != nil {
		reason := transferErr.Error()
		if errors.Is(transferErr, context.DeadlineExceeded) {
			reason = "transfer timed out"
		}

		if err := e.execs.MarkFailed(ctx, exec.ID, reason, now); err != nil {
			return fmt.Errorf("settle: mark failed: %w", err)
		}
		exec.Status = domain.SplitExecutionStatusFailed
		exec.FailureReason = &reason
		exec.ExecutedAt = &now

		log.Warn("split transfer failed",
			"payment_id", p.ID,
			"split_rule_id", rule.ID,
			"beneficiary", rule.BeneficiaryRef,
			"reason", reason,
		)
		metrics.SplitExecutions.WithLabelValues("failed").Inc()
		return nil
	}

	var ref *string
	if result.ExternalRef != "" {
		ref = &result.ExternalRef
	}

	if err := e.execs.MarkCompleted(ctx, exec.ID, ref, now); err != nil {
		return fmt.Errorf("settle: mark completed: %w", err)
	}
	exec.Status = domain.SplitExecutionStatusCompleted
	exec.ExternalRef = ref
	exec.FailureReason = nil
	exec.ExecutedAt = &now

	if err := e.ledger.RecordSplitEntry(ctx, p, rule, exec.Value); err != nil {
		return fmt.Errorf("settle: %w", err)
	}

	log.Info("split transfer completed",
		"payment_id", p.ID,
		"split_rule_id", rule.ID,
		"beneficiary", rule.BeneficiaryRef,
		"value", exec.Value,
	)
	metrics.SplitExecutions.WithLabelValues("completed").Inc()
	return nil
}

func (e *Engine) transfer(ctx context.Context, beneficiaryRef string, amount decimal.Decimal) (*TransferResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.transferTimeout)
	defer cancel()

	result, err := e.provider.Transfer(ctx, beneficiaryRef, amount)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transfer: %w", context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("transfer: %w", err)
	}
	return result, nil
}

func allCompleted(rules []domain.SplitRule, byRule map[uuid.UUID]*domain.SplitExecution) bool {
	for _, rule := range rules {
		exec, ok := byRule[rule.ID]
		if !ok || exec.Status != domain.SplitExecutionStatusCompleted {
			return false
		}
	}
	return true
}
