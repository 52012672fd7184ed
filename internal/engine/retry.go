package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/msantanna/splitledger/internal/domain"
	"github.com/msantanna/splitledger/internal/logging"
	"github.com/msantanna/splitledger/internal/metrics"
)

// RetrySplitExecution re-attempts one Failed execution: reset to Pending,
// transfer again, record the outcome. It returns true only when the retry
// ends Completed. Anything not currently Failed is a no-op returning false;
// in particular a Completed execution is terminal and the provider is never
// contacted for it.
func (e *Engine) RetrySplitExecution(ctx context.Context, executionID uuid.UUID) (bool, error) {
	exec, err := e.execs.GetByID(ctx, executionID)
	if err != nil {
		return false, fmt.Errorf("RetrySplitExecution: %w", err)
	}

	unlock := e.lockPayment(exec.PaymentID)
	defer unlock()

	// Re-read under the lock; a concurrent run may have settled it.
	exec, err = e.execs.GetByID(ctx, executionID)
	if err != nil {
		return false, fmt.Errorf("RetrySplitExecution: %w", err)
	}
	if exec.Status != domain.SplitExecutionStatusFailed {
		logging.FromContext(ctx).Info("retry skipped, execution not failed",
			"execution_id", exec.ID,
			"status", exec.Status,
		)
		return false, nil
	}

	p, err := e.payments.GetByID(ctx, exec.PaymentID)
	if err != nil {
		return false, fmt.Errorf("RetrySplitExecution: %w", err)
	}
	rule, err := e.rules.GetByID(ctx, exec.SplitRuleID)
	if err != nil {
		return false, fmt.Errorf("RetrySplitExecution: %w", err)
	}

	if err := e.execs.MarkPending(ctx, exec.ID); err != nil {
		return false, fmt.Errorf("RetrySplitExecution: %w", err)
	}
	exec.Status = domain.SplitExecutionStatusPending
	exec.FailureReason = nil

	metrics.Retries.Inc()

	if err := e.settle(ctx, p, rule, exec); err != nil {
		return false, fmt.Errorf("RetrySplitExecution: %w", err)
	}

	return exec.Status == domain.SplitExecutionStatusCompleted, nil
}
