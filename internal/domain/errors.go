package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrPaymentNotCompleted   = errors.New("payment is not in completed status")
	ErrNoSplitRules          = errors.New("contract has no split rules")
	ErrPercentageOutOfRange  = errors.New("percentage must be between 0 and 100")
	ErrNegativeFee           = errors.New("fixed fee must not be negative")
	ErrDuplicatePriority     = errors.New("two rules share the same priority")
	ErrPercentageSumExceeded = errors.New("rule percentages sum to more than 100")
	ErrOverAllocation        = errors.New("split total exceeds payment amount")
	ErrDuplicateExecution    = errors.New("execution already exists for payment and rule")
	ErrDuplicateEntry        = errors.New("duplicate ledger entry")
	ErrRuleInUse             = errors.New("split rule is referenced by executions")
)

// IntegrityError reports a reconciliation mismatch between the ledger and the
// execution records of one payment. It is never corrected automatically.
type IntegrityError struct {
	PaymentID     uuid.UUID
	LedgerCredits decimal.Decimal
	ExecutedTotal decimal.Decimal
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger/execution mismatch for payment %s: ledger credits %s, executed total %s",
		e.PaymentID, e.LedgerCredits, e.ExecutedTotal)
}
