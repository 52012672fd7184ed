package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitRule directs a share of a contract's payments to one beneficiary.
// Percentage and FixedFee combine: amount = total × percentage/100 + fixedFee.
// Rules are soft-deleted; DeletedAt set means the rule is invisible to the
// engine but stays referenced by historical executions.
type SplitRule struct {
	ID             uuid.UUID
	ContractID     uuid.UUID
	BeneficiaryRef string
	Percentage     decimal.Decimal
	FixedFee       decimal.Decimal
	Priority       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

func (r *SplitRule) Deleted() bool {
	return r.DeletedAt != nil
}
