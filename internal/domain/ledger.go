package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is one append-only double-entry row: the debit side charges the
// paying contract, the credit side recognizes the beneficiary. Both sides
// carry the same amount so any set of entries nets to zero per payment.
// SplitRuleID is nil for the single intake entry written when the payment
// itself is recognized.
type LedgerEntry struct {
	ID          uuid.UUID
	PaymentID   uuid.UUID
	ContractID  uuid.UUID
	SplitRuleID *uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Currency    string
	Note        *string
	CreatedAt   time.Time
}
