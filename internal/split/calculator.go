// Package split holds the pure rule-set math: per-rule amount calculation
// and rule-set validation. Nothing here touches a store or a clock.
package split

import (
	"github.com/shopspring/decimal"

	"github.com/msantanna/splitledger/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Amount computes what one rule owes its beneficiary out of totalAmount.
// No rounding happens here; amounts are rounded to cents with banker's
// rounding only when a ledger entry is written.
func Amount(rule domain.SplitRule, totalAmount decimal.Decimal) decimal.Decimal {
	return totalAmount.Mul(rule.Percentage).Div(hundred).Add(rule.FixedFee)
}

// TotalValue sums Amount over all rules. Callers compare it against the
// payment total to reject over-allocation before any execution starts.
func TotalValue(totalAmount decimal.Decimal, rules []domain.SplitRule) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rules {
		total = total.Add(Amount(r, totalAmount))
	}
	return total
}
