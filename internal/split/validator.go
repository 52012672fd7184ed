package split

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msantanna/splitledger/internal/domain"
)

// ValidateRules checks that a contract's rule set is well-formed: every
// percentage in [0,100], no negative fees, percentages summing to at most
// 100 (exact bound, fixed fees excluded from the cap), and no two rules
// sharing a priority. Deleted rules must be filtered out before calling.
func ValidateRules(rules []domain.SplitRule) error {
	sum := decimal.Zero
	seen := make(map[int]uuid.UUID, len(rules))

	for _, r := range rules {
		if r.Percentage.IsNegative() || r.Percentage.GreaterThan(hundred) {
			return fmt.Errorf("ValidateRules: rule %s: %w", r.ID, domain.ErrPercentageOutOfRange)
		}
		if r.FixedFee.IsNegative() {
			return fmt.Errorf("ValidateRules: rule %s: %w", r.ID, domain.ErrNegativeFee)
		}
		if other, ok := seen[r.Priority]; ok {
			return fmt.Errorf("ValidateRules: rules %s and %s both have priority %d: %w",
				other, r.ID, r.Priority, domain.ErrDuplicatePriority)
		}
		seen[r.Priority] = r.ID
		sum = sum.Add(r.Percentage)
	}

	if sum.GreaterThan(hundred) {
		return fmt.Errorf("ValidateRules: percentages sum to %s: %w", sum, domain.ErrPercentageSumExceeded)
	}

	return nil
}
