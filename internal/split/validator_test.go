package split

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/msantanna/splitledger/internal/domain"
)

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name    string
		rules   []domain.SplitRule
		wantErr error
	}{
		{
			name:  "valid set under 100",
			rules: []domain.SplitRule{rule("60", "0", 1), rule("30", "0", 2), rule("0", "50.00", 3)},
		},
		{
			name:  "exactly 100 is allowed",
			rules: []domain.SplitRule{rule("60", "0", 1), rule("40", "0", 2)},
		},
		{
			name:    "sum just over 100",
			rules:   []domain.SplitRule{rule("60", "0", 1), rule("40.01", "0", 2)},
			wantErr: domain.ErrPercentageSumExceeded,
		},
		{
			name:    "negative percentage",
			rules:   []domain.SplitRule{rule("-1", "0", 1)},
			wantErr: domain.ErrPercentageOutOfRange,
		},
		{
			name:    "percentage above 100 on a single rule",
			rules:   []domain.SplitRule{rule("100.5", "0", 1)},
			wantErr: domain.ErrPercentageOutOfRange,
		},
		{
			name:    "negative fixed fee",
			rules:   []domain.SplitRule{rule("10", "-0.01", 1)},
			wantErr: domain.ErrNegativeFee,
		},
		{
			name:    "duplicate priority",
			rules:   []domain.SplitRule{rule("10", "0", 1), rule("20", "0", 1)},
			wantErr: domain.ErrDuplicatePriority,
		},
		{
			name:  "fees do not count toward the percentage cap",
			rules: []domain.SplitRule{rule("100", "500.00", 1)},
		},
		{
			name:  "empty set",
			rules: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRules(tc.rules)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
