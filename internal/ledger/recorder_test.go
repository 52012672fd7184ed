package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msantanna/splitledger/internal/domain"
)

type fakeEntryStore struct {
	entries []domain.LedgerEntry

	// contract id -> owning company, mirroring contracts.company_ref.
	companies map[uuid.UUID]string
}

func (f *fakeEntryStore) Create(_ context.Context, entry *domain.LedgerEntry) error {
	for _, e := range f.entries {
		if e.PaymentID != entry.PaymentID {
			continue
		}
		if e.SplitRuleID == nil && entry.SplitRuleID == nil {
			return domain.ErrDuplicateEntry
		}
		if e.SplitRuleID != nil && entry.SplitRuleID != nil && *e.SplitRuleID == *entry.SplitRuleID {
			return domain.ErrDuplicateEntry
		}
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeEntryStore) SumDebit(_ context.Context, contractID uuid.UUID, from, to *time.Time) (decimal.Decimal, error) {
	return f.sum(contractID, from, to, func(e domain.LedgerEntry) decimal.Decimal { return e.Debit }), nil
}

func (f *fakeEntryStore) SumCredit(_ context.Context, contractID uuid.UUID, from, to *time.Time) (decimal.Decimal, error) {
	return f.sum(contractID, from, to, func(e domain.LedgerEntry) decimal.Decimal { return e.Credit }), nil
}

func (f *fakeEntryStore) sum(contractID uuid.UUID, from, to *time.Time, pick func(domain.LedgerEntry) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, e := range f.entries {
		if e.ContractID != contractID {
			continue
		}
		if from != nil && e.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && e.CreatedAt.After(*to) {
			continue
		}
		total = total.Add(pick(e))
	}
	return total
}

func (f *fakeEntryStore) SumDebitByCompany(_ context.Context, companyRef string, from, to *time.Time) (decimal.Decimal, error) {
	return f.sumByCompany(companyRef, from, to, func(e domain.LedgerEntry) decimal.Decimal { return e.Debit }), nil
}

func (f *fakeEntryStore) SumCreditByCompany(_ context.Context, companyRef string, from, to *time.Time) (decimal.Decimal, error) {
	return f.sumByCompany(companyRef, from, to, func(e domain.LedgerEntry) decimal.Decimal { return e.Credit }), nil
}

func (f *fakeEntryStore) sumByCompany(companyRef string, from, to *time.Time, pick func(domain.LedgerEntry) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for contractID, company := range f.companies {
		if company != companyRef {
			continue
		}
		total = total.Add(f.sum(contractID, from, to, pick))
	}
	return total
}

func testPayment(amount string) *domain.Payment {
	now := time.Now().UTC()
	return &domain.Payment{
		ID:         uuid.New(),
		ContractID: uuid.New(),
		Amount:     decimal.RequireFromString(amount),
		Currency:   "BRL",
		Status:     domain.PaymentStatusCompleted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestRecordEntry_RoundsWithBankersRounding(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"half cent rounds to even down", "333.335", "333.34"},
		{"half cent rounds to even up", "333.325", "333.32"},
		{"third of a hundred", "33.333333", "33.33"},
		{"already exact", "600.00", "600.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeEntryStore{}
			r := NewRecorder(store, "BRL")
			p := testPayment("1000.00")
			ruleID := uuid.New()

			value := decimal.RequireFromString(tt.value)
			err := r.RecordEntry(context.Background(), p.ID, p.ContractID, &ruleID, value, value, "")
			require.NoError(t, err)

			require.Len(t, store.entries, 1)
			want := decimal.RequireFromString(tt.want)
			assert.True(t, store.entries[0].Debit.Equal(want), "debit = %s, want %s", store.entries[0].Debit, tt.want)
			assert.True(t, store.entries[0].Credit.Equal(want), "credit = %s, want %s", store.entries[0].Credit, tt.want)
		})
	}
}

func TestRecordSplitEntry_BalancedAndDeduplicated(t *testing.T) {
	store := &fakeEntryStore{}
	r := NewRecorder(store, "BRL")
	p := testPayment("1000.00")
	rule := &domain.SplitRule{
		ID:             uuid.New(),
		ContractID:     p.ContractID,
		BeneficiaryRef: "acct-income",
		Percentage:     decimal.RequireFromString("60"),
	}
	ctx := context.Background()

	value := decimal.RequireFromString("600")
	require.NoError(t, r.RecordSplitEntry(ctx, p, rule, value))

	// Re-delivery is absorbed, not duplicated and not an error.
	require.NoError(t, r.RecordSplitEntry(ctx, p, rule, value))
	require.Len(t, store.entries, 1)

	entry := store.entries[0]
	assert.True(t, entry.Debit.Equal(entry.Credit), "each entry must balance")
	require.NotNil(t, entry.SplitRuleID)
	assert.Equal(t, rule.ID, *entry.SplitRuleID)
	require.NotNil(t, entry.Note)
	assert.Equal(t, "split to acct-income", *entry.Note)
	assert.Equal(t, "BRL", entry.Currency)
}

func TestRecordPaymentIntake_OncePerPayment(t *testing.T) {
	store := &fakeEntryStore{}
	r := NewRecorder(store, "BRL")
	p := testPayment("1000.00")
	ctx := context.Background()

	require.NoError(t, r.RecordPaymentIntake(ctx, p))
	require.NoError(t, r.RecordPaymentIntake(ctx, p))

	require.Len(t, store.entries, 1)
	assert.Nil(t, store.entries[0].SplitRuleID)
	assert.True(t, store.entries[0].Debit.Equal(p.Amount))
	require.NotNil(t, store.entries[0].Note)
	assert.Equal(t, "payment received", *store.entries[0].Note)
}

func TestBalance_NetsToZeroPerContract(t *testing.T) {
	store := &fakeEntryStore{}
	r := NewRecorder(store, "BRL")
	p := testPayment("1000.00")
	ctx := context.Background()

	require.NoError(t, r.RecordPaymentIntake(ctx, p))
	for _, v := range []string{"600", "300", "50"} {
		ruleID := uuid.New()
		value := decimal.RequireFromString(v)
		require.NoError(t, r.RecordEntry(ctx, p.ID, p.ContractID, &ruleID, value, value, ""))
	}

	balance, err := r.Balance(ctx, p.ContractID, nil)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "balance = %s, want 0", balance)

	debit, err := r.TotalDebit(ctx, p.ContractID, nil, nil)
	require.NoError(t, err)
	credit, err := r.TotalCredit(ctx, p.ContractID, nil, nil)
	require.NoError(t, err)
	assert.True(t, debit.Equal(decimal.RequireFromString("1950")))
	assert.True(t, credit.Equal(debit))
}

func TestCompanyBalance_SpansContracts(t *testing.T) {
	store := &fakeEntryStore{}
	r := NewRecorder(store, "BRL")
	ctx := context.Background()

	// One company operating two contracts, plus an unrelated company.
	p1 := testPayment("1000.00")
	p2 := testPayment("500.00")
	other := testPayment("999.00")
	store.companies = map[uuid.UUID]string{
		p1.ContractID:    "acme-ltda",
		p2.ContractID:    "acme-ltda",
		other.ContractID: "globex",
	}

	require.NoError(t, r.RecordPaymentIntake(ctx, p1))
	require.NoError(t, r.RecordPaymentIntake(ctx, p2))
	require.NoError(t, r.RecordPaymentIntake(ctx, other))

	// An unbalanced credit-only entry makes the company balance visible.
	ruleID := uuid.New()
	require.NoError(t, r.RecordEntry(ctx, p2.ID, p2.ContractID, &ruleID,
		decimal.Zero, decimal.RequireFromString("150"), ""))

	debit, err := r.CompanyTotalDebit(ctx, "acme-ltda", nil, nil)
	require.NoError(t, err)
	assert.True(t, debit.Equal(decimal.RequireFromString("1500")), "debit = %s", debit)

	credit, err := r.CompanyTotalCredit(ctx, "acme-ltda", nil, nil)
	require.NoError(t, err)
	assert.True(t, credit.Equal(decimal.RequireFromString("1650")))

	balance, err := r.CompanyBalance(ctx, "acme-ltda", nil)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("150")), "balance = %s", balance)

	globex, err := r.CompanyBalance(ctx, "globex", nil)
	require.NoError(t, err)
	assert.True(t, globex.IsZero(), "other companies' entries must not leak in")
}

func TestBalance_RespectsAsOfBound(t *testing.T) {
	store := &fakeEntryStore{}
	r := NewRecorder(store, "BRL")
	p := testPayment("1000.00")
	ctx := context.Background()

	require.NoError(t, r.RecordPaymentIntake(ctx, p))
	cutoff := time.Now().UTC().Add(time.Minute)

	// An entry written after the cutoff must not show up in an asOf query.
	ruleID := uuid.New()
	value := decimal.RequireFromString("600")
	require.NoError(t, r.RecordEntry(ctx, p.ID, p.ContractID, &ruleID, value, decimal.Zero, ""))
	store.entries[len(store.entries)-1].CreatedAt = cutoff.Add(time.Hour)

	balance, err := r.Balance(ctx, p.ContractID, &cutoff)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "balance = %s, want 0 before the unbalanced late entry", balance)
}
