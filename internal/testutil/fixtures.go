package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msantanna/splitledger/internal/domain"
)

func SeedContract(t *testing.T, db *sql.DB, companyRef string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO contracts (id, company_ref) VALUES ($1, $2)`,
		id, companyRef,
	)
	if err != nil {
		t.Fatalf("seed contract: %v", err)
	}
	return id
}

func SeedPayment(t *testing.T, db *sql.DB, contractID uuid.UUID, amount string, status domain.PaymentStatus) *domain.Payment {
	t.Helper()

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:         uuid.New(),
		ContractID: contractID,
		Amount:     decimal.RequireFromString(amount),
		Currency:   "BRL",
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if status == domain.PaymentStatusCompleted {
		p.CompletedAt = &now
	}

	_, err := db.Exec(
		`INSERT INTO payments (id, contract_id, amount, currency, status, created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.ContractID, p.Amount, p.Currency, p.Status, p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return p
}

func SeedSplitRule(t *testing.T, db *sql.DB, contractID uuid.UUID, beneficiaryRef, percentage, fixedFee string, priority int) *domain.SplitRule {
	t.Helper()

	now := time.Now().UTC()
	rule := &domain.SplitRule{
		ID:             uuid.New(),
		ContractID:     contractID,
		BeneficiaryRef: beneficiaryRef,
		Percentage:     decimal.RequireFromString(percentage),
		FixedFee:       decimal.RequireFromString(fixedFee),
		Priority:       priority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := db.Exec(
		`INSERT INTO split_rules (id, contract_id, beneficiary_ref, percentage, fixed_fee, priority, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rule.ID, rule.ContractID, rule.BeneficiaryRef, rule.Percentage, rule.FixedFee,
		rule.Priority, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed split rule: %v", err)
	}
	return rule
}

func SeedPaymentEvent(t *testing.T, db *sql.DB, paymentID uuid.UUID) *domain.PaymentEvent {
	t.Helper()

	now := time.Now().UTC()
	e := &domain.PaymentEvent{
		ID:        uuid.New(),
		PaymentID: paymentID,
		EventType: domain.PaymentEventTypeCompleted,
		Status:    domain.PaymentEventStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.Exec(
		`INSERT INTO payment_events (id, payment_id, event_type, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.PaymentID, e.EventType, e.Status, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed payment event: %v", err)
	}
	return e
}

func CountLedgerEntries(t *testing.T, db *sql.DB, paymentID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE payment_id = $1`, paymentID).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for payment %s: %v", paymentID, err)
	}
	return count
}
