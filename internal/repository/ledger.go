package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msantanna/splitledger/internal/domain"
)

const ledgerColumns = `id, payment_id, contract_id, split_rule_id, debit, credit, currency, note, created_at`

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create appends one entry. Unique indexes on (payment_id, split_rule_id) and
// on the intake entry per payment turn re-delivered writes into
// ErrDuplicateEntry instead of double counting.
func (r *LedgerRepository) Create(ctx context.Context, entry *domain.LedgerEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, payment_id, contract_id, split_rule_id, debit, credit, currency, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.PaymentID, entry.ContractID, entry.SplitRuleID,
		entry.Debit, entry.Credit, entry.Currency, entry.Note, entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateEntry)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE payment_id = $1 ORDER BY created_at`, paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByPaymentID: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByPaymentID: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByPaymentID: rows: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepository) SumDebit(ctx context.Context, contractID uuid.UUID, from, to *time.Time) (decimal.Decimal, error) {
	return r.sumColumn(ctx, "debit", contractID, from, to)
}

func (r *LedgerRepository) SumCredit(ctx context.Context, contractID uuid.UUID, from, to *time.Time) (decimal.Decimal, error) {
	return r.sumColumn(ctx, "credit", contractID, from, to)
}

func (r *LedgerRepository) sumColumn(ctx context.Context, column string, contractID uuid.UUID, from, to *time.Time) (decimal.Decimal, error) {
	// column is one of the two constants above, never caller input.
	query := `SELECT COALESCE(SUM(` + column + `), 0) FROM ledger_entries
		WHERE contract_id = $1
		AND ($2::timestamptz IS NULL OR created_at >= $2)
		AND ($3::timestamptz IS NULL OR created_at <= $3)`

	var sum decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, contractID, from, to).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sumColumn %s: %w", column, err)
	}
	return sum, nil
}

func (r *LedgerRepository) SumDebitByCompany(ctx context.Context, companyRef string, from, to *time.Time) (decimal.Decimal, error) {
	return r.sumColumnByCompany(ctx, "debit", companyRef, from, to)
}

func (r *LedgerRepository) SumCreditByCompany(ctx context.Context, companyRef string, from, to *time.Time) (decimal.Decimal, error) {
	return r.sumColumnByCompany(ctx, "credit", companyRef, from, to)
}

// sumColumnByCompany aggregates across every contract that belongs to one
// company.
func (r *LedgerRepository) sumColumnByCompany(ctx context.Context, column string, companyRef string, from, to *time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(le.` + column + `), 0) FROM ledger_entries le
		JOIN contracts c ON c.id = le.contract_id
		WHERE c.company_ref = $1
		AND ($2::timestamptz IS NULL OR le.created_at >= $2)
		AND ($3::timestamptz IS NULL OR le.created_at <= $3)`

	var sum decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, companyRef, from, to).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sumColumnByCompany %s: %w", column, err)
	}
	return sum, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var ruleID uuid.NullUUID

	err := s.Scan(
		&e.ID, &e.PaymentID, &e.ContractID, &ruleID,
		&e.Debit, &e.Credit, &e.Currency, &e.Note, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ruleID.Valid {
		e.SplitRuleID = &ruleID.UUID
	}
	return &e, nil
}
