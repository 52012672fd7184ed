package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/msantanna/splitledger/internal/domain"
)

const splitRuleColumns = `id, contract_id, beneficiary_ref, percentage, fixed_fee, priority,
	created_at, updated_at, deleted_at`

type SplitRuleRepository struct {
	db *sql.DB
}

func NewSplitRuleRepository(db *sql.DB) *SplitRuleRepository {
	return &SplitRuleRepository{db: db}
}

func (r *SplitRuleRepository) Create(ctx context.Context, rule *domain.SplitRule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO split_rules (id, contract_id, beneficiary_ref, percentage, fixed_fee, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rule.ID, rule.ContractID, rule.BeneficiaryRef, rule.Percentage, rule.FixedFee,
		rule.Priority, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicatePriority)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *SplitRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SplitRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+splitRuleColumns+` FROM split_rules WHERE id = $1`, id,
	)
	rule, err := scanSplitRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return rule, nil
}

// ListByContract returns the live (not soft-deleted) rules for a contract in
// ascending priority order, which is the engine's execution order.
func (r *SplitRuleRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]domain.SplitRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+splitRuleColumns+` FROM split_rules
		WHERE contract_id = $1 AND deleted_at IS NULL
		ORDER BY priority ASC`, contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByContract: %w", err)
	}
	defer rows.Close()

	var rules []domain.SplitRule
	for rows.Next() {
		rule, err := scanSplitRule(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByContract: scan: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByContract: rows: %w", err)
	}
	return rules, nil
}

func (r *SplitRuleRepository) Update(ctx context.Context, rule *domain.SplitRule) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE split_rules SET percentage = $1, fixed_fee = $2, priority = $3, updated_at = now()
		WHERE id = $4 AND deleted_at IS NULL`,
		rule.Percentage, rule.FixedFee, rule.Priority, rule.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Update: %w", domain.ErrDuplicatePriority)
		}
		return fmt.Errorf("Update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	return nil
}

// SoftDelete marks the rule deleted without removing the row; executions keep
// referencing it for audit.
func (r *SplitRuleRepository) SoftDelete(ctx context.Context, id uuid.UUID, when time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE split_rules SET deleted_at = $1, updated_at = now()
		WHERE id = $2 AND deleted_at IS NULL`,
		when, id,
	)
	if err != nil {
		return fmt.Errorf("SoftDelete: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SoftDelete: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SoftDelete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanSplitRule(s scanner) (*domain.SplitRule, error) {
	var rule domain.SplitRule
	err := s.Scan(
		&rule.ID, &rule.ContractID, &rule.BeneficiaryRef, &rule.Percentage, &rule.FixedFee,
		&rule.Priority, &rule.CreatedAt, &rule.UpdatedAt, &rule.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
