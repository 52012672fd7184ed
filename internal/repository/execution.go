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

const executionColumns = `id, payment_id, split_rule_id, value, status, external_ref,
	failure_reason, executed_at, created_at, updated_at`

type SplitExecutionRepository struct {
	db *sql.DB
}

func NewSplitExecutionRepository(db *sql.DB) *SplitExecutionRepository {
	return &SplitExecutionRepository{db: db}
}

// Create inserts the execution in Pending state. The unique index on
// (payment_id, split_rule_id) doubles as the cross-process claim: a second
// worker racing on the same rule gets ErrDuplicateExecution instead of a
// second row.
func (r *SplitExecutionRepository) Create(ctx context.Context, exec *domain.SplitExecution) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO split_executions (id, payment_id, split_rule_id, value, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		exec.ID, exec.PaymentID, exec.SplitRuleID, exec.Value, exec.Status,
		exec.CreatedAt, exec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateExecution)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *SplitExecutionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SplitExecution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM split_executions WHERE id = $1`, id,
	)
	exec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return exec, nil
}

func (r *SplitExecutionRepository) GetByPaymentAndRule(ctx context.Context, paymentID, ruleID uuid.UUID) (*domain.SplitExecution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM split_executions
		WHERE payment_id = $1 AND split_rule_id = $2`, paymentID, ruleID,
	)
	exec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByPaymentAndRule: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByPaymentAndRule: %w", err)
	}
	return exec, nil
}

func (r *SplitExecutionRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.SplitExecution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM split_executions
		WHERE payment_id = $1 ORDER BY created_at`, paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByPayment: %w", err)
	}
	defer rows.Close()

	var execs []domain.SplitExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByPayment: scan: %w", err)
		}
		execs = append(execs, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByPayment: rows: %w", err)
	}
	return execs, nil
}

func (r *SplitExecutionRepository) CountByRule(ctx context.Context, ruleID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM split_executions WHERE split_rule_id = $1`, ruleID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountByRule: %w", err)
	}
	return count, nil
}

func (r *SplitExecutionRepository) MarkCompleted(ctx context.Context, id uuid.UUID, externalRef *string, executedAt time.Time) error {
	return r.transition(ctx, id,
		`UPDATE split_executions
		SET status = $1, external_ref = $2, failure_reason = NULL, executed_at = $3, updated_at = now()
		WHERE id = $4`,
		domain.SplitExecutionStatusCompleted, externalRef, executedAt, id)
}

func (r *SplitExecutionRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, executedAt time.Time) error {
	return r.transition(ctx, id,
		`UPDATE split_executions
		SET status = $1, external_ref = NULL, failure_reason = $2, executed_at = $3, updated_at = now()
		WHERE id = $4`,
		domain.SplitExecutionStatusFailed, reason, executedAt, id)
}

// MarkPending resets a Failed execution for retry. The status guard keeps
// Completed terminal even if two retries race.
func (r *SplitExecutionRepository) MarkPending(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id,
		`UPDATE split_executions
		SET status = $1, failure_reason = NULL, executed_at = NULL, updated_at = now()
		WHERE id = $2 AND status = $3`,
		domain.SplitExecutionStatusPending, id, domain.SplitExecutionStatusFailed)
}

func (r *SplitExecutionRepository) transition(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition %s: rows affected: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("transition %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanExecution(s scanner) (*domain.SplitExecution, error) {
	var exec domain.SplitExecution
	err := s.Scan(
		&exec.ID, &exec.PaymentID, &exec.SplitRuleID, &exec.Value, &exec.Status,
		&exec.ExternalRef, &exec.FailureReason, &exec.ExecutedAt,
		&exec.CreatedAt, &exec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &exec, nil
}
