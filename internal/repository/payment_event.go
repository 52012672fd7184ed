package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/msantanna/splitledger/internal/domain"
)

const paymentEventColumns = `id, payment_id, event_type, status, created_at, updated_at`

type PaymentEventRepository struct {
	db *sql.DB

	// How long a processing claim may sit untouched before another worker is
	// allowed to take it over.
	reclaimAfter time.Duration
}

func NewPaymentEventRepository(db *sql.DB, reclaimAfter time.Duration) *PaymentEventRepository {
	return &PaymentEventRepository{db: db, reclaimAfter: reclaimAfter}
}

func (r *PaymentEventRepository) Create(ctx context.Context, event *domain.PaymentEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_events (id, payment_id, event_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.PaymentID, event.EventType, event.Status,
		event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ClaimPending atomically moves up to limit pending payment.completed events
// to processing and returns them. SKIP LOCKED keeps concurrent workers from
// claiming the same event. A processing claim whose worker died is picked up
// again once it has sat untouched longer than reclaimAfter; split runs are
// idempotent, so re-delivery is safe.
func (r *PaymentEventRepository) ClaimPending(ctx context.Context, limit int) ([]domain.PaymentEvent, error) {
	staleBefore := time.Now().UTC().Add(-r.reclaimAfter)

	rows, err := r.db.QueryContext(ctx,
		`UPDATE payment_events SET status = $1, updated_at = now()
		WHERE id IN (
			SELECT id FROM payment_events
			WHERE event_type = $2
			AND (status = $3 OR (status = $1 AND updated_at < $4))
			ORDER BY created_at
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+paymentEventColumns,
		domain.PaymentEventStatusProcessing, domain.PaymentEventTypeCompleted,
		domain.PaymentEventStatusPending, staleBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		e, err := scanPaymentEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return events, nil
}

func (r *PaymentEventRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, domain.PaymentEventStatusProcessed)
}

func (r *PaymentEventRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, domain.PaymentEventStatusFailed)
}

func (r *PaymentEventRepository) setStatus(ctx context.Context, id uuid.UUID, status domain.PaymentEventStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_events SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("setStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("setStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func scanPaymentEvent(s scanner) (*domain.PaymentEvent, error) {
	var e domain.PaymentEvent
	err := s.Scan(&e.ID, &e.PaymentID, &e.EventType, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
