package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentEventType string

const (
	PaymentEventTypeCompleted PaymentEventType = "payment.completed"
)

type PaymentEventStatus string

const (
	PaymentEventStatusPending    PaymentEventStatus = "pending"
	PaymentEventStatusProcessing PaymentEventStatus = "processing"
	PaymentEventStatusProcessed  PaymentEventStatus = "processed"
	PaymentEventStatusFailed     PaymentEventStatus = "failed"
)

type PaymentEvent struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	EventType PaymentEventType
	Status    PaymentEventStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
