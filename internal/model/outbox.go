package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Domain event types published through the outbox. Notification
// delivery subscribes to these; delivery failures never affect the
// transition that emitted the event.
const (
	EventConsentRequested      = "consent.requested"
	EventConsentResponded      = "consent.responded"
	EventConsentRevoked        = "consent.revoked"
	EventReferralCreated       = "referral.created"
	EventReferralStatusChanged = "referral.status_changed"
	EventConsultationCreated   = "consultation.created"
	EventConsultationChanged   = "consultation.status_changed"
	EventPrescriptionCreated   = "prescription.created"
	EventPrescriptionChanged   = "prescription.status_changed"
	EventInvoiceIssued         = "invoice.issued"
	EventPaymentSettled        = "payment.settled"
	EventPaymentRefunded       = "payment.refunded"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}

// TransitionEvent is the payload shape shared by status-change events.
type TransitionEvent struct {
	Entity     string    `json:"entity"`
	BusinessID string    `json:"business_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    uuid.UUID `json:"actor_id"`
	PatientID  uuid.UUID `json:"patient_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
