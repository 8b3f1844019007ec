package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "PENDING"
	RefundStatusProcessed RefundStatus = "PROCESSED"
	RefundStatusFailed    RefundStatus = "FAILED"
)

// Payment is a gateway order against exactly one parent: a booking or a
// prescription, never both, never neither. Amount is held in minor
// currency units and must reconcile with the parent's charge at
// creation. Status is the single source of truth for refund state;
// RefundStatus is diagnostic and written only by MarkRefunded.
type Payment struct {
	Base
	OrderID        string        `db:"order_id" json:"order_id"`
	PaymentID      *string       `db:"payment_id" json:"payment_id,omitempty"`
	BookingID      *uuid.UUID    `db:"booking_id" json:"booking_id,omitempty"`
	PrescriptionID *uuid.UUID    `db:"prescription_id" json:"prescription_id,omitempty"`
	Amount         int64         `db:"amount" json:"amount"`
	Currency       string        `db:"currency" json:"currency"`
	Method         *string       `db:"method" json:"method,omitempty"`
	Status         PaymentStatus `db:"status" json:"status"`
	RefundStatus   *RefundStatus `db:"refund_status" json:"refund_status,omitempty"`
	SettledAt      *time.Time    `db:"settled_at" json:"settled_at,omitempty"`
	RefundedAt     *time.Time    `db:"refunded_at" json:"refunded_at,omitempty"`
	FailureReason  *string       `db:"failure_reason" json:"failure_reason,omitempty"`
}

type CreatePaymentOrderRequest struct {
	BookingID      *uuid.UUID `json:"booking_id"`
	PrescriptionID *uuid.UUID `json:"prescription_id"`
	Amount         int64      `json:"amount" binding:"required,min=1"`
	Currency       string     `json:"currency" binding:"omitempty,len=3"`
}

// ConfirmPaymentRequest carries the settlement details supplied by the
// payment gateway. Signature verification happens at the gateway edge;
// the core only requires the settlement reference.
type ConfirmPaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Method    string `json:"method" binding:"required"`
}
