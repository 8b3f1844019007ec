package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
)

const paymentColumns = `
	id, order_id, payment_id, booking_id, prescription_id, amount,
	currency, method, status, refund_status, settled_at, refunded_at,
	failure_reason, created_at, updated_at
`

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	query := `
		INSERT INTO payments (
			id, order_id, booking_id, prescription_id, amount, currency,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	payment.ID = uuid.New()
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.BookingID,
		payment.PrescriptionID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var payment model.Payment
	if err := sqlx.GetContext(ctx, r.ext(ctx), &payment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	var payment model.Payment
	if err := sqlx.GetContext(ctx, r.ext(ctx), &payment, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to get payment by order id: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, payment *model.Payment, expected model.PaymentStatus) error {
	query := `
		UPDATE payments
		SET status = $1, payment_id = $2, method = $3, refund_status = $4,
			settled_at = $5, refunded_at = $6, failure_reason = $7,
			updated_at = $8
		WHERE id = $9 AND status = $10
	`
	payment.UpdatedAt = time.Now()

	result, err := r.ext(ctx).ExecContext(ctx, query,
		payment.Status,
		payment.PaymentID,
		payment.Method,
		payment.RefundStatus,
		payment.SettledAt,
		payment.RefundedAt,
		payment.FailureReason,
		payment.UpdatedAt,
		payment.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrStaleStatus
	}
	return nil
}
