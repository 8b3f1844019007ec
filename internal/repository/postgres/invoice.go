package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
)

const invoiceColumns = `
	id, invoice_id, provider_id, patient_id, booking_id, prescription_id,
	items, tax_details, subtotal, total_tax, total_amount, status,
	payment_status, issued_at, paid_at, cancelled_at, created_at, updated_at
`

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, invoice_id, provider_id, patient_id, booking_id,
			prescription_id, items, tax_details, subtotal, total_tax,
			total_amount, status, issued_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	invoice.ID = uuid.New()
	invoice.CreatedAt = time.Now()
	invoice.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		invoice.ID,
		invoice.InvoiceID,
		invoice.ProviderID,
		invoice.PatientID,
		invoice.BookingID,
		invoice.PrescriptionID,
		invoice.Items,
		invoice.TaxDetails,
		invoice.Subtotal,
		invoice.TotalTax,
		invoice.TotalAmount,
		invoice.Status,
		invoice.IssuedAt,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	var invoice model.Invoice
	if err := sqlx.GetContext(ctx, r.ext(ctx), &invoice, query, id); err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) UpdateStatus(ctx context.Context, invoice *model.Invoice, expected model.InvoiceStatus) error {
	query := `
		UPDATE invoices
		SET status = $1, payment_status = $2, subtotal = $3,
			total_tax = $4, total_amount = $5, issued_at = $6,
			paid_at = $7, cancelled_at = $8, updated_at = $9
		WHERE id = $10 AND status = $11
	`
	invoice.UpdatedAt = time.Now()

	result, err := r.ext(ctx).ExecContext(ctx, query,
		invoice.Status,
		invoice.PaymentStatus,
		invoice.Subtotal,
		invoice.TotalTax,
		invoice.TotalAmount,
		invoice.IssuedAt,
		invoice.PaidAt,
		invoice.CancelledAt,
		invoice.UpdatedAt,
		invoice.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
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

func (r *invoiceRepository) FindByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Invoice, error) {
	return r.findByParent(ctx, "booking_id", bookingID)
}

func (r *invoiceRepository) FindByPrescription(ctx context.Context, prescriptionID uuid.UUID) (*model.Invoice, error) {
	return r.findByParent(ctx, "prescription_id", prescriptionID)
}

func (r *invoiceRepository) findByParent(ctx context.Context, column string, parentID uuid.UUID) (*model.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s = $1 ORDER BY created_at DESC LIMIT 1`, invoiceColumns, column)

	var invoice model.Invoice
	err := sqlx.GetContext(ctx, r.ext(ctx), &invoice, query, parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invoice by %s: %w", column, err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`
	var invoices []*model.Invoice
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &invoices, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}
