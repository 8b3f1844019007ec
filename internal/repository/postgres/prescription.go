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

const prescriptionColumns = `
	id, prescription_id, doctor_id, patient_id, pharmacy_id, booking_id,
	medicines, status, charge, fulfilled_at, cancelled_at, cancelled_by,
	doctor_snapshot, patient_snapshot, created_at, updated_at
`

func (r *prescriptionRepository) Create(ctx context.Context, prescription *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (
			id, prescription_id, doctor_id, patient_id, pharmacy_id,
			booking_id, medicines, status, charge, doctor_snapshot,
			patient_snapshot, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	prescription.ID = uuid.New()
	prescription.CreatedAt = time.Now()
	prescription.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		prescription.ID,
		prescription.PrescriptionID,
		prescription.DoctorID,
		prescription.PatientID,
		prescription.PharmacyID,
		prescription.BookingID,
		prescription.Medicines,
		prescription.Status,
		prescription.Charge,
		prescription.DoctorSnapshot,
		prescription.PatientSnapshot,
		prescription.CreatedAt,
		prescription.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE id = $1`

	var prescription model.Prescription
	if err := sqlx.GetContext(ctx, r.ext(ctx), &prescription, query, id); err != nil {
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	return &prescription, nil
}

func (r *prescriptionRepository) UpdateStatus(ctx context.Context, prescription *model.Prescription, expected model.PrescriptionStatus) error {
	query := `
		UPDATE prescriptions
		SET status = $1, fulfilled_at = $2, cancelled_at = $3,
			cancelled_by = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`
	prescription.UpdatedAt = time.Now()

	result, err := r.ext(ctx).ExecContext(ctx, query,
		prescription.Status,
		prescription.FulfilledAt,
		prescription.CancelledAt,
		prescription.CancelledBy,
		prescription.UpdatedAt,
		prescription.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update prescription status: %w", err)
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

// UpdatePharmacy re-routes a pending prescription. The status guard in
// the WHERE clause keeps the reassignment from racing a fulfilment.
func (r *prescriptionRepository) UpdatePharmacy(ctx context.Context, id, pharmacyID uuid.UUID) error {
	query := `
		UPDATE prescriptions
		SET pharmacy_id = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.ext(ctx).ExecContext(ctx, query, pharmacyID, time.Now(), id, model.PrescriptionStatusPending)
	if err != nil {
		return fmt.Errorf("failed to update prescription pharmacy: %w", err)
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

func (r *prescriptionRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + `
		FROM prescriptions
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`
	var prescriptions []*model.Prescription
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &prescriptions, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}
