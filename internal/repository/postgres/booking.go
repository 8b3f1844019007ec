package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careflow-api/internal/model"
)

// The workflow core only reads bookings; writes belong to the booking
// subsystem.

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `
		SELECT id, patient_id, provider_id, status, scheduled_at, charge,
			   created_at, updated_at
		FROM bookings
		WHERE id = $1
	`
	var booking model.Booking
	if err := sqlx.GetContext(ctx, r.ext(ctx), &booking, query, id); err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (r *bookingRepository) FindQualifying(ctx context.Context, patientID, providerID uuid.UUID) (*model.Booking, error) {
	query := `
		SELECT id, patient_id, provider_id, status, scheduled_at, charge,
			   created_at, updated_at
		FROM bookings
		WHERE patient_id = $1 AND provider_id = $2 AND status IN ($3, $4)
		ORDER BY scheduled_at DESC
		LIMIT 1
	`
	var booking model.Booking
	err := sqlx.GetContext(ctx, r.ext(ctx), &booking, query,
		patientID, providerID, model.BookingStatusConfirmed, model.BookingStatusCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find qualifying booking: %w", err)
	}
	return &booking, nil
}
