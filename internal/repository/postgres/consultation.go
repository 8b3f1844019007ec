package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
)

const consultationColumns = `
	id, consultation_id, doctor_id, patient_id, booking_id, mode, status,
	scheduled_at, started_at, ended_at, duration_minutes, notes, messages,
	diagnosis, follow_up_required, follow_up_date, video, doctor_snapshot,
	patient_snapshot, cancel_reason, created_at, updated_at
`

func (r *consultationRepository) Create(ctx context.Context, consultation *model.Consultation) error {
	query := `
		INSERT INTO consultations (
			id, consultation_id, doctor_id, patient_id, booking_id, mode,
			status, scheduled_at, duration_minutes, notes, messages,
			follow_up_required, video, doctor_snapshot, patient_snapshot,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	consultation.ID = uuid.New()
	consultation.CreatedAt = time.Now()
	consultation.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		consultation.ID,
		consultation.ConsultationID,
		consultation.DoctorID,
		consultation.PatientID,
		consultation.BookingID,
		consultation.Mode,
		consultation.Status,
		consultation.ScheduledAt,
		consultation.DurationMinutes,
		consultation.Notes,
		consultation.Messages,
		consultation.FollowUpRequired,
		consultation.Video,
		consultation.DoctorSnapshot,
		consultation.PatientSnapshot,
		consultation.CreatedAt,
		consultation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consultation: %w", err)
	}
	return nil
}

func (r *consultationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`

	var consultation model.Consultation
	if err := sqlx.GetContext(ctx, r.ext(ctx), &consultation, query, id); err != nil {
		return nil, fmt.Errorf("failed to get consultation: %w", err)
	}
	return &consultation, nil
}

func (r *consultationRepository) UpdateStatus(ctx context.Context, consultation *model.Consultation, expected model.ConsultationStatus) error {
	query := `
		UPDATE consultations
		SET status = $1, started_at = $2, ended_at = $3,
			duration_minutes = $4, notes = $5, diagnosis = $6,
			follow_up_required = $7, follow_up_date = $8,
			cancel_reason = $9, updated_at = $10
		WHERE id = $11 AND status = $12
	`
	consultation.UpdatedAt = time.Now()

	result, err := r.ext(ctx).ExecContext(ctx, query,
		consultation.Status,
		consultation.StartedAt,
		consultation.EndedAt,
		consultation.DurationMinutes,
		consultation.Notes,
		consultation.Diagnosis,
		consultation.FollowUpRequired,
		consultation.FollowUpDate,
		consultation.CancelReason,
		consultation.UpdatedAt,
		consultation.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update consultation status: %w", err)
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

// AppendNote extends the notes log with jsonb concatenation so existing
// entries are never rewritten.
func (r *consultationRepository) AppendNote(ctx context.Context, id uuid.UUID, note model.ConsultationNote) error {
	return r.appendJSON(ctx, id, "notes", note)
}

func (r *consultationRepository) AppendMessage(ctx context.Context, id uuid.UUID, message model.ConsultationMessage) error {
	return r.appendJSON(ctx, id, "messages", message)
}

func (r *consultationRepository) appendJSON(ctx context.Context, id uuid.UUID, column string, entry interface{}) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal %s entry: %w", column, err)
	}

	query := fmt.Sprintf(`
		UPDATE consultations
		SET %s = COALESCE(%s, '[]'::jsonb) || $1::jsonb, updated_at = $2
		WHERE id = $3
	`, column, column)

	result, err := r.ext(ctx).ExecContext(ctx, query, payload, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to append %s: %w", column, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("consultation not found")
	}
	return nil
}

func (r *consultationRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + `
		FROM consultations
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC
	`
	var consultations []*model.Consultation
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &consultations, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}
