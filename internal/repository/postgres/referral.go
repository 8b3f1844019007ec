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

const referralColumns = `
	id, referral_id, source_id, target_id, patient_id, referral_type,
	status, reason, priority, source_snapshot, target_snapshot,
	patient_snapshot, responded_at, completed_at, cancelled_at,
	response_notes, created_at, updated_at
`

func (r *referralRepository) Create(ctx context.Context, referral *model.Referral) error {
	query := `
		INSERT INTO referrals (
			id, referral_id, source_id, target_id, patient_id,
			referral_type, status, reason, priority, source_snapshot,
			target_snapshot, patient_snapshot, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	referral.ID = uuid.New()
	referral.CreatedAt = time.Now()
	referral.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		referral.ID,
		referral.ReferralID,
		referral.SourceID,
		referral.TargetID,
		referral.PatientID,
		referral.Type,
		referral.Status,
		referral.Reason,
		referral.Priority,
		referral.SourceSnapshot,
		referral.TargetSnapshot,
		referral.PatientSnapshot,
		referral.CreatedAt,
		referral.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create referral: %w", err)
	}
	return nil
}

func (r *referralRepository) Get(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1`

	var referral model.Referral
	if err := sqlx.GetContext(ctx, r.ext(ctx), &referral, query, id); err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}
	return &referral, nil
}

func (r *referralRepository) UpdateStatus(ctx context.Context, referral *model.Referral, expected model.ReferralStatus) error {
	query := `
		UPDATE referrals
		SET status = $1, responded_at = $2, completed_at = $3,
			cancelled_at = $4, response_notes = $5, updated_at = $6
		WHERE id = $7 AND status = $8
	`
	referral.UpdatedAt = time.Now()

	result, err := r.ext(ctx).ExecContext(ctx, query,
		referral.Status,
		referral.RespondedAt,
		referral.CompletedAt,
		referral.CancelledAt,
		referral.ResponseNotes,
		referral.UpdatedAt,
		referral.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update referral status: %w", err)
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

func (r *referralRepository) ListForEntity(ctx context.Context, entityID uuid.UUID) ([]*model.Referral, error) {
	query := `SELECT ` + referralColumns + `
		FROM referrals
		WHERE source_id = $1 OR target_id = $1
		ORDER BY created_at DESC
	`
	var referrals []*model.Referral
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &referrals, query, entityID); err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return referrals, nil
}

func (r *referralRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Referral, error) {
	query := `SELECT ` + referralColumns + `
		FROM referrals
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`
	var referrals []*model.Referral
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &referrals, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return referrals, nil
}
