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

func (r *consentRepository) Create(ctx context.Context, consent *model.ConsentRequest) error {
	query := `
		INSERT INTO consent_requests (
			id, consent_id, patient_id, requester_id, requester_role,
			purpose, status, requested_at, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	consent.ID = uuid.New()
	consent.CreatedAt = time.Now()
	consent.UpdatedAt = time.Now()

	_, err := r.ext(ctx).ExecContext(ctx, query,
		consent.ID,
		consent.ConsentID,
		consent.PatientID,
		consent.RequesterID,
		consent.RequesterRole,
		consent.Purpose,
		consent.Status,
		consent.RequestedAt,
		consent.Notes,
		consent.CreatedAt,
		consent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consent request: %w", err)
	}
	return nil
}

func (r *consentRepository) Get(ctx context.Context, id uuid.UUID) (*model.ConsentRequest, error) {
	query := `
		SELECT id, consent_id, patient_id, requester_id, requester_role,
			   purpose, status, requested_at, responded_at, expires_at,
			   revoked_at, notes, created_at, updated_at
		FROM consent_requests
		WHERE id = $1
	`
	var consent model.ConsentRequest
	err := sqlx.GetContext(ctx, r.ext(ctx), &consent, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get consent request: %w", err)
	}
	return &consent, nil
}

func (r *consentRepository) FindApprovedForPair(ctx context.Context, patientID, requesterID uuid.UUID) (*model.ConsentRequest, error) {
	query := `
		SELECT id, consent_id, patient_id, requester_id, requester_role,
			   purpose, status, requested_at, responded_at, expires_at,
			   revoked_at, notes, created_at, updated_at
		FROM consent_requests
		WHERE patient_id = $1 AND requester_id = $2 AND status = $3
		ORDER BY requested_at DESC
		LIMIT 1
	`
	var consent model.ConsentRequest
	err := sqlx.GetContext(ctx, r.ext(ctx), &consent, query, patientID, requesterID, model.ConsentStatusApproved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find consent for pair: %w", err)
	}
	return &consent, nil
}

// UpdateStatus is a conditional write: the row changes only if its
// status still matches expected, which is what makes concurrent
// responses safe without locking.
func (r *consentRepository) UpdateStatus(ctx context.Context, consent *model.ConsentRequest, expected model.ConsentStatus) error {
	query := `
		UPDATE consent_requests
		SET status = $1, responded_at = $2, expires_at = $3,
			revoked_at = $4, notes = $5, updated_at = $6
		WHERE id = $7 AND status = $8
	`
	consent.UpdatedAt = time.Now()

	result, err := r.ext(ctx).ExecContext(ctx, query,
		consent.Status,
		consent.RespondedAt,
		consent.ExpiresAt,
		consent.RevokedAt,
		consent.Notes,
		consent.UpdatedAt,
		consent.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update consent status: %w", err)
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

func (r *consentRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ConsentRequest, error) {
	query := `
		SELECT id, consent_id, patient_id, requester_id, requester_role,
			   purpose, status, requested_at, responded_at, expires_at,
			   revoked_at, notes, created_at, updated_at
		FROM consent_requests
		WHERE patient_id = $1
		ORDER BY requested_at DESC
	`
	var consents []*model.ConsentRequest
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &consents, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list consent requests: %w", err)
	}
	return consents, nil
}

func (r *consentRepository) ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.ConsentRequest, error) {
	query := `
		SELECT id, consent_id, patient_id, requester_id, requester_role,
			   purpose, status, requested_at, responded_at, expires_at,
			   revoked_at, notes, created_at, updated_at
		FROM consent_requests
		WHERE requester_id = $1
		ORDER BY requested_at DESC
	`
	var consents []*model.ConsentRequest
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &consents, query, requesterID); err != nil {
		return nil, fmt.Errorf("failed to list consent requests: %w", err)
	}
	return consents, nil
}
