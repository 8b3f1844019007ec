package model

import (
	"time"

	"github.com/google/uuid"
)

type ConsentStatus string

const (
	ConsentStatusPending  ConsentStatus = "PENDING"
	ConsentStatusApproved ConsentStatus = "APPROVED"
	ConsentStatusRejected ConsentStatus = "REJECTED"
	ConsentStatusRevoked  ConsentStatus = "REVOKED"
	ConsentStatusExpired  ConsentStatus = "EXPIRED"
)

const (
	ConsentPurposeMinLen = 10
	ConsentPurposeMaxLen = 500
)

// ConsentRequest is a provider's request to view a patient's records.
// Only the named patient may approve, reject or revoke it; expiry is
// applied by the system when an approved grant is read past ExpiresAt.
type ConsentRequest struct {
	Base
	ConsentID     string        `db:"consent_id" json:"consent_id"`
	PatientID     uuid.UUID     `db:"patient_id" json:"patient_id"`
	RequesterID   uuid.UUID     `db:"requester_id" json:"requester_id"`
	RequesterRole Role          `db:"requester_role" json:"requester_role"`
	Purpose       string        `db:"purpose" json:"purpose"`
	Status        ConsentStatus `db:"status" json:"status"`
	RequestedAt   time.Time     `db:"requested_at" json:"requested_at"`
	RespondedAt   *time.Time    `db:"responded_at" json:"responded_at,omitempty"`
	ExpiresAt     *time.Time    `db:"expires_at" json:"expires_at,omitempty"`
	RevokedAt     *time.Time    `db:"revoked_at" json:"revoked_at,omitempty"`
	Notes         *string       `db:"notes" json:"notes,omitempty"`
}

// ExpiredAt reports whether an approved grant has lapsed at the given
// instant. Grants without an expiry never lapse.
func (c *ConsentRequest) ExpiredAt(now time.Time) bool {
	return c.Status == ConsentStatusApproved && c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

type CreateConsentRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
	Purpose   string    `json:"purpose" binding:"required,min=10,max=500"`
}

type RespondConsentRequest struct {
	// ValidityDays bounds an approval; zero means the grant never
	// expires. Ignored on rejection.
	ValidityDays int     `json:"validity_days" binding:"omitempty,min=1,max=365"`
	Notes        *string `json:"notes" binding:"omitempty,max=500"`
}
