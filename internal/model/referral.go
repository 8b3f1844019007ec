package model

import (
	"time"

	"github.com/google/uuid"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "PENDING"
	ReferralStatusAccepted  ReferralStatus = "ACCEPTED"
	ReferralStatusCompleted ReferralStatus = "COMPLETED"
	ReferralStatusRejected  ReferralStatus = "REJECTED"
	ReferralStatusCancelled ReferralStatus = "CANCELLED"
)

type ReferralType string

const (
	ReferralTypeInterDepartmental ReferralType = "INTER_DEPARTMENTAL"
	ReferralTypeDoctorToDoctor    ReferralType = "DOCTOR_TO_DOCTOR"
	ReferralTypeDoctorToPharmacy  ReferralType = "DOCTOR_TO_PHARMACY"
	ReferralTypeLabToLab          ReferralType = "LAB_TO_LAB"
)

type ReferralPriority string

const (
	ReferralPriorityLow    ReferralPriority = "LOW"
	ReferralPriorityMedium ReferralPriority = "MEDIUM"
	ReferralPriorityHigh   ReferralPriority = "HIGH"
	ReferralPriorityUrgent ReferralPriority = "URGENT"
)

func (p ReferralPriority) Valid() bool {
	switch p {
	case ReferralPriorityLow, ReferralPriorityMedium, ReferralPriorityHigh, ReferralPriorityUrgent:
		return true
	}
	return false
}

const (
	ReferralReasonMinLen = 10
	ReferralReasonMaxLen = 1000
)

// Referral hands a patient over between provider entities. The source,
// target and patient snapshots are frozen at creation; type legality is
// re-checked against them at write time, so a later role change in the
// directory cannot retroactively invalidate the referral.
type Referral struct {
	Base
	ReferralID      string           `db:"referral_id" json:"referral_id"`
	SourceID        uuid.UUID        `db:"source_id" json:"source_id"`
	TargetID        uuid.UUID        `db:"target_id" json:"target_id"`
	PatientID       uuid.UUID        `db:"patient_id" json:"patient_id"`
	Type            ReferralType     `db:"referral_type" json:"referral_type"`
	Status          ReferralStatus   `db:"status" json:"status"`
	Reason          string           `db:"reason" json:"reason"`
	Priority        ReferralPriority `db:"priority" json:"priority"`
	SourceSnapshot  Snapshot         `db:"source_snapshot" json:"source_snapshot"`
	TargetSnapshot  Snapshot         `db:"target_snapshot" json:"target_snapshot"`
	PatientSnapshot Snapshot         `db:"patient_snapshot" json:"patient_snapshot"`
	RespondedAt     *time.Time       `db:"responded_at" json:"responded_at,omitempty"`
	CompletedAt     *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
	ResponseNotes   *string          `db:"response_notes" json:"response_notes,omitempty"`
}

type CreateReferralRequest struct {
	TargetID  uuid.UUID        `json:"target_id" binding:"required"`
	PatientID uuid.UUID        `json:"patient_id" binding:"required"`
	Type      ReferralType     `json:"referral_type" binding:"required,referral_type"`
	Reason    string           `json:"reason" binding:"required,min=10,max=1000"`
	Priority  ReferralPriority `json:"priority" binding:"required,referral_priority"`
}

type RespondReferralRequest struct {
	Notes *string `json:"notes" binding:"omitempty,max=1000"`
}
