package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ConsultationStatus string

const (
	ConsultationStatusScheduled  ConsultationStatus = "SCHEDULED"
	ConsultationStatusInProgress ConsultationStatus = "IN_PROGRESS"
	ConsultationStatusCompleted  ConsultationStatus = "COMPLETED"
	ConsultationStatusCancelled  ConsultationStatus = "CANCELLED"
	ConsultationStatusNoShow     ConsultationStatus = "NO_SHOW"
)

type ConsultationMode string

const (
	ConsultationModeInPerson  ConsultationMode = "IN_PERSON"
	ConsultationModeVideoCall ConsultationMode = "VIDEO_CALL"
)

const (
	ConsultationNoteMinLen    = 10
	ConsultationNoteMaxLen    = 2000
	ConsultationMessageMaxLen = 1000
)

// ConsultationNote is one append-only clinical note on a consultation.
type ConsultationNote struct {
	AuthorID uuid.UUID `json:"author_id"`
	Text     string    `json:"text"`
	AddedAt  time.Time `json:"added_at"`
}

// ConsultationMessage is one entry in the consultation chat log.
type ConsultationMessage struct {
	SenderID uuid.UUID `json:"sender_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

type NoteList []ConsultationNote

func (l NoteList) Value() (driver.Value, error) {
	if l == nil {
		l = NoteList{}
	}
	return json.Marshal(l)
}

func (l *NoteList) Scan(src interface{}) error {
	return scanJSONList(src, l)
}

type MessageList []ConsultationMessage

func (l MessageList) Value() (driver.Value, error) {
	if l == nil {
		l = MessageList{}
	}
	return json.Marshal(l)
}

func (l *MessageList) Scan(src interface{}) error {
	return scanJSONList(src, l)
}

// scanJSONList decodes a jsonb column into a slice target. NULL scans
// as an empty list so list-valued fields never surface as non-lists.
func scanJSONList(src, dest interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	case nil:
		return json.Unmarshal([]byte("[]"), dest)
	}
	return fmt.Errorf("unsupported list column type %T", src)
}

// VideoCredentials are the call-channel credentials attached to a video
// consultation at creation.
type VideoCredentials struct {
	ChannelName string    `json:"channel_name"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (v VideoCredentials) Value() (driver.Value, error) {
	return json.Marshal(v)
}

func (v *VideoCredentials) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		return json.Unmarshal(s, v)
	case string:
		return json.Unmarshal([]byte(s), v)
	case nil:
		*v = VideoCredentials{}
		return nil
	}
	return fmt.Errorf("unsupported credentials column type %T", src)
}

// Consultation is a doctor/patient session. Notes and messages are
// append-only; DurationMinutes is derived from the start and end
// timestamps whenever both are present.
type Consultation struct {
	Base
	ConsultationID   string             `db:"consultation_id" json:"consultation_id"`
	DoctorID         uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	PatientID        uuid.UUID          `db:"patient_id" json:"patient_id"`
	BookingID        *uuid.UUID         `db:"booking_id" json:"booking_id,omitempty"`
	Mode             ConsultationMode   `db:"mode" json:"mode"`
	Status           ConsultationStatus `db:"status" json:"status"`
	ScheduledAt      time.Time          `db:"scheduled_at" json:"scheduled_at"`
	StartedAt        *time.Time         `db:"started_at" json:"started_at,omitempty"`
	EndedAt          *time.Time         `db:"ended_at" json:"ended_at,omitempty"`
	DurationMinutes  int                `db:"duration_minutes" json:"duration_minutes"`
	Notes            NoteList           `db:"notes" json:"notes"`
	Messages         MessageList        `db:"messages" json:"messages"`
	Diagnosis        *string            `db:"diagnosis" json:"diagnosis,omitempty"`
	FollowUpRequired bool               `db:"follow_up_required" json:"follow_up_required"`
	FollowUpDate     *time.Time         `db:"follow_up_date" json:"follow_up_date,omitempty"`
	Video            *VideoCredentials  `db:"video" json:"video,omitempty"`
	DoctorSnapshot   Snapshot           `db:"doctor_snapshot" json:"doctor_snapshot"`
	PatientSnapshot  Snapshot           `db:"patient_snapshot" json:"patient_snapshot"`
	CancelReason     *string            `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

// IsParticipant reports whether the actor is the doctor or the patient
// on this consultation.
func (c *Consultation) IsParticipant(actorID uuid.UUID) bool {
	return actorID == c.DoctorID || actorID == c.PatientID
}

type CreateConsultationRequest struct {
	PatientID   uuid.UUID        `json:"patient_id" binding:"required"`
	BookingID   *uuid.UUID       `json:"booking_id"`
	Mode        ConsultationMode `json:"mode" binding:"required,oneof=IN_PERSON VIDEO_CALL"`
	ScheduledAt time.Time        `json:"scheduled_at" binding:"required"`
}

type CompleteConsultationRequest struct {
	Notes            string     `json:"notes" binding:"required,min=10,max=2000"`
	Diagnosis        *string    `json:"diagnosis" binding:"omitempty,max=2000"`
	FollowUpRequired bool       `json:"follow_up_required"`
	FollowUpDate     *time.Time `json:"follow_up_date"`
}

type AppendNoteRequest struct {
	Text string `json:"text" binding:"required,min=10,max=2000"`
}

type AppendMessageRequest struct {
	Text string `json:"text" binding:"required,max=1000"`
}
