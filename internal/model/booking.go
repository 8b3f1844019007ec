package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking is the read model of an appointment record maintained by the
// booking subsystem. The workflow core never mutates bookings; it reads
// them as an access path (a confirmed or completed booking qualifies a
// provider to see the patient's records) and as the charge source for
// booking-linked payments.
type Booking struct {
	Base
	PatientID   uuid.UUID     `db:"patient_id" json:"patient_id"`
	ProviderID  uuid.UUID     `db:"provider_id" json:"provider_id"`
	Status      BookingStatus `db:"status" json:"status"`
	ScheduledAt time.Time     `db:"scheduled_at" json:"scheduled_at"`
	// Charge is the booking fee in major currency units as stored by
	// the booking subsystem. Legacy rows may hold garbage; payment
	// reconciliation treats non-finite or negative charges as
	// unverifiable rather than blocking.
	Charge float64 `db:"charge" json:"charge"`
}

// Qualifies reports whether the booking grants the provider access to
// the patient's records.
func (b *Booking) Qualifies() bool {
	return b.Status == BookingStatusConfirmed || b.Status == BookingStatusCompleted
}
