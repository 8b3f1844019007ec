package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PrescriptionStatus string

const (
	PrescriptionStatusPending   PrescriptionStatus = "PENDING"
	PrescriptionStatusFulfilled PrescriptionStatus = "FULFILLED"
	PrescriptionStatusCancelled PrescriptionStatus = "CANCELLED"
)

// Medicine is one prescribed item.
type Medicine struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Quantity     int    `json:"quantity"`
	Instructions string `json:"instructions,omitempty"`
	Duration     string `json:"duration,omitempty"`
}

// MedicineList is persisted as a jsonb array. It marshals nil as [] and
// scans NULL as an empty slice so the column is a list at every
// persistence boundary.
type MedicineList []Medicine

func (l MedicineList) Value() (driver.Value, error) {
	if l == nil {
		l = MedicineList{}
	}
	return json.Marshal(l)
}

func (l *MedicineList) Scan(src interface{}) error {
	return scanJSONList(src, l)
}

// Prescription is issued by a doctor, routed to a pharmacy, and
// fulfilled or cancelled exactly once.
type Prescription struct {
	Base
	PrescriptionID  string             `db:"prescription_id" json:"prescription_id"`
	DoctorID        uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	PatientID       uuid.UUID          `db:"patient_id" json:"patient_id"`
	PharmacyID      uuid.UUID          `db:"pharmacy_id" json:"pharmacy_id"`
	BookingID       *uuid.UUID         `db:"booking_id" json:"booking_id,omitempty"`
	Medicines       MedicineList       `db:"medicines" json:"medicines"`
	Status          PrescriptionStatus `db:"status" json:"status"`
	// Charge is the dispensing fee in major currency units, the
	// reconciliation source for prescription-linked payments.
	Charge          float64            `db:"charge" json:"charge"`
	FulfilledAt     *time.Time         `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
	CancelledAt     *time.Time         `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy     *uuid.UUID         `db:"cancelled_by" json:"cancelled_by,omitempty"`
	DoctorSnapshot  Snapshot           `db:"doctor_snapshot" json:"doctor_snapshot"`
	PatientSnapshot Snapshot           `db:"patient_snapshot" json:"patient_snapshot"`
}

type CreatePrescriptionRequest struct {
	PatientID  uuid.UUID  `json:"patient_id" binding:"required"`
	PharmacyID uuid.UUID  `json:"pharmacy_id" binding:"required"`
	BookingID  *uuid.UUID `json:"booking_id"`
	Medicines  []Medicine `json:"medicines" binding:"required,min=1,dive"`
	Charge     float64    `json:"charge" binding:"omitempty,min=0"`
}

type ReassignPharmacyRequest struct {
	PharmacyID uuid.UUID `json:"pharmacy_id" binding:"required"`
}
