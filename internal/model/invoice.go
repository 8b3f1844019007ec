package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// InvoiceItem is one billed line. TotalPrice is derived; caller-supplied
// values are overwritten on every recomputation.
type InvoiceItem struct {
	ItemType    string  `json:"item_type"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// TaxDetail is one tax line applied to the invoice subtotal. Amount is
// derived from Rate.
type TaxDetail struct {
	Name   string  `json:"name,omitempty"`
	Rate   float64 `json:"rate" binding:"min=0,max=100"`
	Amount float64 `json:"amount"`
}

type InvoiceItemList []InvoiceItem

func (l InvoiceItemList) Value() (driver.Value, error) {
	if l == nil {
		l = InvoiceItemList{}
	}
	return json.Marshal(l)
}

func (l *InvoiceItemList) Scan(src interface{}) error {
	return scanJSONList(src, l)
}

type TaxDetailList []TaxDetail

func (l TaxDetailList) Value() (driver.Value, error) {
	if l == nil {
		l = TaxDetailList{}
	}
	return json.Marshal(l)
}

func (l *TaxDetailList) Scan(src interface{}) error {
	return scanJSONList(src, l)
}

// Invoice carries derived totals in major currency units. Subtotal,
// TotalTax and TotalAmount are recomputed from Items and TaxDetails
// before every persistence; a stored total is never trusted. At most
// one of BookingID/PrescriptionID links the invoice to its parent.
type Invoice struct {
	Base
	InvoiceID      string          `db:"invoice_id" json:"invoice_id"`
	ProviderID     uuid.UUID       `db:"provider_id" json:"provider_id"`
	PatientID      *uuid.UUID      `db:"patient_id" json:"patient_id,omitempty"`
	BookingID      *uuid.UUID      `db:"booking_id" json:"booking_id,omitempty"`
	PrescriptionID *uuid.UUID      `db:"prescription_id" json:"prescription_id,omitempty"`
	Items          InvoiceItemList `db:"items" json:"items"`
	TaxDetails     TaxDetailList   `db:"tax_details" json:"tax_details"`
	Subtotal       float64         `db:"subtotal" json:"subtotal"`
	TotalTax       float64         `db:"total_tax" json:"total_tax"`
	TotalAmount    float64         `db:"total_amount" json:"total_amount"`
	Status         InvoiceStatus   `db:"status" json:"status"`
	PaymentStatus  *PaymentStatus  `db:"payment_status" json:"payment_status,omitempty"`
	IssuedAt       *time.Time      `db:"issued_at" json:"issued_at,omitempty"`
	PaidAt         *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CancelledAt    *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

type CreateInvoiceRequest struct {
	PatientID      *uuid.UUID    `json:"patient_id"`
	BookingID      *uuid.UUID    `json:"booking_id"`
	PrescriptionID *uuid.UUID    `json:"prescription_id"`
	Items          []InvoiceItem `json:"items" binding:"required,min=1,dive"`
	TaxDetails     []TaxDetail   `json:"tax_details" binding:"omitempty,dive"`
	Draft          bool          `json:"draft"`
}
