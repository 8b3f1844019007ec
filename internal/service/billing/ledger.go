package billing

import (
	"fmt"
	"math"

	"github.com/jwalitptl/careflow-api/internal/model"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

// RecomputeInvoiceTotals derives every money field on the invoice from
// its items and tax lines. Line totals and tax amounts are overwritten
// in place; caller-supplied totals are never trusted. The computation is
// idempotent and keeps totalAmount = subtotal + totalTax to the cent.
func RecomputeInvoiceTotals(invoice *model.Invoice) {
	var subtotal float64
	for i := range invoice.Items {
		invoice.Items[i].TotalPrice = roundCents(float64(invoice.Items[i].Quantity) * invoice.Items[i].UnitPrice)
		subtotal += invoice.Items[i].TotalPrice
	}
	subtotal = roundCents(subtotal)

	var totalTax float64
	for i := range invoice.TaxDetails {
		invoice.TaxDetails[i].Amount = roundCents(subtotal * invoice.TaxDetails[i].Rate / 100)
		totalTax += invoice.TaxDetails[i].Amount
	}
	totalTax = roundCents(totalTax)

	invoice.Subtotal = subtotal
	invoice.TotalTax = totalTax
	invoice.TotalAmount = roundCents(subtotal + totalTax)
}

// MinorUnits converts a charge in major currency units to minor units,
// round-to-nearest.
func MinorUnits(major float64) int64 {
	return int64(math.Round(major * 100))
}

// ValidatePaymentLink enforces the parent-linkage invariant at payment
// creation: exactly one of booking/prescription is set, and the payment
// amount in minor units reconciles with the parent's charge. A parent
// charge that is not a finite non-negative number cannot be reconciled;
// the check reports skipped=true and the caller logs a warning instead
// of rejecting, a documented tolerance for legacy rows.
func ValidatePaymentLink(payment *model.Payment, booking *model.Booking, prescription *model.Prescription) (skipped bool, err error) {
	hasBooking := payment.BookingID != nil
	hasPrescription := payment.PrescriptionID != nil
	if hasBooking == hasPrescription {
		return false, apperrors.NewConflict("payment must reference exactly one of booking or prescription")
	}
	if payment.Amount < 1 {
		return false, apperrors.NewValidation("payment amount must be at least one minor unit")
	}

	var charge float64
	switch {
	case hasBooking:
		if booking == nil {
			return false, apperrors.NewValidation("payment references a booking that does not exist")
		}
		charge = booking.Charge
	default:
		if prescription == nil {
			return false, apperrors.NewValidation("payment references a prescription that does not exist")
		}
		charge = prescription.Charge
	}

	if math.IsNaN(charge) || math.IsInf(charge, 0) || charge < 0 {
		return true, nil
	}

	if expected := MinorUnits(charge); payment.Amount != expected {
		return false, apperrors.NewConflict(fmt.Sprintf("payment amount %d does not reconcile with parent charge of %d minor units", payment.Amount, expected))
	}
	return false, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
