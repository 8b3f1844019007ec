package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
	"github.com/jwalitptl/careflow-api/internal/service/access"
	"github.com/jwalitptl/careflow-api/internal/service/event"
	"github.com/jwalitptl/careflow-api/internal/statemachine"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
	"github.com/jwalitptl/careflow-api/pkg/identifier"
	"github.com/jwalitptl/careflow-api/pkg/logger"
	"github.com/jwalitptl/careflow-api/pkg/metrics"
)

var invoiceTransitions = statemachine.New("invoice", statemachine.Table{
	string(model.InvoiceStatusDraft):  {string(model.InvoiceStatusIssued), string(model.InvoiceStatusCancelled)},
	string(model.InvoiceStatusIssued): {string(model.InvoiceStatusPaid), string(model.InvoiceStatusCancelled)},
})

var paymentTransitions = statemachine.New("payment", statemachine.Table{
	string(model.PaymentStatusPending): {string(model.PaymentStatusSuccess), string(model.PaymentStatusFailed)},
	string(model.PaymentStatusSuccess): {string(model.PaymentStatusRefunded)},
})

const defaultCurrency = "INR"

var providerRoles = map[model.Role]bool{
	model.RoleDoctor:   true,
	model.RoleHospital: true,
	model.RoleLab:      true,
	model.RolePharmacy: true,
}

type Service struct {
	invoices      repository.InvoiceRepository
	payments      repository.PaymentRepository
	bookings      repository.BookingRepository
	prescriptions repository.PrescriptionRepository
	gate          *access.Service
	events        *event.Service
	uow           repository.UnitOfWork
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

func NewService(
	invoices repository.InvoiceRepository,
	payments repository.PaymentRepository,
	bookings repository.BookingRepository,
	prescriptions repository.PrescriptionRepository,
	gate *access.Service,
	events *event.Service,
	uow repository.UnitOfWork,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		invoices:      invoices,
		payments:      payments,
		bookings:      bookings,
		prescriptions: prescriptions,
		gate:          gate,
		events:        events,
		uow:           uow,
		logger:        logger,
		metrics:       metrics,
	}
}

// CreateInvoice bills a patient for a booking, a prescription, or a
// standalone service. Totals are derived from the line items before the
// first persistence; the invoice is issued immediately unless the
// provider asks for a draft.
func (s *Service) CreateInvoice(ctx context.Context, actor model.Actor, req *model.CreateInvoiceRequest) (*model.Invoice, error) {
	if !providerRoles[actor.Role] {
		return nil, apperrors.NewAuthorization("only providers can create invoices")
	}
	if req.BookingID != nil && req.PrescriptionID != nil {
		return nil, apperrors.NewValidation("invoice may reference at most one of booking or prescription")
	}
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	for i, tax := range req.TaxDetails {
		if tax.Rate < 0 || tax.Rate > 100 {
			return nil, apperrors.NewValidationf("tax %d: rate must be between 0 and 100", i+1)
		}
	}

	invoice := &model.Invoice{
		InvoiceID:      identifier.New(identifier.KindInvoice),
		ProviderID:     actor.ID,
		PatientID:      req.PatientID,
		BookingID:      req.BookingID,
		PrescriptionID: req.PrescriptionID,
		Items:          req.Items,
		TaxDetails:     req.TaxDetails,
		Status:         model.InvoiceStatusDraft,
	}
	RecomputeInvoiceTotals(invoice)

	if !req.Draft {
		now := time.Now().UTC()
		invoice.Status = model.InvoiceStatusIssued
		invoice.IssuedAt = &now
	}

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, apperrors.NewUnexpected(err)
	}

	if invoice.Status == model.InvoiceStatusIssued {
		s.emitInvoice(ctx, invoice, string(model.InvoiceStatusDraft), actor.ID)
	}
	return invoice, nil
}

// IssueInvoice finalizes a draft. Totals are recomputed one more time
// so a draft edited elsewhere can never carry stale money fields into
// the issued state.
func (s *Service) IssueInvoice(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Invoice, error) {
	return s.transitionInvoice(ctx, actor, id, model.InvoiceStatusIssued, func(inv *model.Invoice, tr statemachine.Transition) {
		RecomputeInvoiceTotals(inv)
		inv.IssuedAt = &tr.At
	})
}

// CancelInvoice voids an unpaid invoice.
func (s *Service) CancelInvoice(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Invoice, error) {
	return s.transitionInvoice(ctx, actor, id, model.InvoiceStatusCancelled, func(inv *model.Invoice, tr statemachine.Transition) {
		inv.CancelledAt = &tr.At
	})
}

func (s *Service) transitionInvoice(ctx context.Context, actor model.Actor, id uuid.UUID, target model.InvoiceStatus, apply func(inv *model.Invoice, tr statemachine.Transition)) (*model.Invoice, error) {
	invoice, err := s.invoices.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("invoice", err)
	}
	if actor.ID != invoice.ProviderID {
		return nil, apperrors.NewAuthorization("only the issuing provider can change invoice status")
	}

	from := invoice.Status
	tr, err := invoiceTransitions.Apply(string(from), string(target), actor.ID)
	if err != nil {
		s.countFailure("invoice")
		return nil, err
	}

	invoice.Status = target
	apply(invoice, tr)

	if err := s.invoices.UpdateStatus(ctx, invoice, from); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			s.countFailure("invoice")
			current := from
			if fresh, gerr := s.invoices.Get(ctx, id); gerr == nil {
				current = fresh.Status
			}
			return nil, apperrors.NewInvalidTransition("invoice", string(current), string(target))
		}
		return nil, apperrors.NewUnexpected(err)
	}

	s.countTransition("invoice", string(from), string(target))
	if target == model.InvoiceStatusIssued {
		s.emitInvoice(ctx, invoice, string(from), actor.ID)
	}
	return invoice, nil
}

// GetInvoice returns an invoice to its provider, its patient, or a
// provider who passes the access gate for the patient.
func (s *Service) GetInvoice(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.invoices.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("invoice", err)
	}
	if actor.ID == invoice.ProviderID {
		return invoice, nil
	}
	if invoice.PatientID != nil && (actor.ID == *invoice.PatientID || s.gate.CanAccess(ctx, *invoice.PatientID, actor.ID)) {
		return invoice, nil
	}
	return nil, apperrors.NewAuthorization("no access to this invoice")
}

// CreatePaymentOrder opens a gateway order against exactly one parent.
// The amount must reconcile with the parent's charge in minor units; a
// parent with an unusable legacy charge skips the check with a warning.
func (s *Service) CreatePaymentOrder(ctx context.Context, actor model.Actor, req *model.CreatePaymentOrderRequest) (*model.Payment, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	payment := &model.Payment{
		OrderID:        identifier.New(identifier.KindOrder),
		BookingID:      req.BookingID,
		PrescriptionID: req.PrescriptionID,
		Amount:         req.Amount,
		Currency:       currency,
		Status:         model.PaymentStatusPending,
	}

	var (
		booking      *model.Booking
		prescription *model.Prescription
	)
	if req.BookingID != nil {
		b, err := s.bookings.Get(ctx, *req.BookingID)
		if err != nil {
			return nil, apperrors.NewNotFound("booking", err)
		}
		booking = b
	}
	if req.PrescriptionID != nil {
		p, err := s.prescriptions.Get(ctx, *req.PrescriptionID)
		if err != nil {
			return nil, apperrors.NewNotFound("prescription", err)
		}
		prescription = p
	}

	skipped, err := ValidatePaymentLink(payment, booking, prescription)
	if err != nil {
		return nil, err
	}
	if skipped {
		s.logger.Warn("payment amount check skipped: parent charge is not a usable number",
			"order_id", payment.OrderID, "amount", payment.Amount)
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	return payment, nil
}

// ConfirmPayment settles a gateway order. The settlement, the linked
// invoice's move to PAID, and the fulfilment of a prescription parent
// commit as one unit; PAID is reachable through this operation only.
func (s *Service) ConfirmPayment(ctx context.Context, req *model.ConfirmPaymentRequest) (*model.Payment, error) {
	payment, err := s.payments.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, apperrors.NewNotFound("payment order", err)
	}

	from := payment.Status
	tr, err := paymentTransitions.Apply(string(from), string(model.PaymentStatusSuccess), uuid.Nil)
	if err != nil {
		s.countFailure("payment")
		return nil, err
	}

	payment.Status = model.PaymentStatusSuccess
	payment.PaymentID = &req.PaymentID
	payment.Method = &req.Method
	payment.SettledAt = &tr.At

	err = s.uow.Run(ctx, func(ctx context.Context) error {
		if err := s.payments.UpdateStatus(ctx, payment, from); err != nil {
			return err
		}
		if err := s.settleInvoice(ctx, payment, tr.At); err != nil {
			return err
		}
		if payment.PrescriptionID != nil {
			if err := s.fulfillPrescription(ctx, *payment.PrescriptionID, tr.At); err != nil {
				return err
			}
		}
		return s.events.EmitTransition(ctx, model.EventPaymentSettled, "payment",
			payment.OrderID, string(from), string(model.PaymentStatusSuccess), uuid.Nil, uuid.Nil)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			s.countFailure("payment")
			return nil, apperrors.NewConflict("payment settled or failed concurrently")
		}
		return nil, apperrors.NewUnexpected(err)
	}

	s.countTransition("payment", string(from), string(model.PaymentStatusSuccess))
	return payment, nil
}

// settleInvoice moves the invoice linked to the payment's parent to
// PAID. A parent without an invoice settles the payment alone.
func (s *Service) settleInvoice(ctx context.Context, payment *model.Payment, at time.Time) error {
	var (
		invoice *model.Invoice
		err     error
	)
	switch {
	case payment.BookingID != nil:
		invoice, err = s.invoices.FindByBooking(ctx, *payment.BookingID)
	case payment.PrescriptionID != nil:
		invoice, err = s.invoices.FindByPrescription(ctx, *payment.PrescriptionID)
	}
	if err != nil {
		return err
	}
	if invoice == nil || invoice.Status != model.InvoiceStatusIssued {
		return nil
	}

	from := invoice.Status
	invoice.Status = model.InvoiceStatusPaid
	invoice.PaidAt = &at
	settled := model.PaymentStatusSuccess
	invoice.PaymentStatus = &settled
	if err := s.invoices.UpdateStatus(ctx, invoice, from); err != nil {
		return err
	}
	s.countTransition("invoice", string(from), string(model.InvoiceStatusPaid))
	return nil
}

// fulfillPrescription closes the prescription a settled payment was
// opened against. A prescription already out of PENDING is left alone.
func (s *Service) fulfillPrescription(ctx context.Context, id uuid.UUID, at time.Time) error {
	prescription, err := s.prescriptions.Get(ctx, id)
	if err != nil {
		return err
	}
	if prescription.Status != model.PrescriptionStatusPending {
		return nil
	}

	from := prescription.Status
	prescription.Status = model.PrescriptionStatusFulfilled
	prescription.FulfilledAt = &at
	if err := s.prescriptions.UpdateStatus(ctx, prescription, from); err != nil {
		return err
	}
	s.countTransition("prescription", string(from), string(model.PrescriptionStatusFulfilled))
	return nil
}

// MarkFailed records a failed settlement reported by the gateway.
func (s *Service) MarkFailed(ctx context.Context, orderID, reason string) (*model.Payment, error) {
	return s.transitionPayment(ctx, orderID, model.PaymentStatusFailed, func(p *model.Payment, tr statemachine.Transition) {
		if reason != "" {
			p.FailureReason = &reason
		}
	})
}

// MarkRefunded reverses a settled payment. This is the only writer of
// the diagnostic refund status.
func (s *Service) MarkRefunded(ctx context.Context, orderID string) (*model.Payment, error) {
	payment, err := s.transitionPayment(ctx, orderID, model.PaymentStatusRefunded, func(p *model.Payment, tr statemachine.Transition) {
		processed := model.RefundStatusProcessed
		p.RefundStatus = &processed
		p.RefundedAt = &tr.At
	})
	if err != nil {
		return nil, err
	}
	s.emitPayment(ctx, model.EventPaymentRefunded, payment, string(model.PaymentStatusSuccess), string(model.PaymentStatusRefunded))
	return payment, nil
}

func (s *Service) transitionPayment(ctx context.Context, orderID string, target model.PaymentStatus, apply func(p *model.Payment, tr statemachine.Transition)) (*model.Payment, error) {
	payment, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperrors.NewNotFound("payment order", err)
	}

	from := payment.Status
	tr, err := paymentTransitions.Apply(string(from), string(target), uuid.Nil)
	if err != nil {
		s.countFailure("payment")
		return nil, err
	}

	payment.Status = target
	apply(payment, tr)

	if err := s.payments.UpdateStatus(ctx, payment, from); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			s.countFailure("payment")
			current := from
			if fresh, gerr := s.payments.GetByOrderID(ctx, orderID); gerr == nil {
				current = fresh.Status
			}
			return nil, apperrors.NewInvalidTransition("payment", string(current), string(target))
		}
		return nil, apperrors.NewUnexpected(err)
	}

	s.countTransition("payment", string(from), string(target))

	if target == model.PaymentStatusFailed || target == model.PaymentStatusRefunded {
		if err := s.mirrorPaymentStatus(ctx, payment, target); err != nil {
			s.logger.Warn("payment status not mirrored onto invoice", "order_id", orderID, "error", err.Error())
		}
	}
	return payment, nil
}

// mirrorPaymentStatus copies the payment's status onto the invoice
// linked to its parent. The invoice's own lifecycle status is left
// untouched. Settlement to SUCCESS runs through settleInvoice instead,
// which also moves the invoice to PAID.
func (s *Service) mirrorPaymentStatus(ctx context.Context, payment *model.Payment, status model.PaymentStatus) error {
	var (
		invoice *model.Invoice
		err     error
	)
	switch {
	case payment.BookingID != nil:
		invoice, err = s.invoices.FindByBooking(ctx, *payment.BookingID)
	case payment.PrescriptionID != nil:
		invoice, err = s.invoices.FindByPrescription(ctx, *payment.PrescriptionID)
	}
	if err != nil {
		return err
	}
	if invoice == nil {
		return nil
	}

	invoice.PaymentStatus = &status
	return s.invoices.UpdateStatus(ctx, invoice, invoice.Status)
}

func validateItems(items []model.InvoiceItem) error {
	if len(items) == 0 {
		return apperrors.NewValidation("invoice must contain at least one item")
	}
	for i, item := range items {
		if strings.TrimSpace(item.ItemType) == "" {
			return apperrors.NewValidationf("item %d: item type is required", i+1)
		}
		if item.Quantity < 1 {
			return apperrors.NewValidationf("item %d: quantity must be at least 1", i+1)
		}
		if item.UnitPrice < 0 {
			return apperrors.NewValidationf("item %d: unit price cannot be negative", i+1)
		}
	}
	return nil
}

func (s *Service) emitInvoice(ctx context.Context, invoice *model.Invoice, from string, actorID uuid.UUID) {
	patientID := uuid.Nil
	if invoice.PatientID != nil {
		patientID = *invoice.PatientID
	}
	// best effort, the outbox write is not part of the business write
	_ = s.events.EmitTransition(ctx, model.EventInvoiceIssued, "invoice",
		invoice.InvoiceID, from, string(invoice.Status), actorID, patientID)
}

func (s *Service) emitPayment(ctx context.Context, eventType string, payment *model.Payment, from, to string) {
	_ = s.events.EmitTransition(ctx, eventType, "payment", payment.OrderID, from, to, uuid.Nil, uuid.Nil)
}

func (s *Service) countTransition(entity, from, to string) {
	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(entity, from, to).Inc()
	}
}

func (s *Service) countFailure(entity string) {
	if s.metrics != nil {
		s.metrics.TransitionFailures.WithLabelValues(entity).Inc()
	}
}
