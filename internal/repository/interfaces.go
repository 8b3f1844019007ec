package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/model"
)

// ErrStaleStatus is returned by conditional status writes when the row's
// status no longer matches what the caller read. The service layer
// re-reads and surfaces an invalid-transition error; the stale write is
// never applied.
var ErrStaleStatus = errors.New("entity status changed concurrently")

// UnitOfWork executes a closure atomically: any error aborts every
// write performed inside it. Repository methods participate in the
// ambient unit of work when one is running.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// All repository interfaces in one file
type (
	// ConsentRepository persists consent requests. Find methods return
	// (nil, nil) when no matching row exists.
	ConsentRepository interface {
		Create(ctx context.Context, consent *model.ConsentRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.ConsentRequest, error)
		// FindApprovedForPair returns the newest APPROVED consent for
		// the pair regardless of expiry; the caller decides whether it
		// has lapsed.
		FindApprovedForPair(ctx context.Context, patientID, requesterID uuid.UUID) (*model.ConsentRequest, error)
		// UpdateStatus writes status and response stamps only if the
		// row's status still equals expected.
		UpdateStatus(ctx context.Context, consent *model.ConsentRequest, expected model.ConsentStatus) error
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ConsentRequest, error)
		ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.ConsentRequest, error)
	}

	ReferralRepository interface {
		Create(ctx context.Context, referral *model.Referral) error
		Get(ctx context.Context, id uuid.UUID) (*model.Referral, error)
		UpdateStatus(ctx context.Context, referral *model.Referral, expected model.ReferralStatus) error
		ListForEntity(ctx context.Context, entityID uuid.UUID) ([]*model.Referral, error)
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Referral, error)
	}

	ConsultationRepository interface {
		Create(ctx context.Context, consultation *model.Consultation) error
		Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
		UpdateStatus(ctx context.Context, consultation *model.Consultation, expected model.ConsultationStatus) error
		// AppendNote and AppendMessage extend the jsonb logs in place;
		// existing entries are never rewritten.
		AppendNote(ctx context.Context, id uuid.UUID, note model.ConsultationNote) error
		AppendMessage(ctx context.Context, id uuid.UUID, message model.ConsultationMessage) error
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, prescription *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		UpdateStatus(ctx context.Context, prescription *model.Prescription, expected model.PrescriptionStatus) error
		// UpdatePharmacy reassigns the dispensing pharmacy; the write
		// succeeds only while the row is still PENDING.
		UpdatePharmacy(ctx context.Context, id, pharmacyID uuid.UUID) error
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error)
	}

	InvoiceRepository interface {
		Create(ctx context.Context, invoice *model.Invoice) error
		Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
		UpdateStatus(ctx context.Context, invoice *model.Invoice, expected model.InvoiceStatus) error
		FindByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Invoice, error)
		FindByPrescription(ctx context.Context, prescriptionID uuid.UUID) (*model.Invoice, error)
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Invoice, error)
	}

	PaymentRepository interface {
		Create(ctx context.Context, payment *model.Payment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Payment, error)
		GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error)
		UpdateStatus(ctx context.Context, payment *model.Payment, expected model.PaymentStatus) error
	}

	// BookingRepository is the read-only view of the booking subsystem.
	BookingRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		// FindQualifying returns a CONFIRMED or COMPLETED booking
		// linking the pair, or (nil, nil) when none exists.
		FindQualifying(ctx context.Context, patientID, providerID uuid.UUID) (*model.Booking, error)
	}

	// UserRepository is the identity directory lookup.
	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.DirectoryUser, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
