package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/service/access"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
	"github.com/jwalitptl/careflow-api/pkg/logger"
)

type fakeConsultationRepo struct {
	list []*model.Consultation
}

func (f *fakeConsultationRepo) Create(ctx context.Context, c *model.Consultation) error { return nil }
func (f *fakeConsultationRepo) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	return nil, fmt.Errorf("no rows")
}
func (f *fakeConsultationRepo) UpdateStatus(ctx context.Context, c *model.Consultation, expected model.ConsultationStatus) error {
	return nil
}
func (f *fakeConsultationRepo) AppendNote(ctx context.Context, id uuid.UUID, note model.ConsultationNote) error {
	return nil
}
func (f *fakeConsultationRepo) AppendMessage(ctx context.Context, id uuid.UUID, msg model.ConsultationMessage) error {
	return nil
}
func (f *fakeConsultationRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error) {
	return f.list, nil
}

type fakePrescriptionRepo struct {
	list []*model.Prescription
}

func (f *fakePrescriptionRepo) Create(ctx context.Context, p *model.Prescription) error { return nil }
func (f *fakePrescriptionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	return nil, fmt.Errorf("no rows")
}
func (f *fakePrescriptionRepo) UpdateStatus(ctx context.Context, p *model.Prescription, expected model.PrescriptionStatus) error {
	return nil
}
func (f *fakePrescriptionRepo) UpdatePharmacy(ctx context.Context, id, pharmacyID uuid.UUID) error {
	return nil
}
func (f *fakePrescriptionRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	return f.list, nil
}

type fakeReferralRepo struct {
	list []*model.Referral
}

func (f *fakeReferralRepo) Create(ctx context.Context, r *model.Referral) error { return nil }
func (f *fakeReferralRepo) Get(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	return nil, fmt.Errorf("no rows")
}
func (f *fakeReferralRepo) UpdateStatus(ctx context.Context, r *model.Referral, expected model.ReferralStatus) error {
	return nil
}
func (f *fakeReferralRepo) ListForEntity(ctx context.Context, entityID uuid.UUID) ([]*model.Referral, error) {
	return nil, nil
}
func (f *fakeReferralRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Referral, error) {
	return f.list, nil
}

type fakeInvoiceRepo struct {
	list []*model.Invoice
}

func (f *fakeInvoiceRepo) Create(ctx context.Context, inv *model.Invoice) error { return nil }
func (f *fakeInvoiceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return nil, fmt.Errorf("no rows")
}
func (f *fakeInvoiceRepo) UpdateStatus(ctx context.Context, inv *model.Invoice, expected model.InvoiceStatus) error {
	return nil
}
func (f *fakeInvoiceRepo) FindByBooking(ctx context.Context, bookingID uuid.UUID) (*model.Invoice, error) {
	return nil, nil
}
func (f *fakeInvoiceRepo) FindByPrescription(ctx context.Context, prescriptionID uuid.UUID) (*model.Invoice, error) {
	return nil, nil
}
func (f *fakeInvoiceRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Invoice, error) {
	return f.list, nil
}

type fakeConsentRepo struct{}

func (fakeConsentRepo) Create(ctx context.Context, c *model.ConsentRequest) error { return nil }
func (fakeConsentRepo) Get(ctx context.Context, id uuid.UUID) (*model.ConsentRequest, error) {
	return nil, fmt.Errorf("no rows")
}
func (fakeConsentRepo) FindApprovedForPair(ctx context.Context, patientID, requesterID uuid.UUID) (*model.ConsentRequest, error) {
	return nil, nil
}
func (fakeConsentRepo) UpdateStatus(ctx context.Context, c *model.ConsentRequest, expected model.ConsentStatus) error {
	return nil
}
func (fakeConsentRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ConsentRequest, error) {
	return nil, nil
}
func (fakeConsentRepo) ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.ConsentRequest, error) {
	return nil, nil
}

type fakeBookingRepo struct {
	qualifying map[string]*model.Booking
}

func pairKey(patientID, providerID uuid.UUID) string {
	return patientID.String() + "/" + providerID.String()
}

func (f *fakeBookingRepo) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return nil, fmt.Errorf("no rows")
}
func (f *fakeBookingRepo) FindQualifying(ctx context.Context, patientID, providerID uuid.UUID) (*model.Booking, error) {
	return f.qualifying[pairKey(patientID, providerID)], nil
}

func TestTimelineMergesAndSortsNewestFirst(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	consultations := &fakeConsultationRepo{list: []*model.Consultation{{
		ConsultationID: "CON-1",
		Status:         model.ConsultationStatusCompleted,
		Mode:           model.ConsultationModeInPerson,
		ScheduledAt:    base.Add(48 * time.Hour),
		DoctorSnapshot: model.Snapshot{Name: "Dr. Asha Rao"},
	}}}
	prescriptions := &fakePrescriptionRepo{list: []*model.Prescription{{
		Base:           model.Base{CreatedAt: base.Add(24 * time.Hour)},
		PrescriptionID: "RX-1",
		Status:         model.PrescriptionStatusPending,
		Medicines:      model.MedicineList{{Name: "Atorvastatin"}},
		DoctorSnapshot: model.Snapshot{Name: "Dr. Asha Rao"},
	}}}
	referrals := &fakeReferralRepo{list: []*model.Referral{{
		Base:           model.Base{CreatedAt: base},
		ReferralID:     "REF-1",
		Status:         model.ReferralStatusCompleted,
		Type:           model.ReferralTypeDoctorToDoctor,
		SourceSnapshot: model.Snapshot{Name: "Dr. Asha Rao"},
		TargetSnapshot: model.Snapshot{Name: "Dr. Ben Oduya"},
	}}}
	issuedAt := base.Add(72 * time.Hour)
	invoices := &fakeInvoiceRepo{list: []*model.Invoice{{
		InvoiceID:   "INV-1",
		Status:      model.InvoiceStatusPaid,
		TotalAmount: 1180,
		IssuedAt:    &issuedAt,
	}}}

	bookings := &fakeBookingRepo{qualifying: map[string]*model.Booking{
		pairKey(patientID, doctorID): {Status: model.BookingStatusCompleted},
	}}
	gate := access.NewService(fakeConsentRepo{}, bookings, logger.NewLogger(nil), nil)
	svc := NewService(consultations, prescriptions, referrals, invoices, gate)

	entries, err := svc.Timeline(context.Background(), model.Actor{ID: doctorID, Role: model.RoleDoctor}, patientID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "invoice", entries[0].Kind)
	assert.Equal(t, "consultation", entries[1].Kind)
	assert.Equal(t, "prescription", entries[2].Kind)
	assert.Equal(t, "referral", entries[3].Kind)
}

func TestTimelinePatientSeesOwnHistory(t *testing.T) {
	patientID := uuid.New()
	gate := access.NewService(fakeConsentRepo{}, &fakeBookingRepo{qualifying: map[string]*model.Booking{}}, logger.NewLogger(nil), nil)
	svc := NewService(&fakeConsultationRepo{}, &fakePrescriptionRepo{}, &fakeReferralRepo{}, &fakeInvoiceRepo{}, gate)

	entries, err := svc.Timeline(context.Background(), model.Actor{ID: patientID, Role: model.RolePatient}, patientID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTimelineDeniedWithoutAccess(t *testing.T) {
	gate := access.NewService(fakeConsentRepo{}, &fakeBookingRepo{qualifying: map[string]*model.Booking{}}, logger.NewLogger(nil), nil)
	svc := NewService(&fakeConsultationRepo{}, &fakePrescriptionRepo{}, &fakeReferralRepo{}, &fakeInvoiceRepo{}, gate)

	_, err := svc.Timeline(context.Background(), model.Actor{ID: uuid.New(), Role: model.RoleDoctor}, uuid.New())
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}
