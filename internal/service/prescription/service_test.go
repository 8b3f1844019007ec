package prescription

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
	"github.com/jwalitptl/careflow-api/internal/service/access"
	"github.com/jwalitptl/careflow-api/internal/service/event"
	"github.com/jwalitptl/careflow-api/internal/service/identity"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
	"github.com/jwalitptl/careflow-api/pkg/logger"
)

type fakePrescriptionRepo struct {
	byID map[uuid.UUID]*model.Prescription
}

func newFakePrescriptionRepo() *fakePrescriptionRepo {
	return &fakePrescriptionRepo{byID: make(map[uuid.UUID]*model.Prescription)}
}

func (f *fakePrescriptionRepo) Create(ctx context.Context, p *model.Prescription) error {
	p.ID = uuid.New()
	stored := *p
	f.byID[p.ID] = &stored
	return nil
}

func (f *fakePrescriptionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	copied := *p
	return &copied, nil
}

func (f *fakePrescriptionRepo) UpdateStatus(ctx context.Context, p *model.Prescription, expected model.PrescriptionStatus) error {
	stored, ok := f.byID[p.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStaleStatus
	}
	copied := *p
	f.byID[p.ID] = &copied
	return nil
}

func (f *fakePrescriptionRepo) UpdatePharmacy(ctx context.Context, id, pharmacyID uuid.UUID) error {
	stored, ok := f.byID[id]
	if !ok || stored.Status != model.PrescriptionStatusPending {
		return repository.ErrStaleStatus
	}
	stored.PharmacyID = pharmacyID
	return nil
}

func (f *fakePrescriptionRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	var out []*model.Prescription
	for _, p := range f.byID {
		if p.PatientID == patientID {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.DirectoryUser
}

func (f *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.DirectoryUser, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return u, nil
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

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	f.events = append(f.events, e)
	return nil
}
func (f *fakeOutboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}
func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, msg string, retryAt *time.Time) error {
	return nil
}
func (f *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fixture struct {
	svc       *Service
	repo      *fakePrescriptionRepo
	outbox    *fakeOutboxRepo
	doctor    *model.DirectoryUser
	patient   *model.DirectoryUser
	pharmacy  *model.DirectoryUser
	pharmacy2 *model.DirectoryUser
}

func newFixture() *fixture {
	doctor := &model.DirectoryUser{Base: model.Base{ID: uuid.New()}, Role: model.RoleDoctor, Name: "Dr. Asha Rao", Specialization: "Cardiology"}
	patient := &model.DirectoryUser{Base: model.Base{ID: uuid.New()}, Role: model.RolePatient, Name: "Maya Kulkarni"}
	pharmacy := &model.DirectoryUser{Base: model.Base{ID: uuid.New()}, Role: model.RolePharmacy, Name: "Central Pharmacy", Location: "Pune"}
	pharmacy2 := &model.DirectoryUser{Base: model.Base{ID: uuid.New()}, Role: model.RolePharmacy, Name: "Night Owl Pharmacy", Location: "Pune"}

	users := &fakeUserRepo{users: map[uuid.UUID]*model.DirectoryUser{
		doctor.ID: doctor, patient.ID: patient, pharmacy.ID: pharmacy, pharmacy2.ID: pharmacy2,
	}}
	bookings := &fakeBookingRepo{qualifying: map[string]*model.Booking{
		pairKey(patient.ID, doctor.ID): {Status: model.BookingStatusCompleted},
	}}

	repo := newFakePrescriptionRepo()
	outbox := &fakeOutboxRepo{}
	gate := access.NewService(fakeConsentRepo{}, bookings, logger.NewLogger(nil), nil)
	svc := NewService(repo, gate, identity.NewService(users), event.NewService(outbox), nil)

	return &fixture{svc: svc, repo: repo, outbox: outbox, doctor: doctor, patient: patient, pharmacy: pharmacy, pharmacy2: pharmacy2}
}

func (fx *fixture) doctorActor() model.Actor {
	return model.Actor{ID: fx.doctor.ID, Role: model.RoleDoctor}
}

func (fx *fixture) create(t *testing.T) *model.Prescription {
	t.Helper()
	p, err := fx.svc.Create(context.Background(), fx.doctorActor(), &model.CreatePrescriptionRequest{
		PatientID:  fx.patient.ID,
		PharmacyID: fx.pharmacy.ID,
		Medicines: []model.Medicine{
			{Name: "Atorvastatin", Dosage: "10mg", Quantity: 30, Instructions: "after dinner"},
		},
		Charge: 120.50,
	})
	require.NoError(t, err)
	return p
}

func TestCreatePrescription(t *testing.T) {
	fx := newFixture()
	p := fx.create(t)

	assert.Equal(t, model.PrescriptionStatusPending, p.Status)
	assert.NotEmpty(t, p.PrescriptionID)
	assert.Equal(t, fx.pharmacy.ID, p.PharmacyID)
	assert.Equal(t, "Cardiology", p.DoctorSnapshot.Profile.Specialization)
	require.Len(t, fx.outbox.events, 1)
	assert.Equal(t, model.EventPrescriptionCreated, fx.outbox.events[0].EventType)
}

func TestCreateRequiresMedicines(t *testing.T) {
	fx := newFixture()

	cases := []struct {
		name      string
		medicines []model.Medicine
	}{
		{"empty list", nil},
		{"missing name", []model.Medicine{{Dosage: "10mg", Quantity: 1}}},
		{"missing dosage", []model.Medicine{{Name: "Atorvastatin", Quantity: 1}}},
		{"zero quantity", []model.Medicine{{Name: "Atorvastatin", Dosage: "10mg", Quantity: 0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.Create(context.Background(), fx.doctorActor(), &model.CreatePrescriptionRequest{
				PatientID:  fx.patient.ID,
				PharmacyID: fx.pharmacy.ID,
				Medicines:  tc.medicines,
			})
			assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
		})
	}
}

func TestCreateRequiresPharmacyRole(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.Create(context.Background(), fx.doctorActor(), &model.CreatePrescriptionRequest{
		PatientID:  fx.patient.ID,
		PharmacyID: fx.doctor.ID,
		Medicines:  []model.Medicine{{Name: "Atorvastatin", Dosage: "10mg", Quantity: 30}},
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestCreateDeniedWithoutAccess(t *testing.T) {
	fx := newFixture()
	other := &model.DirectoryUser{Base: model.Base{ID: uuid.New()}, Role: model.RoleDoctor, Name: "Dr. Ben Oduya"}
	fx.svc.identity = identity.NewService(&fakeUserRepo{users: map[uuid.UUID]*model.DirectoryUser{
		other.ID: other, fx.patient.ID: fx.patient, fx.pharmacy.ID: fx.pharmacy,
	}})

	_, err := fx.svc.Create(context.Background(), model.Actor{ID: other.ID, Role: model.RoleDoctor}, &model.CreatePrescriptionRequest{
		PatientID:  fx.patient.ID,
		PharmacyID: fx.pharmacy.ID,
		Medicines:  []model.Medicine{{Name: "Atorvastatin", Dosage: "10mg", Quantity: 30}},
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
	assert.Empty(t, fx.repo.byID)
}

func TestReassignPharmacy(t *testing.T) {
	fx := newFixture()
	p := fx.create(t)

	updated, err := fx.svc.ReassignPharmacy(context.Background(), model.Actor{ID: fx.patient.ID, Role: model.RolePatient}, p.ID, &model.ReassignPharmacyRequest{
		PharmacyID: fx.pharmacy2.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, fx.pharmacy2.ID, updated.PharmacyID)
	assert.Equal(t, fx.pharmacy2.ID, fx.repo.byID[p.ID].PharmacyID)
}

func TestReassignPharmacyPatientOnly(t *testing.T) {
	fx := newFixture()
	p := fx.create(t)

	_, err := fx.svc.ReassignPharmacy(context.Background(), fx.doctorActor(), p.ID, &model.ReassignPharmacyRequest{
		PharmacyID: fx.pharmacy2.ID,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestReassignPharmacyOnlyWhilePending(t *testing.T) {
	fx := newFixture()
	p := fx.create(t)
	_, err := fx.svc.Fulfill(context.Background(), model.Actor{ID: fx.pharmacy.ID, Role: model.RolePharmacy}, p.ID)
	require.NoError(t, err)

	_, err = fx.svc.ReassignPharmacy(context.Background(), model.Actor{ID: fx.patient.ID, Role: model.RolePatient}, p.ID, &model.ReassignPharmacyRequest{
		PharmacyID: fx.pharmacy2.ID,
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
}

func TestFulfillByAssignedPharmacy(t *testing.T) {
	fx := newFixture()
	p := fx.create(t)

	fulfilled, err := fx.svc.Fulfill(context.Background(), model.Actor{ID: fx.pharmacy.ID, Role: model.RolePharmacy}, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionStatusFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.FulfilledAt)
}

func TestFulfillRejectsOtherPharmacy(t *testing.T) {
	fx := newFixture()
	p := fx.create(t)

	_, err := fx.svc.Fulfill(context.Background(), model.Actor{ID: fx.pharmacy2.ID, Role: model.RolePharmacy}, p.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
	assert.Equal(t, model.PrescriptionStatusPending, fx.repo.byID[p.ID].Status)
}

func TestCancelByDoctorOrPatient(t *testing.T) {
	fx := newFixture()

	p := fx.create(t)
	cancelled, err := fx.svc.Cancel(context.Background(), fx.doctorActor(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, fx.doctor.ID, *cancelled.CancelledBy)

	p = fx.create(t)
	_, err = fx.svc.Cancel(context.Background(), model.Actor{ID: fx.patient.ID, Role: model.RolePatient}, p.ID)
	require.NoError(t, err)

	p = fx.create(t)
	_, err = fx.svc.Cancel(context.Background(), model.Actor{ID: fx.pharmacy.ID, Role: model.RolePharmacy}, p.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestTerminalPrescriptionIsImmutable(t *testing.T) {
	fx := newFixture()
	p := fx.create(t)
	_, err := fx.svc.Cancel(context.Background(), fx.doctorActor(), p.ID)
	require.NoError(t, err)

	_, err = fx.svc.Fulfill(context.Background(), model.Actor{ID: fx.pharmacy.ID, Role: model.RolePharmacy}, p.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
	_, err = fx.svc.Cancel(context.Background(), fx.doctorActor(), p.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
}

func TestTransitionEmitsEvent(t *testing.T) {
	fx := newFixture()
	p := fx.create(t)

	_, err := fx.svc.Fulfill(context.Background(), model.Actor{ID: fx.pharmacy.ID, Role: model.RolePharmacy}, p.ID)
	require.NoError(t, err)

	require.Len(t, fx.outbox.events, 2)
	assert.Equal(t, model.EventPrescriptionChanged, fx.outbox.events[1].EventType)
}
