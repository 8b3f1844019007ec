package access

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/pkg/logger"
)

type fakeConsentRepo struct {
	consent   *model.ConsentRequest
	findErr   error
	updated   []*model.ConsentRequest
	updateErr error
}

func (f *fakeConsentRepo) Create(ctx context.Context, c *model.ConsentRequest) error { return nil }
func (f *fakeConsentRepo) Get(ctx context.Context, id uuid.UUID) (*model.ConsentRequest, error) {
	return nil, fmt.Errorf("not implemented")
}
func (f *fakeConsentRepo) FindApprovedForPair(ctx context.Context, patientID, requesterID uuid.UUID) (*model.ConsentRequest, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.consent, nil
}
func (f *fakeConsentRepo) UpdateStatus(ctx context.Context, c *model.ConsentRequest, expected model.ConsentStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, c)
	return nil
}
func (f *fakeConsentRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ConsentRequest, error) {
	return nil, nil
}
func (f *fakeConsentRepo) ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.ConsentRequest, error) {
	return nil, nil
}

type fakeBookingRepo struct {
	booking *model.Booking
	findErr error
}

func (f *fakeBookingRepo) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return nil, fmt.Errorf("not implemented")
}
func (f *fakeBookingRepo) FindQualifying(ctx context.Context, patientID, providerID uuid.UUID) (*model.Booking, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.booking, nil
}

func newGate(consents *fakeConsentRepo, bookings *fakeBookingRepo) *Service {
	return NewService(consents, bookings, logger.NewLogger(nil), nil)
}

func approvedConsent(expiresAt *time.Time) *model.ConsentRequest {
	return &model.ConsentRequest{
		ConsentID:   "CNS-TEST-1",
		PatientID:   uuid.New(),
		RequesterID: uuid.New(),
		Status:      model.ConsentStatusApproved,
		ExpiresAt:   expiresAt,
	}
}

func TestDeniesWhenNothingQualifies(t *testing.T) {
	gate := newGate(&fakeConsentRepo{}, &fakeBookingRepo{})
	assert.False(t, gate.CanAccess(context.Background(), uuid.New(), uuid.New()))
}

func TestGrantsOnUnexpiredConsent(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour)
	gate := newGate(&fakeConsentRepo{consent: approvedConsent(&expiry)}, &fakeBookingRepo{})
	assert.True(t, gate.CanAccess(context.Background(), uuid.New(), uuid.New()))
}

func TestGrantsOnConsentWithoutExpiry(t *testing.T) {
	gate := newGate(&fakeConsentRepo{consent: approvedConsent(nil)}, &fakeBookingRepo{})
	assert.True(t, gate.CanAccess(context.Background(), uuid.New(), uuid.New()))
}

func TestGrantsOnQualifyingBooking(t *testing.T) {
	booking := &model.Booking{Status: model.BookingStatusConfirmed}
	gate := newGate(&fakeConsentRepo{}, &fakeBookingRepo{booking: booking})
	assert.True(t, gate.CanAccess(context.Background(), uuid.New(), uuid.New()))

	booking.Status = model.BookingStatusCompleted
	assert.True(t, gate.CanAccess(context.Background(), uuid.New(), uuid.New()))
}

func TestExpiredConsentIsDeniedAndDowngradedInSameEvaluation(t *testing.T) {
	expiry := time.Now().Add(-time.Minute)
	consents := &fakeConsentRepo{consent: approvedConsent(&expiry)}
	gate := newGate(consents, &fakeBookingRepo{})

	assert.False(t, gate.CanAccess(context.Background(), uuid.New(), uuid.New()))

	// the lapse discovered during this evaluation was persisted
	if assert.Len(t, consents.updated, 1) {
		assert.Equal(t, model.ConsentStatusExpired, consents.updated[0].Status)
	}
}

func TestExpiredConsentFallsThroughToBookingPath(t *testing.T) {
	expiry := time.Now().Add(-time.Minute)
	consents := &fakeConsentRepo{consent: approvedConsent(&expiry)}
	booking := &model.Booking{Status: model.BookingStatusConfirmed}
	gate := newGate(consents, &fakeBookingRepo{booking: booking})

	assert.True(t, gate.CanAccess(context.Background(), uuid.New(), uuid.New()))
}

func TestFailsClosedOnLookupErrors(t *testing.T) {
	gate := newGate(&fakeConsentRepo{findErr: fmt.Errorf("db down")}, &fakeBookingRepo{findErr: fmt.Errorf("db down")})
	assert.False(t, gate.CanAccess(context.Background(), uuid.New(), uuid.New()))
}

func TestFailsClosedOnNilIdentifiers(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour)
	gate := newGate(&fakeConsentRepo{consent: approvedConsent(&expiry)}, &fakeBookingRepo{})

	assert.False(t, gate.CanAccess(context.Background(), uuid.Nil, uuid.New()))
	assert.False(t, gate.CanAccess(context.Background(), uuid.New(), uuid.Nil))
}

func TestDenialHasNoSideEffects(t *testing.T) {
	consents := &fakeConsentRepo{}
	gate := newGate(consents, &fakeBookingRepo{})

	gate.CanAccess(context.Background(), uuid.New(), uuid.New())
	assert.Empty(t, consents.updated)
}
