package consent

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
	"github.com/jwalitptl/careflow-api/internal/service/event"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

type fakeConsentRepo struct {
	byID map[uuid.UUID]*model.ConsentRequest
}

func newFakeConsentRepo() *fakeConsentRepo {
	return &fakeConsentRepo{byID: make(map[uuid.UUID]*model.ConsentRequest)}
}

func (f *fakeConsentRepo) Create(ctx context.Context, c *model.ConsentRequest) error {
	c.ID = uuid.New()
	stored := *c
	f.byID[c.ID] = &stored
	return nil
}

func (f *fakeConsentRepo) Get(ctx context.Context, id uuid.UUID) (*model.ConsentRequest, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	copied := *c
	return &copied, nil
}

func (f *fakeConsentRepo) FindApprovedForPair(ctx context.Context, patientID, requesterID uuid.UUID) (*model.ConsentRequest, error) {
	return nil, nil
}

func (f *fakeConsentRepo) UpdateStatus(ctx context.Context, c *model.ConsentRequest, expected model.ConsentStatus) error {
	stored, ok := f.byID[c.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStaleStatus
	}
	copied := *c
	f.byID[c.ID] = &copied
	return nil
}

func (f *fakeConsentRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.ConsentRequest, error) {
	var out []*model.ConsentRequest
	for _, c := range f.byID {
		if c.PatientID == patientID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeConsentRepo) ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.ConsentRequest, error) {
	var out []*model.ConsentRequest
	for _, c := range f.byID {
		if c.RequesterID == requesterID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
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
	repo      *fakeConsentRepo
	outbox    *fakeOutboxRepo
	patientID uuid.UUID
	doctorID  uuid.UUID
}

func newFixture() *fixture {
	repo := newFakeConsentRepo()
	outbox := &fakeOutboxRepo{}
	return &fixture{
		svc:       NewService(repo, event.NewService(outbox), nil),
		repo:      repo,
		outbox:    outbox,
		patientID: uuid.New(),
		doctorID:  uuid.New(),
	}
}

func (fx *fixture) patient() model.Actor {
	return model.Actor{ID: fx.patientID, Role: model.RolePatient}
}

func (fx *fixture) doctor() model.Actor {
	return model.Actor{ID: fx.doctorID, Role: model.RoleDoctor}
}

func (fx *fixture) request(t *testing.T) *model.ConsentRequest {
	t.Helper()
	consent, err := fx.svc.Request(context.Background(), fx.doctor(), &model.CreateConsentRequest{
		PatientID: fx.patientID,
		Purpose:   "Review cardiology history before surgery",
	})
	require.NoError(t, err)
	return consent
}

func TestRequestConsent(t *testing.T) {
	fx := newFixture()
	consent := fx.request(t)

	assert.Equal(t, model.ConsentStatusPending, consent.Status)
	assert.NotEmpty(t, consent.ConsentID)
	assert.Equal(t, fx.doctorID, consent.RequesterID)
	assert.Equal(t, model.RoleDoctor, consent.RequesterRole)
	require.Len(t, fx.outbox.events, 1)
	assert.Equal(t, model.EventConsentRequested, fx.outbox.events[0].EventType)
}

func TestRequestConsentValidation(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.Request(context.Background(), fx.doctor(), &model.CreateConsentRequest{
		PatientID: fx.patientID,
		Purpose:   "too short",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = fx.svc.Request(context.Background(), model.Actor{ID: uuid.New(), Role: model.RolePatient}, &model.CreateConsentRequest{
		PatientID: fx.patientID,
		Purpose:   "Patients cannot request consent from patients",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestApproveWithValidity(t *testing.T) {
	fx := newFixture()
	consent := fx.request(t)

	approved, err := fx.svc.Approve(context.Background(), fx.patient(), consent.ID, &model.RespondConsentRequest{ValidityDays: 30})
	require.NoError(t, err)
	assert.Equal(t, model.ConsentStatusApproved, approved.Status)
	require.NotNil(t, approved.RespondedAt)
	require.NotNil(t, approved.ExpiresAt)
	assert.WithinDuration(t, approved.RespondedAt.AddDate(0, 0, 30), *approved.ExpiresAt, time.Second)
}

func TestApproveWithoutValidityNeverExpires(t *testing.T) {
	fx := newFixture()
	consent := fx.request(t)

	approved, err := fx.svc.Approve(context.Background(), fx.patient(), consent.ID, &model.RespondConsentRequest{})
	require.NoError(t, err)
	assert.Nil(t, approved.ExpiresAt)
}

func TestOnlyPatientResponds(t *testing.T) {
	fx := newFixture()
	consent := fx.request(t)

	_, err := fx.svc.Approve(context.Background(), fx.doctor(), consent.ID, &model.RespondConsentRequest{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	_, err = fx.svc.Reject(context.Background(), model.Actor{ID: uuid.New(), Role: model.RolePatient}, consent.ID, nil)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
	assert.Equal(t, model.ConsentStatusPending, fx.repo.byID[consent.ID].Status)
}

func TestRejectIsTerminal(t *testing.T) {
	fx := newFixture()
	consent := fx.request(t)

	rejected, err := fx.svc.Reject(context.Background(), fx.patient(), consent.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ConsentStatusRejected, rejected.Status)

	_, err = fx.svc.Approve(context.Background(), fx.patient(), consent.ID, &model.RespondConsentRequest{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
	_, err = fx.svc.Revoke(context.Background(), fx.patient(), consent.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
}

func TestRevokeApprovedConsent(t *testing.T) {
	fx := newFixture()
	consent := fx.request(t)
	_, err := fx.svc.Approve(context.Background(), fx.patient(), consent.ID, &model.RespondConsentRequest{})
	require.NoError(t, err)

	revoked, err := fx.svc.Revoke(context.Background(), fx.patient(), consent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConsentStatusRevoked, revoked.Status)
	require.NotNil(t, revoked.RevokedAt)
	require.Len(t, fx.outbox.events, 3)
	assert.Equal(t, model.EventConsentRevoked, fx.outbox.events[2].EventType)
}

func TestRevokeRequiresApproval(t *testing.T) {
	fx := newFixture()
	consent := fx.request(t)

	_, err := fx.svc.Revoke(context.Background(), fx.patient(), consent.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
}

func TestGetDowngradesLapsedApproval(t *testing.T) {
	fx := newFixture()
	consent := fx.request(t)
	_, err := fx.svc.Approve(context.Background(), fx.patient(), consent.ID, &model.RespondConsentRequest{ValidityDays: 1})
	require.NoError(t, err)

	lapsed := time.Now().Add(-time.Hour)
	fx.repo.byID[consent.ID].ExpiresAt = &lapsed

	got, err := fx.svc.Get(context.Background(), fx.patient(), consent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConsentStatusExpired, got.Status)
	assert.Equal(t, model.ConsentStatusExpired, fx.repo.byID[consent.ID].Status)
}

func TestGetVisibleToParticipantsOnly(t *testing.T) {
	fx := newFixture()
	consent := fx.request(t)

	_, err := fx.svc.Get(context.Background(), fx.doctor(), consent.ID)
	require.NoError(t, err)
	_, err = fx.svc.Get(context.Background(), model.Actor{ID: uuid.New(), Role: model.RoleDoctor}, consent.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestListForPatientPatientOnly(t *testing.T) {
	fx := newFixture()
	fx.request(t)

	list, err := fx.svc.ListForPatient(context.Background(), fx.patient(), fx.patientID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = fx.svc.ListForPatient(context.Background(), fx.doctor(), fx.patientID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}
