package consent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
	"github.com/jwalitptl/careflow-api/internal/service/event"
	"github.com/jwalitptl/careflow-api/internal/statemachine"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
	"github.com/jwalitptl/careflow-api/pkg/identifier"
	"github.com/jwalitptl/careflow-api/pkg/metrics"
)

var transitions = statemachine.New("consent request", statemachine.Table{
	string(model.ConsentStatusPending):  {string(model.ConsentStatusApproved), string(model.ConsentStatusRejected)},
	string(model.ConsentStatusApproved): {string(model.ConsentStatusRevoked), string(model.ConsentStatusExpired)},
	// REJECTED, REVOKED and EXPIRED are terminal
})

type Service struct {
	repo    repository.ConsentRepository
	events  *event.Service
	metrics *metrics.Metrics
}

func NewService(repo repository.ConsentRepository, events *event.Service, metrics *metrics.Metrics) *Service {
	return &Service{repo: repo, events: events, metrics: metrics}
}

// Validate checks a consent request before any write. Kept explicit so
// the rules are testable without a live persistence layer.
func Validate(consent *model.ConsentRequest) error {
	if consent.PatientID == uuid.Nil {
		return apperrors.NewValidation("patient is required")
	}
	if consent.RequesterID == uuid.Nil {
		return apperrors.NewValidation("requester is required")
	}
	switch consent.RequesterRole {
	case model.RoleHospital, model.RoleDoctor, model.RoleLab:
	default:
		return apperrors.NewValidationf("role %s cannot request consent", consent.RequesterRole)
	}
	purpose := strings.TrimSpace(consent.Purpose)
	if len(purpose) < model.ConsentPurposeMinLen || len(purpose) > model.ConsentPurposeMaxLen {
		return apperrors.NewValidationf("purpose must be between %d and %d characters", model.ConsentPurposeMinLen, model.ConsentPurposeMaxLen)
	}
	return nil
}

// Request creates a PENDING consent request on behalf of a provider.
func (s *Service) Request(ctx context.Context, actor model.Actor, req *model.CreateConsentRequest) (*model.ConsentRequest, error) {
	consent := &model.ConsentRequest{
		ConsentID:     identifier.New(identifier.KindConsent),
		PatientID:     req.PatientID,
		RequesterID:   actor.ID,
		RequesterRole: actor.Role,
		Purpose:       strings.TrimSpace(req.Purpose),
		Status:        model.ConsentStatusPending,
		RequestedAt:   time.Now().UTC(),
	}

	if err := Validate(consent); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, consent); err != nil {
		return nil, apperrors.NewUnexpected(err)
	}

	s.emit(ctx, model.EventConsentRequested, consent, "", string(model.ConsentStatusPending), actor.ID)
	return consent, nil
}

// Get returns a consent request visible to the actor. An APPROVED grant
// whose expiry has lapsed is downgraded to EXPIRED before it is
// returned, so callers never observe a stale approval.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.ConsentRequest, error) {
	consent, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("consent request", err)
	}

	if actor.ID != consent.PatientID && actor.ID != consent.RequesterID {
		return nil, apperrors.NewAuthorization("only the patient or the requester can view this consent request")
	}

	if consent.ExpiredAt(time.Now()) {
		consent.Status = model.ConsentStatusExpired
		if uerr := s.repo.UpdateStatus(ctx, consent, model.ConsentStatusApproved); uerr != nil && !errors.Is(uerr, repository.ErrStaleStatus) {
			return nil, apperrors.NewUnexpected(uerr)
		}
	}
	return consent, nil
}

// Approve moves a pending request to APPROVED. Only the named patient
// may respond; a positive validity bounds the grant.
func (s *Service) Approve(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RespondConsentRequest) (*model.ConsentRequest, error) {
	return s.respond(ctx, actor, id, model.ConsentStatusApproved, req)
}

// Reject moves a pending request to REJECTED.
func (s *Service) Reject(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RespondConsentRequest) (*model.ConsentRequest, error) {
	return s.respond(ctx, actor, id, model.ConsentStatusRejected, req)
}

func (s *Service) respond(ctx context.Context, actor model.Actor, id uuid.UUID, target model.ConsentStatus, req *model.RespondConsentRequest) (*model.ConsentRequest, error) {
	consent, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("consent request", err)
	}
	if actor.ID != consent.PatientID {
		return nil, apperrors.NewAuthorization("only the patient can respond to a consent request")
	}

	from := consent.Status
	tr, err := transitions.Apply(string(from), string(target), actor.ID)
	if err != nil {
		s.countFailure()
		return nil, err
	}

	consent.Status = target
	consent.RespondedAt = &tr.At
	if req != nil {
		consent.Notes = req.Notes
		if target == model.ConsentStatusApproved && req.ValidityDays > 0 {
			expiresAt := tr.At.AddDate(0, 0, req.ValidityDays)
			consent.ExpiresAt = &expiresAt
		}
	}

	if err := s.applyUpdate(ctx, consent, from, target); err != nil {
		return nil, err
	}

	s.emit(ctx, model.EventConsentResponded, consent, string(from), string(target), actor.ID)
	return consent, nil
}

// Revoke withdraws an APPROVED grant. Only the patient may revoke.
func (s *Service) Revoke(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.ConsentRequest, error) {
	consent, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("consent request", err)
	}
	if actor.ID != consent.PatientID {
		return nil, apperrors.NewAuthorization("only the patient can revoke consent")
	}

	from := consent.Status
	tr, err := transitions.Apply(string(from), string(model.ConsentStatusRevoked), actor.ID)
	if err != nil {
		s.countFailure()
		return nil, err
	}

	consent.Status = model.ConsentStatusRevoked
	consent.RevokedAt = &tr.At

	if err := s.applyUpdate(ctx, consent, from, model.ConsentStatusRevoked); err != nil {
		return nil, err
	}

	s.emit(ctx, model.EventConsentRevoked, consent, string(from), string(model.ConsentStatusRevoked), actor.ID)
	return consent, nil
}

func (s *Service) ListForPatient(ctx context.Context, actor model.Actor, patientID uuid.UUID) ([]*model.ConsentRequest, error) {
	if actor.ID != patientID {
		return nil, apperrors.NewAuthorization("only the patient can list their consent requests")
	}
	consents, err := s.repo.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	return consents, nil
}

func (s *Service) ListForRequester(ctx context.Context, actor model.Actor) ([]*model.ConsentRequest, error) {
	consents, err := s.repo.ListForRequester(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	return consents, nil
}

// applyUpdate performs the conditional write and translates a stale
// status into an invalid-transition error against the fresh state.
func (s *Service) applyUpdate(ctx context.Context, consent *model.ConsentRequest, from, target model.ConsentStatus) error {
	err := s.repo.UpdateStatus(ctx, consent, from)
	if err == nil {
		if s.metrics != nil {
			s.metrics.TransitionsTotal.WithLabelValues("consent_request", string(from), string(target)).Inc()
		}
		return nil
	}
	if errors.Is(err, repository.ErrStaleStatus) {
		s.countFailure()
		current := from
		if fresh, gerr := s.repo.Get(ctx, consent.ID); gerr == nil {
			current = fresh.Status
		}
		return apperrors.NewInvalidTransition("consent request", string(current), string(target))
	}
	return apperrors.NewUnexpected(err)
}

func (s *Service) countFailure() {
	if s.metrics != nil {
		s.metrics.TransitionFailures.WithLabelValues("consent_request").Inc()
	}
}

// emit is best effort: a failed outbox write outside a unit of work is
// not allowed to fail the transition that already committed.
func (s *Service) emit(ctx context.Context, eventType string, consent *model.ConsentRequest, from, to string, actorID uuid.UUID) {
	_ = s.events.EmitTransition(ctx, eventType, "consent_request", consent.ConsentID, from, to, actorID, consent.PatientID)
}
