package referral

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
	"github.com/jwalitptl/careflow-api/internal/service/event"
	"github.com/jwalitptl/careflow-api/internal/service/identity"
	"github.com/jwalitptl/careflow-api/internal/statemachine"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
	"github.com/jwalitptl/careflow-api/pkg/identifier"
	"github.com/jwalitptl/careflow-api/pkg/metrics"
)

var transitions = statemachine.New("referral", statemachine.Table{
	string(model.ReferralStatusPending):  {string(model.ReferralStatusAccepted), string(model.ReferralStatusRejected), string(model.ReferralStatusCancelled)},
	string(model.ReferralStatusAccepted): {string(model.ReferralStatusCompleted), string(model.ReferralStatusCancelled)},
	// COMPLETED, REJECTED and CANCELLED are terminal
})

type Service struct {
	repo     repository.ReferralRepository
	identity *identity.Service
	events   *event.Service
	metrics  *metrics.Metrics
}

func NewService(repo repository.ReferralRepository, identitySvc *identity.Service, events *event.Service, metrics *metrics.Metrics) *Service {
	return &Service{repo: repo, identity: identitySvc, events: events, metrics: metrics}
}

// Validate re-checks a referral against its own immutable snapshots.
// Run before every persistence so a directory role change can never
// retroactively invalidate history.
func Validate(referral *model.Referral) error {
	reason := strings.TrimSpace(referral.Reason)
	if len(reason) < model.ReferralReasonMinLen || len(reason) > model.ReferralReasonMaxLen {
		return apperrors.NewValidationf("reason must be between %d and %d characters", model.ReferralReasonMinLen, model.ReferralReasonMaxLen)
	}
	if !referral.Priority.Valid() {
		return apperrors.NewValidationf("unknown priority %s", referral.Priority)
	}
	if referral.PatientSnapshot.Role != model.RolePatient {
		return apperrors.NewValidation("referral patient must have the patient role")
	}
	return ValidateCompatibility(referral.SourceSnapshot.Role, referral.Type, referral.TargetSnapshot.Role)
}

// Create builds a referral from the source actor, freezing source,
// target and patient snapshots from the directory.
func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateReferralRequest) (*model.Referral, error) {
	// cheap rejection of roles with no referral privileges before any
	// directory lookups
	if _, ok := compatibility[actor.Role]; !ok {
		return nil, apperrors.NewValidationf("role %s cannot create referrals", actor.Role)
	}

	sourceSnap, err := s.identity.Snapshot(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.NewNotFound("referral source", err)
	}
	targetSnap, err := s.identity.Snapshot(ctx, req.TargetID)
	if err != nil {
		return nil, apperrors.NewNotFound("referral target", err)
	}
	patientSnap, err := s.identity.Snapshot(ctx, req.PatientID)
	if err != nil {
		return nil, apperrors.NewNotFound("patient", err)
	}

	if err := ValidateCompatibility(sourceSnap.Role, req.Type, targetSnap.Role); err != nil {
		return nil, err
	}

	referral := &model.Referral{
		ReferralID:      identifier.New(identifier.KindReferral),
		SourceID:        actor.ID,
		TargetID:        req.TargetID,
		PatientID:       req.PatientID,
		Type:            req.Type,
		Status:          model.ReferralStatusPending,
		Reason:          strings.TrimSpace(req.Reason),
		Priority:        req.Priority,
		SourceSnapshot:  sourceSnap,
		TargetSnapshot:  targetSnap,
		PatientSnapshot: patientSnap,
	}

	if err := Validate(referral); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, referral); err != nil {
		return nil, apperrors.NewUnexpected(err)
	}

	s.emit(ctx, model.EventReferralCreated, referral, "", string(model.ReferralStatusPending), actor.ID)
	return referral, nil
}

// Accept moves a pending referral to ACCEPTED. Only the target entity
// may respond.
func (s *Service) Accept(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RespondReferralRequest) (*model.Referral, error) {
	return s.transition(ctx, actor, id, model.ReferralStatusAccepted, req)
}

// Reject moves a pending referral to REJECTED.
func (s *Service) Reject(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RespondReferralRequest) (*model.Referral, error) {
	return s.transition(ctx, actor, id, model.ReferralStatusRejected, req)
}

// Complete closes an accepted referral. Only the target may complete.
func (s *Service) Complete(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Referral, error) {
	return s.transition(ctx, actor, id, model.ReferralStatusCompleted, nil)
}

// Cancel withdraws a referral. Only the source may cancel.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Referral, error) {
	return s.transition(ctx, actor, id, model.ReferralStatusCancelled, nil)
}

func (s *Service) transition(ctx context.Context, actor model.Actor, id uuid.UUID, target model.ReferralStatus, req *model.RespondReferralRequest) (*model.Referral, error) {
	referral, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("referral", err)
	}

	if err := s.authorize(actor, referral, target); err != nil {
		return nil, err
	}

	from := referral.Status
	tr, err := transitions.Apply(string(from), string(target), actor.ID)
	if err != nil {
		s.countFailure()
		return nil, err
	}

	referral.Status = target
	switch target {
	case model.ReferralStatusAccepted, model.ReferralStatusRejected:
		referral.RespondedAt = &tr.At
	case model.ReferralStatusCompleted:
		referral.CompletedAt = &tr.At
	case model.ReferralStatusCancelled:
		referral.CancelledAt = &tr.At
	}
	if req != nil {
		referral.ResponseNotes = req.Notes
	}

	// snapshots are immutable; the compatibility rule must still hold
	// against them at write time
	if err := Validate(referral); err != nil {
		return nil, err
	}

	if err := s.applyUpdate(ctx, referral, from, target); err != nil {
		return nil, err
	}

	s.emit(ctx, model.EventReferralStatusChanged, referral, string(from), string(target), actor.ID)
	return referral, nil
}

func (s *Service) authorize(actor model.Actor, referral *model.Referral, target model.ReferralStatus) error {
	switch target {
	case model.ReferralStatusAccepted, model.ReferralStatusRejected, model.ReferralStatusCompleted:
		if actor.ID != referral.TargetID {
			return apperrors.NewAuthorization("only the referral target can respond")
		}
	case model.ReferralStatusCancelled:
		if actor.ID != referral.SourceID {
			return apperrors.NewAuthorization("only the referral source can cancel")
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Referral, error) {
	referral, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("referral", err)
	}
	if actor.ID != referral.SourceID && actor.ID != referral.TargetID && actor.ID != referral.PatientID {
		return nil, apperrors.NewAuthorization("not a participant in this referral")
	}
	return referral, nil
}

func (s *Service) ListForEntity(ctx context.Context, actor model.Actor) ([]*model.Referral, error) {
	referrals, err := s.repo.ListForEntity(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	return referrals, nil
}

func (s *Service) applyUpdate(ctx context.Context, referral *model.Referral, from, target model.ReferralStatus) error {
	err := s.repo.UpdateStatus(ctx, referral, from)
	if err == nil {
		if s.metrics != nil {
			s.metrics.TransitionsTotal.WithLabelValues("referral", string(from), string(target)).Inc()
		}
		return nil
	}
	if errors.Is(err, repository.ErrStaleStatus) {
		s.countFailure()
		current := from
		if fresh, gerr := s.repo.Get(ctx, referral.ID); gerr == nil {
			current = fresh.Status
		}
		return apperrors.NewInvalidTransition("referral", string(current), string(target))
	}
	return apperrors.NewUnexpected(err)
}

func (s *Service) countFailure() {
	if s.metrics != nil {
		s.metrics.TransitionFailures.WithLabelValues("referral").Inc()
	}
}

func (s *Service) emit(ctx context.Context, eventType string, referral *model.Referral, from, to string, actorID uuid.UUID) {
	_ = s.events.EmitTransition(ctx, eventType, "referral", referral.ReferralID, from, to, actorID, referral.PatientID)
}
