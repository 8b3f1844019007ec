package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
	"github.com/jwalitptl/careflow-api/internal/service/access"
	"github.com/jwalitptl/careflow-api/internal/service/event"
	"github.com/jwalitptl/careflow-api/internal/service/identity"
	"github.com/jwalitptl/careflow-api/internal/statemachine"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
	"github.com/jwalitptl/careflow-api/pkg/identifier"
	"github.com/jwalitptl/careflow-api/pkg/metrics"
)

var transitions = statemachine.New("consultation", statemachine.Table{
	string(model.ConsultationStatusScheduled):  {string(model.ConsultationStatusInProgress), string(model.ConsultationStatusCancelled), string(model.ConsultationStatusNoShow)},
	string(model.ConsultationStatusInProgress): {string(model.ConsultationStatusCompleted), string(model.ConsultationStatusCancelled)},
	// COMPLETED, CANCELLED and NO_SHOW are terminal
})

const videoTokenTTL = 4 * time.Hour

// CredentialIssuer mints call-channel credentials for video
// consultations. An unconfigured issuer returns a configuration error,
// never a generic failure.
type CredentialIssuer interface {
	Issue(channelName, role string, ttl time.Duration) (model.VideoCredentials, error)
}

type Service struct {
	repo     repository.ConsultationRepository
	gate     *access.Service
	identity *identity.Service
	events   *event.Service
	uow      repository.UnitOfWork
	video    CredentialIssuer
	metrics  *metrics.Metrics
}

func NewService(
	repo repository.ConsultationRepository,
	gate *access.Service,
	identitySvc *identity.Service,
	events *event.Service,
	uow repository.UnitOfWork,
	video CredentialIssuer,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		repo:     repo,
		gate:     gate,
		identity: identitySvc,
		events:   events,
		uow:      uow,
		video:    video,
		metrics:  metrics,
	}
}

// Create schedules a consultation. The doctor must pass the access gate
// for the patient; video consultations additionally mint channel
// credentials, and the whole creation is one atomic unit so a failed
// credential mint leaves no half-created consultation behind.
func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateConsultationRequest) (*model.Consultation, error) {
	if actor.Role != model.RoleDoctor {
		return nil, apperrors.NewAuthorization("only doctors can create consultations")
	}
	if req.ScheduledAt.Before(time.Now()) {
		return nil, apperrors.NewValidation("consultation cannot be scheduled in the past")
	}

	doctorSnap, err := s.identity.Snapshot(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.NewNotFound("doctor", err)
	}
	patientSnap, err := s.identity.Snapshot(ctx, req.PatientID)
	if err != nil {
		return nil, apperrors.NewNotFound("patient", err)
	}
	if patientSnap.Role != model.RolePatient {
		return nil, apperrors.NewValidation("consultation patient must have the patient role")
	}

	if !s.gate.CanAccess(ctx, req.PatientID, actor.ID) {
		return nil, apperrors.NewAuthorization("no active consent or qualifying booking for this patient")
	}

	consultation := &model.Consultation{
		ConsultationID:  identifier.New(identifier.KindConsultation),
		DoctorID:        actor.ID,
		PatientID:       req.PatientID,
		BookingID:       req.BookingID,
		Mode:            req.Mode,
		Status:          model.ConsultationStatusScheduled,
		ScheduledAt:     req.ScheduledAt,
		Notes:           model.NoteList{},
		Messages:        model.MessageList{},
		DoctorSnapshot:  doctorSnap,
		PatientSnapshot: patientSnap,
	}

	if req.Mode == model.ConsultationModeVideoCall {
		if s.video == nil {
			return nil, apperrors.NewConfiguration("video calling")
		}
		channel := fmt.Sprintf("consult-%s", strings.ToLower(consultation.ConsultationID))
		creds, err := s.video.Issue(channel, "host", videoTokenTTL)
		if err != nil {
			return nil, err
		}
		consultation.Video = &creds
	}

	err = s.uow.Run(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, consultation); err != nil {
			return err
		}
		return s.events.EmitTransition(ctx, model.EventConsultationCreated, "consultation",
			consultation.ConsultationID, "", string(model.ConsultationStatusScheduled), actor.ID, consultation.PatientID)
	})
	if err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	return consultation, nil
}

// Start moves a scheduled consultation to IN_PROGRESS and stamps the
// start time used later for duration derivation.
func (s *Service) Start(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Consultation, error) {
	return s.transition(ctx, actor, id, model.ConsultationStatusInProgress, func(c *model.Consultation, tr statemachine.Transition) error {
		c.StartedAt = &tr.At
		return nil
	})
}

// Complete closes a consultation. Completion notes are mandatory;
// duration is derived from the start and end stamps.
func (s *Service) Complete(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.CompleteConsultationRequest) (*model.Consultation, error) {
	notes := strings.TrimSpace(req.Notes)
	return s.transition(ctx, actor, id, model.ConsultationStatusCompleted, func(c *model.Consultation, tr statemachine.Transition) error {
		if len(notes) < model.ConsultationNoteMinLen || len(notes) > model.ConsultationNoteMaxLen {
			return apperrors.NewValidationf("completion notes must be between %d and %d characters", model.ConsultationNoteMinLen, model.ConsultationNoteMaxLen)
		}
		c.EndedAt = &tr.At
		c.Notes = append(c.Notes, model.ConsultationNote{AuthorID: actor.ID, Text: notes, AddedAt: tr.At})
		c.Diagnosis = req.Diagnosis
		c.FollowUpRequired = req.FollowUpRequired
		c.FollowUpDate = req.FollowUpDate
		deriveDuration(c)
		return nil
	})
}

// Cancel aborts a consultation that has not finished.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Consultation, error) {
	return s.transition(ctx, actor, id, model.ConsultationStatusCancelled, func(c *model.Consultation, tr statemachine.Transition) error {
		if reason != "" {
			c.CancelReason = &reason
		}
		return nil
	})
}

// MarkNoShow records that the patient did not appear.
func (s *Service) MarkNoShow(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Consultation, error) {
	return s.transition(ctx, actor, id, model.ConsultationStatusNoShow, nil)
}

type stamp func(c *model.Consultation, tr statemachine.Transition) error

func (s *Service) transition(ctx context.Context, actor model.Actor, id uuid.UUID, target model.ConsultationStatus, apply stamp) (*model.Consultation, error) {
	consultation, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("consultation", err)
	}
	if actor.ID != consultation.DoctorID {
		return nil, apperrors.NewAuthorization("only the consulting doctor can change consultation status")
	}

	from := consultation.Status
	tr, err := transitions.Apply(string(from), string(target), actor.ID)
	if err != nil {
		s.countFailure()
		return nil, err
	}

	consultation.Status = target
	if apply != nil {
		if err := apply(consultation, tr); err != nil {
			return nil, err
		}
	}

	err = s.uow.Run(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, consultation, from); err != nil {
			return err
		}
		return s.events.EmitTransition(ctx, model.EventConsultationChanged, "consultation",
			consultation.ConsultationID, string(from), string(target), actor.ID, consultation.PatientID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			s.countFailure()
			current := from
			if fresh, gerr := s.repo.Get(ctx, id); gerr == nil {
				current = fresh.Status
			}
			return nil, apperrors.NewInvalidTransition("consultation", string(current), string(target))
		}
		return nil, apperrors.NewUnexpected(err)
	}

	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues("consultation", string(from), string(target)).Inc()
	}
	return consultation, nil
}

// AppendNote adds a clinical note. Either participant may write after
// the identity check; existing notes are never modified.
func (s *Service) AppendNote(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.AppendNoteRequest) (*model.Consultation, error) {
	text := strings.TrimSpace(req.Text)
	if len(text) < model.ConsultationNoteMinLen || len(text) > model.ConsultationNoteMaxLen {
		return nil, apperrors.NewValidationf("note must be between %d and %d characters", model.ConsultationNoteMinLen, model.ConsultationNoteMaxLen)
	}
	return s.append(ctx, actor, id, func(ctx context.Context) error {
		return s.repo.AppendNote(ctx, id, model.ConsultationNote{AuthorID: actor.ID, Text: text, AddedAt: time.Now().UTC()})
	})
}

// AppendMessage adds a chat entry to the consultation log.
func (s *Service) AppendMessage(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.AppendMessageRequest) (*model.Consultation, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" || len(text) > model.ConsultationMessageMaxLen {
		return nil, apperrors.NewValidationf("message must be between 1 and %d characters", model.ConsultationMessageMaxLen)
	}
	return s.append(ctx, actor, id, func(ctx context.Context) error {
		return s.repo.AppendMessage(ctx, id, model.ConsultationMessage{SenderID: actor.ID, Text: text, SentAt: time.Now().UTC()})
	})
}

func (s *Service) append(ctx context.Context, actor model.Actor, id uuid.UUID, write func(ctx context.Context) error) (*model.Consultation, error) {
	consultation, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("consultation", err)
	}
	if !consultation.IsParticipant(actor.ID) {
		return nil, apperrors.NewAuthorization("only consultation participants can write to it")
	}

	if err := write(ctx); err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	return s.repo.Get(ctx, id)
}

// Get returns a consultation to one of its participants, or to a
// provider who passes the access gate for the patient.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Consultation, error) {
	consultation, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("consultation", err)
	}
	if !consultation.IsParticipant(actor.ID) && !s.gate.CanAccess(ctx, consultation.PatientID, actor.ID) {
		return nil, apperrors.NewAuthorization("no access to this consultation")
	}
	return consultation, nil
}

func deriveDuration(c *model.Consultation) {
	if c.StartedAt != nil && c.EndedAt != nil {
		c.DurationMinutes = int(c.EndedAt.Sub(*c.StartedAt).Round(time.Minute) / time.Minute)
	}
}

func (s *Service) countFailure() {
	if s.metrics != nil {
		s.metrics.TransitionFailures.WithLabelValues("consultation").Inc()
	}
}
