package prescription

import (
	"context"
	"errors"
	"strings"

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

var transitions = statemachine.New("prescription", statemachine.Table{
	string(model.PrescriptionStatusPending): {string(model.PrescriptionStatusFulfilled), string(model.PrescriptionStatusCancelled)},
})

type Service struct {
	repo     repository.PrescriptionRepository
	gate     *access.Service
	identity *identity.Service
	events   *event.Service
	metrics  *metrics.Metrics
}

func NewService(repo repository.PrescriptionRepository, gate *access.Service, identitySvc *identity.Service, events *event.Service, metrics *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		gate:     gate,
		identity: identitySvc,
		events:   events,
		metrics:  metrics,
	}
}

// Create issues a prescription. The doctor must pass the access gate for
// the patient, every medicine line must be usable by a pharmacy, and the
// dispensing pharmacy is mandatory from the start.
func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	if actor.Role != model.RoleDoctor {
		return nil, apperrors.NewAuthorization("only doctors can issue prescriptions")
	}
	if err := validateMedicines(req.Medicines); err != nil {
		return nil, err
	}
	if req.Charge < 0 {
		return nil, apperrors.NewValidation("charge cannot be negative")
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
		return nil, apperrors.NewValidation("prescription patient must have the patient role")
	}
	if err := s.checkPharmacy(ctx, req.PharmacyID); err != nil {
		return nil, err
	}

	if !s.gate.CanAccess(ctx, req.PatientID, actor.ID) {
		return nil, apperrors.NewAuthorization("no active consent or qualifying booking for this patient")
	}

	prescription := &model.Prescription{
		PrescriptionID:  identifier.New(identifier.KindPrescription),
		DoctorID:        actor.ID,
		PatientID:       req.PatientID,
		PharmacyID:      req.PharmacyID,
		BookingID:       req.BookingID,
		Medicines:       req.Medicines,
		Status:          model.PrescriptionStatusPending,
		Charge:          req.Charge,
		DoctorSnapshot:  doctorSnap,
		PatientSnapshot: patientSnap,
	}

	if err := s.repo.Create(ctx, prescription); err != nil {
		return nil, apperrors.NewUnexpected(err)
	}

	s.emit(ctx, model.EventPrescriptionCreated, prescription, "", string(model.PrescriptionStatusPending), actor.ID)
	return prescription, nil
}

// ReassignPharmacy lets the patient route a still-pending prescription
// to a different pharmacy. The conditional write keeps a concurrent
// fulfilment from racing the reassignment.
func (s *Service) ReassignPharmacy(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.ReassignPharmacyRequest) (*model.Prescription, error) {
	prescription, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("prescription", err)
	}
	if actor.ID != prescription.PatientID {
		return nil, apperrors.NewAuthorization("only the patient can reassign the pharmacy")
	}
	if prescription.Status != model.PrescriptionStatusPending {
		return nil, apperrors.NewInvalidTransition("prescription", string(prescription.Status), string(model.PrescriptionStatusPending))
	}
	if err := s.checkPharmacy(ctx, req.PharmacyID); err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePharmacy(ctx, id, req.PharmacyID); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			fresh, gerr := s.repo.Get(ctx, id)
			if gerr != nil {
				return nil, apperrors.NewNotFound("prescription", gerr)
			}
			return nil, apperrors.NewInvalidTransition("prescription", string(fresh.Status), string(model.PrescriptionStatusPending))
		}
		return nil, apperrors.NewUnexpected(err)
	}

	prescription.PharmacyID = req.PharmacyID
	return prescription, nil
}

// Fulfill marks the prescription dispensed by its assigned pharmacy.
func (s *Service) Fulfill(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Prescription, error) {
	return s.transition(ctx, actor, id, model.PrescriptionStatusFulfilled, func(p *model.Prescription) error {
		if actor.ID != p.PharmacyID {
			return apperrors.NewAuthorization("only the assigned pharmacy can fulfill a prescription")
		}
		return nil
	})
}

// Cancel voids a pending prescription. The issuing doctor or the
// patient may cancel; the pharmacy may not.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Prescription, error) {
	return s.transition(ctx, actor, id, model.PrescriptionStatusCancelled, func(p *model.Prescription) error {
		if actor.ID != p.DoctorID && actor.ID != p.PatientID {
			return apperrors.NewAuthorization("only the issuing doctor or the patient can cancel a prescription")
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, actor model.Actor, id uuid.UUID, target model.PrescriptionStatus, authorize func(p *model.Prescription) error) (*model.Prescription, error) {
	prescription, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("prescription", err)
	}
	if err := authorize(prescription); err != nil {
		return nil, err
	}

	from := prescription.Status
	tr, err := transitions.Apply(string(from), string(target), actor.ID)
	if err != nil {
		s.countFailure()
		return nil, err
	}

	prescription.Status = target
	switch target {
	case model.PrescriptionStatusFulfilled:
		prescription.FulfilledAt = &tr.At
	case model.PrescriptionStatusCancelled:
		prescription.CancelledAt = &tr.At
		actorID := actor.ID
		prescription.CancelledBy = &actorID
	}

	if err := s.repo.UpdateStatus(ctx, prescription, from); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			s.countFailure()
			current := from
			if fresh, gerr := s.repo.Get(ctx, id); gerr == nil {
				current = fresh.Status
			}
			return nil, apperrors.NewInvalidTransition("prescription", string(current), string(target))
		}
		return nil, apperrors.NewUnexpected(err)
	}

	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues("prescription", string(from), string(target)).Inc()
	}
	s.emit(ctx, model.EventPrescriptionChanged, prescription, string(from), string(target), actor.ID)
	return prescription, nil
}

// Get returns a prescription to its doctor, patient or pharmacy, or to
// a provider who passes the access gate for the patient.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Prescription, error) {
	prescription, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("prescription", err)
	}
	if actor.ID != prescription.DoctorID && actor.ID != prescription.PatientID && actor.ID != prescription.PharmacyID &&
		!s.gate.CanAccess(ctx, prescription.PatientID, actor.ID) {
		return nil, apperrors.NewAuthorization("no access to this prescription")
	}
	return prescription, nil
}

// ListForPatient returns the patient's prescriptions, gated the same
// way as every other patient-scoped read.
func (s *Service) ListForPatient(ctx context.Context, actor model.Actor, patientID uuid.UUID) ([]*model.Prescription, error) {
	if actor.ID != patientID && !s.gate.CanAccess(ctx, patientID, actor.ID) {
		return nil, apperrors.NewAuthorization("no access to this patient's prescriptions")
	}
	list, err := s.repo.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	return list, nil
}

func (s *Service) checkPharmacy(ctx context.Context, pharmacyID uuid.UUID) error {
	role, err := s.identity.Role(ctx, pharmacyID)
	if err != nil {
		return apperrors.NewNotFound("pharmacy", err)
	}
	if role != model.RolePharmacy {
		return apperrors.NewValidation("assigned dispenser must have the pharmacy role")
	}
	return nil
}

func validateMedicines(medicines []model.Medicine) error {
	if len(medicines) == 0 {
		return apperrors.NewValidation("prescription must contain at least one medicine")
	}
	for i, m := range medicines {
		if strings.TrimSpace(m.Name) == "" {
			return apperrors.NewValidationf("medicine %d: name is required", i+1)
		}
		if strings.TrimSpace(m.Dosage) == "" {
			return apperrors.NewValidationf("medicine %d: dosage is required", i+1)
		}
		if m.Quantity < 1 {
			return apperrors.NewValidationf("medicine %d: quantity must be at least 1", i+1)
		}
	}
	return nil
}

func (s *Service) emit(ctx context.Context, eventType string, p *model.Prescription, from, to string, actorID uuid.UUID) {
	// best effort, the outbox write is not part of the business write
	_ = s.events.EmitTransition(ctx, eventType, "prescription", p.PrescriptionID, from, to, actorID, p.PatientID)
}

func (s *Service) countFailure() {
	if s.metrics != nil {
		s.metrics.TransitionFailures.WithLabelValues("prescription").Inc()
	}
}
