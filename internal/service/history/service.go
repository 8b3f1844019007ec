package history

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
	"github.com/jwalitptl/careflow-api/internal/service/access"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

// Service assembles a patient's cross-entity timeline. Every read goes
// through the access gate; the patient always sees their own history.
type Service struct {
	consultations repository.ConsultationRepository
	prescriptions repository.PrescriptionRepository
	referrals     repository.ReferralRepository
	invoices      repository.InvoiceRepository
	gate          *access.Service
}

func NewService(
	consultations repository.ConsultationRepository,
	prescriptions repository.PrescriptionRepository,
	referrals repository.ReferralRepository,
	invoices repository.InvoiceRepository,
	gate *access.Service,
) *Service {
	return &Service{
		consultations: consultations,
		prescriptions: prescriptions,
		referrals:     referrals,
		invoices:      invoices,
		gate:          gate,
	}
}

// Timeline returns the patient's history newest first.
func (s *Service) Timeline(ctx context.Context, actor model.Actor, patientID uuid.UUID) ([]model.TimelineEntry, error) {
	if actor.ID != patientID && !s.gate.CanAccess(ctx, patientID, actor.ID) {
		return nil, apperrors.NewAuthorization("no access to this patient's history")
	}

	entries := make([]model.TimelineEntry, 0, 16)

	consultations, err := s.consultations.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	for _, c := range consultations {
		entries = append(entries, model.TimelineEntry{
			Kind:       "consultation",
			BusinessID: c.ConsultationID,
			Status:     string(c.Status),
			Summary:    fmt.Sprintf("%s consultation with %s", c.Mode, c.DoctorSnapshot.Name),
			OccurredAt: c.ScheduledAt,
		})
	}

	prescriptions, err := s.prescriptions.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	for _, p := range prescriptions {
		entries = append(entries, model.TimelineEntry{
			Kind:       "prescription",
			BusinessID: p.PrescriptionID,
			Status:     string(p.Status),
			Summary:    fmt.Sprintf("%d medicines prescribed by %s", len(p.Medicines), p.DoctorSnapshot.Name),
			OccurredAt: p.CreatedAt,
		})
	}

	referrals, err := s.referrals.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	for _, r := range referrals {
		entries = append(entries, model.TimelineEntry{
			Kind:       "referral",
			BusinessID: r.ReferralID,
			Status:     string(r.Status),
			Summary:    fmt.Sprintf("%s referral from %s to %s", r.Type, r.SourceSnapshot.Name, r.TargetSnapshot.Name),
			OccurredAt: r.CreatedAt,
		})
	}

	invoices, err := s.invoices.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewUnexpected(err)
	}
	for _, inv := range invoices {
		occurred := inv.CreatedAt
		if inv.IssuedAt != nil {
			occurred = *inv.IssuedAt
		}
		entries = append(entries, model.TimelineEntry{
			Kind:       "invoice",
			BusinessID: inv.InvoiceID,
			Status:     string(inv.Status),
			Summary:    fmt.Sprintf("invoice of %.2f", inv.TotalAmount),
			OccurredAt: occurred,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt.After(entries[j].OccurredAt)
	})
	return entries, nil
}
