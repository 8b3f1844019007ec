package access

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
	"github.com/jwalitptl/careflow-api/pkg/logger"
	"github.com/jwalitptl/careflow-api/pkg/metrics"
)

// Service is the access gate: it decides whether a provider may see a
// patient's records. Access is granted on either of two independent
// paths, and on nothing else:
//
//   - an APPROVED consent whose expiry is unset or in the future, or
//   - a CONFIRMED or COMPLETED booking linking the pair.
//
// The gate fails closed: lookup errors and ambiguous data always
// resolve to a denial, never a grant.
type Service struct {
	consentRepo repository.ConsentRepository
	bookingRepo repository.BookingRepository
	logger      *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(consentRepo repository.ConsentRepository, bookingRepo repository.BookingRepository, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		consentRepo: consentRepo,
		bookingRepo: bookingRepo,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// CanAccess reports whether requester may view patient's records. It
// has no side effect on denial; the one side effect on the grant path
// is lazily persisting the EXPIRED downgrade of a lapsed consent, which
// is excluded from the same evaluation that discovers the lapse.
func (s *Service) CanAccess(ctx context.Context, patientID, requesterID uuid.UUID) bool {
	if patientID == uuid.Nil || requesterID == uuid.Nil {
		return s.decide(false, "none")
	}

	if s.hasActiveConsent(ctx, patientID, requesterID) {
		return s.decide(true, "consent")
	}

	if s.hasQualifyingBooking(ctx, patientID, requesterID) {
		return s.decide(true, "booking")
	}

	return s.decide(false, "none")
}

func (s *Service) hasActiveConsent(ctx context.Context, patientID, requesterID uuid.UUID) bool {
	consent, err := s.consentRepo.FindApprovedForPair(ctx, patientID, requesterID)
	if err != nil {
		s.logger.Error(err, "access gate: consent lookup failed, denying")
		return false
	}
	if consent == nil {
		return false
	}

	if consent.ExpiredAt(s.now()) {
		s.expire(ctx, consent)
		return false
	}
	return true
}

// expire persists the APPROVED→EXPIRED downgrade discovered during
// evaluation. A concurrent revoke can win the conditional write; either
// way the grant is gone, so failures only get logged.
func (s *Service) expire(ctx context.Context, consent *model.ConsentRequest) {
	consent.Status = model.ConsentStatusExpired
	if err := s.consentRepo.UpdateStatus(ctx, consent, model.ConsentStatusApproved); err != nil {
		s.logger.Warn("access gate: failed to persist consent expiry", "consent_id", consent.ConsentID, "error", err.Error())
	}
}

func (s *Service) hasQualifyingBooking(ctx context.Context, patientID, requesterID uuid.UUID) bool {
	booking, err := s.bookingRepo.FindQualifying(ctx, patientID, requesterID)
	if err != nil {
		s.logger.Error(err, "access gate: booking lookup failed, denying")
		return false
	}
	return booking != nil && booking.Qualifies()
}

func (s *Service) decide(allowed bool, path string) bool {
	if s.metrics != nil {
		result := "denied"
		if allowed {
			result = "granted"
		}
		s.metrics.AccessDecisions.WithLabelValues(result, path).Inc()
	}
	return allowed
}
