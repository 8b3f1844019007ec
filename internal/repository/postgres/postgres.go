package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careflow-api/internal/repository"
)

type consentRepository struct {
	BaseRepository
}

type referralRepository struct {
	BaseRepository
}

type consultationRepository struct {
	BaseRepository
}

type prescriptionRepository struct {
	BaseRepository
}

type invoiceRepository struct {
	BaseRepository
}

type paymentRepository struct {
	BaseRepository
}

type bookingRepository struct {
	BaseRepository
}

type userRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

func NewConsentRepository(db *sqlx.DB) repository.ConsentRepository {
	return &consentRepository{NewBaseRepository(db)}
}

func NewReferralRepository(db *sqlx.DB) repository.ReferralRepository {
	return &referralRepository{NewBaseRepository(db)}
}

func NewConsultationRepository(db *sqlx.DB) repository.ConsultationRepository {
	return &consultationRepository{NewBaseRepository(db)}
}

func NewPrescriptionRepository(db *sqlx.DB) repository.PrescriptionRepository {
	return &prescriptionRepository{NewBaseRepository(db)}
}

func NewInvoiceRepository(db *sqlx.DB) repository.InvoiceRepository {
	return &invoiceRepository{NewBaseRepository(db)}
}

func NewPaymentRepository(db *sqlx.DB) repository.PaymentRepository {
	return &paymentRepository{NewBaseRepository(db)}
}

func NewBookingRepository(db *sqlx.DB) repository.BookingRepository {
	return &bookingRepository{NewBaseRepository(db)}
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}
