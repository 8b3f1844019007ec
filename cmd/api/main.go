package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/careflow-api/config"
	authHandler "github.com/jwalitptl/careflow-api/internal/handler/auth"
	billingHandler "github.com/jwalitptl/careflow-api/internal/handler/billing"
	consentHandler "github.com/jwalitptl/careflow-api/internal/handler/consent"
	consultationHandler "github.com/jwalitptl/careflow-api/internal/handler/consultation"
	historyHandler "github.com/jwalitptl/careflow-api/internal/handler/history"
	prescriptionHandler "github.com/jwalitptl/careflow-api/internal/handler/prescription"
	referralHandler "github.com/jwalitptl/careflow-api/internal/handler/referral"

	"github.com/jwalitptl/careflow-api/internal/handler"
	"github.com/jwalitptl/careflow-api/internal/middleware"
	"github.com/jwalitptl/careflow-api/internal/repository/postgres"
	"github.com/jwalitptl/careflow-api/internal/router"
	accessService "github.com/jwalitptl/careflow-api/internal/service/access"
	billingService "github.com/jwalitptl/careflow-api/internal/service/billing"
	consentService "github.com/jwalitptl/careflow-api/internal/service/consent"
	consultationService "github.com/jwalitptl/careflow-api/internal/service/consultation"
	eventService "github.com/jwalitptl/careflow-api/internal/service/event"
	historyService "github.com/jwalitptl/careflow-api/internal/service/history"
	identityService "github.com/jwalitptl/careflow-api/internal/service/identity"
	prescriptionService "github.com/jwalitptl/careflow-api/internal/service/prescription"
	referralService "github.com/jwalitptl/careflow-api/internal/service/referral"
	"github.com/jwalitptl/careflow-api/pkg/auth"
	"github.com/jwalitptl/careflow-api/pkg/logger"
	"github.com/jwalitptl/careflow-api/pkg/metrics"
	"github.com/jwalitptl/careflow-api/pkg/video"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	consentRepo := postgres.NewConsentRepository(db)
	referralRepo := postgres.NewReferralRepository(db)
	consultationRepo := postgres.NewConsultationRepository(db)
	prescriptionRepo := postgres.NewPrescriptionRepository(db)
	invoiceRepo := postgres.NewInvoiceRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	userRepo := postgres.NewUserRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	uow := postgres.NewUnitOfWork(db)

	appMetrics := metrics.NewMetrics("careflow", "api")

	// Services
	eventSvc := eventService.NewService(outboxRepo)
	identitySvc := identityService.NewService(userRepo)
	gate := accessService.NewService(consentRepo, bookingRepo, appLogger, appMetrics)
	consentSvc := consentService.NewService(consentRepo, eventSvc, appMetrics)
	referralSvc := referralService.NewService(referralRepo, identitySvc, eventSvc, appMetrics)

	var videoIssuer consultationService.CredentialIssuer
	if cfg.Video.Secret != "" {
		videoIssuer = video.NewIssuer(cfg.Video.ToIssuerConfig())
	}
	consultationSvc := consultationService.NewService(
		consultationRepo, gate, identitySvc, eventSvc, uow, videoIssuer, appMetrics)
	prescriptionSvc := prescriptionService.NewService(
		prescriptionRepo, gate, identitySvc, eventSvc, appMetrics)
	billingSvc := billingService.NewService(
		invoiceRepo, paymentRepo, bookingRepo, prescriptionRepo,
		gate, eventSvc, uow, appLogger, appMetrics)
	historySvc := historyService.NewService(
		consultationRepo, prescriptionRepo, referralRepo, invoiceRepo, gate)

	// Auth
	tokenSvc := auth.NewService(auth.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		TokenTTL: time.Duration(cfg.JWT.ExpiryHours) * time.Hour,
	})
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)

	// Handlers
	healthH := handler.NewHealthHandler(db)
	authH := authHandler.NewHandler(tokenSvc, identitySvc, cfg.JWT.ExchangeSecret)
	billingH := billingHandler.NewHandler(billingSvc)

	routerCfg := router.Config{MetricsPath: cfg.Monitoring.MetricsPath}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerCfg.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(
		authMiddleware,
		authH,
		healthH,
		billingH,
		appMetrics,
		routerCfg,
		consentHandler.NewHandler(consentSvc),
		referralHandler.NewHandler(referralSvc),
		consultationHandler.NewHandler(consultationSvc),
		prescriptionHandler.NewHandler(prescriptionSvc),
		historyHandler.NewHandler(historySvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
