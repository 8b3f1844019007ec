package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/careflow-api/config"
	"github.com/jwalitptl/careflow-api/internal/email"
	"github.com/jwalitptl/careflow-api/internal/repository/postgres"
	"github.com/jwalitptl/careflow-api/internal/service/notification"
	"github.com/jwalitptl/careflow-api/pkg/logger"
	"github.com/jwalitptl/careflow-api/pkg/messaging/redis"
	"github.com/jwalitptl/careflow-api/pkg/metrics"
	"github.com/jwalitptl/careflow-api/pkg/worker"
)

// workerEnv holds the knobs that differ between worker deployments and
// are set through the environment rather than the shared config file.
type workerEnv struct {
	HealthPort    int           `envconfig:"HEALTH_PORT" default:"8081"`
	BatchSize     int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval  time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	RetryAttempts int           `envconfig:"OUTBOX_RETRY_ATTEMPTS" default:"3"`
	RetryDelay    time.Duration `envconfig:"OUTBOX_RETRY_DELAY" default:"1s"`
	Notifications bool          `envconfig:"NOTIFICATIONS_ENABLED" default:"true"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var env workerEnv
	if err := envconfig.Process("worker", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to process worker environment")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	userRepo := postgres.NewUserRepository(db)

	appMetrics := metrics.NewMetrics("careflow", "worker")

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     env.BatchSize,
			PollInterval:  env.PollInterval,
			RetryAttempts: env.RetryAttempts,
			RetryDelay:    env.RetryDelay,
		},
		appLogger,
		appMetrics,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if env.Notifications {
		sender := email.NewService(cfg.Email.ToSenderConfig())
		consumer := notification.NewConsumer(broker, userRepo, sender, appLogger)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("notification consumer stopped")
			}
		}()
	}

	setupHealthCheck(env.HealthPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down worker...")
		cancel()
	}()

	processor.Start(ctx)
}

func setupHealthCheck(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		addr := ":" + strconv.Itoa(port)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("health check server failed")
		}
	}()
}
