package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/careflow-api/internal/handler"
	"github.com/jwalitptl/careflow-api/internal/handler/billing"
	"github.com/jwalitptl/careflow-api/internal/middleware"
	"github.com/jwalitptl/careflow-api/pkg/metrics"
)

// Handler registers its routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit   rate.Limit
	RateBurst   int
	MetricsPath string
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	authH    Handler
	healthH  *handler.HealthHandler
	billingH *billing.Handler
	domainHs []Handler
	config   Config
}

// NewRouter assembles the middleware chain. Domain handlers register
// behind authentication; auth, health and payment webhooks stay public.
func NewRouter(
	auth *middleware.AuthMiddleware,
	authH Handler,
	healthH *handler.HealthHandler,
	billingH *billing.Handler,
	m *metrics.Metrics,
	config Config,
	domainHandlers ...Handler,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(m),
		middleware.Recovery(),
		middleware.ErrorHandler(),
	)

	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return &Router{
		engine:   engine,
		auth:     auth,
		authH:    authH,
		healthH:  healthH,
		billingH: billingH,
		domainHs: domainHandlers,
		config:   config,
	}
}

func (r *Router) Setup() {
	metricsPath := r.config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.engine.GET(metricsPath, gin.WrapH(promhttp.Handler()))
	r.engine.GET("/health", r.healthH.HealthCheck)

	api := r.engine.Group("/api/v1")

	if r.authH != nil {
		r.authH.RegisterRoutes(api)
	}
	if r.billingH != nil {
		r.billingH.RegisterWebhookRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	if r.billingH != nil {
		r.billingH.RegisterRoutes(protected)
	}
	for _, h := range r.domainHs {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
