package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/fieldops/job-dispatch/docs"
	"github.com/fieldops/job-dispatch/internal/api/handler"
	"github.com/fieldops/job-dispatch/internal/api/middleware"
	"github.com/fieldops/job-dispatch/internal/core/policy"
	"github.com/fieldops/job-dispatch/internal/core/ports"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Directory ports.DirectoryService
	Jobs      ports.JobService
	Tokens    ports.TokenValidator
	Health    map[string]handler.Pinger
	Log       zerolog.Logger

	// LoginRate is the sustained number of login attempts per second allowed
	// per client IP; zero disables throttling.
	LoginRate  float64
	LoginBurst int

	// Registry receives the HTTP metrics and backs /metrics. Nil means the
	// default Prometheus registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(metricsConfig(deps.Registry)))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Directory)
	userHandler := handler.NewUserHandler(deps.Directory)
	jobHandler := handler.NewJobHandler(deps.Jobs)
	healthHandler := handler.NewHealthHandler(deps.Health)

	auth := middleware.Auth(deps.Tokens)

	// --- Auth routes ---
	e.POST("/login", authHandler.Login, loginLimiter(deps.LoginRate, deps.LoginBurst)...)

	// --- Directory routes ---
	e.POST("/users", userHandler.Register, middleware.OptionalAuth(deps.Tokens))
	users := e.Group("/users", auth)
	users.GET("", userHandler.List, middleware.RBAC(policy.ActionListIdentities))
	users.DELETE("/:id", userHandler.Delete, middleware.RBAC(policy.ActionDeleteIdentity))

	// --- Job routes ---
	jobs := e.Group("/jobs", auth)
	jobs.POST("", jobHandler.Create, middleware.RBAC(policy.ActionCreateJob))
	jobs.GET("", jobHandler.ListAll, middleware.RBAC(policy.ActionListAllJobs))
	jobs.GET("/my", jobHandler.ListOwn, middleware.RBAC(policy.ActionListOwnJobs))
	// Technicians qualify per job, so the service decides.
	jobs.PUT("/:id/status", jobHandler.UpdateStatus)
	jobs.POST("/:id/assign", jobHandler.Assign, middleware.RBAC(policy.ActionAssignTechnician))
	jobs.DELETE("/:id", jobHandler.Delete, middleware.RBAC(policy.ActionDeleteJob))
	jobs.GET("/:id/events", jobHandler.Events, middleware.RBAC(policy.ActionViewJobEvents))

	// --- Health probes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer(deps.Registry)}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func metricsConfig(reg *prometheus.Registry) echoprometheus.MiddlewareConfig {
	cfg := echoprometheus.MiddlewareConfig{
		Namespace: "dispatch",
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
		DoNotUseRequestPathFor404: true,
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return cfg
}

func gatherer(reg *prometheus.Registry) prometheus.Gatherer {
	if reg != nil {
		return reg
	}
	return prometheus.DefaultGatherer
}

// requestLogger writes one structured access log line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// loginLimiter throttles login attempts per client IP.
func loginLimiter(perSecond float64, burst int) []echo.MiddlewareFunc {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return []echo.MiddlewareFunc{echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts")
		},
	})}
}
