package api

import (
	"fmt"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.opentelemetry.io/otel/trace"

	_ "github.com/pathfinder/identity-gateway/internal/api/docs"
	"github.com/pathfinder/identity-gateway/internal/api/handler"
	"github.com/pathfinder/identity-gateway/internal/api/middleware"
	"github.com/pathfinder/identity-gateway/internal/core/domain"
	"github.com/pathfinder/identity-gateway/internal/core/ports"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	AuthService    ports.AuthService
	Tokens         ports.TokenVerifier
	Identities     ports.IdentityLookup
	Realtime       handler.StatsProvider
	WebSocket      echo.HandlerFunc
	Checks         map[string]handler.Check
	AllowedOrigins []string
	Tracer         trace.Tracer

	// Registerer and Gatherer back the HTTP metrics and /metrics. They
	// default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Log        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	if d.Tracer != nil {
		e.Use(tracing(d.Tracer))
	}
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			d.Log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	}))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     d.AllowedOrigins,
		AllowCredentials: true,
	}))
	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "pathfinder",
		Registerer: d.Registerer,
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.AuthService)
	authMiddleware := middleware.Auth(d.Tokens, d.Identities)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)

	protected := auth.Group("", authMiddleware)
	protected.GET("/profile", authHandler.Profile)
	protected.POST("/change-password", authHandler.ChangePassword)
	protected.POST("/refresh-token", authHandler.RefreshToken)
	protected.POST("/logout", authHandler.Logout)

	// --- Realtime ---
	if d.WebSocket != nil {
		e.GET("/ws", d.WebSocket)
	}
	if d.Realtime != nil {
		realtimeHandler := handler.NewRealtimeHandler(d.Realtime)
		e.GET("/realtime/stats", realtimeHandler.Stats,
			authMiddleware, middleware.RBAC(domain.RoleAdmin, domain.RoleGovernmentAdmin))
	}

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Checks)

	e.GET("/health", healthHandler.Liveness)            // liveness
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// tracing starts a span per request and carries it in the request context.
func tracing(tracer trace.Tracer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracer.Start(c.Request().Context(), fmt.Sprintf("[%s] %s", c.Request().Method, c.Path()))
			defer span.End()

			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
