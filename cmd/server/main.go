package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/pathfinder/identity-gateway/internal/api"
	"github.com/pathfinder/identity-gateway/internal/api/handler"
	"github.com/pathfinder/identity-gateway/internal/api/ws"
	"github.com/pathfinder/identity-gateway/internal/core/ports"
	"github.com/pathfinder/identity-gateway/internal/core/realtime"
	"github.com/pathfinder/identity-gateway/internal/core/service"
	mongostore "github.com/pathfinder/identity-gateway/internal/infrastructure/db/mongo"
	rediscache "github.com/pathfinder/identity-gateway/internal/infrastructure/db/redis"
	"github.com/pathfinder/identity-gateway/internal/infrastructure/mail"
	"github.com/pathfinder/identity-gateway/internal/infrastructure/queue"
	"github.com/pathfinder/identity-gateway/internal/infrastructure/token"
	"github.com/pathfinder/identity-gateway/internal/infrastructure/tracing"
	"github.com/pathfinder/identity-gateway/internal/pkg/config"
	"github.com/pathfinder/identity-gateway/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: cfg.Tracing.ServiceName,
	})
	log := logger.For("main")

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Tracing ---
	var deps api.Deps
	if cfg.Tracing.CollectorHost != "" {
		tp, err := tracing.InitTracing(ctx, cfg.Tracing.CollectorHost, cfg.Tracing.ServiceName)
		if err != nil {
			return err
		}
		defer shutdownWith(log, "tracer", tp.Shutdown)
		deps.Tracer = otel.Tracer(cfg.Tracing.ServiceName)
	}

	// --- Storage ---
	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer shutdownWith(log, "mongo", mongoClient.Disconnect)

	credentials := mongostore.NewCredentialStore(db)
	if err := credentials.EnsureIndexes(ctx); err != nil {
		return err
	}
	checks := map[string]handler.Check{"mongo": mongostore.Ping(mongoClient)}

	var identities ports.IdentityLookup = credentials
	if cfg.Redis.Addr != "" {
		redisClient, err := rediscache.Connect(ctx, rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()

		identities = rediscache.NewIdentityCache(redisClient, credentials, cfg.Redis.IdentityCacheTTL, logger.For("identity-cache"))
		checks["redis"] = rediscache.Ping(redisClient)
	}

	// --- Password reset delivery ---
	sender, closeSender, err := resetSender(cfg, log)
	if err != nil {
		return err
	}
	defer closeSender()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Auth.ResetWorkers, sender, logger.For("reset-dispatcher"))
	dispatcher.Start(workerCtx)
	defer func() {
		stopWorkers()
		dispatcher.Wait()
	}()

	// --- Identity lifecycle ---
	issuer, err := token.NewIssuer(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(
		credentials,
		issuer,
		service.NewPasswordHasher(cfg.Auth.BcryptCost),
		dispatcher,
		service.AuthConfig{SessionTTL: cfg.Auth.SessionTokenTTL, ResetTTL: cfg.Auth.ResetTokenTTL},
		logger.For("auth"),
	)

	// --- Realtime gateway ---
	gateway := realtime.NewGateway(issuer, identities, realtime.NewRegistry(cfg.Gateway.RegistryShards), logger.For("gateway"))
	router := realtime.NewRouter(gateway, realtime.RouterDeps{
		Applications:  mongostore.NewApplicationStore(db),
		Messages:      mongostore.NewMessageStore(db),
		Notifications: mongostore.NewNotificationStore(db),
	}, cfg.Gateway.HandlerTimeout, logger.For("events"))
	wsHandler := ws.NewHandler(gateway, router, ws.Config{
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
		PingInterval:   cfg.Gateway.PingInterval,
		PongWait:       cfg.Gateway.PongWait,
		WriteWait:      cfg.Gateway.WriteWait,
		SendBuffer:     cfg.Gateway.SendBuffer,
		MaxMessageSize: cfg.Gateway.MaxMessageSize,
	}, logger.For("ws"))

	// --- HTTP ---
	deps.AuthService = authService
	deps.Tokens = issuer
	deps.Identities = identities
	deps.Realtime = gateway
	deps.WebSocket = wsHandler.Serve
	deps.Checks = checks
	deps.AllowedOrigins = cfg.Gateway.AllowedOrigins
	deps.Log = logger.For("http")
	e := api.NewRouter(deps)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	gateway.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// resetSender picks the delivery transport: SMTP, then AMQP, then the log.
func resetSender(cfg *config.Config, log zerolog.Logger) (ports.ResetSender, func(), error) {
	switch {
	case cfg.SMTP.Host != "":
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    cfg.SMTP.Password,
			From:        cfg.SMTP.From,
			FrontendURL: cfg.FrontendURL,
		}), func() {}, nil
	case cfg.AMQP.URL != "":
		conn, ch, err := mail.DialAMQP(cfg.AMQP.URL)
		if err != nil {
			return nil, nil, err
		}
		sender, err := mail.NewAMQPSender(ch, cfg.FrontendURL)
		if err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, err
		}
		return sender, func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	}

	if cfg.IsProduction() {
		log.Warn().Msg("no mail transport configured, reset links are only logged")
	}
	return mail.NewLogSender(cfg.FrontendURL, logger.For("mail")), func() {}, nil
}

func shutdownWith(log zerolog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("component", name).Msg("shutdown failed")
	}
}
