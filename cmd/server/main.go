package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	echoapi "github.com/skygenesisenterprise/aether-identity/api/echo"
	"github.com/skygenesisenterprise/aether-identity/cache"
	redistore "github.com/skygenesisenterprise/aether-identity/cache/redis"
	"github.com/skygenesisenterprise/aether-identity/config"
	"github.com/skygenesisenterprise/aether-identity/internal/auth"
	"github.com/skygenesisenterprise/aether-identity/internal/metrics"
	"github.com/skygenesisenterprise/aether-identity/internal/notify"
	"github.com/skygenesisenterprise/aether-identity/internal/server"
	"github.com/skygenesisenterprise/aether-identity/log"
	"github.com/skygenesisenterprise/aether-identity/mongodb"
	"github.com/skygenesisenterprise/aether-identity/services"
	"github.com/skygenesisenterprise/aether-identity/tracing"
)

var (
	appLogger      log.Logger
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	// Bootstrap logger for everything that can fail before the real
	// logger exists.
	bootLog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		bootLog.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	appLogger.Info(context.Background(), "Starting aether-identity server...", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"environment":   cfg.Environment,
		"mongo_db_name": cfg.MongoDBName,
		"log_level":     cfg.LogLevel,
		"otel_service":  cfg.OtelServiceName,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(context.Background(), "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", initErr, nil)
	}
	db := mongodb.GetDB()

	// Repositories
	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize UserRepository", err, nil)
	}
	clientRepo, err := mongodb.NewClientRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize ClientRepository", err, nil)
	}
	sessionRepo, err := mongodb.NewSessionRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize SessionRepository", err, nil)
	}
	authSessionRepo, err := mongodb.NewAuthSessionRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize AuthSessionRepository", err, nil)
	}
	mfaSessionRepo, err := mongodb.NewMfaSessionRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MfaSessionRepository", err, nil)
	}
	refreshTokenRepo, err := mongodb.NewRefreshTokenRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize RefreshTokenRepository", err, nil)
	}
	auditRepo, err := mongodb.NewAuditRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize AuditRepository", err, nil)
	}

	// Token cache: Redis when configured, otherwise in-process.
	var tokenCache cache.TokenStore
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		tokenCache = redistore.NewTokenStore(redisClient, "aether")
		appLogger.Info(ctx, "Using Redis token cache", map[string]interface{}{"addr": cfg.RedisAddr})
	} else {
		tokenCache = cache.NewMemoryTokenStore(services.AccessTokenTTL)
		appLogger.Info(ctx, "Using in-memory token cache", nil)
	}

	// MFA code delivery: SES when a region is configured, log senders
	// otherwise.
	var emailSender notify.EmailSender = notify.LogEmailSender{}
	if cfg.IsProduction() && cfg.SESRegion != "" {
		sesSender, sesErr := notify.NewSESEmailSenderFromConfig(ctx, cfg.SESRegion, cfg.EmailFromAddress)
		if sesErr != nil {
			appLogger.Error(ctx, "Failed to initialize SES email sender, falling back to log sender", sesErr, nil)
		} else {
			emailSender = sesSender
		}
	}
	var smsSender notify.SMSSender = notify.LogSMSSender{}

	// Services
	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)
	passwordHasher := auth.NewBcryptPasswordHasher(cfg.BcryptCost)
	auditRecorder := services.NewAuditRecorder(auditRepo)

	keyService, err := services.NewKeyService(services.KeyServiceOptions{
		KeysDir:          cfg.JWTKeysDir,
		RotationInterval: time.Duration(cfg.KeyRotationDays) * 24 * time.Hour,
		RotationEnabled:  cfg.IsProduction(),
	})
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize KeyService", err, nil)
	}

	tokenService := services.NewTokenService(keyService, refreshTokenRepo, tokenCache, services.TokenServiceOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
	})
	totpService := services.NewTOTPService(userRepo, cfg.Issuer)
	mfaService := services.NewMFAService(userRepo, mfaSessionRepo, totpService, passwordHasher, emailSender, smsSender, auditRecorder)
	authService := services.NewAuthService(userRepo, sessionRepo, mfaSessionRepo, refreshTokenRepo, tokenService, mfaService, passwordHasher, auditRecorder)
	ssoService := services.NewSSOService(clientRepo, userRepo, authSessionRepo, authService, tokenService, auditRecorder, services.SSOServiceOptions{
		IdentityBaseURL: cfg.IdentityBaseURL,
		APIBaseURL:      cfg.APIBaseURL,
	})
	cleanupService := services.NewCleanupService(
		refreshTokenRepo, sessionRepo, authSessionRepo, mfaSessionRepo, auditRepo,
		time.Duration(cfg.CleanupIntervalMinutes)*time.Minute,
	)

	// Background loops live until the root context is cancelled.
	runCtx, cancelRun := context.WithCancel(ctx)
	go keyService.StartRotation(runCtx)
	go cleanupService.Run(runCtx)

	api := echoapi.NewAPI(
		ssoService, authService, mfaService, totpService,
		keyService, tokenService, cleanupService,
		cfg.Issuer, cfg.AdminToken,
	)

	httpServer = server.NewHTTPServer(cfg, appLogger, api)
	go func() {
		appLogger.Info(context.Background(), fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(context.Background(), fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))
	cancelRun()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
	}
	if err := tokenCache.Close(); err != nil {
		appLogger.Error(shutdownCtx, "Token cache shutdown error", err, nil)
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err, nil)
		}
	}
	mongodb.CloseMongoDB(shutdownCtx)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}
