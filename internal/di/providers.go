package di

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pdflux-api/internal/app"
	"pdflux-api/internal/config"
	"pdflux-api/internal/database"
	"pdflux-api/internal/http/handler"
	"pdflux-api/internal/http/middleware"
	"pdflux-api/internal/http/router"
	"pdflux-api/internal/observability"
	"pdflux-api/internal/repository"
	"pdflux-api/internal/security"
	"pdflux-api/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(observability.NewLogger)

var RuntimeInfraSet = wire.NewSet(provideMigratedDB, provideRedisClient)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewConversionRepository,
	repository.NewPaymentRepository,
)

var SecuritySet = wire.NewSet(provideJWTManager)

var ServiceSet = wire.NewSet(
	provideMailer,
	provideBlobStore,
	provideConverter,
	provideGateway,
	provideAuthConfig,
	service.NewAuthService,
	service.NewSubscriptionService,
	service.NewConversionService,
	service.NewPaymentService,
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewUserHandler,
	handler.NewConversionHandler,
	providePaymentHandler,
	middleware.NewAuthenticator,
	provideRouterDependencies,
	router.New,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

// provideMigratedDB is the serve-path database provider. It applies the
// schema at boot so a fresh deployment comes up without a separate
// migrate step.
func provideMigratedDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)
}

func provideAuthConfig(cfg *config.Config) service.AuthConfig {
	return service.AuthConfig{
		SecretPepper:   cfg.SecretPepper,
		SessionTTL:     cfg.JWTSessionTTL,
		VerifyTokenTTL: cfg.VerifyTokenTTL,
		LoginCodeTTL:   cfg.LoginCodeTTL,
		ClientURL:      cfg.ClientURL,
	}
}

func provideMailer(logger *slog.Logger) service.Mailer {
	return service.NewDevMailer(logger)
}

func provideBlobStore(cfg *config.Config) (service.BlobStore, error) {
	store, err := service.NewMinIOBlobStore(
		cfg.StorageEndpoint,
		cfg.StorageAccessKey,
		cfg.StorageSecretKey,
		cfg.StorageBucket,
		cfg.StorageUseSSL,
	)
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	return store, nil
}

func provideConverter(cfg *config.Config, storage service.BlobStore) service.Converter {
	return service.NewSimulatedConverter(storage, cfg.ConverterDelay)
}

func provideGateway(cfg *config.Config) service.PaymentGateway {
	return service.NewPaystackGateway(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
}

func providePaymentHandler(paymentSvc *service.PaymentService, cfg *config.Config) *handler.PaymentHandler {
	return handler.NewPaymentHandler(paymentSvc, cfg.PaystackSecretKey)
}

func provideRouterDependencies(
	logger *slog.Logger,
	auth *handler.AuthHandler,
	users *handler.UserHandler,
	conversions *handler.ConversionHandler,
	payments *handler.PaymentHandler,
	authenticator *middleware.Authenticator,
	jwtMgr *security.JWTManager,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	cfg *config.Config,
) router.Dependencies {
	var limiter middleware.Limiter
	mode := middleware.FailClosed
	if redisClient != nil {
		limiter = middleware.NewRedisFixedWindowLimiter(redisClient, "rl")
		mode = middleware.FailOpen
	} else {
		limiter = middleware.NewLocalFixedWindowLimiter()
	}

	bypass := middleware.NewRequestBypassEvaluator(middleware.RequestBypassConfig{
		EnableInternalProbeBypass: true,
		WebhookPath:               "/api/v1/payments/webhook",
		TrustedWebhookCIDRs:       cfg.TrustedWebhookCIDRs,
	})

	authLimiter := middleware.NewDistributedRateLimiter(
		limiter, cfg.AuthRateLimitPerMin, time.Minute, middleware.FailClosed, "auth",
	)
	apiLimiter := middleware.NewDistributedRateLimiterWithKey(
		limiter, cfg.APIRateLimitPerMin, time.Minute, mode, "api",
		middleware.SubjectOrIPKeyFunc(jwtMgr),
	).WithBypass(bypass)

	return router.Dependencies{
		Logger:        logger,
		Auth:          auth,
		Users:         users,
		Conversions:   conversions,
		Payments:      payments,
		Authenticator: authenticator,
		AuthLimiter:   authLimiter,
		APILimiter:    apiLimiter,
		DB:            db,
		Redis:         redisClient,
	}
}

func provideHTTPServer(cfg *config.Config, mux http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// MigrationRunner opens the database and applies the schema, for the
// `migrate` subcommand.
type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	return database.Migrate(m.db)
}
