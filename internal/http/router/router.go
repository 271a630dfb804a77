package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pdflux-api/internal/http/handler"
	"pdflux-api/internal/http/middleware"
	"pdflux-api/internal/http/response"
)

// Dependencies carries everything the route tree needs.
type Dependencies struct {
	Logger *slog.Logger

	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Conversions *handler.ConversionHandler
	Payments    *handler.PaymentHandler

	Authenticator *middleware.Authenticator
	AuthLimiter   *middleware.RateLimiter
	APILimiter    *middleware.RateLimiter

	DB    *gorm.DB
	Redis redis.UniversalClient
}

func New(dep Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health/live", func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, req, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/health/ready", readinessHandler(dep))

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(auth chi.Router) {
			if dep.AuthLimiter != nil {
				auth.Use(dep.AuthLimiter.Middleware())
			}
			auth.Post("/auth/register", dep.Auth.Register)
			auth.Get("/auth/verify/{token}", dep.Auth.VerifyEmail)
			auth.Post("/auth/login-code", dep.Auth.RequestLoginCode)
			auth.Post("/auth/verify-code", dep.Auth.VerifyLoginCode)
		})

		// Webhook deliveries authenticate by signature, not bearer token.
		api.Group(func(hooks chi.Router) {
			if dep.APILimiter != nil {
				hooks.Use(dep.APILimiter.Middleware())
			}
			hooks.Post("/payments/webhook", dep.Payments.Webhook)
		})

		api.Group(func(protected chi.Router) {
			if dep.APILimiter != nil {
				protected.Use(dep.APILimiter.Middleware())
			}
			protected.Use(dep.Authenticator.Middleware())

			protected.Get("/auth/me", dep.Auth.Me)
			protected.Get("/users/subscription", dep.Users.Subscription)
			protected.Put("/users/profile", dep.Users.UpdateProfile)

			protected.Post("/conversions", dep.Conversions.Submit)
			protected.Get("/conversions", dep.Conversions.History)
			protected.Get("/conversions/{id}", dep.Conversions.Status)

			protected.Post("/payments/initialize", dep.Payments.Initialize)
			protected.Get("/payments/verify/{reference}", dep.Payments.Verify)
		})
	})

	return r
}

func readinessHandler(dep Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if dep.DB != nil {
			sqlDB, err := dep.DB.DB()
			if err != nil || sqlDB.PingContext(req.Context()) != nil {
				response.Error(w, req, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "database unavailable", nil)
				return
			}
		}
		if dep.Redis != nil {
			if err := dep.Redis.Ping(req.Context()).Err(); err != nil {
				response.Error(w, req, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "redis unavailable", nil)
				return
			}
		}
		response.JSON(w, req, http.StatusOK, map[string]any{"status": "ready"})
	}
}
