package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/http/response"
	"pdflux-api/internal/repository"
	"pdflux-api/internal/security"
)

type contextKey string

const userContextKey contextKey = "auth.user"

// Authenticator validates bearer session tokens and loads the account for
// protected routes. Unverified accounts are rejected even with a valid
// token.
type Authenticator struct {
	tokens *security.JWTManager
	users  repository.UserRepository
}

func NewAuthenticator(tokens *security.JWTManager, users repository.UserRepository) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}

			claims, err := a.tokens.ParseSessionToken(raw)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired session token", nil)
				return
			}

			userID, err := security.SubjectUserID(claims)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session subject", nil)
				return
			}

			user, err := a.users.FindByID(userID)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "account no longer exists", nil)
					return
				}
				response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not load account", nil)
				return
			}
			if !user.IsVerified {
				response.Error(w, r, http.StatusForbidden, "EMAIL_UNVERIFIED", "verify your email address first", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser stores the authenticated account on the context.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated account, if any.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok && user != nil
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) >= len("bearer ")+1 && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}
