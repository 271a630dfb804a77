package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/observability"
	"pdflux-api/internal/repository"
	"pdflux-api/internal/security"
)

var (
	ErrEmailTaken            = errors.New("email is already registered")
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailUnverified       = errors.New("email address is not verified")
	ErrInvalidOrExpiredToken = errors.New("verification token is invalid or expired")
	ErrInvalidOrExpiredCode  = errors.New("login code is invalid or expired")
	ErrInvalidInput          = errors.New("invalid input")
)

// AuthConfig carries the tunables of the auth lifecycle.
type AuthConfig struct {
	SecretPepper   string
	SessionTTL     time.Duration
	VerifyTokenTTL time.Duration
	LoginCodeTTL   time.Duration
	ClientURL      string
}

// AuthService owns the register, verify, login-code and session flows.
// Verification tokens and login codes are single-use: consumption clears
// them in the same guarded update that checks them.
type AuthService struct {
	users  repository.UserRepository
	mailer Mailer
	tokens *security.JWTManager
	cfg    AuthConfig
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, mailer Mailer, tokens *security.JWTManager, cfg AuthConfig, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		mailer: mailer,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
	}
}

// Register creates an unverified account and dispatches a verification link.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = repository.NormalizeEmail(email)
	if name == "" || email == "" || len(password) < 8 {
		return nil, fmt.Errorf("%w: name, email and a password of at least 8 characters are required", ErrInvalidInput)
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	token, err := security.NewVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}
	tokenHash := security.HashSecret(token, s.cfg.SecretPepper)
	expiresAt := time.Now().UTC().Add(s.cfg.VerifyTokenTTL)

	user := &domain.User{
		Name:            name,
		Email:           email,
		PasswordHash:    passwordHash,
		IsVerified:      false,
		VerifyTokenHash: &tokenHash,
		VerifyExpiresAt: &expiresAt,
	}
	if err := s.users.Create(user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			observability.RecordAuthEvent(ctx, "register", "conflict")
			return nil, ErrEmailTaken
		}
		observability.RecordAuthEvent(ctx, "register", "error")
		return nil, err
	}

	mail := VerificationMail{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Token:     token,
		ExpiresAt: expiresAt,
		VerifyURL: s.verifyURL(token),
	}
	if err := s.mailer.SendVerificationLink(ctx, mail); err != nil {
		// Delivery is best effort; the account stays pending either way.
		s.logger.WarnContext(ctx, "verification mail delivery failed", "user_id", user.ID, "error", err)
	}

	observability.RecordAuthEvent(ctx, "register", "success")
	return user, nil
}

// VerifyEmail consumes a verification token and issues a session for the
// newly verified account.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.User, string, error) {
	if strings.TrimSpace(token) == "" {
		return nil, "", ErrInvalidOrExpiredToken
	}

	tokenHash := security.HashSecret(token, s.cfg.SecretPepper)
	user, err := s.users.ConsumeVerificationSecret(tokenHash, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrSecretNotFound) {
			observability.RecordAuthEvent(ctx, "verify_email", "rejected")
			return nil, "", ErrInvalidOrExpiredToken
		}
		observability.RecordAuthEvent(ctx, "verify_email", "error")
		return nil, "", err
	}

	session, err := s.tokens.SignSessionToken(user.ID, s.cfg.SessionTTL)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	observability.RecordAuthEvent(ctx, "verify_email", "success")
	s.logger.InfoContext(ctx, "email verified", "user_id", user.ID)
	return user, session, nil
}

// RequestLoginCode issues a short-lived one-time code for a verified account.
func (s *AuthService) RequestLoginCode(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthEvent(ctx, "request_code", "not_found")
			return ErrUserNotFound
		}
		return err
	}
	if !user.IsVerified {
		observability.RecordAuthEvent(ctx, "request_code", "unverified")
		return ErrEmailUnverified
	}

	code, err := security.NewLoginCode()
	if err != nil {
		return fmt.Errorf("generate login code: %w", err)
	}
	expiresAt := time.Now().UTC().Add(s.cfg.LoginCodeTTL)
	if err := s.users.SetLoginCode(user.ID, security.HashSecret(code, s.cfg.SecretPepper), expiresAt); err != nil {
		return err
	}

	mail := LoginCodeMail{
		UserID:    user.ID,
		Email:     user.Email,
		Code:      code,
		ExpiresAt: expiresAt,
	}
	if err := s.mailer.SendLoginCode(ctx, mail); err != nil {
		s.logger.WarnContext(ctx, "login code mail delivery failed", "user_id", user.ID, "error", err)
	}

	observability.RecordAuthEvent(ctx, "request_code", "success")
	return nil
}

// VerifyLoginCode consumes a login code and issues a session token.
func (s *AuthService) VerifyLoginCode(ctx context.Context, email, code string) (*domain.User, string, error) {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthEvent(ctx, "verify_code", "rejected")
			return nil, "", ErrInvalidOrExpiredCode
		}
		return nil, "", err
	}

	codeHash := security.HashSecret(code, s.cfg.SecretPepper)
	if err := s.users.ConsumeLoginCode(user.ID, codeHash, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrSecretNotFound) {
			observability.RecordAuthEvent(ctx, "verify_code", "rejected")
			return nil, "", ErrInvalidOrExpiredCode
		}
		observability.RecordAuthEvent(ctx, "verify_code", "error")
		return nil, "", err
	}

	session, err := s.tokens.SignSessionToken(user.ID, s.cfg.SessionTTL)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	observability.RecordAuthEvent(ctx, "verify_code", "success")
	s.logger.InfoContext(ctx, "login code accepted", "user_id", user.ID)
	return user, session, nil
}

// GetUser loads the account for the authenticated principal.
func (s *AuthService) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	user, err := s.users.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile changes the mutable profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, id uint, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if err := s.users.UpdateName(id, name); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return s.GetUser(ctx, id)
}

func (s *AuthService) verifyURL(token string) string {
	base := strings.TrimRight(s.cfg.ClientURL, "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/verify-email?token=%s", base, url.QueryEscape(token))
}
