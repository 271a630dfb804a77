package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/observability"
	"pdflux-api/internal/repository"
)

var (
	ErrPlanInsufficient    = errors.New("current plan does not allow this feature")
	ErrSubscriptionExpired = errors.New("subscription has expired")
	ErrLimitReached        = errors.New("conversion limit reached for current plan")
)

// SubscriptionSnapshot is the read model for the subscription endpoint.
type SubscriptionSnapshot struct {
	Plan             domain.Plan `json:"plan"`
	ExpiresAt        *time.Time  `json:"expires_at,omitempty"`
	ConversionsUsed  int         `json:"conversions_used"`
	ConversionsLimit int         `json:"conversions_limit"`
}

// SubscriptionService gates feature access and conversion volume by plan.
// Expired paid plans self-heal: the first check after expiry demotes the
// account to the free tier instead of erroring forever.
type SubscriptionService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewSubscriptionService(users repository.UserRepository, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{users: users, logger: logger}
}

// CheckPlan enforces a minimum plan tier for the user. A lapsed paid plan is
// demoted to free first, then reported as expired for this request.
func (s *SubscriptionService) CheckPlan(ctx context.Context, userID uint, required domain.Plan) error {
	demoted, err := s.users.DemoteIfExpired(userID, time.Now().UTC())
	if err != nil {
		return err
	}
	if demoted {
		s.logger.InfoContext(ctx, "expired subscription demoted to free", "user_id", userID)
		observability.RecordConversionEvent(ctx, "plan_check", "expired")
		return ErrSubscriptionExpired
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !user.Subscription.Plan.AtLeast(required) {
		observability.RecordConversionEvent(ctx, "plan_check", "insufficient")
		return ErrPlanInsufficient
	}

	observability.RecordConversionEvent(ctx, "plan_check", "success")
	return nil
}

// AdmitConversion reserves one unit of conversion quota. The reservation is
// a single guarded increment, so concurrent submissions near the ceiling
// cannot overshoot it.
func (s *SubscriptionService) AdmitConversion(ctx context.Context, userID uint) error {
	if demoted, err := s.users.DemoteIfExpired(userID, time.Now().UTC()); err != nil {
		return err
	} else if demoted {
		s.logger.InfoContext(ctx, "expired subscription demoted to free", "user_id", userID)
		observability.RecordConversionEvent(ctx, "admit", "expired")
		return ErrSubscriptionExpired
	}

	if err := s.users.AdmitConversion(userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrLimitReached):
			observability.RecordConversionEvent(ctx, "admit", "limit_reached")
			return ErrLimitReached
		case errors.Is(err, repository.ErrUserNotFound):
			return ErrUserNotFound
		default:
			return err
		}
	}

	observability.RecordConversionEvent(ctx, "admit", "success")
	return nil
}

// Snapshot returns the user's current subscription state, after any lazy
// demotion.
func (s *SubscriptionService) Snapshot(ctx context.Context, userID uint) (*SubscriptionSnapshot, error) {
	if demoted, err := s.users.DemoteIfExpired(userID, time.Now().UTC()); err != nil {
		return nil, err
	} else if demoted {
		s.logger.InfoContext(ctx, "expired subscription demoted to free", "user_id", userID)
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &SubscriptionSnapshot{
		Plan:             user.Subscription.Plan,
		ExpiresAt:        user.Subscription.ExpiresAt,
		ConversionsUsed:  user.Subscription.ConversionsUsed,
		ConversionsLimit: user.Subscription.ConversionsLimit,
	}, nil
}
