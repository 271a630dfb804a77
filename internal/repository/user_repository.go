package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/observability"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrSecretNotFound = errors.New("secret not found or expired")
	ErrLimitReached   = errors.New("conversion limit reached")
)

type UserRepository interface {
	Create(user *domain.User) error
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	UpdateName(id uint, name string) error
	SetVerificationSecret(id uint, tokenHash string, expiresAt time.Time) error
	ConsumeVerificationSecret(tokenHash string, now time.Time) (*domain.User, error)
	SetLoginCode(id uint, codeHash string, expiresAt time.Time) error
	ConsumeLoginCode(id uint, codeHash string, now time.Time) error
	AdmitConversion(id uint) error
	DemoteIfExpired(id uint, now time.Time) (bool, error)
	ApplySubscription(id uint, plan domain.Plan, limit int, expiresAt time.Time, customerCode string) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(user *domain.User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(context.Background(), "user", "create", "conflict")
			return ErrEmailTaken
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var user domain.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "success")
	return &user, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var user domain.User
	if err := r.db.Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "success")
	return &user, nil
}

func (r *GormUserRepository) UpdateName(id uint, name string) error {
	res := r.db.Model(&domain.User{}).Where("id = ?", id).Update("name", strings.TrimSpace(name))
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "update_name", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "update_name", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "update_name", "success")
	return nil
}

func (r *GormUserRepository) SetVerificationSecret(id uint, tokenHash string, expiresAt time.Time) error {
	res := r.db.Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"verify_token_hash": tokenHash,
		"verify_expires_at": expiresAt,
	})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "set_verify_secret", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "set_verify_secret", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "set_verify_secret", "success")
	return nil
}

// ConsumeVerificationSecret marks the matching account verified and clears
// the token in one guarded update. A second call with the same token loses
// the rows-affected check and surfaces ErrSecretNotFound, which is what
// enforces single use.
func (r *GormUserRepository) ConsumeVerificationSecret(tokenHash string, now time.Time) (*domain.User, error) {
	var user domain.User
	err := r.db.Where("verify_token_hash = ? AND verify_expires_at > ?", tokenHash, now).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "consume_verify_secret", "not_found")
			return nil, ErrSecretNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "consume_verify_secret", "error")
		return nil, err
	}

	res := r.db.Model(&domain.User{}).
		Where("id = ? AND verify_token_hash = ?", user.ID, tokenHash).
		Updates(map[string]any{
			"is_verified":       true,
			"verify_token_hash": nil,
			"verify_expires_at": nil,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "consume_verify_secret", "error")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "consume_verify_secret", "not_found")
		return nil, ErrSecretNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "consume_verify_secret", "success")
	user.IsVerified = true
	user.VerifyTokenHash = nil
	user.VerifyExpiresAt = nil
	return &user, nil
}

func (r *GormUserRepository) SetLoginCode(id uint, codeHash string, expiresAt time.Time) error {
	res := r.db.Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"login_code_hash":       codeHash,
		"login_code_expires_at": expiresAt,
	})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "set_login_code", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "set_login_code", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "set_login_code", "success")
	return nil
}

// ConsumeLoginCode clears the code in the same statement that matches it, so
// exactly one of any number of concurrent attempts succeeds.
func (r *GormUserRepository) ConsumeLoginCode(id uint, codeHash string, now time.Time) error {
	res := r.db.Model(&domain.User{}).
		Where("id = ? AND login_code_hash = ? AND login_code_expires_at > ?", id, codeHash, now).
		Updates(map[string]any{
			"login_code_hash":       nil,
			"login_code_expires_at": nil,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "consume_login_code", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "consume_login_code", "not_found")
		return ErrSecretNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "consume_login_code", "success")
	return nil
}

// AdmitConversion is the admission check and the usage increment as one
// atomic unit: the increment only lands while used < limit.
func (r *GormUserRepository) AdmitConversion(id uint) error {
	res := r.db.Model(&domain.User{}).
		Where("id = ? AND subscription_conversions_used < subscription_conversions_limit", id).
		Update("subscription_conversions_used", gorm.Expr("subscription_conversions_used + 1"))
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "admit_conversion", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.Model(&domain.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
			observability.RecordRepositoryOperation(context.Background(), "user", "admit_conversion", "error")
			return err
		}
		if count == 0 {
			observability.RecordRepositoryOperation(context.Background(), "user", "admit_conversion", "not_found")
			return ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "admit_conversion", "limit_reached")
		return ErrLimitReached
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "admit_conversion", "success")
	return nil
}

// DemoteIfExpired lazily drops an expired paid subscription back to the free
// tier. Returns true when this call performed the demotion.
func (r *GormUserRepository) DemoteIfExpired(id uint, now time.Time) (bool, error) {
	res := r.db.Model(&domain.User{}).
		Where("id = ? AND subscription_expires_at IS NOT NULL AND subscription_expires_at < ?", id, now).
		Updates(map[string]any{
			"subscription_plan":              domain.PlanFree,
			"subscription_conversions_limit": domain.FreeConversionsLimit,
			"subscription_conversions_used":  0,
			"subscription_expires_at":        nil,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "demote_expired", "error")
		return false, res.Error
	}
	outcome := "noop"
	if res.RowsAffected > 0 {
		outcome = "success"
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "demote_expired", outcome)
	return res.RowsAffected > 0, nil
}

func (r *GormUserRepository) ApplySubscription(id uint, plan domain.Plan, limit int, expiresAt time.Time, customerCode string) error {
	res := r.db.Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"subscription_plan":              plan,
		"subscription_conversions_limit": limit,
		"subscription_expires_at":        expiresAt,
		"subscription_customer_code":     customerCode,
	})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "apply_subscription", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "apply_subscription", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "apply_subscription", "success")
	return nil
}

// NormalizeEmail lowercases and trims so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
