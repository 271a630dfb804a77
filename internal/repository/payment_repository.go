package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/observability"
)

var ErrPaymentNotFound = errors.New("payment not found")

type PaymentRepository interface {
	Create(payment *domain.Payment) error
	FindByReference(reference string) (*domain.Payment, error)
	MarkSuccess(reference string, paidAt time.Time, customerCode string) (bool, error)
	MarkFailed(reference string) (bool, error)
}

type GormPaymentRepository struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(payment *domain.Payment) error {
	if err := r.db.Create(payment).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "payment", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "payment", "create", "success")
	return nil
}

func (r *GormPaymentRepository) FindByReference(reference string) (*domain.Payment, error) {
	var payment domain.Payment
	if err := r.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "payment", "find_by_reference", "not_found")
			return nil, ErrPaymentNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "payment", "find_by_reference", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "payment", "find_by_reference", "success")
	return &payment, nil
}

// MarkSuccess transitions pending -> success exactly once. A duplicate
// delivery (webhook racing the client-redirect verify) loses the guarded
// update and gets false back, so the subscription is credited a single time.
func (r *GormPaymentRepository) MarkSuccess(reference string, paidAt time.Time, customerCode string) (bool, error) {
	res := r.db.Model(&domain.Payment{}).
		Where("reference = ? AND status = ?", reference, domain.PaymentPending).
		Updates(map[string]any{
			"status":        domain.PaymentSuccess,
			"paid_at":       paidAt,
			"customer_code": customerCode,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "payment", "mark_success", "error")
		return false, res.Error
	}
	outcome := "noop"
	if res.RowsAffected > 0 {
		outcome = "success"
	}
	observability.RecordRepositoryOperation(context.Background(), "payment", "mark_success", outcome)
	return res.RowsAffected > 0, nil
}

func (r *GormPaymentRepository) MarkFailed(reference string) (bool, error) {
	res := r.db.Model(&domain.Payment{}).
		Where("reference = ? AND status = ?", reference, domain.PaymentPending).
		Update("status", domain.PaymentFailed)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "payment", "mark_failed", "error")
		return false, res.Error
	}
	outcome := "noop"
	if res.RowsAffected > 0 {
		outcome = "success"
	}
	observability.RecordRepositoryOperation(context.Background(), "payment", "mark_failed", outcome)
	return res.RowsAffected > 0, nil
}
