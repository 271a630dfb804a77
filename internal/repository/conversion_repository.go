package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/observability"
)

var ErrConversionNotFound = errors.New("conversion not found")

type ConversionRepository interface {
	Create(conversion *domain.Conversion) error
	FindByIDForUser(id, userID uint) (*domain.Conversion, error)
	ListByUserPaged(userID uint, page PageRequest) (PageResult[domain.Conversion], error)
	MarkCompleted(id uint, outputKey string, completedAt time.Time) (bool, error)
	MarkFailed(id uint, completedAt time.Time) (bool, error)
}

type GormConversionRepository struct{ db *gorm.DB }

func NewConversionRepository(db *gorm.DB) ConversionRepository {
	return &GormConversionRepository{db: db}
}

func (r *GormConversionRepository) Create(conversion *domain.Conversion) error {
	if err := r.db.Create(conversion).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "conversion", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "conversion", "create", "success")
	return nil
}

// FindByIDForUser scopes the lookup to the owner so one account cannot
// enumerate another's jobs; a foreign id reads the same as a missing one.
func (r *GormConversionRepository) FindByIDForUser(id, userID uint) (*domain.Conversion, error) {
	var conversion domain.Conversion
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&conversion).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "conversion", "find_for_user", "not_found")
			return nil, ErrConversionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "conversion", "find_for_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "conversion", "find_for_user", "success")
	return &conversion, nil
}

func (r *GormConversionRepository) ListByUserPaged(userID uint, page PageRequest) (PageResult[domain.Conversion], error) {
	page = normalizePageRequest(page)

	var total int64
	if err := r.db.Model(&domain.Conversion{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "conversion", "list_by_user", "error")
		return PageResult[domain.Conversion]{}, err
	}

	var conversions []domain.Conversion
	err := r.db.Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&conversions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "conversion", "list_by_user", "error")
		return PageResult[domain.Conversion]{}, err
	}
	observability.RecordRepositoryOperation(context.Background(), "conversion", "list_by_user", "success")
	return PageResult[domain.Conversion]{
		Items:      conversions,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, page.PageSize),
	}, nil
}

// MarkCompleted transitions processing -> completed. Jobs already terminal
// are left untouched and reported as false, which makes repeated converter
// callbacks no-ops.
func (r *GormConversionRepository) MarkCompleted(id uint, outputKey string, completedAt time.Time) (bool, error) {
	res := r.db.Model(&domain.Conversion{}).
		Where("id = ? AND status = ?", id, domain.ConversionProcessing).
		Updates(map[string]any{
			"status":       domain.ConversionCompleted,
			"output_key":   outputKey,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "conversion", "mark_completed", "error")
		return false, res.Error
	}
	outcome := "noop"
	if res.RowsAffected > 0 {
		outcome = "success"
	}
	observability.RecordRepositoryOperation(context.Background(), "conversion", "mark_completed", outcome)
	return res.RowsAffected > 0, nil
}

func (r *GormConversionRepository) MarkFailed(id uint, completedAt time.Time) (bool, error) {
	res := r.db.Model(&domain.Conversion{}).
		Where("id = ? AND status = ?", id, domain.ConversionProcessing).
		Updates(map[string]any{
			"status":       domain.ConversionFailed,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "conversion", "mark_failed", "error")
		return false, res.Error
	}
	outcome := "noop"
	if res.RowsAffected > 0 {
		outcome = "success"
	}
	observability.RecordRepositoryOperation(context.Background(), "conversion", "mark_failed", outcome)
	return res.RowsAffected > 0, nil
}
