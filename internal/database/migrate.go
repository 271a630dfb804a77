package database

import (
	"pdflux-api/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Conversion{},
		&domain.Payment{},
	)
}
