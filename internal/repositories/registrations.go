package repositories

import (
	"context"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/entities"
	"gorm.io/gorm"
)

type Registrations struct {
	db *gorm.DB
}

func NewRegistrationsRepository(db *gorm.DB) *Registrations {
	return &Registrations{db: db}
}

func (repo *Registrations) Add(ctx context.Context, registration entities.Registration) error {
	return repo.db.WithContext(ctx).Create(&registration).Error
}

func (repo *Registrations) GetByUser(ctx context.Context, userID int64) ([]entities.Registration, error) {

	var registrations []entities.Registration
	if err := repo.db.WithContext(ctx).
		Find(&registrations, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return registrations, nil
}
