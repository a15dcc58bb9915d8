package repositories

import (
	"context"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Users struct {
	db *gorm.DB
}

func NewUsersRepository(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Add records a user the first time the bot sees them. Repeated adds are
// no-ops.
func (repo *Users) Add(ctx context.Context, user entities.User) error {
	return repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&user).Error
}

func (repo *Users) GetIDs(ctx context.Context) ([]int64, error) {

	var ids []int64
	if err := repo.db.WithContext(ctx).Model(&entities.User{}).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (repo *Users) GetCount(ctx context.Context) (int64, error) {

	var count int64
	if err := repo.db.WithContext(ctx).Model(&entities.User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
