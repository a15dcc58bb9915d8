package repositories

import (
	"context"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/entities"
	"gorm.io/gorm"
	"time"
)

type Claims struct {
	db *gorm.DB
}

func NewClaimsRepository(db *gorm.DB) *Claims {
	return &Claims{db: db}
}

func (repo *Claims) Add(ctx context.Context, claim entities.PaymentClaim) error {
	return repo.db.WithContext(ctx).Create(&claim).Error
}

func (repo *Claims) GetByOrderTag(ctx context.Context, orderTag string) (*entities.PaymentClaim, error) {

	var claim entities.PaymentClaim
	if err := repo.db.WithContext(ctx).
		First(&claim, "order_tag = ?", orderTag).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (repo *Claims) SetStatus(ctx context.Context, orderTag string, status entities.ClaimStatus) error {
	now := time.Now()
	return repo.db.WithContext(ctx).Model(&entities.PaymentClaim{}).
		Where("order_tag = ?", orderTag).
		Updates(map[string]any{
			"status":      status,
			"reviewed_at": now,
		}).Error
}

// ExpireStale flips pending claims created before the cutoff to expired and
// returns them so callers can notify their owners.
func (repo *Claims) ExpireStale(ctx context.Context, before time.Time) ([]entities.PaymentClaim, error) {

	var stale []entities.PaymentClaim
	if err := repo.db.WithContext(ctx).
		Find(&stale, "status = ? AND created_at < ?", entities.ClaimPending, before).Error; err != nil {
		return nil, err
	}

	if len(stale) == 0 {
		return nil, nil
	}

	if err := repo.db.WithContext(ctx).Model(&entities.PaymentClaim{}).
		Where("status = ? AND created_at < ?", entities.ClaimPending, before).
		Update("status", entities.ClaimExpired).Error; err != nil {
		return nil, err
	}

	return stale, nil
}
