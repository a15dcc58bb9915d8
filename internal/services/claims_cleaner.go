package services

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/entities"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/events"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"time"
)

type claimExpiryRepository interface {
	ExpireStale(ctx context.Context, before time.Time) ([]entities.PaymentClaim, error)
}

// ClaimsCleaner expires payment claims nobody reviewed in time, so users
// are not left waiting forever on a forgotten receipt.
type ClaimsCleaner struct {
	claims            claimExpiryRepository
	bus               EventBus.Bus
	cron              *cron.Cron
	expirationInHours int
}

func NewClaimsCleaner(claims claimExpiryRepository, bus EventBus.Bus, expirationInHours int) (*ClaimsCleaner, error) {

	if expirationInHours <= 0 {
		return nil, errors.New("expiration in hours must be greater than zero")
	}

	cc := &ClaimsCleaner{
		claims:            claims,
		bus:               bus,
		cron:              cron.New(),
		expirationInHours: expirationInHours,
	}

	_, err := cc.cron.AddFunc("0 3 * * *", cc.expireStaleClaims)
	if err != nil {
		return nil, err
	}

	cc.cron.Start()
	log.Infof("claims cleaner started, expiration in hours: %d", cc.expirationInHours)
	return cc, nil
}

func (cc *ClaimsCleaner) Stop() {
	cc.cron.Stop()
}

func (cc *ClaimsCleaner) expireStaleClaims() {
	before := time.Now().Add(-time.Duration(cc.expirationInHours) * time.Hour)

	expired, err := cc.claims.ExpireStale(context.Background(), before)
	if err != nil {
		log.Errorf("Failed to expire stale claims: %v", err)
		return
	}

	for _, claim := range expired {
		cc.bus.Publish(events.ClaimExpiredTopic, events.ClaimExpired{Claim: claim})
	}

	if len(expired) > 0 {
		log.Infof("expired %v stale payment claims", len(expired))
	}
}
