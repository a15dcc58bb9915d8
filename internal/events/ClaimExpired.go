package events

import "github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/entities"

var ClaimExpiredTopic = "ClaimExpiredEvent"

type ClaimExpired struct {
	Claim entities.PaymentClaim
}
