package entities

import "time"

type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimConfirmed ClaimStatus = "confirmed"
	ClaimDeclined  ClaimStatus = "declined"
	ClaimExpired   ClaimStatus = "expired"
)

// PaymentClaim is a receipt the user sent after pressing a payment button.
// It stays pending until the admin confirms or declines it, or until the
// cleaner expires it.
type PaymentClaim struct {
	ID         int `gorm:"primaryKey"`
	UserID     int64
	OrderTag   string `gorm:"index"`
	Method     string
	Status     ClaimStatus
	CreatedAt  time.Time
	ReviewedAt *time.Time
}

func NewPaymentClaim(userID int64, orderTag string, method string) *PaymentClaim {
	return &PaymentClaim{UserID: userID, OrderTag: orderTag, Method: method, Status: ClaimPending}
}
