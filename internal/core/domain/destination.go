package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutChannel is the transfer rail a destination settles over.
type PayoutChannel string

const (
	PayoutChannelBank        PayoutChannel = "bank"
	PayoutChannelMobileMoney PayoutChannel = "mobile_money"
)

// PayoutDestination is a bank or mobile-money target a salon withdraws to.
// RecipientCode is the provider-side identifier used on transfer calls.
// Destinations are referenced, never owned, by withdrawals.
type PayoutDestination struct {
	ID            uuid.UUID     `json:"id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	Channel       PayoutChannel `json:"channel"`
	Label         string        `json:"label"` // e.g. "GTBank ••4821"
	RecipientCode string        `json:"-"`
	Currency      string        `json:"currency"`
	CreatedAt     time.Time     `json:"created_at"`
}
