package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletKind distinguishes the two stores of value the platform holds.
type WalletKind string

const (
	// WalletKindCustomerPurse holds prepaid value owned by an end customer.
	WalletKindCustomerPurse WalletKind = "customer_purse"
	// WalletKindSalonWallet holds funds earned by a salon, pending withdrawal.
	WalletKindSalonWallet WalletKind = "salon_wallet"
)

// Valid reports whether k is a known wallet kind.
func (k WalletKind) Valid() bool {
	return k == WalletKindCustomerPurse || k == WalletKindSalonWallet
}

// Wallet is a tenant- or customer-owned store of value. Balance is a cache
// fully derived from the wallet's ledger entries; it is only ever written
// inside the same transaction that appends an entry.
type Wallet struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	Kind      WalletKind `json:"kind"`
	OwnerID   uuid.UUID  `json:"owner_id"` // customer or salon, depending on kind
	Currency  string     `json:"currency"`
	Balance   int64      `json:"balance"` // minor units, signed
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
