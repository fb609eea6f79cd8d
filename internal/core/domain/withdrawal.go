package domain

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is the settlement life-cycle state of a payout attempt.
//
// pending -> processing -> completed
//                       -> failed
// pending -> failed (synchronous provider rejection)
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

// Withdrawal is one payout attempt from a salon wallet to an external
// destination. Once its compensating debit has been applied it is never
// deleted; a failed transfer is undone via a reversal entry instead.
type Withdrawal struct {
	ID                uuid.UUID        `json:"id"`
	TenantID          uuid.UUID        `json:"tenant_id"`
	WalletID          uuid.UUID        `json:"wallet_id"`
	DestinationID     uuid.UUID        `json:"destination_id"`
	Currency          string           `json:"currency"`
	Amount            int64            `json:"amount"` // minor units, positive
	Status            WithdrawalStatus `json:"status"`
	FailureReason     *string          `json:"failure_reason,omitempty"`
	TransferCode      *string          `json:"transfer_code,omitempty"` // provider-side transfer id
	TransferReference *string          `json:"transfer_reference,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// IsTerminal returns true if the withdrawal is in a final state.
func (w *Withdrawal) IsTerminal() bool {
	return w.Status == WithdrawalStatusCompleted || w.Status == WithdrawalStatusFailed
}
