package domain

import (
	"github.com/google/uuid"
)

// Idempotency keys are deterministic in the event that triggers an effect,
// so retries and redeliveries recompute the same key and the ledger's
// unique-key check absorbs them.

// WithdrawalDebitKey is the key for the compensating debit applied when a
// withdrawal is created.
func WithdrawalDebitKey(withdrawalID uuid.UUID) string {
	return "withdrawal_debit_" + withdrawalID.String()
}

// ReversalKey is the key for the compensating reversal of a withdrawal
// debit. A debit is refunded at most once no matter which trigger arrives
// first (transfer.failed, transfer.reversed, or a synchronous provider
// rejection), so the key is deterministic in the withdrawal alone.
func ReversalKey(withdrawalID uuid.UUID) string {
	return "withdrawal_reversal_" + withdrawalID.String()
}
