package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntryType is the closed vocabulary of balance-affecting events.
type EntryType string

const (
	EntryTypeCustomerPurseTopup            EntryType = "customer_purse_topup"
	EntryTypeSalonPurseCreditBooking       EntryType = "salon_purse_credit_booking"
	EntryTypeSalonPurseDebitCreditPurchase EntryType = "salon_purse_debit_credit_purchase"
	EntryTypeSalonPurseWithdrawal          EntryType = "salon_purse_withdrawal"
)

const reversalSuffix = "_reversal"

var baseEntryTypes = map[EntryType]struct{}{
	EntryTypeCustomerPurseTopup:            {},
	EntryTypeSalonPurseCreditBooking:       {},
	EntryTypeSalonPurseDebitCreditPurchase: {},
	EntryTypeSalonPurseWithdrawal:          {},
}

// Valid reports whether t is a known entry type, including the reversal
// form of each base type.
func (t EntryType) Valid() bool {
	if _, ok := baseEntryTypes[t]; ok {
		return true
	}
	if t.IsReversal() {
		_, ok := baseEntryTypes[t.Original()]
		return ok
	}
	return false
}

// IsReversal reports whether t is the reversal form of a base entry type.
func (t EntryType) IsReversal() bool {
	return strings.HasSuffix(string(t), reversalSuffix)
}

// Reversal derives the reversal entry type for t. A reversal type cannot be
// reversed again.
func (t EntryType) Reversal() EntryType {
	return t + reversalSuffix
}

// Original strips the reversal suffix, returning the base type.
func (t EntryType) Original() EntryType {
	return EntryType(strings.TrimSuffix(string(t), reversalSuffix))
}

// Reference types for the business object that caused an entry.
const (
	ReferenceTypeBooking        = "booking"
	ReferenceTypeInvoice        = "invoice"
	ReferenceTypeCreditPurchase = "credit_purchase"
	ReferenceTypeWithdrawal     = "withdrawal"
	ReferenceTypeTopup          = "topup"
	// ReferenceTypeEntry marks a reversal pointing back at the entry it undoes.
	ReferenceTypeEntry = "entry"
)

// LedgerEntry is an immutable, append-only record of a single balance
// change. Entries for a wallet, summed in creation order, always reproduce
// the wallet's cached balance; no entry is ever mutated or deleted.
type LedgerEntry struct {
	ID             string     `json:"id"` // ULID, sortable by creation time
	TenantID       uuid.UUID  `json:"tenant_id"`
	WalletKind     WalletKind `json:"wallet_kind"`
	WalletID       uuid.UUID  `json:"wallet_id"`
	EntryType      EntryType  `json:"entry_type"`
	Amount         int64      `json:"amount"` // minor units; credits positive, debits negative
	Currency       string     `json:"currency"`
	BalanceAfter   int64      `json:"balance_after"` // wallet balance immediately after this entry
	ReferenceType  string     `json:"reference_type"`
	ReferenceID    string     `json:"reference_id"`
	IdempotencyKey string     `json:"idempotency_key"`
	CreatedAt      time.Time  `json:"created_at"`
}
