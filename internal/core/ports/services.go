package ports

import (
	"context"
	"time"

	"salon-magik-hub/internal/core/domain"

	"github.com/google/uuid"
)

// --- Ledger ---

// CreditWalletRequest credits a wallet. Amount must be positive; the ledger
// never applies a credit with a non-positive amount. When WalletID is
// uuid.Nil the wallet is resolved by (TenantID, Kind, OwnerID) and created
// lazily inside the ledger transaction on first credit.
type CreditWalletRequest struct {
	TenantID       uuid.UUID
	Kind           domain.WalletKind
	OwnerID        uuid.UUID
	WalletID       uuid.UUID
	EntryType      domain.EntryType
	Amount         int64
	Currency       string
	ReferenceType  string
	ReferenceID    string
	IdempotencyKey string
}

// DebitWalletRequest debits a wallet. Amount is the positive magnitude; the
// ledger negates it and rejects the debit if it would drive the balance
// below zero.
type DebitWalletRequest struct {
	TenantID       uuid.UUID
	WalletID       uuid.UUID
	EntryType      domain.EntryType
	Amount         int64
	Currency       string
	ReferenceType  string
	ReferenceID    string
	IdempotencyKey string
}

// WithdrawalDebitRequest is the compensating debit applied before calling
// the transfer provider. The idempotency key is derived from WithdrawalID.
type WithdrawalDebitRequest struct {
	TenantID     uuid.UUID
	WalletID     uuid.UUID
	WithdrawalID uuid.UUID
	Amount       int64
	Currency     string
}

// LedgerService is the only legal way to move a wallet balance. Every verb
// funnels through a single atomic append: lock wallet row, validate, insert
// entry, write new cached balance.
type LedgerService interface {
	CreditWallet(ctx context.Context, req CreditWalletRequest) (*domain.LedgerEntry, error)
	DebitWallet(ctx context.Context, req DebitWalletRequest) (*domain.LedgerEntry, error)
	DebitWalletForWithdrawal(ctx context.Context, req WithdrawalDebitRequest) (*domain.LedgerEntry, error)
	// ReverseEntry appends the negation of a previously recorded entry,
	// referencing it by id. The caller supplies a key deterministic in the
	// triggering event; a reversal cannot itself be reversed.
	ReverseEntry(ctx context.Context, originalEntryID, reason, idempotencyKey string) (*domain.LedgerEntry, error)
	GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error)
	ListWalletEntries(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error)
}

// --- Withdrawal orchestration ---

// CreateWithdrawalRequest is the service-boundary input for a payout.
type CreateWithdrawalRequest struct {
	TenantID      uuid.UUID
	DestinationID uuid.UUID
	Amount        int64
}

// WithdrawalService drives the withdrawal life cycle:
// pending -> processing -> {completed | failed}, with the terminal states
// reached via the settlement reconciler (or synchronously on provider
// rejection, after the compensating reversal).
type WithdrawalService interface {
	CreateWithdrawal(ctx context.Context, req CreateWithdrawalRequest) (*domain.Withdrawal, error)
	GetWithdrawal(ctx context.Context, tenantID, id uuid.UUID) (*domain.Withdrawal, error)
	ListWithdrawals(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]domain.Withdrawal, int64, error)
}

// --- Settlement reconciliation ---

// SettlementService processes asynchronous provider callbacks. HandleEvent
// authenticates the raw payload before parsing; once the signature checks
// out every event — including duplicates, unknown references, and no-ops —
// is absorbed without error so the provider does not retry-storm.
type SettlementService interface {
	HandleEvent(ctx context.Context, rawBody []byte, signature string) error
}

// --- External transfer provider ---

// TransferRequest is the outbound payout call.
type TransferRequest struct {
	Amount    int64  // minor units
	Recipient string // provider-side recipient code
	Reference string // withdrawal_<uuid>_<unix-ms>
	Currency  string
	Reason    string
}

// TransferResult is a successful synchronous acceptance.
type TransferResult struct {
	TransferCode string
}

// TransferProvider initiates payouts with the external funds-transfer
// provider. The call is bounded by a timeout; any error — rejection,
// transport failure, or timeout — is a synchronous failure the orchestrator
// compensates for.
type TransferProvider interface {
	InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// --- Security ---

// SignatureService verifies HMAC signatures over raw webhook payloads.
type SignatureService interface {
	Sign(secret string, payload []byte) string
	Verify(secret string, payload []byte, signature string) bool
}

// TokenService handles JWT token operations for the tenant API.
type TokenService interface {
	Generate(tenantID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	TenantID uuid.UUID
}
