package ports

import (
	"context"
	"time"

	"salon-magik-hub/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside the ledger transaction and take the
// wallet row lock; the cached balance is only ever written through
// UpdateBalance inside that same transaction.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, tenantID uuid.UUID, kind domain.WalletKind, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, kind domain.WalletKind, ownerID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error
}

// EntryRepository defines persistence for the append-only ledger entry log.
// Entries are immutable: there is no update or delete.
type EntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error)
	// GetByReference locates the entry a business object produced on a wallet,
	// e.g. the withdrawal debit the reconciler needs to reverse.
	GetByReference(ctx context.Context, walletID uuid.UUID, referenceType, referenceID string, entryType domain.EntryType) (*domain.LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int64, error)
	// SumByWallet recomputes the balance from the entry log (audit path).
	SumByWallet(ctx context.Context, walletID uuid.UUID) (int64, error)
}

// WithdrawalRepository defines persistence for withdrawal records.
type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *domain.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	// Delete is only legal for a pending withdrawal whose debit was never
	// applied; once debited, withdrawals are failed via reversal instead.
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	SetTransfer(ctx context.Context, id uuid.UUID, transferCode, transferReference string) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Withdrawal, int64, error)
	// CountStuckProcessing counts withdrawals still processing that were
	// created before the cutoff; a non-zero count is an alert condition.
	CountStuckProcessing(ctx context.Context, createdBefore time.Time) (int64, error)
}

// DestinationRepository defines persistence for payout destinations.
type DestinationRepository interface {
	Create(ctx context.Context, dest *domain.PayoutDestination) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutDestination, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.PayoutDestination, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Retrier re-runs a transactional operation on transient store failures
// (serialization conflicts, deadlocks).
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator mints ledger entry ids.
type IDGenerator interface {
	NewEntryID() string
}

// IdempotencyCache is the Redis-layer idempotency fast path. The
// authoritative guard is the unique key constraint on the entry log; the
// cache only short-circuits retries without a database round trip.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // cached entry JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
