package postgres

import (
	"context"
	"errors"
	"fmt"

	"salon-magik-hub/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const entryColumns = `id, tenant_id, wallet_kind, wallet_id, entry_type, amount, currency, balance_after, reference_type, reference_id, idempotency_key, created_at`

// pgErrUniqueViolation is raised when two transactions race on the same
// idempotency key; the loser treats it as a replay.
const pgErrUniqueViolation = "23505"

// EntryRepo implements ports.EntryRepository. The ledger_entries table is
// append-only: this repo exposes no update or delete.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

// Create inserts a ledger entry within the ledger transaction. The table
// carries a unique constraint on idempotency_key; IsDuplicateKey
// distinguishes a replay from other failures.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, tenant_id, wallet_kind, wallet_id, entry_type, amount, currency, balance_after, reference_type, reference_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.TenantID, e.WalletKind, e.WalletID, e.EntryType, e.Amount, e.Currency,
		e.BalanceAfter, e.ReferenceType, e.ReferenceID, e.IdempotencyKey, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// IsDuplicateKey reports whether err is a unique violation on the
// idempotency key constraint.
func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// GetByID fetches an entry by id.
func (r *EntryRepo) GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`
	return r.scanEntry(r.pool.QueryRow(ctx, query, id), "get entry by id")
}

// GetByIdempotencyKey fetches the entry recorded under an idempotency key.
func (r *EntryRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE idempotency_key = $1`
	return r.scanEntry(r.pool.QueryRow(ctx, query, key), "get entry by idempotency key")
}

// GetByReference locates the entry a business object produced on a wallet.
func (r *EntryRepo) GetByReference(ctx context.Context, walletID uuid.UUID, referenceType, referenceID string, entryType domain.EntryType) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE wallet_id = $1 AND reference_type = $2 AND reference_id = $3 AND entry_type = $4`
	return r.scanEntry(r.pool.QueryRow(ctx, query, walletID, referenceType, referenceID, entryType), "get entry by reference")
}

// ListByWallet returns a page of a wallet's entries, newest first, plus the
// total count.
func (r *EntryRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, walletID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE wallet_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.WalletKind, &e.WalletID, &e.EntryType, &e.Amount, &e.Currency,
			&e.BalanceAfter, &e.ReferenceType, &e.ReferenceID, &e.IdempotencyKey, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list entries rows: %w", err)
	}
	return entries, total, nil
}

// SumByWallet recomputes a wallet balance from its entry log.
func (r *EntryRepo) SumByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE wallet_id = $1`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, walletID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum entries: %w", err)
	}
	return sum, nil
}

func (r *EntryRepo) scanEntry(row pgx.Row, op string) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.TenantID, &e.WalletKind, &e.WalletID, &e.EntryType, &e.Amount, &e.Currency,
		&e.BalanceAfter, &e.ReferenceType, &e.ReferenceID, &e.IdempotencyKey, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}
