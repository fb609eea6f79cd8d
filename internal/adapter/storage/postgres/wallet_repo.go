package postgres

import (
	"context"
	"errors"
	"fmt"

	"salon-magik-hub/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, tenant_id, kind, owner_id, currency, balance, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet inside the ledger transaction. Wallets are
// created lazily on first credit, so insertion shares the transaction with
// the entry that funds them.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, tenant_id, kind, owner_id, currency, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.TenantID, w.Kind, w.OwnerID, w.Currency, w.Balance, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID (non-locking read).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return r.scanWallet(r.pool.QueryRow(ctx, query, id), "get wallet by id")
}

// GetByOwner fetches a wallet by (tenant, kind, owner) without locking.
func (r *WalletRepo) GetByOwner(ctx context.Context, tenantID uuid.UUID, kind domain.WalletKind, ownerID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE tenant_id = $1 AND kind = $2 AND owner_id = $3`
	return r.scanWallet(r.pool.QueryRow(ctx, query, tenantID, kind, ownerID), "get wallet by owner")
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return r.scanWallet(tx.QueryRow(ctx, query, id), "get wallet for update by id")
}

// GetByOwnerForUpdate fetches a wallet by (tenant, kind, owner) with
// pessimistic locking. This MUST be called within a transaction.
func (r *WalletRepo) GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, kind domain.WalletKind, ownerID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE tenant_id = $1 AND kind = $2 AND owner_id = $3 FOR UPDATE`
	return r.scanWallet(tx.QueryRow(ctx, query, tenantID, kind, ownerID), "get wallet for update by owner")
}

// UpdateBalance writes the cached balance within the ledger transaction.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, walletID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

func (r *WalletRepo) scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.TenantID, &w.Kind, &w.OwnerID, &w.Currency, &w.Balance, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
