package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salon-magik-hub/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, tenant_id, wallet_id, destination_id, currency, amount, status, failure_reason, transfer_code, transfer_reference, created_at, updated_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a new withdrawal record.
func (r *WithdrawalRepo) Create(ctx context.Context, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals (id, tenant_id, wallet_id, destination_id, currency, amount, status, failure_reason, transfer_code, transfer_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.TenantID, w.WalletID, w.DestinationID, w.Currency, w.Amount, w.Status,
		w.FailureReason, w.TransferCode, w.TransferReference, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal by id.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w := &domain.Withdrawal{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.TenantID, &w.WalletID, &w.DestinationID, &w.Currency, &w.Amount, &w.Status,
		&w.FailureReason, &w.TransferCode, &w.TransferReference, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal by id: %w", err)
	}
	return w, nil
}

// Delete removes a withdrawal. Only legal while the withdrawal is pending
// and no debit has been applied.
func (r *WithdrawalRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM withdrawals WHERE id = $1 AND status = $2`

	_, err := r.pool.Exec(ctx, query, id, domain.WithdrawalStatusPending)
	if err != nil {
		return fmt.Errorf("delete withdrawal: %w", err)
	}
	return nil
}

// UpdateStatus transitions a withdrawal's status.
func (r *WithdrawalRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus) error {
	query := `UPDATE withdrawals SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", id)
	}
	return nil
}

// MarkFailed sets the failed status and records the provider's reason.
func (r *WithdrawalRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE withdrawals SET status = $1, failure_reason = $2, updated_at = NOW() WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, domain.WithdrawalStatusFailed, reason, id)
	if err != nil {
		return fmt.Errorf("mark withdrawal failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", id)
	}
	return nil
}

// SetTransfer persists the provider's transfer code and our reference once
// the provider accepts the transfer.
func (r *WithdrawalRepo) SetTransfer(ctx context.Context, id uuid.UUID, transferCode, transferReference string) error {
	query := `UPDATE withdrawals SET transfer_code = $1, transfer_reference = $2, updated_at = NOW() WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, transferCode, transferReference, id)
	if err != nil {
		return fmt.Errorf("set withdrawal transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", id)
	}
	return nil
}

// ListByTenant returns a page of a tenant's withdrawals, newest first.
func (r *WithdrawalRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Withdrawal, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM withdrawals WHERE tenant_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []domain.Withdrawal
	for rows.Next() {
		var w domain.Withdrawal
		if err := rows.Scan(
			&w.ID, &w.TenantID, &w.WalletID, &w.DestinationID, &w.Currency, &w.Amount, &w.Status,
			&w.FailureReason, &w.TransferCode, &w.TransferReference, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list withdrawals rows: %w", err)
	}
	return withdrawals, total, nil
}

// CountStuckProcessing counts withdrawals still processing that were
// created before the cutoff. A non-zero count means settlement callbacks
// have gone missing and someone needs to look.
func (r *WithdrawalRepo) CountStuckProcessing(ctx context.Context, createdBefore time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM withdrawals WHERE status = $1 AND created_at < $2`

	var count int64
	if err := r.pool.QueryRow(ctx, query, domain.WithdrawalStatusProcessing, createdBefore).Scan(&count); err != nil {
		return 0, fmt.Errorf("count stuck withdrawals: %w", err)
	}
	return count, nil
}
