package postgres

import (
	"context"
	"errors"
	"fmt"

	"salon-magik-hub/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const destinationColumns = `id, tenant_id, channel, label, recipient_code, currency, created_at`

// DestinationRepo implements ports.DestinationRepository.
type DestinationRepo struct {
	pool Pool
}

// NewDestinationRepo creates a new DestinationRepo.
func NewDestinationRepo(pool Pool) *DestinationRepo {
	return &DestinationRepo{pool: pool}
}

// Create inserts a payout destination.
func (r *DestinationRepo) Create(ctx context.Context, d *domain.PayoutDestination) error {
	query := `INSERT INTO payout_destinations (id, tenant_id, channel, label, recipient_code, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.TenantID, d.Channel, d.Label, d.RecipientCode, d.Currency, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout destination: %w", err)
	}
	return nil
}

// GetByID fetches a destination by id.
func (r *DestinationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutDestination, error) {
	query := `SELECT ` + destinationColumns + ` FROM payout_destinations WHERE id = $1`

	d := &domain.PayoutDestination{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.TenantID, &d.Channel, &d.Label, &d.RecipientCode, &d.Currency, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout destination: %w", err)
	}
	return d, nil
}

// ListByTenant returns all destinations registered by a tenant.
func (r *DestinationRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.PayoutDestination, error) {
	query := `SELECT ` + destinationColumns + ` FROM payout_destinations WHERE tenant_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list payout destinations: %w", err)
	}
	defer rows.Close()

	var dests []domain.PayoutDestination
	for rows.Next() {
		var d domain.PayoutDestination
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.Channel, &d.Label, &d.RecipientCode, &d.Currency, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payout destination: %w", err)
		}
		dests = append(dests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payout destinations rows: %w", err)
	}
	return dests, nil
}
