package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"salon-magik-hub/internal/core/domain"
	"salon-magik-hub/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[w.ID] = w
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByOwner(ctx context.Context, tenantID uuid.UUID, kind domain.WalletKind, ownerID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.TenantID == tenantID && w.Kind == kind && w.OwnerID == ownerID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWalletRepo) GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, kind domain.WalletKind, ownerID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByOwner(ctx, tenantID, kind, ownerID)
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.Balance = balance
	w.UpdatedAt = time.Now()
	return nil
}

// --- In-Memory Entry Repo ---

type inMemoryEntryRepo struct {
	mu      sync.RWMutex
	entries map[string]*domain.LedgerEntry // by id
	byKey   map[string]*domain.LedgerEntry // by idempotency key
}

func newInMemoryEntryRepo() *inMemoryEntryRepo {
	return &inMemoryEntryRepo{
		entries: make(map[string]*domain.LedgerEntry),
		byKey:   make(map[string]*domain.LedgerEntry),
	}
}

// Create enforces the idempotency-key unique constraint the way the real
// schema does, surfacing a 23505 so the service takes its replay path.
func (r *inMemoryEntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[e.IdempotencyKey]; exists {
		return &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_idempotency_key_key"}
	}
	cp := *e
	r.entries[e.ID] = &cp
	r.byKey[e.IdempotencyKey] = &cp
	return nil
}

func (r *inMemoryEntryRepo) GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryEntryRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryEntryRepo) GetByReference(ctx context.Context, walletID uuid.UUID, referenceType, referenceID string, entryType domain.EntryType) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.WalletID == walletID && e.ReferenceType == referenceType && e.ReferenceID == referenceID && e.EntryType == entryType {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryEntryRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.LedgerEntry
	for _, e := range r.entries {
		if e.WalletID == walletID {
			all = append(all, *e)
		}
	}
	// ULIDs sort by creation time; newest first like the SQL query.
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))

	if offset >= len(all) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *inMemoryEntryRepo) SumByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, e := range r.entries {
		if e.WalletID == walletID {
			sum += e.Amount
		}
	}
	return sum, nil
}

// --- In-Memory Withdrawal Repo ---

type inMemoryWithdrawalRepo struct {
	mu          sync.RWMutex
	withdrawals map[uuid.UUID]*domain.Withdrawal
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{withdrawals: make(map[uuid.UUID]*domain.Withdrawal)}
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, w *domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.withdrawals[w.ID] = &cp
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWithdrawalRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[id]
	if !ok || w.Status != domain.WithdrawalStatusPending {
		return fmt.Errorf("withdrawal not pending")
	}
	delete(r.withdrawals, id)
	return nil
}

func (r *inMemoryWithdrawalRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WithdrawalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return fmt.Errorf("withdrawal not found")
	}
	w.Status = status
	w.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryWithdrawalRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return fmt.Errorf("withdrawal not found")
	}
	w.Status = domain.WithdrawalStatusFailed
	w.FailureReason = &reason
	w.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryWithdrawalRepo) SetTransfer(ctx context.Context, id uuid.UUID, transferCode, transferReference string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return fmt.Errorf("withdrawal not found")
	}
	w.TransferCode = &transferCode
	w.TransferReference = &transferReference
	w.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryWithdrawalRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Withdrawal, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.Withdrawal
	for _, w := range r.withdrawals {
		if w.TenantID == tenantID {
			all = append(all, *w)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))

	if offset >= len(all) {
		return []domain.Withdrawal{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *inMemoryWithdrawalRepo) CountStuckProcessing(ctx context.Context, createdBefore time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, w := range r.withdrawals {
		if w.Status == domain.WithdrawalStatusProcessing && w.CreatedAt.Before(createdBefore) {
			count++
		}
	}
	return count, nil
}

// --- In-Memory Destination Repo ---

type inMemoryDestinationRepo struct {
	mu    sync.RWMutex
	dests map[uuid.UUID]*domain.PayoutDestination
}

func newInMemoryDestinationRepo() *inMemoryDestinationRepo {
	return &inMemoryDestinationRepo{dests: make(map[uuid.UUID]*domain.PayoutDestination)}
}

func (r *inMemoryDestinationRepo) Create(ctx context.Context, d *domain.PayoutDestination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.dests[d.ID] = &cp
	return nil
}

func (r *inMemoryDestinationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutDestination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dests[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *inMemoryDestinationRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.PayoutDestination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.PayoutDestination
	for _, d := range r.dests {
		if d.TenantID == tenantID {
			out = append(out, *d)
		}
	}
	return out, nil
}

// --- In-Memory Idempotency Cache ---

type inMemoryIdempotencyCache struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func newInMemoryIdempotencyCache() *inMemoryIdempotencyCache {
	return &inMemoryIdempotencyCache{values: make(map[string][]byte)}
}

func (c *inMemoryIdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (c *inMemoryIdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// --- In-Memory Transactor (serialized tx) ---

// inMemoryTransactor stands in for the row lock a real ledger transaction
// takes: Begin blocks until the previous transaction commits or rolls back,
// so two concurrent appends run their read-check-write sequences one at a
// time, like FOR UPDATE on the wallet row.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serializedTx{release: t.mu.Unlock}, nil
}

// serializedTx is a pgx.Tx that releases the transactor lock on the first
// Commit or Rollback.
type serializedTx struct {
	mu      sync.Mutex
	done    bool
	release func()
}

func (t *serializedTx) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.done {
		t.done = true
		t.release()
	}
}

func (t *serializedTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serializedTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *serializedTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *serializedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serializedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serializedTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serializedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serializedTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serializedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serializedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serializedTx) Conn() *pgx.Conn { return nil }

// --- Pass-through retrier ---

type passthroughRetrier struct{}

func (passthroughRetrier) Retry(ctx context.Context, operation func() error) error {
	return operation()
}

var _ ports.Retrier = passthroughRetrier{}
