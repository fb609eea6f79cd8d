package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"salon-magik-hub/internal/adapter/storage/postgres"
	"salon-magik-hub/internal/core/domain"
	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/internal/metrics"
	"salon-magik-hub/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// LedgerServiceImpl implements ports.LedgerService. Every balance movement
// funnels through appendEntry: a single transaction that locks the wallet
// row, validates, appends the immutable entry, and writes the new cached
// balance. Nothing else in the system writes wallet balances.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.EntryRepository
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	retrier    ports.Retrier
	idGen      ports.IDGenerator
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	entryRepo ports.EntryRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	retrier ports.Retrier,
	idGen ports.IDGenerator,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		idempCache: idempCache,
		transactor: transactor,
		retrier:    retrier,
		idGen:      idGen,
		log:        log,
	}
}

// appendParams is the internal input to the single append path. Amount is
// signed: positive credits, negative debits. checkFunds rejects an append
// that would drive the balance negative; reversals skip the check so a
// compensating credit or debit always lands.
type appendParams struct {
	tenantID       uuid.UUID
	kind           domain.WalletKind
	ownerID        uuid.UUID
	walletID       uuid.UUID
	entryType      domain.EntryType
	amount         int64
	currency       string
	referenceType  string
	referenceID    string
	idempotencyKey string
	checkFunds     bool
}

// CreditWallet appends a positive-amount entry. When req.WalletID is
// uuid.Nil the wallet is resolved by owner and created lazily inside the
// ledger transaction on first credit.
func (s *LedgerServiceImpl) CreditWallet(ctx context.Context, req ports.CreditWalletRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.EntryType.Valid() || req.EntryType.IsReversal() {
		return nil, apperror.ErrInvalidEntryType()
	}
	if req.WalletID == uuid.Nil && (req.OwnerID == uuid.Nil || !req.Kind.Valid()) {
		return nil, apperror.Validation("wallet_id or (kind, owner_id) is required")
	}

	return s.appendEntry(ctx, appendParams{
		tenantID:       req.TenantID,
		kind:           req.Kind,
		ownerID:        req.OwnerID,
		walletID:       req.WalletID,
		entryType:      req.EntryType,
		amount:         req.Amount,
		currency:       req.Currency,
		referenceType:  req.ReferenceType,
		referenceID:    req.ReferenceID,
		idempotencyKey: req.IdempotencyKey,
		checkFunds:     false,
	})
}

// DebitWallet appends a negative-amount entry, rejecting the debit if the
// wallet balance would go below zero.
func (s *LedgerServiceImpl) DebitWallet(ctx context.Context, req ports.DebitWalletRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.EntryType.Valid() || req.EntryType.IsReversal() {
		return nil, apperror.ErrInvalidEntryType()
	}

	return s.appendEntry(ctx, appendParams{
		tenantID:       req.TenantID,
		walletID:       req.WalletID,
		entryType:      req.EntryType,
		amount:         -req.Amount,
		currency:       req.Currency,
		referenceType:  req.ReferenceType,
		referenceID:    req.ReferenceID,
		idempotencyKey: req.IdempotencyKey,
		checkFunds:     true,
	})
}

// DebitWalletForWithdrawal applies the payout debit before the provider is
// called. The idempotency key is deterministic in the withdrawal id, so the
// debit lands at most once no matter how often the orchestrator retries.
func (s *LedgerServiceImpl) DebitWalletForWithdrawal(ctx context.Context, req ports.WithdrawalDebitRequest) (*domain.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	return s.appendEntry(ctx, appendParams{
		tenantID:       req.TenantID,
		walletID:       req.WalletID,
		entryType:      domain.EntryTypeSalonPurseWithdrawal,
		amount:         -req.Amount,
		currency:       req.Currency,
		referenceType:  domain.ReferenceTypeWithdrawal,
		referenceID:    req.WithdrawalID.String(),
		idempotencyKey: domain.WithdrawalDebitKey(req.WithdrawalID),
		checkFunds:     true,
	})
}

// ReverseEntry appends the exact negation of a previously recorded entry.
// The original entry is never touched; its effect is undone by a new entry
// of the derived reversal type. A reversal cannot itself be reversed, and
// the funds check is skipped so the compensation always applies.
func (s *LedgerServiceImpl) ReverseEntry(ctx context.Context, originalEntryID, reason, idempotencyKey string) (*domain.LedgerEntry, error) {
	original, err := s.entryRepo.GetByID(ctx, originalEntryID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get original entry: %w", err))
	}
	if original == nil {
		return nil, apperror.ErrNotFound("ledger entry")
	}
	if original.EntryType.IsReversal() {
		return nil, apperror.ErrInvalidEntryType()
	}

	reversalType := original.EntryType.Reversal()
	if !reversalType.Valid() {
		return nil, apperror.ErrInvalidEntryType()
	}

	s.log.Info().
		Str("original_entry_id", originalEntryID).
		Str("reversal_type", string(reversalType)).
		Str("reason", reason).
		Msg("reversing ledger entry")

	return s.appendEntry(ctx, appendParams{
		tenantID:       original.TenantID,
		walletID:       original.WalletID,
		entryType:      reversalType,
		amount:         -original.Amount,
		currency:       original.Currency,
		referenceType:  domain.ReferenceTypeEntry,
		referenceID:    original.ID,
		idempotencyKey: idempotencyKey,
		checkFunds:     false,
	})
}

// GetWallet fetches a wallet with its cached balance.
func (s *LedgerServiceImpl) GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// ListWalletEntries returns a page of the wallet's statement, newest first.
func (s *LedgerServiceImpl) ListWalletEntries(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	entries, total, err := s.entryRepo.ListByWallet(ctx, walletID, pageSize, offset)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list entries: %w", err))
	}
	return entries, total, nil
}

// appendEntry is the single append path.
//
// Layer 1 is the Redis fast path: a cached entry under the idempotency key
// answers replays without touching Postgres. Layer 2 is authoritative: the
// unique constraint on idempotency_key inside the same transaction that
// moves the balance. The whole transactional section runs under the retrier
// so deadlocks and serialization conflicts are retried.
func (s *LedgerServiceImpl) appendEntry(ctx context.Context, p appendParams) (*domain.LedgerEntry, error) {
	if p.idempotencyKey == "" {
		return nil, apperror.Validation("idempotency_key is required")
	}

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, p.idempotencyKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", p.idempotencyKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return s.unmarshalCachedEntry(cached)
	}

	var entry *domain.LedgerEntry
	err = s.retrier.Retry(ctx, func() error {
		var txErr error
		entry, txErr = s.appendEntryTx(ctx, p)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.cacheEntry(ctx, p.idempotencyKey, entry)
	return entry, nil
}

// appendEntryTx runs one attempt of the transactional append.
func (s *LedgerServiceImpl) appendEntryTx(ctx context.Context, p appendParams) (*domain.LedgerEntry, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Layer 2: authoritative idempotency check
	existing, err := s.entryRepo.GetByIdempotencyKey(ctx, p.idempotencyKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	wallet, err := s.lockWallet(ctx, dbTx, p)
	if err != nil {
		return nil, err
	}

	if wallet.Currency != p.currency {
		return nil, apperror.ErrCurrencyMismatch()
	}

	newBalance := wallet.Balance + p.amount
	if p.checkFunds && newBalance < 0 {
		return nil, apperror.ErrInsufficientFunds()
	}

	entry := &domain.LedgerEntry{
		ID:             s.idGen.NewEntryID(),
		TenantID:       p.tenantID,
		WalletKind:     wallet.Kind,
		WalletID:       wallet.ID,
		EntryType:      p.entryType,
		Amount:         p.amount,
		Currency:       p.currency,
		BalanceAfter:   newBalance,
		ReferenceType:  p.referenceType,
		ReferenceID:    p.referenceID,
		IdempotencyKey: p.idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.entryRepo.Create(ctx, dbTx, entry); err != nil {
		if postgres.IsDuplicateKey(err) {
			// Lost the race to a concurrent request with the same key.
			// Roll back and surface the winner's entry.
			_ = dbTx.Rollback(ctx)
			winner, getErr := s.entryRepo.GetByIdempotencyKey(ctx, p.idempotencyKey)
			if getErr != nil {
				return nil, apperror.InternalError(fmt.Errorf("fetch winning entry: %w", getErr))
			}
			if winner != nil {
				return winner, nil
			}
			return nil, apperror.InternalError(fmt.Errorf("duplicate idempotency key but no entry found: %s", p.idempotencyKey))
		}
		return nil, apperror.InternalError(fmt.Errorf("create entry: %w", err))
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("entry_id", entry.ID).
		Str("wallet_id", wallet.ID.String()).
		Str("entry_type", string(entry.EntryType)).
		Int64("amount", entry.Amount).
		Int64("balance_after", entry.BalanceAfter).
		Msg("ledger entry appended")
	metrics.EntriesAppended.WithLabelValues(string(entry.EntryType)).Inc()
	// Counted here, not at the call sites, so an absorbed replay of a
	// reversal key does not inflate the counter.
	if entry.EntryType.IsReversal() {
		metrics.ReversalsCreated.Inc()
	}

	return entry, nil
}

// lockWallet resolves and row-locks the target wallet, creating it lazily
// on first credit when only the owner is known.
func (s *LedgerServiceImpl) lockWallet(ctx context.Context, dbTx pgx.Tx, p appendParams) (*domain.Wallet, error) {
	if p.walletID != uuid.Nil {
		wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, p.walletID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if wallet == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		return wallet, nil
	}

	wallet, err := s.walletRepo.GetByOwnerForUpdate(ctx, dbTx, p.tenantID, p.kind, p.ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet by owner: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	// Debits never create wallets: an account that has never been credited
	// has nothing to debit.
	if p.amount <= 0 {
		return nil, apperror.ErrNotFound("wallet")
	}

	now := time.Now().UTC()
	wallet = &domain.Wallet{
		ID:        uuid.New(),
		TenantID:  p.tenantID,
		Kind:      p.kind,
		OwnerID:   p.ownerID,
		Currency:  p.currency,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("kind", string(wallet.Kind)).
		Str("owner_id", wallet.OwnerID.String()).
		Msg("wallet created lazily on first credit")

	return wallet, nil
}

// cacheEntry writes a committed entry to the Redis fast path. Best effort:
// a cache failure never fails the append.
func (s *LedgerServiceImpl) cacheEntry(ctx context.Context, key string, entry *domain.LedgerEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		s.log.Warn().Err(err).Msg("marshal entry for idempotency cache failed")
		return
	}
	if err := s.idempCache.Set(ctx, key, data, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency cache write failed")
	}
}

func (s *LedgerServiceImpl) unmarshalCachedEntry(data []byte) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached entry: %w", err))
	}
	return &entry, nil
}
