package service

import (
	"context"
	"encoding/json"
	"testing"

	"salon-magik-hub/internal/core/domain"
	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/internal/core/ports/mocks"
	"salon-magik-hub/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc        *LedgerServiceImpl
	walletRepo *mocks.MockWalletRepository
	entryRepo  *mocks.MockEntryRepository
	idempCache *mocks.MockIdempotencyCache
	transactor *mocks.MockDBTransactor
	retrier    *mocks.MockRetrier
	idGen      *mocks.MockIDGenerator
	ctrl       *gomock.Controller
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		entryRepo:  mocks.NewMockEntryRepository(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		retrier:    mocks.NewMockRetrier(ctrl),
		idGen:      mocks.NewMockIDGenerator(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewLedgerService(
		d.walletRepo, d.entryRepo, d.idempCache,
		d.transactor, d.retrier, d.idGen, zerolog.Nop(),
	)
	return d
}

// passthroughRetry makes the retrier run the operation exactly once.
func (d *ledgerTestDeps) passthroughRetry(ctx context.Context) {
	d.retrier.EXPECT().Retry(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, op func() error) error { return op() },
	)
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func TestLedgerService_CreditWallet_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tenantID := uuid.New()
	walletID := uuid.New()
	tx := &mockTx{}

	req := ports.CreditWalletRequest{
		TenantID:       tenantID,
		WalletID:       walletID,
		EntryType:      domain.EntryTypeCustomerPurseTopup,
		Amount:         5000,
		Currency:       "NGN",
		ReferenceType:  domain.ReferenceTypeTopup,
		ReferenceID:    "topup-001",
		IdempotencyKey: "topup_topup-001",
	}

	d.idempCache.EXPECT().Get(ctx, req.IdempotencyKey).Return(nil, nil)
	d.passthroughRetry(ctx)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByIdempotencyKey(ctx, req.IdempotencyKey).Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(&domain.Wallet{
		ID:       walletID,
		TenantID: tenantID,
		Kind:     domain.WalletKindCustomerPurse,
		Currency: "NGN",
		Balance:  1000,
	}, nil)
	d.idGen.EXPECT().NewEntryID().Return("01J8ZQENTRY0000000000000001")
	d.entryRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.LedgerEntry) error {
			assert.Equal(t, int64(5000), entry.Amount)
			assert.Equal(t, int64(6000), entry.BalanceAfter)
			assert.Equal(t, domain.EntryTypeCustomerPurseTopup, entry.EntryType)
			return nil
		},
	)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, int64(6000)).Return(nil)
	d.idempCache.EXPECT().Set(ctx, req.IdempotencyKey, gomock.Any(), idempotencyTTL).Return(nil)

	entry, err := d.svc.CreditWallet(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), entry.BalanceAfter)
	assert.Equal(t, "01J8ZQENTRY0000000000000001", entry.ID)
}

func TestLedgerService_CreditWallet_InvalidAmount(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.CreditWallet(context.Background(), ports.CreditWalletRequest{
		WalletID:  uuid.New(),
		EntryType: domain.EntryTypeCustomerPurseTopup,
		Amount:    0,
	})

	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_003", appErr.Code)
}

func TestLedgerService_CreditWallet_LazyWalletCreation(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tenantID := uuid.New()
	ownerID := uuid.New()
	tx := &mockTx{}

	req := ports.CreditWalletRequest{
		TenantID:       tenantID,
		Kind:           domain.WalletKindCustomerPurse,
		OwnerID:        ownerID,
		EntryType:      domain.EntryTypeCustomerPurseTopup,
		Amount:         2000,
		Currency:       "NGN",
		ReferenceType:  domain.ReferenceTypeTopup,
		ReferenceID:    "topup-002",
		IdempotencyKey: "topup_topup-002",
	}

	d.idempCache.EXPECT().Get(ctx, req.IdempotencyKey).Return(nil, nil)
	d.passthroughRetry(ctx)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByIdempotencyKey(ctx, req.IdempotencyKey).Return(nil, nil)
	d.walletRepo.EXPECT().GetByOwnerForUpdate(ctx, tx, tenantID, domain.WalletKindCustomerPurse, ownerID).Return(nil, nil)
	d.walletRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
			assert.Equal(t, domain.WalletKindCustomerPurse, w.Kind)
			assert.Equal(t, ownerID, w.OwnerID)
			assert.Equal(t, int64(0), w.Balance)
			return nil
		},
	)
	d.idGen.EXPECT().NewEntryID().Return("01J8ZQENTRY0000000000000002")
	d.entryRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, gomock.Any(), int64(2000)).Return(nil)
	d.idempCache.EXPECT().Set(ctx, req.IdempotencyKey, gomock.Any(), idempotencyTTL).Return(nil)

	entry, err := d.svc.CreditWallet(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), entry.BalanceAfter)
}

func TestLedgerService_DebitWallet_InsufficientFunds(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	req := ports.DebitWalletRequest{
		TenantID:       uuid.New(),
		WalletID:       walletID,
		EntryType:      domain.EntryTypeSalonPurseDebitCreditPurchase,
		Amount:         5000,
		Currency:       "NGN",
		ReferenceType:  domain.ReferenceTypeCreditPurchase,
		ReferenceID:    "cp-001",
		IdempotencyKey: "credit_purchase_cp-001",
	}

	d.idempCache.EXPECT().Get(ctx, req.IdempotencyKey).Return(nil, nil)
	d.passthroughRetry(ctx)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByIdempotencyKey(ctx, req.IdempotencyKey).Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(&domain.Wallet{
		ID:       walletID,
		Currency: "NGN",
		Balance:  3000,
	}, nil)

	_, err := d.svc.DebitWallet(ctx, req)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientFunds))
}

func TestLedgerService_DebitWallet_CurrencyMismatch(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	req := ports.DebitWalletRequest{
		TenantID:       uuid.New(),
		WalletID:       walletID,
		EntryType:      domain.EntryTypeSalonPurseDebitCreditPurchase,
		Amount:         100,
		Currency:       "USD",
		IdempotencyKey: "credit_purchase_cp-002",
	}

	d.idempCache.EXPECT().Get(ctx, req.IdempotencyKey).Return(nil, nil)
	d.passthroughRetry(ctx)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByIdempotencyKey(ctx, req.IdempotencyKey).Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(&domain.Wallet{
		ID:       walletID,
		Currency: "NGN",
		Balance:  3000,
	}, nil)

	_, err := d.svc.DebitWallet(ctx, req)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeCurrencyMismatch))
}

func TestLedgerService_AppendEntry_RedisCacheHit(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	cached := &domain.LedgerEntry{
		ID:           "01J8ZQENTRY0000000000000003",
		WalletID:     walletID,
		EntryType:    domain.EntryTypeCustomerPurseTopup,
		Amount:       5000,
		BalanceAfter: 6000,
	}
	data, err := json.Marshal(cached)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, "topup_topup-003").Return(data, nil)

	entry, err := d.svc.CreditWallet(ctx, ports.CreditWalletRequest{
		TenantID:       uuid.New(),
		WalletID:       walletID,
		EntryType:      domain.EntryTypeCustomerPurseTopup,
		Amount:         5000,
		Currency:       "NGN",
		IdempotencyKey: "topup_topup-003",
	})

	require.NoError(t, err)
	assert.Equal(t, cached.ID, entry.ID)
	assert.Equal(t, cached.BalanceAfter, entry.BalanceAfter)
}

func TestLedgerService_AppendEntry_DBIdempotencyReplay(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	existing := &domain.LedgerEntry{
		ID:           "01J8ZQENTRY0000000000000004",
		WalletID:     walletID,
		EntryType:    domain.EntryTypeSalonPurseWithdrawal,
		Amount:       -4000,
		BalanceAfter: 6000,
	}

	withdrawalID := uuid.New()
	key := domain.WithdrawalDebitKey(withdrawalID)

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.passthroughRetry(ctx)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByIdempotencyKey(ctx, key).Return(existing, nil)
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), idempotencyTTL).Return(nil)

	entry, err := d.svc.DebitWalletForWithdrawal(ctx, ports.WithdrawalDebitRequest{
		TenantID:     uuid.New(),
		WalletID:     walletID,
		WithdrawalID: withdrawalID,
		Amount:       4000,
		Currency:     "NGN",
	})

	require.NoError(t, err)
	assert.Equal(t, existing.ID, entry.ID, "replay must return the original entry, not append a new one")
}

func TestLedgerService_ReverseEntry_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tenantID := uuid.New()
	walletID := uuid.New()
	withdrawalID := uuid.New()
	tx := &mockTx{}

	original := &domain.LedgerEntry{
		ID:            "01J8ZQENTRY0000000000000005",
		TenantID:      tenantID,
		WalletID:      walletID,
		EntryType:     domain.EntryTypeSalonPurseWithdrawal,
		Amount:        -4000,
		Currency:      "NGN",
		BalanceAfter:  6000,
		ReferenceType: domain.ReferenceTypeWithdrawal,
		ReferenceID:   withdrawalID.String(),
	}

	key := domain.ReversalKey(withdrawalID)

	d.entryRepo.EXPECT().GetByID(ctx, original.ID).Return(original, nil)
	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.passthroughRetry(ctx)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.entryRepo.EXPECT().GetByIdempotencyKey(ctx, key).Return(nil, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(&domain.Wallet{
		ID:       walletID,
		TenantID: tenantID,
		Kind:     domain.WalletKindSalonWallet,
		Currency: "NGN",
		Balance:  6000,
	}, nil)
	d.idGen.EXPECT().NewEntryID().Return("01J8ZQENTRY0000000000000006")
	d.entryRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.LedgerEntry) error {
			assert.Equal(t, domain.EntryType("salon_purse_withdrawal_reversal"), entry.EntryType)
			assert.Equal(t, int64(4000), entry.Amount)
			assert.Equal(t, int64(10000), entry.BalanceAfter)
			assert.Equal(t, domain.ReferenceTypeEntry, entry.ReferenceType)
			assert.Equal(t, original.ID, entry.ReferenceID)
			return nil
		},
	)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, int64(10000)).Return(nil)
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), idempotencyTTL).Return(nil)

	entry, err := d.svc.ReverseEntry(ctx, original.ID, "transfer failed", key)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), entry.BalanceAfter)
}

func TestLedgerService_ReverseEntry_CannotReverseReversal(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	reversal := &domain.LedgerEntry{
		ID:        "01J8ZQENTRY0000000000000007",
		EntryType: domain.EntryTypeSalonPurseWithdrawal.Reversal(),
		Amount:    4000,
	}

	d.entryRepo.EXPECT().GetByID(ctx, reversal.ID).Return(reversal, nil)

	_, err := d.svc.ReverseEntry(ctx, reversal.ID, "double reverse", "reversal_again_x")
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_005", appErr.Code)
}

func TestLedgerService_ReverseEntry_OriginalNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.entryRepo.EXPECT().GetByID(ctx, "missing").Return(nil, nil)

	_, err := d.svc.ReverseEntry(ctx, "missing", "reason", "key")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))
}
