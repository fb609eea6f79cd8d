package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"salon-magik-hub/internal/core/domain"
	"salon-magik-hub/internal/core/ports/mocks"
	"salon-magik-hub/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testWebhookSecret = "whsec_test"

type settlementTestDeps struct {
	svc            *SettlementServiceImpl
	withdrawalRepo *mocks.MockWithdrawalRepository
	entryRepo      *mocks.MockEntryRepository
	ledger         *mocks.MockLedgerService
	signatures     *HMACSignatureService
	ctrl           *gomock.Controller
}

func setupSettlementService(t *testing.T) *settlementTestDeps {
	ctrl := gomock.NewController(t)
	d := &settlementTestDeps{
		withdrawalRepo: mocks.NewMockWithdrawalRepository(ctrl),
		entryRepo:      mocks.NewMockEntryRepository(ctrl),
		ledger:         mocks.NewMockLedgerService(ctrl),
		signatures:     NewHMACSignatureService(),
		ctrl:           ctrl,
	}
	d.svc = NewSettlementService(
		d.withdrawalRepo, d.entryRepo, d.ledger,
		d.signatures, testWebhookSecret, zerolog.Nop(),
	)
	return d
}

// signedEvent builds a raw webhook body and its valid signature.
func (d *settlementTestDeps) signedEvent(t *testing.T, event, reference, reason string) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": event,
		"data": map[string]any{
			"reference": reference,
			"status":    "success",
			"reason":    reason,
		},
	})
	require.NoError(t, err)
	return body, d.signatures.Sign(testWebhookSecret, body)
}

func TestSettlementService_HandleEvent_InvalidSignature(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	body := []byte(`{"event":"transfer.success","data":{"reference":"x"}}`)

	err := d.svc.HandleEvent(context.Background(), body, "deadbeef")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidSignature))
}

func TestSettlementService_HandleEvent_Success_CompletesWithdrawal(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	withdrawalID := uuid.New()
	reference := domain.BuildTransferReference(withdrawalID, time.Now())
	body, sig := d.signedEvent(t, "transfer.success", reference, "")

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawalID).Return(&domain.Withdrawal{
		ID:     withdrawalID,
		Status: domain.WithdrawalStatusProcessing,
	}, nil)
	d.withdrawalRepo.EXPECT().UpdateStatus(ctx, withdrawalID, domain.WithdrawalStatusCompleted).Return(nil)

	err := d.svc.HandleEvent(ctx, body, sig)
	assert.NoError(t, err)
}

func TestSettlementService_HandleEvent_Success_AlreadyCompleted_NoOp(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	withdrawalID := uuid.New()
	reference := domain.BuildTransferReference(withdrawalID, time.Now())
	body, sig := d.signedEvent(t, "transfer.success", reference, "")

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawalID).Return(&domain.Withdrawal{
		ID:     withdrawalID,
		Status: domain.WithdrawalStatusCompleted,
	}, nil)
	// no UpdateStatus expected

	err := d.svc.HandleEvent(ctx, body, sig)
	assert.NoError(t, err)
}

func TestSettlementService_HandleEvent_Failure_ReversesDebit(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	withdrawalID := uuid.New()
	walletID := uuid.New()
	reference := domain.BuildTransferReference(withdrawalID, time.Now())
	body, sig := d.signedEvent(t, "transfer.failed", reference, "recipient bank unavailable")

	debit := &domain.LedgerEntry{
		ID:            "01J8ZQDEBIT0000000000000003",
		WalletID:      walletID,
		EntryType:     domain.EntryTypeSalonPurseWithdrawal,
		Amount:        -4000,
		ReferenceType: domain.ReferenceTypeWithdrawal,
		ReferenceID:   withdrawalID.String(),
	}

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawalID).Return(&domain.Withdrawal{
		ID:       withdrawalID,
		WalletID: walletID,
		Status:   domain.WithdrawalStatusProcessing,
	}, nil)
	d.entryRepo.EXPECT().GetByReference(ctx, walletID, domain.ReferenceTypeWithdrawal, withdrawalID.String(), domain.EntryTypeSalonPurseWithdrawal).Return(debit, nil)
	d.ledger.EXPECT().ReverseEntry(ctx, debit.ID, "recipient bank unavailable", domain.ReversalKey(withdrawalID)).Return(
		&domain.LedgerEntry{ID: "01J8ZQREV00000000000000002", Amount: 4000}, nil,
	)
	d.withdrawalRepo.EXPECT().MarkFailed(ctx, withdrawalID, "recipient bank unavailable").Return(nil)

	err := d.svc.HandleEvent(ctx, body, sig)
	assert.NoError(t, err)
}

func TestSettlementService_HandleEvent_Failure_AlreadyFailed_NoOp(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	withdrawalID := uuid.New()
	reference := domain.BuildTransferReference(withdrawalID, time.Now())

	// transfer.failed already reversed the debit; the provider then sends
	// transfer.reversed for the same transfer. The debit must not be
	// refunded a second time.
	body, sig := d.signedEvent(t, "transfer.reversed", reference, "transfer reversed by bank")

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawalID).Return(&domain.Withdrawal{
		ID:     withdrawalID,
		Status: domain.WithdrawalStatusFailed,
	}, nil)
	// no GetByReference, ReverseEntry, or MarkFailed expected

	err := d.svc.HandleEvent(ctx, body, sig)
	assert.NoError(t, err)
}

func TestSettlementService_HandleEvent_Failure_AfterCompleted_Conflict(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	withdrawalID := uuid.New()
	reference := domain.BuildTransferReference(withdrawalID, time.Now())
	body, sig := d.signedEvent(t, "transfer.failed", reference, "late failure")

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawalID).Return(&domain.Withdrawal{
		ID:     withdrawalID,
		Status: domain.WithdrawalStatusCompleted,
	}, nil)
	// contradictory outcome is flagged for reconciliation, nothing is applied

	err := d.svc.HandleEvent(ctx, body, sig)
	assert.NoError(t, err)
}

func TestSettlementService_HandleEvent_Reversed_UsesSameReversalKey(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	withdrawalID := uuid.New()
	walletID := uuid.New()
	reference := domain.BuildTransferReference(withdrawalID, time.Now())
	body, sig := d.signedEvent(t, "transfer.reversed", reference, "")

	debit := &domain.LedgerEntry{
		ID:            "01J8ZQDEBIT0000000000000004",
		WalletID:      walletID,
		EntryType:     domain.EntryTypeSalonPurseWithdrawal,
		Amount:        -4000,
		ReferenceType: domain.ReferenceTypeWithdrawal,
		ReferenceID:   withdrawalID.String(),
	}

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawalID).Return(&domain.Withdrawal{
		ID:       withdrawalID,
		WalletID: walletID,
		Status:   domain.WithdrawalStatusProcessing,
	}, nil)
	d.entryRepo.EXPECT().GetByReference(ctx, walletID, domain.ReferenceTypeWithdrawal, withdrawalID.String(), domain.EntryTypeSalonPurseWithdrawal).Return(debit, nil)
	d.ledger.EXPECT().ReverseEntry(ctx, debit.ID, "transfer.reversed", domain.ReversalKey(withdrawalID)).Return(
		&domain.LedgerEntry{ID: "01J8ZQREV00000000000000003", Amount: 4000}, nil,
	)
	d.withdrawalRepo.EXPECT().MarkFailed(ctx, withdrawalID, "transfer.reversed").Return(nil)

	err := d.svc.HandleEvent(ctx, body, sig)
	assert.NoError(t, err)
}

func TestSettlementService_HandleEvent_MalformedReference_Ignored(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	body, sig := d.signedEvent(t, "transfer.failed", "not-a-reference", "")

	// no repo or ledger calls expected
	err := d.svc.HandleEvent(context.Background(), body, sig)
	assert.NoError(t, err, "malformed references are absorbed, not surfaced")
}

func TestSettlementService_HandleEvent_UnknownWithdrawal_Ignored(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	withdrawalID := uuid.New()
	reference := domain.BuildTransferReference(withdrawalID, time.Now())
	body, sig := d.signedEvent(t, "transfer.success", reference, "")

	d.withdrawalRepo.EXPECT().GetByID(ctx, withdrawalID).Return(nil, nil)

	err := d.svc.HandleEvent(ctx, body, sig)
	assert.NoError(t, err)
}

func TestSettlementService_HandleEvent_UnknownEventType_Ignored(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	body, sig := d.signedEvent(t, "charge.success", "whatever", "")

	err := d.svc.HandleEvent(context.Background(), body, sig)
	assert.NoError(t, err)
}

func TestSettlementService_HandleEvent_UnparseableBody_Absorbed(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	body := []byte(`{not json`)
	sig := d.signatures.Sign(testWebhookSecret, body)

	err := d.svc.HandleEvent(context.Background(), body, sig)
	assert.NoError(t, err)
}
