package service

import (
	"context"
	"fmt"
	"time"

	"salon-magik-hub/internal/core/domain"
	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/internal/metrics"
	"salon-magik-hub/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WithdrawalServiceImpl implements ports.WithdrawalService. It drives the
// synchronous half of the payout life cycle: record, debit, call provider,
// and compensate on rejection. Terminal states normally arrive later via
// the settlement reconciler.
type WithdrawalServiceImpl struct {
	withdrawalRepo ports.WithdrawalRepository
	destRepo       ports.DestinationRepository
	walletRepo     ports.WalletRepository
	ledger         ports.LedgerService
	provider       ports.TransferProvider
	log            zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	withdrawalRepo ports.WithdrawalRepository,
	destRepo ports.DestinationRepository,
	walletRepo ports.WalletRepository,
	ledger ports.LedgerService,
	provider ports.TransferProvider,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		withdrawalRepo: withdrawalRepo,
		destRepo:       destRepo,
		walletRepo:     walletRepo,
		ledger:         ledger,
		provider:       provider,
		log:            log,
	}
}

// CreateWithdrawal runs the orchestration:
//
//  1. validate input and resolve destination + salon wallet
//  2. insert the withdrawal as pending
//  3. apply the compensating debit (deterministic idempotency key)
//  4. transition to processing and call the transfer provider
//  5. on synchronous rejection, reverse the debit and mark failed
//  6. on acceptance, persist the transfer code and return processing
//
// The debit lands before the provider call so the visible balance is
// consistent the moment the withdrawal is accepted; any later failure is
// corrected by reversal, never by mutating the debit.
func (s *WithdrawalServiceImpl) CreateWithdrawal(ctx context.Context, req ports.CreateWithdrawalRequest) (*domain.Withdrawal, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	dest, err := s.destRepo.GetByID(ctx, req.DestinationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get destination: %w", err))
	}
	if dest == nil || dest.TenantID != req.TenantID {
		return nil, apperror.ErrDestinationNotFound()
	}

	wallet, err := s.walletRepo.GetByOwner(ctx, req.TenantID, domain.WalletKindSalonWallet, req.TenantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get salon wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("salon wallet")
	}
	if dest.Currency != wallet.Currency {
		return nil, apperror.ErrCurrencyMismatch()
	}

	now := time.Now().UTC()
	withdrawal := &domain.Withdrawal{
		ID:            uuid.New(),
		TenantID:      req.TenantID,
		WalletID:      wallet.ID,
		DestinationID: dest.ID,
		Currency:      wallet.Currency,
		Amount:        req.Amount,
		Status:        domain.WithdrawalStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.withdrawalRepo.Create(ctx, withdrawal); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal: %w", err))
	}

	debitEntry, err := s.ledger.DebitWalletForWithdrawal(ctx, ports.WithdrawalDebitRequest{
		TenantID:     req.TenantID,
		WalletID:     wallet.ID,
		WithdrawalID: withdrawal.ID,
		Amount:       req.Amount,
		Currency:     wallet.Currency,
	})
	if err != nil {
		// No debit occurred: the pending row can be removed outright.
		if apperror.IsCode(err, apperror.CodeInsufficientFunds) || apperror.IsCode(err, apperror.CodeCurrencyMismatch) {
			if delErr := s.withdrawalRepo.Delete(ctx, withdrawal.ID); delErr != nil {
				s.log.Error().Err(delErr).Str("withdrawal_id", withdrawal.ID.String()).Msg("cleanup of rejected withdrawal failed")
			}
			return nil, err
		}
		// Ambiguous store failure: leave the pending row; the deterministic
		// debit key keeps a retry exactly-once.
		return nil, err
	}

	if err := s.withdrawalRepo.UpdateStatus(ctx, withdrawal.ID, domain.WithdrawalStatusProcessing); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark processing: %w", err))
	}
	withdrawal.Status = domain.WithdrawalStatusProcessing
	metrics.WithdrawalsCreated.Inc()

	reference := domain.BuildTransferReference(withdrawal.ID, now)

	result, err := s.provider.InitiateTransfer(ctx, ports.TransferRequest{
		Amount:    req.Amount,
		Recipient: dest.RecipientCode,
		Reference: reference,
		Currency:  wallet.Currency,
		Reason:    "salon wallet withdrawal",
	})
	if err != nil {
		return nil, s.compensateRejection(ctx, withdrawal, debitEntry.ID, err)
	}

	if err := s.withdrawalRepo.SetTransfer(ctx, withdrawal.ID, result.TransferCode, reference); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set transfer: %w", err))
	}
	withdrawal.TransferCode = &result.TransferCode
	withdrawal.TransferReference = &reference

	s.log.Info().
		Str("withdrawal_id", withdrawal.ID.String()).
		Str("transfer_code", result.TransferCode).
		Str("reference", reference).
		Int64("amount", req.Amount).
		Msg("withdrawal accepted by provider")

	return withdrawal, nil
}

// compensateRejection reverses the debit after a synchronous provider
// failure and marks the withdrawal failed. The reversal key is the same
// one the settlement reconciler uses, so a failure event landing for the
// same withdrawal later cannot refund the debit a second time.
func (s *WithdrawalServiceImpl) compensateRejection(ctx context.Context, withdrawal *domain.Withdrawal, debitEntryID string, providerErr error) error {
	reason := providerErr.Error()

	s.log.Warn().
		Str("withdrawal_id", withdrawal.ID.String()).
		Str("reason", reason).
		Msg("provider rejected transfer, reversing debit")

	if _, err := s.ledger.ReverseEntry(ctx, debitEntryID, reason, domain.ReversalKey(withdrawal.ID)); err != nil {
		// The debit is applied but the reversal did not land. This must not
		// pass silently: surface the store error, the withdrawal stays
		// processing for the stuck-monitor to flag.
		s.log.Error().Err(err).Str("withdrawal_id", withdrawal.ID.String()).Msg("compensating reversal failed")
		return apperror.InternalError(fmt.Errorf("compensating reversal: %w", err))
	}

	if err := s.withdrawalRepo.MarkFailed(ctx, withdrawal.ID, reason); err != nil {
		return apperror.InternalError(fmt.Errorf("mark failed: %w", err))
	}
	metrics.WithdrawalsFailed.WithLabelValues("sync").Inc()

	return apperror.ErrProviderRejected(reason)
}

// GetWithdrawal fetches a withdrawal scoped to its tenant.
func (s *WithdrawalServiceImpl) GetWithdrawal(ctx context.Context, tenantID, id uuid.UUID) (*domain.Withdrawal, error) {
	withdrawal, err := s.withdrawalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
	}
	if withdrawal == nil || withdrawal.TenantID != tenantID {
		return nil, apperror.ErrWithdrawalNotFound()
	}
	return withdrawal, nil
}

// ListWithdrawals returns a page of a tenant's withdrawals, newest first.
func (s *WithdrawalServiceImpl) ListWithdrawals(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]domain.Withdrawal, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	withdrawals, total, err := s.withdrawalRepo.ListByTenant(ctx, tenantID, pageSize, offset)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list withdrawals: %w", err))
	}
	return withdrawals, total, nil
}
