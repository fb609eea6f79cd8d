package service

import (
	"context"
	"encoding/json"

	"salon-magik-hub/internal/core/domain"
	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/internal/metrics"
	"salon-magik-hub/pkg/apperror"

	"github.com/rs/zerolog"
)

// Settlement event types sent by the transfer provider.
const (
	eventTransferSuccess  = "transfer.success"
	eventTransferFailed   = "transfer.failed"
	eventTransferReversed = "transfer.reversed"
)

// settlementEvent is the provider's webhook payload.
type settlementEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference    string `json:"reference"`
		Status       string `json:"status"`
		TransferCode string `json:"transfer_code"`
		Reason       string `json:"reason"`
	} `json:"data"`
}

// SettlementServiceImpl implements ports.SettlementService. It reconciles
// asynchronous provider callbacks onto withdrawal and ledger state.
// Deliveries are at-least-once, unordered, and arbitrarily late; every
// branch is idempotent, and once the signature verifies the event is
// absorbed without error so the provider does not retry-storm.
type SettlementServiceImpl struct {
	withdrawalRepo ports.WithdrawalRepository
	entryRepo      ports.EntryRepository
	ledger         ports.LedgerService
	signatures     ports.SignatureService
	webhookSecret  string
	log            zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	withdrawalRepo ports.WithdrawalRepository,
	entryRepo ports.EntryRepository,
	ledger ports.LedgerService,
	signatures ports.SignatureService,
	webhookSecret string,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		withdrawalRepo: withdrawalRepo,
		entryRepo:      entryRepo,
		ledger:         ledger,
		signatures:     signatures,
		webhookSecret:  webhookSecret,
		log:            log,
	}
}

// HandleEvent authenticates and processes one settlement callback. The
// signature is verified over the raw body before anything is parsed; a
// verification failure is the only error this method returns.
func (s *SettlementServiceImpl) HandleEvent(ctx context.Context, rawBody []byte, signature string) error {
	if !s.signatures.Verify(s.webhookSecret, rawBody, signature) {
		s.log.Warn().Msg("settlement webhook signature verification failed")
		return apperror.ErrInvalidSignature()
	}

	var event settlementEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		s.log.Warn().Err(err).Msg("unparseable settlement webhook body, ignoring")
		metrics.WebhookEvents.WithLabelValues("unknown", "unparseable").Inc()
		return nil
	}

	switch event.Event {
	case eventTransferSuccess:
		s.handleSuccess(ctx, event)
	case eventTransferFailed, eventTransferReversed:
		s.handleFailure(ctx, event)
	default:
		s.log.Info().Str("event", event.Event).Msg("ignoring unhandled settlement event type")
		metrics.WebhookEvents.WithLabelValues(event.Event, "ignored").Inc()
	}

	return nil
}

// handleSuccess completes a withdrawal. No ledger change: the debit applied
// at creation already reflects the settled transfer.
func (s *SettlementServiceImpl) handleSuccess(ctx context.Context, event settlementEvent) {
	withdrawal, ok := s.resolveWithdrawal(ctx, event)
	if !ok {
		return
	}

	if withdrawal.Status == domain.WithdrawalStatusCompleted {
		s.log.Info().Str("withdrawal_id", withdrawal.ID.String()).Msg("duplicate success event for completed withdrawal, no-op")
		metrics.WebhookEvents.WithLabelValues(event.Event, "duplicate").Inc()
		return
	}
	if withdrawal.Status == domain.WithdrawalStatusFailed {
		// A failure outcome has already been applied and compensated;
		// a late success contradicts it and needs a human.
		s.log.Error().
			Str("withdrawal_id", withdrawal.ID.String()).
			Msg("success event for withdrawal already failed, manual reconciliation required")
		metrics.WebhookEvents.WithLabelValues(event.Event, "conflict").Inc()
		return
	}

	if err := s.withdrawalRepo.UpdateStatus(ctx, withdrawal.ID, domain.WithdrawalStatusCompleted); err != nil {
		s.log.Error().Err(err).Str("withdrawal_id", withdrawal.ID.String()).Msg("complete withdrawal failed")
		metrics.WebhookEvents.WithLabelValues(event.Event, "error").Inc()
		return
	}

	s.log.Info().Str("withdrawal_id", withdrawal.ID.String()).Msg("withdrawal completed")
	metrics.WithdrawalsCompleted.Inc()
	metrics.WebhookEvents.WithLabelValues(event.Event, "applied").Inc()
}

// handleFailure reverses the withdrawal debit and marks the withdrawal
// failed. The reversal key is deterministic in the withdrawal id alone, so
// transfer.failed, transfer.reversed, and a redelivery of either all
// recompute the same key and the ledger absorbs every refund after the
// first. The status guard keeps an already-failed withdrawal (including
// one failed synchronously at creation) from being touched again.
func (s *SettlementServiceImpl) handleFailure(ctx context.Context, event settlementEvent) {
	withdrawal, ok := s.resolveWithdrawal(ctx, event)
	if !ok {
		return
	}

	if withdrawal.Status == domain.WithdrawalStatusFailed {
		s.log.Info().
			Str("withdrawal_id", withdrawal.ID.String()).
			Str("event", event.Event).
			Msg("failure event for withdrawal already failed, no-op")
		metrics.WebhookEvents.WithLabelValues(event.Event, "duplicate").Inc()
		return
	}
	if withdrawal.Status == domain.WithdrawalStatusCompleted {
		// The transfer already settled; a late failure contradicts it and
		// needs a human.
		s.log.Error().
			Str("withdrawal_id", withdrawal.ID.String()).
			Str("event", event.Event).
			Msg("failure event for completed withdrawal, manual reconciliation required")
		metrics.WebhookEvents.WithLabelValues(event.Event, "conflict").Inc()
		return
	}

	debit, err := s.entryRepo.GetByReference(ctx,
		withdrawal.WalletID,
		domain.ReferenceTypeWithdrawal,
		withdrawal.ID.String(),
		domain.EntryTypeSalonPurseWithdrawal,
	)
	if err != nil {
		s.log.Error().Err(err).Str("withdrawal_id", withdrawal.ID.String()).Msg("lookup of withdrawal debit failed")
		metrics.WebhookEvents.WithLabelValues(event.Event, "error").Inc()
		return
	}
	if debit == nil {
		s.log.Warn().Str("withdrawal_id", withdrawal.ID.String()).Msg("failure event for withdrawal with no debit entry, ignoring")
		metrics.WebhookEvents.WithLabelValues(event.Event, "ignored").Inc()
		return
	}

	reason := event.Data.Reason
	if reason == "" {
		reason = event.Event
	}

	if _, err := s.ledger.ReverseEntry(ctx, debit.ID, reason, domain.ReversalKey(withdrawal.ID)); err != nil {
		s.log.Error().Err(err).Str("withdrawal_id", withdrawal.ID.String()).Msg("reversal of withdrawal debit failed")
		metrics.WebhookEvents.WithLabelValues(event.Event, "error").Inc()
		return
	}

	if err := s.withdrawalRepo.MarkFailed(ctx, withdrawal.ID, reason); err != nil {
		s.log.Error().Err(err).Str("withdrawal_id", withdrawal.ID.String()).Msg("mark withdrawal failed errored")
		metrics.WebhookEvents.WithLabelValues(event.Event, "error").Inc()
		return
	}

	s.log.Info().
		Str("withdrawal_id", withdrawal.ID.String()).
		Str("event", event.Event).
		Str("reason", reason).
		Msg("withdrawal failed, debit reversed")
	metrics.WithdrawalsFailed.WithLabelValues("async").Inc()
	metrics.WebhookEvents.WithLabelValues(event.Event, "applied").Inc()
}

// resolveWithdrawal parses the transfer reference and loads the withdrawal.
// Malformed references and unknown withdrawals are logged and dropped: they
// cannot be corrected by redelivery.
func (s *SettlementServiceImpl) resolveWithdrawal(ctx context.Context, event settlementEvent) (*domain.Withdrawal, bool) {
	withdrawalID, err := domain.ParseTransferReference(event.Data.Reference)
	if err != nil {
		s.log.Warn().
			Str("reference", event.Data.Reference).
			Str("event", event.Event).
			Msg("malformed transfer reference in settlement event, ignoring")
		metrics.WebhookEvents.WithLabelValues(event.Event, "malformed_reference").Inc()
		return nil, false
	}

	withdrawal, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
	if err != nil {
		s.log.Error().Err(err).Str("withdrawal_id", withdrawalID.String()).Msg("load withdrawal for settlement event failed")
		metrics.WebhookEvents.WithLabelValues(event.Event, "error").Inc()
		return nil, false
	}
	if withdrawal == nil {
		s.log.Warn().Str("withdrawal_id", withdrawalID.String()).Msg("settlement event references unknown withdrawal, ignoring")
		metrics.WebhookEvents.WithLabelValues(event.Event, "unknown_withdrawal").Inc()
		return nil, false
	}

	return withdrawal, true
}
