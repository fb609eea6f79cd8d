package service

import (
	"context"
	"time"

	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/internal/metrics"

	"github.com/rs/zerolog"
)

// SettlementMonitor periodically counts withdrawals stuck in processing
// beyond the configured threshold. A stuck withdrawal means the provider
// accepted a transfer but its settlement callback never arrived; that is an
// operational alert condition, not a state the system resolves on its own.
type SettlementMonitor struct {
	withdrawalRepo ports.WithdrawalRepository
	interval       time.Duration
	threshold      time.Duration
	log            zerolog.Logger
}

// NewSettlementMonitor creates a new SettlementMonitor.
func NewSettlementMonitor(withdrawalRepo ports.WithdrawalRepository, interval, threshold time.Duration, log zerolog.Logger) *SettlementMonitor {
	return &SettlementMonitor{
		withdrawalRepo: withdrawalRepo,
		interval:       interval,
		threshold:      threshold,
		log:            log,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (m *SettlementMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info().
		Dur("interval", m.interval).
		Dur("threshold", m.threshold).
		Msg("settlement monitor started")

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("settlement monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs a single check and publishes the stuck count.
func (m *SettlementMonitor) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-m.threshold)

	count, err := m.withdrawalRepo.CountStuckProcessing(ctx, cutoff)
	if err != nil {
		m.log.Error().Err(err).Msg("stuck withdrawal sweep failed")
		return
	}

	metrics.StuckProcessing.Set(float64(count))

	if count > 0 {
		m.log.Warn().
			Int64("count", count).
			Time("cutoff", cutoff).
			Msg("withdrawals stuck in processing, settlement callbacks missing")
	}
}
