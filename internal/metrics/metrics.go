// Package metrics defines the Prometheus collectors for the wallet ledger
// and withdrawal settlement engine. Collectors are registered once at
// package init and shared by services and HTTP middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WithdrawalsCreated counts withdrawals accepted into the pipeline.
	WithdrawalsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "withdrawals_created_total",
		Help: "Total withdrawals created.",
	})

	// WithdrawalsCompleted counts withdrawals settled successfully.
	WithdrawalsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "withdrawals_completed_total",
		Help: "Total withdrawals that reached completed status.",
	})

	// WithdrawalsFailed counts withdrawals that ended in failure, labelled by
	// whether the failure was synchronous (provider rejection) or reported
	// asynchronously via settlement webhook.
	WithdrawalsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "withdrawals_failed_total",
		Help: "Total withdrawals that reached failed status.",
	}, []string{"mode"})

	// ReversalsCreated counts compensating reversal entries appended.
	ReversalsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_reversals_total",
		Help: "Total compensating reversal entries appended.",
	})

	// EntriesAppended counts ledger entries by entry type.
	EntriesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_appended_total",
		Help: "Total ledger entries appended.",
	}, []string{"entry_type"})

	// WebhookEvents counts settlement webhook events by type and outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_webhook_events_total",
		Help: "Total settlement webhook events received.",
	}, []string{"event", "outcome"})

	// StuckProcessing is the number of withdrawals stuck in processing
	// longer than the configured threshold. Non-zero means settlement
	// callbacks have gone missing.
	StuckProcessing = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "withdrawals_stuck_processing",
		Help: "Withdrawals in processing older than the stuck threshold.",
	})

	// HTTPRequestDuration observes request latency by method, path and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
