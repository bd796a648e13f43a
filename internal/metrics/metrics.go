// Package metrics exposes the counters and histograms an operator scrapes
// off /metrics: order lifecycle throughput, ledger activity, outbox
// delivery health, and sweeper sweeps.
//
// Grounded on certenIO-certen-validator's direct client_golang dependency —
// the only example repo in the pack that imports prometheus as a first-class
// dep rather than a transitive one — using the promauto registration style
// so every metric self-registers against the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlementcore_orders_created_total",
		Help: "Orders created, labeled by order type.",
	}, []string{"type"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlementcore_order_transitions_total",
		Help: "Order status transitions applied, labeled by target status.",
	}, []string{"status"})

	OrderTransitionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlementcore_order_transition_conflicts_total",
		Help: "Transition attempts rejected by the optimistic version check.",
	})

	LedgerEntriesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlementcore_ledger_entries_total",
		Help: "Ledger entries written, labeled by entry type.",
	}, []string{"entry_type"})

	LedgerInsufficientFunds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlementcore_ledger_insufficient_funds_total",
		Help: "DebitAndLock calls rejected for insufficient available balance.",
	})

	OutboxDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlementcore_outbox_delivered_total",
		Help: "Outbox rows successfully delivered to a notification sink.",
	})

	OutboxPoisoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlementcore_outbox_poisoned_total",
		Help: "Outbox rows that exhausted max_attempts and were marked failed.",
	})

	SweeperExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlementcore_sweeper_expired_total",
		Help: "Orders driven to expired by the expiry sweeper.",
	})

	SweeperErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlementcore_sweeper_errors_total",
		Help: "Per-order failures encountered during an expiry sweep, logged and skipped.",
	})

	DisputesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlementcore_disputes_opened_total",
		Help: "Disputes opened.",
	})

	DisputesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlementcore_disputes_resolved_total",
		Help: "Disputes resolved, labeled by resolution.",
	}, []string{"resolution"})
)
