// Package metrics exposes the service-level Prometheus collectors shared by
// use cases and background workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts wallet operations by type and outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "wallet",
			Name:      "operations_total",
			Help:      "Total number of wallet operations",
		},
		[]string{"operation", "outcome"},
	)

	// IdempotentReplaysTotal counts requests answered from stored responses.
	IdempotentReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "wallet",
			Name:      "idempotent_replays_total",
			Help:      "Total number of idempotent replays",
		},
		[]string{"operation"},
	)

	// SagasTotal counts transfer sagas by terminal state.
	SagasTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "transfer",
			Name:      "sagas_total",
			Help:      "Total number of transfer sagas by terminal state",
		},
		[]string{"state"},
	)

	// SagasRecoveredTotal counts sagas advanced by the recovery loop.
	SagasRecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "transfer",
			Name:      "sagas_recovered_total",
			Help:      "Total number of sagas advanced by recovery",
		},
	)

	// OutboxPublishedTotal counts outbox rows successfully relayed.
	OutboxPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Total number of outbox rows published to the bus",
		},
	)

	// OutboxPublishFailuresTotal counts publish attempts that failed.
	OutboxPublishFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "outbox",
			Name:      "publish_failures_total",
			Help:      "Total number of failed outbox publish attempts",
		},
	)

	// OutboxPendingRows gauges the unpublished backlog observed per tick.
	OutboxPendingRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletcore",
			Subsystem: "outbox",
			Name:      "pending_rows",
			Help:      "Unpublished outbox rows seen by the last relay tick",
		},
	)

	// FraudAlertsTotal counts alerts by rule.
	FraudAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "fraud",
			Name:      "alerts_total",
			Help:      "Total number of fraud alerts written",
		},
		[]string{"rule"},
	)

	// FraudMessagesTotal counts consumed messages by result
	// (processed, duplicate, retried, dead_lettered, unparseable).
	FraudMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "fraud",
			Name:      "messages_total",
			Help:      "Total number of consumed fraud messages by result",
		},
		[]string{"result"},
	)
)
