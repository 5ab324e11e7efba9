// Package metrics defines the Prometheus counters for conversation, storage
// and gateway events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conner",
			Name:      "messages_appended_total",
			Help:      "Messages appended to the active transcript.",
		},
		[]string{"role"},
	)

	GatewayFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "conner",
			Name:      "gateway_failures_total",
			Help:      "Assistant requests that failed and produced a synthetic error reply.",
		},
	)

	StorageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conner",
			Name:      "storage_failures_total",
			Help:      "Persistent store operations that failed.",
		},
		[]string{"op"},
	)

	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "conner",
			Name:      "sessions_created_total",
			Help:      "Conversation sessions created by write-through or archival.",
		},
	)

	StaleReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conner",
			Name:      "stale_replies_total",
			Help:      "Assistant replies that completed after the active transcript changed.",
		},
		[]string{"outcome"},
	)
)
