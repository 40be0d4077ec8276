package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchOutcomesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nudgebot",
			Name:      "dispatch_records_total",
			Help:      "Scheduled messages handled by the dispatcher.",
		},
		[]string{"status"}, // delivered, error_send, error_mark
	)

	dispatchRunDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nudgebot",
			Name:      "dispatch_run_duration_seconds",
			Help:      "Duration of one dispatcher run.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"trigger"}, // startup, interval, manual
	)

	interpretOutcomesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nudgebot",
			Name:      "interpret_replies_total",
			Help:      "Replies produced by the intent interpreter, by kind.",
		},
		[]string{"kind"},
	)

	interpretAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nudgebot",
			Name:      "interpret_attempts_total",
			Help:      "Chat-completion attempts made by the interpreter.",
		},
		[]string{"result"}, // text, directive, malformed, completer_error
	)

	compactionOutcomesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nudgebot",
			Name:      "compactions_total",
			Help:      "Memory compaction attempts.",
		},
		[]string{"status"},
	)

	inboundMessagesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nudgebot",
			Name:      "inbound_messages_total",
			Help:      "Inbound user messages consumed from NATS.",
		},
		[]string{"status"},
	)

	reengagementsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nudgebot",
			Name:      "reengagements_total",
			Help:      "Conversation openers sent to quiet users.",
		},
		[]string{"status"},
	)
)
