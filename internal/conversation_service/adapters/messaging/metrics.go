package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var providerRequestDurationHist = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "nudgebot",
		Name:      "provider_request_duration_seconds",
		Help:      "Duration of outbound message sends, by provider.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"provider_name", "status"},
)
