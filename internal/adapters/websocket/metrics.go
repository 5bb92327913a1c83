package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedSupervisors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asha_referral_feed_connections",
			Help: "Number of supervisors connected to the referral feed",
		},
	)

	referralsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asha_referral_feed_deliveries_total",
			Help: "Total number of referral frames queued to supervisors",
		},
	)
)
