package repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asha_queue_messages_consumed_total",
			Help: "Total number of queue messages processed, by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	consumeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asha_queue_consume_duration_seconds",
			Help:    "Duration of queue message processing",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"queue", "outcome"},
	)

	publishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asha_queue_messages_published_total",
			Help: "Total number of messages published, by queue and status",
		},
		[]string{"queue", "status"},
	)
)
