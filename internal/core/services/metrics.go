package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	membersClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asha_members_classified_total",
			Help: "Total number of members finalized, by category and risk level",
		},
		[]string{"category", "level"},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asha_registrations_submitted_total",
			Help: "Total number of registration submits by outcome",
		},
		[]string{"status"},
	)

	referralsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asha_referrals_published_total",
			Help: "Total number of Red referral events by publish outcome",
		},
		[]string{"status"},
	)

	followUpTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asha_followups_toggled_total",
			Help: "Total number of follow-up completion toggles",
		},
		[]string{"completed"},
	)
)
