package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verificationRunsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "runs_total",
			Help:      "Total number of bulk verification runs.",
		},
		[]string{"status"}, // e.g. status="completed", status="limit_exceeded"
	)

	runDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verification",
			Name:      "run_duration_seconds",
			Help:      "Duration of bulk verification runs.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	numberOutcomesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "number_outcomes_total",
			Help:      "Per-number verification outcomes.",
		},
		[]string{"outcome"}, // valid, invalid, unformattable, provider_error, quota_skipped
	)

	balanceDebitedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "usdt_debited_total",
			Help:      "Total USDT debited for verification work.",
		},
	)
)
