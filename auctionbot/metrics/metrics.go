// Package metrics registers the Prometheus series the bot updates while
// running auctions:
//   - auction_bids_total{result}            – bid intake outcomes (accepted|rejected|conflict)
//   - auction_offers_granted_total{reason}  – purchase rights granted (cascade|promotion|sale)
//   - auction_offer_transitions_total{to}   – offer state machine transitions
//   - auction_reminders_sent_total          – deadline reminders delivered
//   - auction_payments_total{result}        – webhook payment outcomes
//   - auction_sweep_runs_total / auction_sweep_duration_seconds – reconciliation passes
//
// Served by the HTTP server at /metrics in Prometheus text exposition format.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BidsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_bids_total",
			Help: "Bid intake outcomes",
		},
		[]string{"result"},
	)

	OffersGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_offers_granted_total",
			Help: "Purchase rights granted, by grant reason",
		},
		[]string{"reason"},
	)

	OfferTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_offer_transitions_total",
			Help: "Offer state machine transitions, by target status",
		},
		[]string{"to"},
	)

	RemindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_reminders_sent_total",
			Help: "Deadline reminders delivered",
		},
	)

	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_payments_total",
			Help: "Payment webhook outcomes",
		},
		[]string{"result"},
	)

	SweepRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_sweep_runs_total",
			Help: "Reconciliation sweep passes",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auction_sweep_duration_seconds",
			Help:    "Reconciliation sweep pass duration",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		BidsTotal,
		OffersGranted,
		OfferTransitions,
		RemindersSent,
		PaymentsTotal,
		SweepRuns,
		SweepDuration,
	)
}
