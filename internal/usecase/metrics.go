package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recomputesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_recomputes_total",
			Help: "Totals recomputations by result",
		},
		[]string{"result"}, // applied | superseded | failed
	)

	couponDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_coupon_drops_total",
			Help: "Applied coupons dropped on re-validation",
		},
	)

	paymentOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_payment_outcomes_total",
			Help: "Payment handoff outcomes",
		},
		[]string{"outcome"}, // success | pending | failure
	)
)
