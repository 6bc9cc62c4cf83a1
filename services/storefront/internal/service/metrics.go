package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_reservations_total",
		Help: "Reserve attempts by outcome",
	}, []string{"outcome"})
	stockSeeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_stock_seeded_total",
		Help: "Stock counters seeded from the catalog",
	})
	sessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_sessions_expired_total",
		Help: "Idle sessions whose holds were returned to stock",
	})
	unitsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_units_expired_total",
		Help: "Units returned to stock by the idle sweeper",
	})
)
