package cartsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	unitsReserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cartsync_units_reserved_total",
		Help: "Units confirmed by the storefront on reserve",
	})
	unitsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cartsync_units_released_total",
		Help: "Units handed back to the storefront",
	})
	reserveConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cartsync_reserve_conflicts_total",
		Help: "Reserve batches cut short because the product ran out",
	})
	releaseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cartsync_release_failures_total",
		Help: "Best-effort releases that failed",
	})
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_events_published_total",
		Help: "Broadcast events by reason",
	}, []string{"reason"})
	relayDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cartsync_relay_dropped_total",
		Help: "Events not relayed to other sessions because the relay queue was full or the write failed",
	})
	idleReleases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cartsync_idle_releases_total",
		Help: "Carts released by the idle monitor",
	})
	heartbeats = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cartsync_heartbeats_total",
		Help: "Heartbeat decisions by outcome",
	}, []string{"outcome"})
)
