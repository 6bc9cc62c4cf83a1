package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// poolStats is a point-in-time view of a connection pool.
type poolStats struct {
	total, idle, inUse float64
	waits, timeouts    float64
}

// PoolStatsCollector exports connection pool gauges for one backing store.
type PoolStatsCollector struct {
	stats func() poolStats
	store string

	total    *prometheus.Desc
	idle     *prometheus.Desc
	inUse    *prometheus.Desc
	waits    *prometheus.Desc
	timeouts *prometheus.Desc
}

func newPoolStatsCollector(store string, stats func() poolStats) *PoolStatsCollector {
	labels := []string{"store"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("storefront_pool_"+name, help, labels, nil)
	}
	return &PoolStatsCollector{
		stats:    stats,
		store:    store,
		total:    desc("connections", "Total connections in the pool"),
		idle:     desc("idle_connections", "Idle connections in the pool"),
		inUse:    desc("in_use_connections", "Connections currently checked out"),
		waits:    desc("waits_total", "Acquires that had to wait for a free connection"),
		timeouts: desc("timeouts_total", "Acquires that gave up (timeout or cancel)"),
	}
}

// NewPostgresPoolCollector reports pgxpool statistics for the catalog pool.
func NewPostgresPoolCollector(pool *pgxpool.Pool) *PoolStatsCollector {
	return newPoolStatsCollector("postgres", func() poolStats {
		s := pool.Stat()
		return poolStats{
			total:    float64(s.TotalConns()),
			idle:     float64(s.IdleConns()),
			inUse:    float64(s.AcquiredConns()),
			waits:    float64(s.EmptyAcquireCount()),
			timeouts: float64(s.CanceledAcquireCount()),
		}
	})
}

// NewRedisPoolCollector reports go-redis pool statistics.
func NewRedisPoolCollector(client *redis.Client) *PoolStatsCollector {
	return newPoolStatsCollector("redis", func() poolStats {
		s := client.PoolStats()
		return poolStats{
			total:    float64(s.TotalConns),
			idle:     float64(s.IdleConns),
			inUse:    float64(s.TotalConns - s.IdleConns),
			waits:    float64(s.Misses),
			timeouts: float64(s.Timeouts),
		}
	})
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.inUse
	ch <- c.waits
	ch <- c.timeouts
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, s.total, c.store)
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, s.idle, c.store)
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, s.inUse, c.store)
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, s.waits, c.store)
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, s.timeouts, c.store)
}
