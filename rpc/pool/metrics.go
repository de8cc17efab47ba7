package pool

import (
	"github.com/VictoriaMetrics/metrics"
)

// poolMetrics holds the counters and gauges of one pool
type poolMetrics struct {
	set               *metrics.Set
	acquires          *metrics.Counter
	created           *metrics.Counter
	handshakeFailures *metrics.Counter
	evictions         *metrics.Counter
}

func newPoolMetrics(p *Pool) *poolMetrics {
	set := metrics.NewSet()

	m := &poolMetrics{
		set:               set,
		acquires:          set.NewCounter("netcom_pool_acquire_total"),
		created:           set.NewCounter("netcom_pool_connections_created_total"),
		handshakeFailures: set.NewCounter("netcom_pool_handshake_failures_total"),
		evictions:         set.NewCounter("netcom_pool_evictions_total"),
	}

	// gauges are evaluated while writing, so they lock the pool themselves
	set.NewGauge("netcom_pool_tracked_connections", func() float64 {
		return float64(p.Stats().Tracked)
	})
	set.NewGauge("netcom_pool_idle_connections", func() float64 {
		return float64(p.Stats().Idle)
	})
	set.NewGauge("netcom_pool_waiters", func() float64 {
		return float64(p.Stats().Waiters)
	})

	return m
}
