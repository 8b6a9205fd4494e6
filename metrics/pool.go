package metrics

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshot is the slice of pgxpool.Stat the collector reports.
type PoolSnapshot struct {
	TotalConns        int32
	IdleConns         int32
	AcquiredConns     int32
	ConstructingConns int32
	MaxConns          int32

	AcquireCount         int64
	EmptyAcquireCount    int64
	CanceledAcquireCount int64
	AcquireDuration      time.Duration
}

// SnapshotFromPool adapts a live pool to the collector's source function.
func SnapshotFromPool(p *pgxpool.Pool) func() PoolSnapshot {
	return func() PoolSnapshot {
		s := p.Stat()
		return PoolSnapshot{
			TotalConns:           s.TotalConns(),
			IdleConns:            s.IdleConns(),
			AcquiredConns:        s.AcquiredConns(),
			ConstructingConns:    s.ConstructingConns(),
			MaxConns:             s.MaxConns(),
			AcquireCount:         s.AcquireCount(),
			EmptyAcquireCount:    s.EmptyAcquireCount(),
			CanceledAcquireCount: s.CanceledAcquireCount(),
			AcquireDuration:      s.AcquireDuration(),
		}
	}
}

type poolCollector struct {
	snapshot func() PoolSnapshot

	totalConns        *prometheus.Desc
	idleConns         *prometheus.Desc
	acquiredConns     *prometheus.Desc
	constructingConns *prometheus.Desc
	maxConns          *prometheus.Desc

	acquireCount         *prometheus.Desc
	emptyAcquireCount    *prometheus.Desc
	canceledAcquireCount *prometheus.Desc
	acquireSeconds       *prometheus.Desc
}

// NewPoolCollector exposes connection-pool statistics. Namespace/subsystem
// prefix the metric names.
func NewPoolCollector(namespace, subsystem string, snapshot func() PoolSnapshot) prometheus.Collector {
	fq := func(name string) string {
		return prometheus.BuildFQName(namespace, subsystem, name)
	}
	return &poolCollector{
		snapshot: snapshot,

		totalConns:        prometheus.NewDesc(fq("total_conns"), "Total connections in the pool", nil, nil),
		idleConns:         prometheus.NewDesc(fq("idle_conns"), "Idle connections in the pool", nil, nil),
		acquiredConns:     prometheus.NewDesc(fq("acquired_conns"), "Connections currently acquired", nil, nil),
		constructingConns: prometheus.NewDesc(fq("constructing_conns"), "Connections being constructed", nil, nil),
		maxConns:          prometheus.NewDesc(fq("max_conns"), "Maximum pool size", nil, nil),

		acquireCount:         prometheus.NewDesc(fq("acquire_total"), "Successful acquires since pool creation", nil, nil),
		emptyAcquireCount:    prometheus.NewDesc(fq("empty_acquire_total"), "Acquires that waited for a free connection", nil, nil),
		canceledAcquireCount: prometheus.NewDesc(fq("canceled_acquire_total"), "Acquires canceled by context", nil, nil),
		acquireSeconds:       prometheus.NewDesc(fq("acquire_duration_seconds_total"), "Cumulative time spent acquiring", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.acquiredConns
	ch <- c.constructingConns
	ch <- c.maxConns
	ch <- c.acquireCount
	ch <- c.emptyAcquireCount
	ch <- c.canceledAcquireCount
	ch <- c.acquireSeconds
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()

	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(s.AcquiredConns))
	ch <- prometheus.MustNewConstMetric(c.constructingConns, prometheus.GaugeValue, float64(s.ConstructingConns))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.MaxConns))

	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(s.AcquireCount))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquireCount, prometheus.CounterValue, float64(s.EmptyAcquireCount))
	ch <- prometheus.MustNewConstMetric(c.canceledAcquireCount, prometheus.CounterValue, float64(s.CanceledAcquireCount))
	ch <- prometheus.MustNewConstMetric(c.acquireSeconds, prometheus.CounterValue, s.AcquireDuration.Seconds())
}
