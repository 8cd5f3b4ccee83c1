// Package metrics exposes the process's Prometheus registry, grounded
// on JeelKantaria-db-bouncer's internal/metrics/metrics.go, adapted
// from a per-tenant proxy's metrics to this module's pool/query/
// import/export domain.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dbworkbench/core/pool"
)

// Collector wraps a dedicated Prometheus registry and every gauge/
// histogram/counter the process exports.
type Collector struct {
	Registry *prometheus.Registry

	poolActive       *prometheus.GaugeVec
	poolMaxSize      *prometheus.GaugeVec
	poolMinIdle      *prometheus.GaugeVec
	poolReconnects   *prometheus.CounterVec
	checkoutDuration *prometheus.HistogramVec

	queryDuration   *prometheus.HistogramVec
	queryErrors     *prometheus.CounterVec
	importRows      *prometheus.CounterVec
	exportRows      *prometheus.CounterVec
	keepaliveProbes *prometheus.CounterVec
}

// New builds a fresh Collector with its own registry — one per
// process, mirroring the teacher's New().
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		poolActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dbworkbench_pool_active_connections",
			Help: "Number of checked-out handles per pool.",
		}, []string{"pool_id"}),
		poolMaxSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dbworkbench_pool_max_size",
			Help: "Configured max_pool_size per pool.",
		}, []string{"pool_id"}),
		poolMinIdle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dbworkbench_pool_min_idle",
			Help: "Configured min_idle per pool.",
		}, []string{"pool_id"}),
		poolReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbworkbench_pool_reconnects_total",
			Help: "Automatic reconnects performed per pool.",
		}, []string{"pool_id"}),
		checkoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dbworkbench_pool_checkout_duration_seconds",
			Help:    "Time to obtain a connection handle.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pool_id"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dbworkbench_query_duration_seconds",
			Help:    "Query Façade operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbworkbench_query_errors_total",
			Help: "Query Façade operations that returned an error.",
		}, []string{"operation"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbworkbench_import_rows_total",
			Help: "Rows inserted by import_table.",
		}, []string{"table"}),
		exportRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbworkbench_export_rows_total",
			Help: "Rows written by export_table/export_query_result.",
		}, []string{"format"}),
		keepaliveProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbworkbench_keepalive_probes_total",
			Help: "Keepalive probe outcomes per pool.",
		}, []string{"pool_id", "outcome"}),
	}

	reg.MustRegister(
		c.poolActive, c.poolMaxSize, c.poolMinIdle, c.poolReconnects,
		c.checkoutDuration, c.queryDuration, c.queryErrors,
		c.importRows, c.exportRows, c.keepaliveProbes,
	)
	return c
}

// UpdatePoolStats refreshes the per-pool gauges from a pool.Stats
// snapshot, called by the periodic sampling loop.
func (c *Collector) UpdatePoolStats(s pool.Stats) {
	label := poolLabel(s.PoolID)
	c.poolActive.WithLabelValues(label).Set(float64(s.Active))
	c.poolMaxSize.WithLabelValues(label).Set(float64(s.MaxPoolSize))
	c.poolMinIdle.WithLabelValues(label).Set(float64(s.MinIdle))
}

// PoolReconnected records one automatic reconnect for poolID.
func (c *Collector) PoolReconnected(poolID int64) {
	c.poolReconnects.WithLabelValues(poolLabel(poolID)).Inc()
}

// CheckoutDuration records how long a Checkout call took for poolID.
func (c *Collector) CheckoutDuration(poolID int64, d time.Duration) {
	c.checkoutDuration.WithLabelValues(poolLabel(poolID)).Observe(d.Seconds())
}

// QueryCompleted records one Query Façade operation's latency and,
// when err is non-nil, increments the error counter.
func (c *Collector) QueryCompleted(operation string, d time.Duration, err error) {
	c.queryDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		c.queryErrors.WithLabelValues(operation).Inc()
	}
}

// ImportRows records rows inserted by an import_table call.
func (c *Collector) ImportRows(table string, n int64) {
	c.importRows.WithLabelValues(table).Add(float64(n))
}

// ExportRows records rows written by an export_table/
// export_query_result call.
func (c *Collector) ExportRows(format string, n int64) {
	c.exportRows.WithLabelValues(format).Add(float64(n))
}

// KeepaliveProbe records one keepalive probe's outcome ("ok" or
// "failed") for poolID.
func (c *Collector) KeepaliveProbe(poolID int64, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	c.keepaliveProbes.WithLabelValues(poolLabel(poolID), outcome).Inc()
}

// RemovePool drops every metric series labeled for a now-closed pool,
// the adaptation of the teacher's RemoveTenant cleanup.
func (c *Collector) RemovePool(poolID int64) {
	label := poolLabel(poolID)
	c.poolActive.DeleteLabelValues(label)
	c.poolMaxSize.DeleteLabelValues(label)
	c.poolMinIdle.DeleteLabelValues(label)
	c.poolReconnects.DeleteLabelValues(label)
	c.checkoutDuration.DeletePartialMatch(prometheus.Labels{"pool_id": label})
	c.keepaliveProbes.DeletePartialMatch(prometheus.Labels{"pool_id": label})
}

func poolLabel(id int64) string {
	return itoa64(id)
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
