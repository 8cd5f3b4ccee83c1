package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/dbworkbench/core/pool"
)

func TestUpdatePoolStats_SetsGauges(t *testing.T) {
	c := New()
	c.UpdatePoolStats(pool.Stats{PoolID: 1, Active: 3, MaxPoolSize: 10, MinIdle: 2})

	assert.Equal(t, float64(3), testutil.ToFloat64(c.poolActive.WithLabelValues("1")))
	assert.Equal(t, float64(10), testutil.ToFloat64(c.poolMaxSize.WithLabelValues("1")))
}

func TestPoolReconnected_IncrementsCounter(t *testing.T) {
	c := New()
	c.PoolReconnected(2)
	c.PoolReconnected(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(c.poolReconnects.WithLabelValues("2")))
}

func TestQueryCompleted_RecordsErrorOnFailure(t *testing.T) {
	c := New()
	c.QueryCompleted("query", 5*time.Millisecond, assertError())
	assert.Equal(t, float64(1), testutil.ToFloat64(c.queryErrors.WithLabelValues("query")))
}

func TestKeepaliveProbe_TracksOutcome(t *testing.T) {
	c := New()
	c.KeepaliveProbe(7, true)
	c.KeepaliveProbe(7, false)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.keepaliveProbes.WithLabelValues("7", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.keepaliveProbes.WithLabelValues("7", "failed")))
}

func TestRemovePool_DeletesSeries(t *testing.T) {
	c := New()
	c.UpdatePoolStats(pool.Stats{PoolID: 9, Active: 1, MaxPoolSize: 5, MinIdle: 1})
	c.RemovePool(9)
	assert.Equal(t, float64(0), testutil.ToFloat64(c.poolActive.WithLabelValues("9")))
}

func assertError() error {
	return errTest
}

var errTest = testErr("boom")

type testErr string

func (e testErr) Error() string { return string(e) }
