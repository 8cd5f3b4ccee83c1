package metrics

import (
	"time"

	"github.com/dbworkbench/core/pool"
)

// StatsLoop periodically samples every pool's Stats into the
// Collector's gauges, grounded on db-bouncer's Manager.StartStatsLoop.
type StatsLoop struct {
	manager  *pool.Manager
	collector *Collector
	interval time.Duration
	stopCh   chan struct{}
}

// NewStatsLoop builds a loop that has not started sampling yet.
func NewStatsLoop(manager *pool.Manager, collector *Collector, interval time.Duration) *StatsLoop {
	return &StatsLoop{manager: manager, collector: collector, interval: interval, stopCh: make(chan struct{})}
}

// Start begins the periodic sampling goroutine.
func (l *StatsLoop) Start() {
	go func() {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, s := range l.manager.AllStats() {
					l.collector.UpdatePoolStats(s)
				}
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the sampling goroutine.
func (l *StatsLoop) Stop() {
	close(l.stopCh)
}
