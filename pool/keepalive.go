package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// keepaliveScheduler runs one goroutine per checked-out handle that
// probes the connection on a fixed interval, adapted from the
// teacher's HeartbeatManager (per-handle goroutine, activate/stop
// channels) but driving a SELECT 1 probe over the handle's *sql.Conn
// instead of an AMQP PING round-trip, and deferring to the Reconnect
// Engine's safety gate instead of a missed-beat counter.
type keepaliveScheduler struct {
	pool     *Pool
	interval time.Duration

	mu    sync.Mutex
	tasks map[Handle]chan struct{}
	wg    sync.WaitGroup

	stopped bool
}

func newKeepaliveScheduler(p *Pool, interval time.Duration) *keepaliveScheduler {
	return &keepaliveScheduler{
		pool:     p,
		interval: interval,
		tasks:    make(map[Handle]chan struct{}),
	}
}

// register starts a keepalive task for state. Called from Pool.Checkout.
func (k *keepaliveScheduler) register(state *ConnectionState) {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	k.tasks[state.Handle()] = stop
	k.wg.Add(1)
	k.mu.Unlock()

	go k.run(state, stop)
}

// unregister stops the keepalive task for h. Called from Pool.Release.
func (k *keepaliveScheduler) unregister(h Handle) {
	k.mu.Lock()
	stop, ok := k.tasks[h]
	if ok {
		delete(k.tasks, h)
	}
	k.mu.Unlock()
	if ok {
		close(stop)
	}
}

// stop terminates every outstanding task and waits for them to exit,
// guaranteeing pool Close completes only after all keepalive tasks
// have exited (spec.md §4's cancellation note).
func (k *keepaliveScheduler) stop() {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return
	}
	k.stopped = true
	tasks := k.tasks
	k.tasks = make(map[Handle]chan struct{})
	k.mu.Unlock()

	for _, stop := range tasks {
		close(stop)
	}
	k.wg.Wait()
}

func (k *keepaliveScheduler) run(state *ConnectionState, stop chan struct{}) {
	defer k.wg.Done()

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !k.probe(state) {
				return
			}
		}
	}
}

// probe runs one keepalive cycle. It returns false when the task
// should exit (handle released or unsafe to reconnect).
func (k *keepaliveScheduler) probe(state *ConnectionState) bool {
	k.mu.Lock()
	if _, ok := k.tasks[state.Handle()]; !ok {
		k.mu.Unlock()
		return false
	}
	k.mu.Unlock()

	state.opMu.Lock()
	defer state.opMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := state.Conn().ExecContext(ctx, "SELECT 1")
	if err == nil {
		return true
	}
	if !isConnectionLost(err) {
		slog.Warn("keepalive probe failed", "handle", state.Handle(), "err", err)
		return true
	}

	if ok, reason := state.CanSafelyReconnect(); !ok {
		slog.Warn("keepalive auto-reconnect blocked", "handle", state.Handle(), "reason", reason)
		k.removeDeadHandle(state.Handle())
		return false
	}

	newConn, rerr := k.pool.reconnect(context.Background(), state)
	if rerr != nil {
		slog.Warn("keepalive reconnect failed", "handle", state.Handle(), "err", rerr)
		k.removeDeadHandle(state.Handle())
		return false
	}
	_ = newConn
	return true
}

// removeDeadHandle drops h from the keepalive task table and from the
// pool's live handle registry, per spec.md §4.6: once the safety gate
// blocks a reconnect or a reconnect attempt itself fails, the handle
// must not be left pointing at a dead connection.
func (k *keepaliveScheduler) removeDeadHandle(h Handle) {
	k.mu.Lock()
	delete(k.tasks, h)
	k.mu.Unlock()

	if err := k.pool.Release(h); err != nil {
		slog.Warn("keepalive failed to release dead handle", "handle", h, "err", err)
	}
}
