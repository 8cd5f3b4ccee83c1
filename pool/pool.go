package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Pool manages raw connections for a single connection fingerprint
// (spec.md §4.4). Unlike a generic database/sql.DB, Pool hands out
// long-lived handles — *sql.Conn pinned out of an internal *sql.DB —
// so session state (USE, SET NAMES, temp tables) survives across calls
// on the same handle, the way db-bouncer's TenantPool hands out raw
// net.Conns instead of relying on a transparent pool.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	id          int64
	fingerprint Fingerprint
	cfg         Config

	db          *sql.DB
	sessionStmt string // ssl_mode mirror statement from ResolveSSL, re-run on every Checkout/reconnect

	states  map[Handle]*ConnectionState
	nextSeq int64

	reconnectCount int64

	closed bool

	keepalive *keepaliveScheduler
}

// newPool opens the underlying *sql.DB, pings it once through
// dialWithFallback, and sets up the keepalive scheduler; warm_min is
// honored by pre-opening min_idle handles in the background, mirroring
// db-bouncer's warmUp goroutine.
func newPool(id int64, fp Fingerprint, cfg Config) (*Pool, error) {
	cfg, err := cfg.WithDefaults()
	if err != nil {
		return nil, err
	}

	dsnTLS, sslStmt, err := ResolveSSL(cfg.SSLMode, cfg.SSLPaths)
	if err != nil {
		return nil, err
	}

	mcfg := mysql.NewConfig()
	mcfg.Net = "tcp"
	mcfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mcfg.User = cfg.Username
	mcfg.Passwd = cfg.Password
	mcfg.DBName = cfg.CurrentDatabase
	mcfg.TLSConfig = dsnTLS
	mcfg.Timeout = time.Duration(cfg.ConnectionTimeoutSeconds) * time.Second
	mcfg.ParseTime = true
	mcfg.InterpolateParams = false

	db, err := dialWithFallback(mcfg, cfg.SSLMode)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxPoolSize)
	db.SetMaxIdleConns(cfg.MinIdle)
	db.SetConnMaxLifetime(time.Duration(cfg.MaxLifetimeMS) * time.Millisecond)
	db.SetConnMaxIdleTime(time.Duration(cfg.IdleTimeoutMS) * time.Millisecond)

	p := &Pool{
		id:          id,
		fingerprint: fp,
		cfg:         cfg,
		db:          db,
		states:      make(map[Handle]*ConnectionState),
	}
	p.cond = sync.NewCond(&p.mu)
	p.keepalive = newKeepaliveScheduler(p, time.Duration(cfg.KeepaliveIntervalSec)*time.Second)

	p.sessionStmt = sslStmt
	if cfg.MinIdle > 0 {
		go p.warmUp()
	}

	return p, nil
}

// dialWithFallback opens db and probes it with a ping. In Preferred
// mode, per spec.md §4.1, a failed ping must not be fatal — this
// function retries once over plain TCP.
func dialWithFallback(mcfg *mysql.Config, mode SSLMode) (*sql.DB, error) {
	dsn := mcfg.FormatDSN()
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("pool: opening mysql handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), mcfg.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if mode != SSLPreferred {
			db.Close()
			return nil, fmt.Errorf("pool: connecting to %s: %w", mcfg.Addr, err)
		}
		slog.Warn("tls handshake failed in preferred mode, retrying over plain tcp", "addr", mcfg.Addr, "err", err)
		db.Close()

		plain := *mcfg
		plain.TLSConfig = "false"
		fallbackDB, ferr := sql.Open("mysql", plain.FormatDSN())
		if ferr != nil {
			return nil, fmt.Errorf("pool: opening mysql handle (fallback): %w", ferr)
		}
		fctx, fcancel := context.WithTimeout(context.Background(), mcfg.Timeout)
		defer fcancel()
		if perr := fallbackDB.PingContext(fctx); perr != nil {
			fallbackDB.Close()
			return nil, fmt.Errorf("pool: connecting to %s (plain tcp fallback): %w", mcfg.Addr, perr)
		}
		return fallbackDB, nil
	}
	return db, nil
}

// warmUp pre-creates min_idle handles so the pool is ready for traffic,
// mirroring db-bouncer's warmUp.
func (p *Pool) warmUp() {
	for i := 0; i < p.cfg.MinIdle; i++ {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		h, _, err := p.Checkout(context.Background())
		if err != nil {
			slog.Warn("pool warm-up checkout failed", "pool_id", p.id, "index", i+1, "err", err)
			return
		}
		p.Release(h)
	}
	slog.Info("pool warmed up", "pool_id", p.id, "min_idle", p.cfg.MinIdle)
}

// Checkout hands out a fresh handle: a pinned *sql.Conn plus its
// ConnectionState, with session init already run. Unlike db-bouncer's
// Acquire, there is no reusable idle list of raw connections — reuse
// happens at the database/sql connection-pool layer beneath us. Each
// Checkout issues a new handle id; the handle stays usable through
// WithHandle until Release is called.
func (p *Pool) Checkout(ctx context.Context) (Handle, *ConnectionState, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, nil, ErrPoolClosed
	}
	p.mu.Unlock()

	createCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.CreateTimeoutMS > 0 {
		createCtx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.CreateTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	conn, err := p.db.Conn(createCtx)
	if err != nil {
		if createCtx.Err() != nil {
			return 0, nil, ErrCreateTimeout
		}
		return 0, nil, fmt.Errorf("pool: creating connection: %w", err)
	}

	stmts := BuildSessionInit(p.cfg.ConnectionProfile, p.sessionStmt)
	if err := RunSessionInit(createCtx, conn, stmts, p.sessionStmt); err != nil {
		conn.Close()
		return 0, nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return 0, nil, ErrPoolClosed
	}
	seq := atomic.AddInt64(&p.nextSeq, 1)
	handle := Handle(seq)
	state := newConnectionState(handle, p.id, conn, p.cfg.CurrentDatabase, p.cfg.AutoReconnect)
	p.states[handle] = state
	p.mu.Unlock()

	p.keepalive.register(state)

	return handle, state, nil
}

// Lookup returns the ConnectionState for a live handle.
func (p *Pool) Lookup(h Handle) (*ConnectionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.states[h]
	if !ok {
		return nil, ErrHandleNotFound
	}
	return s, nil
}

// Release returns a handle's connection to the underlying database/sql
// pool and forgets the handle. Per spec.md §4.4 a handle is never
// reused once released — a later pool_release on the same id is an
// ErrHandleNotFound, not a no-op.
func (p *Pool) Release(h Handle) error {
	p.mu.Lock()
	state, ok := p.states[h]
	if !ok {
		p.mu.Unlock()
		return ErrHandleNotFound
	}
	delete(p.states, h)
	p.mu.Unlock()

	p.keepalive.unregister(h)
	return state.Conn().Close()
}

// WithHandle runs fn with exclusive access to the handle's connection,
// implementing the probe → pre-action reconnect → execute → retry-once
// algorithm of spec.md §4.5. This is the only sanctioned way to issue a
// driver call against a pooled handle.
func (p *Pool) WithHandle(ctx context.Context, h Handle, fn func(*sql.Conn) error) error {
	state, err := p.Lookup(h)
	if err != nil {
		return err
	}

	state.opMu.Lock()
	defer state.opMu.Unlock()

	// Step 2: probe the raw connection before running the action.
	if _, perr := state.Conn().ExecContext(ctx, "SELECT 1"); perr != nil {
		if !isConnectionLost(perr) {
			return perr
		}

		// Step 3: pre-action reconnect, gated by the safety check.
		if _, rerr := p.reconnect(ctx, state); rerr != nil {
			return rerr
		}
	}

	// Step 4: execute.
	err = fn(state.Conn())
	if err == nil {
		state.touch()
		return nil
	}
	if !isConnectionLost(err) {
		return err
	}

	// Step 5: re-evaluate the safety gate before the one retry.
	if ok, reason := state.CanSafelyReconnect(); !ok {
		return &reconnectDisabledError{reason: reason, original: err}
	}

	newConn, rerr := p.reconnect(ctx, state)
	if rerr != nil {
		return rerr
	}

	if rerr := fn(newConn); rerr != nil {
		return rerr
	}
	state.touch()
	return nil
}

// ActiveConnections returns a snapshot of every live handle, for
// pool_get_active_connections.
func (p *Pool) ActiveConnections() []Snapshot {
	p.mu.Lock()
	states := make([]*ConnectionState, 0, len(p.states))
	for _, s := range p.states {
		states = append(states, s)
	}
	p.mu.Unlock()

	out := make([]Snapshot, 0, len(states))
	for _, s := range states {
		out = append(out, s.snapshot())
	}
	return out
}

// Stats is the pool_stats response shape (spec.md §4.4).
type Stats struct {
	PoolID        int64 `json:"pool_id"`
	Active        int   `json:"active"`
	MaxPoolSize   int   `json:"max_pool_size"`
	MinIdle       int   `json:"min_idle"`
	TotalCreated  int64 `json:"total_created"`
	ReconnectHits int64 `json:"reconnect_count"`
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	active := len(p.states)
	p.mu.Unlock()

	return Stats{
		PoolID:        p.id,
		Active:        active,
		MaxPoolSize:   p.cfg.MaxPoolSize,
		MinIdle:       p.cfg.MinIdle,
		TotalCreated:  atomic.LoadInt64(&p.nextSeq),
		ReconnectHits: atomic.LoadInt64(&p.reconnectCount),
	}
}

// Close releases every outstanding handle, stops the keepalive
// scheduler and closes the underlying database/sql pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	handles := make([]Handle, 0, len(p.states))
	for h := range p.states {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	p.keepalive.stop()

	for _, h := range handles {
		_ = p.Release(h)
	}
	return p.db.Close()
}

// ID returns the pool's identifier.
func (p *Pool) ID() int64 { return p.id }

// Fingerprint returns the pool's dedup fingerprint.
func (p *Pool) Fingerprint() Fingerprint { return p.fingerprint }
