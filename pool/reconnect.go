package pool

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
)

// connectionLostPhrases is the case-insensitive substring bank from
// spec.md §4.5 that identifies a driver error as a dead connection
// rather than a query-level failure.
var connectionLostPhrases = []string{
	"server has gone away",
	"lost connection",
	"unexpected eof",
	"timed out",
	"timeout",
	"broken pipe",
	"connection reset",
	"connection was killed",
	"io error",
	"os error 10053",
	"os error 10054",
}

// isConnectionLost reports whether err's message matches the
// connection-lost predicate. A nil error never matches.
func isConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range connectionLostPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// reconnect implements the Reconnect Engine's with_handle algorithm
// (spec.md §4.5): gated by ConnectionState.CanSafelyReconnect, dial a
// fresh raw connection, restore session context, and swap it into the
// state under the same handle. At most one dial attempt is made — no
// retry loop, unlike the teacher's ConnectionManager.reconnectLoop,
// which backs off and retries indefinitely for a RabbitMQ connection.
func (p *Pool) reconnect(ctx context.Context, state *ConnectionState) (*sql.Conn, error) {
	if ok, reason := state.CanSafelyReconnect(); !ok {
		return nil, &unsafeReconnectError{reason: reason}
	}

	createCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.CreateTimeoutMS > 0 {
		createCtx, cancel = p.withCreateTimeout(ctx)
		defer cancel()
	}

	conn, err := p.db.Conn(createCtx)
	if err != nil {
		return nil, err
	}

	db := state.CurrentDatabase()
	profile := p.cfg.ConnectionProfile
	profile.CurrentDatabase = db
	stmts := BuildSessionInit(profile, p.sessionStmt)
	if err := RunSessionInit(createCtx, conn, stmts, p.sessionStmt); err != nil {
		conn.Close()
		return nil, err
	}

	old := state.Conn()
	state.replaceConn(conn)
	old.Close()

	atomic.AddInt64(&p.reconnectCount, 1)
	return conn, nil
}

func (p *Pool) withCreateTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, msDuration(p.cfg.CreateTimeoutMS))
}

// unsafeReconnectError wraps ErrUnsafeReconnect with the human-readable
// reason from CanSafelyReconnect, surfaced verbatim in the Testable
// Properties scenarios (spec.md §8, scenario checking for
// "Active transaction detected").
type unsafeReconnectError struct {
	reason string
}

func (e *unsafeReconnectError) Error() string {
	return ErrUnsafeReconnect.Error() + ": " + e.reason
}

func (e *unsafeReconnectError) Unwrap() error {
	return ErrUnsafeReconnect
}

// reconnectDisabledError is the composite surfaced by WithHandle's step 5
// (spec.md §4.5) when an action fails with a connection-lost error and the
// safety gate now blocks auto-reconnect. It wraps ErrUnsafeReconnect so
// statusFor still classifies it as a 503, while rendering the exact
// contract text spec.md and §7 mandate.
type reconnectDisabledError struct {
	reason   string
	original error
}

func (e *reconnectDisabledError) Error() string {
	return fmt.Sprintf("Connection lost and auto-reconnect is disabled: %s. Original error: %v", e.reason, e.original)
}

func (e *reconnectDisabledError) Unwrap() error {
	return ErrUnsafeReconnect
}
