package pool

import "errors"

// Sentinel errors surfaced across the pool package's public API, in the
// same spirit as the teacher's plain fmt.Errorf strings but kept as
// package-level values where callers (api, query) need to distinguish
// them with errors.Is.
var (
	errConfigMinIdleTooLarge = errors.New("pool: min_idle must not exceed max_pool_size")

	// ErrPoolClosed is returned by Checkout once Close has been called
	// on the pool. Close releases every handle, so WithHandle on a closed
	// pool reports ErrHandleNotFound.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrCheckoutTimeout names a checkout that timed out waiting for a
	// free connection. No function in this package returns it: Checkout
	// reports any timeout while obtaining a connection, including the wait
	// for a free one, as ErrCreateTimeout.
	ErrCheckoutTimeout = errors.New("pool: checkout timed out waiting for a connection")

	// ErrCreateTimeout is returned when dialing a new raw connection
	// exceeds create_timeout_ms.
	ErrCreateTimeout = errors.New("pool: connection creation timed out")

	// ErrHandleNotFound is returned when a handle id does not identify
	// any live ConnectionState.
	ErrHandleNotFound = errors.New("pool: handle not found")

	// ErrPoolNotFound is returned when a pool id is unknown to the
	// Manager.
	ErrPoolNotFound = errors.New("pool: pool id not found")

	// ErrUnsafeReconnect is returned by the Reconnect Engine when
	// can_safely_reconnect rejects an automatic retry.
	ErrUnsafeReconnect = errors.New("pool: cannot safely reconnect")
)
