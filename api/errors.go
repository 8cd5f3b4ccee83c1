// Package api implements the HTTP command surface (spec.md §6): one
// route per exposed command, grounded on
// JeelKantaria-db-bouncer's internal/api/server.go.
package api

import (
	"errors"
	"net/http"

	"github.com/dbworkbench/core/pool"
)

// statusFor maps an error onto an HTTP status: an unknown pool or handle
// (Integrity) is 404, a checkout/create timeout (Acquisition) and a
// blocked reconnect (ErrUnsafeReconnect) are both 503, a closed pool is
// 409, a *validationError (rejected ssl_mode or command policy) is 400,
// and everything else is 500, including importer header/coercion errors
// and other configuration errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pool.ErrPoolNotFound), errors.Is(err, pool.ErrHandleNotFound):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrCheckoutTimeout), errors.Is(err, pool.ErrCreateTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, pool.ErrUnsafeReconnect):
		return http.StatusServiceUnavailable
	case errors.Is(err, pool.ErrPoolClosed):
		return http.StatusConflict
	default:
		var ve *validationError
		if errors.As(err, &ve) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

// validationError marks a request as rejected by api/validate.go's
// command-policy check — a Configuration-class error per spec.md §7.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
