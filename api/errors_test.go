package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbworkbench/core/pool"
)

func TestStatusFor_PoolNotFound(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(pool.ErrPoolNotFound))
	assert.Equal(t, http.StatusNotFound, statusFor(pool.ErrHandleNotFound))
}

func TestStatusFor_Timeouts(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(pool.ErrCheckoutTimeout))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(pool.ErrCreateTimeout))
}

func TestStatusFor_ConnectionLostExhausted(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(pool.ErrUnsafeReconnect))
}

func TestStatusFor_PoolClosedIsConflict(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(pool.ErrPoolClosed))
}

func TestStatusFor_ValidationError(t *testing.T) {
	err := &validationError{msg: "bad ssl mode"}
	assert.Equal(t, http.StatusBadRequest, statusFor(err))
}

func TestStatusFor_UnknownDefaultsToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(assertError("boom")))
}

type assertError string

func (e assertError) Error() string { return string(e) }
