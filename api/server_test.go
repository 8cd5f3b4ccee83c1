package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/dbworkbench/core/config"
	"github.com/dbworkbench/core/metrics"
	"github.com/dbworkbench/core/pool"
)

func newTestServer() (*Server, *mux.Router) {
	s := NewServer(pool.NewManager(), metrics.New(), config.ListenConfig{APIBind: "127.0.0.1", APIPort: 0})

	r := mux.NewRouter()
	r.HandleFunc("/pool/{id}/stats", s.poolGetStats).Methods("GET")
	r.HandleFunc("/pool/close_all", s.poolCloseAll).Methods("POST")
	r.HandleFunc("/pool/query", s.poolQuery).Methods("POST")
	r.HandleFunc("/sql/split_statements", s.sqlSplitStatements).Methods("POST")
	r.HandleFunc("/sql/format", s.sqlFormat).Methods("POST")
	r.HandleFunc("/sql/extract_view_select", s.sqlExtractViewSelect).Methods("POST")
	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	return s, r
}

func doJSON(t *testing.T, r *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestServer_HealthEndpoint(t *testing.T) {
	_, r := newTestServer()
	rr := doJSON(t, r, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_StatusEndpointReportsUptime(t *testing.T) {
	_, r := newTestServer()
	rr := doJSON(t, r, "GET", "/status", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Contains(t, body, "go_version")
	assert.Contains(t, body, "uptime_seconds")
}

func TestServer_PoolGetStats_UnknownPoolReturns404(t *testing.T) {
	_, r := newTestServer()
	rr := doJSON(t, r, "GET", "/pool/99/stats", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_PoolCloseAll_NoOpWhenEmpty(t *testing.T) {
	_, r := newTestServer()
	rr := doJSON(t, r, "POST", "/pool/close_all", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_PoolQuery_RejectsDisallowedCommand(t *testing.T) {
	_, r := newTestServer()
	rr := doJSON(t, r, "POST", "/pool/query", queryRequest{PoolID: 1, SQL: "DROP TABLE widgets"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_SQLSplitStatements(t *testing.T) {
	_, r := newTestServer()
	rr := doJSON(t, r, "POST", "/sql/split_statements", sqlToolRequest{
		SQL: "SELECT 1; SELECT 2;", Dialect: "mysql",
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string][]string
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Len(t, body["statements"], 2)
}

func TestServer_SQLFormat(t *testing.T) {
	_, r := newTestServer()
	rr := doJSON(t, r, "POST", "/sql/format", sqlToolRequest{
		SQL: "SELECT id FROM widgets WHERE id = 1", Dialect: "mysql",
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Contains(t, body["formatted"], "\nFROM")
}

func TestServer_SQLExtractViewSelect(t *testing.T) {
	_, r := newTestServer()
	rr := doJSON(t, r, "POST", "/sql/extract_view_select", sqlToolRequest{
		DDL: "CREATE VIEW v AS SELECT id FROM widgets", Dialect: "mysql",
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "SELECT id FROM widgets", body["select"])
}

func TestServer_SQLExtractViewSelect_InvalidDDL(t *testing.T) {
	_, r := newTestServer()
	rr := doJSON(t, r, "POST", "/sql/extract_view_select", sqlToolRequest{
		DDL: "CREATE TABLE widgets (id INT)", Dialect: "mysql",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_UnknownDialectRejected(t *testing.T) {
	_, r := newTestServer()
	rr := doJSON(t, r, "POST", "/sql/format", sqlToolRequest{SQL: "SELECT 1", Dialect: "not-a-dialect"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateLimitMiddleware_BlocksOverBurst(t *testing.T) {
	s, _ := newTestServer()
	s.limiter = NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1, CleanupInterval: time.Minute})
	defer s.limiter.Stop()

	r := mux.NewRouter()
	r.Use(s.rateLimitMiddleware)
	r.HandleFunc("/health", s.healthHandler).Methods("GET")

	rr := doJSON(t, r, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, "GET", "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}
