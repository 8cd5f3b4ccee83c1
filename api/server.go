package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbworkbench/core/config"
	"github.com/dbworkbench/core/exporter"
	"github.com/dbworkbench/core/importer"
	"github.com/dbworkbench/core/metrics"
	"github.com/dbworkbench/core/pool"
	"github.com/dbworkbench/core/query"
	"github.com/dbworkbench/core/splitter"
)

// Server implements spec.md §6's command surface as a gorilla/mux HTTP
// API, grounded on JeelKantaria-db-bouncer's internal/api/server.go.
type Server struct {
	manager     *pool.Manager
	facade      *query.Facade
	metrics     *metrics.Collector
	policy      *CommandPolicy
	limiter     *RateLimiter
	jobs        *JobPool
	httpServer  *http.Server
	startTime   time.Time
	listenCfg   config.ListenConfig
}

// NewServer wires a Server over an already-constructed Pool Manager.
func NewServer(manager *pool.Manager, m *metrics.Collector, lc config.ListenConfig) *Server {
	return &Server{
		manager:   manager,
		facade:    query.New(manager),
		metrics:   m,
		policy:    DefaultCommandPolicy(),
		limiter:   NewRateLimiter(DefaultRateLimiterConfig()),
		jobs:      NewJobPool(DefaultJobPoolConfig()),
		startTime: time.Now(),
		listenCfg: lc,
	}
}

// Start builds the route table and begins serving in a background
// goroutine.
func (s *Server) Start() error {
	r := mux.NewRouter()
	r.Use(s.rateLimitMiddleware)

	r.HandleFunc("/pool/create", s.poolCreate).Methods("POST")
	r.HandleFunc("/pool/get_connection", s.poolGetConnection).Methods("POST")
	r.HandleFunc("/pool/set_database", s.poolSetDatabase).Methods("POST")
	r.HandleFunc("/pool/release_connection", s.poolReleaseConnection).Methods("POST")
	r.HandleFunc("/pool/test_connection", s.poolTestConnection).Methods("POST")
	r.HandleFunc("/pool/{id}/stats", s.poolGetStats).Methods("GET")
	r.HandleFunc("/pool/{id}/detailed_stats", s.poolGetDetailedStats).Methods("GET")
	r.HandleFunc("/pool/{id}/active_connections", s.poolGetActiveConnections).Methods("GET")
	r.HandleFunc("/pool/active_connections", s.poolGetAllActiveConnections).Methods("GET")
	r.HandleFunc("/pool/{id}/connection_properties", s.poolGetConnectionProperties).Methods("GET")
	r.HandleFunc("/pool/{id}/close", s.poolClose).Methods("POST")
	r.HandleFunc("/pool/close_all", s.poolCloseAll).Methods("POST")

	r.HandleFunc("/pool/query", s.poolQuery).Methods("POST")
	r.HandleFunc("/pool/query_multi", s.poolQueryMulti).Methods("POST")
	r.HandleFunc("/pool/execute", s.poolExecute).Methods("POST")
	r.HandleFunc("/pool/query_prepared", s.poolQueryPrepared).Methods("POST")
	r.HandleFunc("/pool/query_multi_prepared", s.poolQueryMultiPrepared).Methods("POST")
	r.HandleFunc("/pool/execute_prepared", s.poolExecutePrepared).Methods("POST")

	r.HandleFunc("/import_table", s.importTable).Methods("POST")
	r.HandleFunc("/export_table", s.exportTable).Methods("POST")
	r.HandleFunc("/export_query_result", s.exportQueryResult).Methods("POST")

	r.HandleFunc("/sql/split_statements", s.sqlSplitStatements).Methods("POST")
	r.HandleFunc("/sql/format", s.sqlFormat).Methods("POST")
	r.HandleFunc("/sql/extract_view_select", s.sqlExtractViewSelect).Methods("POST")

	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	addr := fmt.Sprintf("%s:%d", s.listenCfg.APIBind, s.listenCfg.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	slog.Info("api listening", "addr", addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server error", "err", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server, the rate limiter's
// cleanup goroutine, and the import/export job pool.
func (s *Server) Stop() error {
	s.limiter.Stop()
	s.jobs.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Pool handlers ---

type profileRequest struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Database      string `json:"database"`
	Charset       string `json:"charset"`
	AutoReconnect bool   `json:"auto_reconnect"`
	SSLMode       string `json:"ssl_mode"`
	SSLCAPath     string `json:"ssl_ca_path"`
	SSLCertPath   string `json:"ssl_cert_path"`
	SSLKeyPath    string `json:"ssl_key_path"`
	MaxPoolSize   int    `json:"max_pool_size"`
	MinIdle       int    `json:"min_idle"`
}

func (req profileRequest) toPoolConfig() (pool.Config, error) {
	mode, err := pool.ParseSSLMode(req.SSLMode)
	if err != nil {
		return pool.Config{}, &validationError{msg: err.Error()}
	}
	return pool.Config{
		ConnectionProfile: pool.ConnectionProfile{
			Host: req.Host, Port: req.Port, Username: req.Username, Password: req.Password,
			CurrentDatabase: req.Database, Charset: req.Charset, AutoReconnect: req.AutoReconnect,
			SSLMode: mode,
			SSLPaths: pool.SSLPaths{CAPath: req.SSLCAPath, CertPath: req.SSLCertPath, KeyPath: req.SSLKeyPath},
		},
		MaxPoolSize: req.MaxPoolSize,
		MinIdle:     req.MinIdle,
	}, nil
}

func (s *Server) poolCreate(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := req.toPoolConfig()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	p, err := s.manager.GetOrCreate(cfg)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"pool_id": p.ID()})
}

type getConnectionRequest struct {
	PoolID          int64  `json:"pool_id"`
	InitialDatabase string `json:"initial_database"`
}

func (s *Server) poolGetConnection(w http.ResponseWriter, r *http.Request) {
	var req getConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.manager.Get(req.PoolID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	h, state, err := p.Checkout(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if req.InitialDatabase != "" {
		err = p.WithHandle(r.Context(), h, func(conn *sql.Conn) error {
			stmt := "USE `" + strings.ReplaceAll(req.InitialDatabase, "`", "``") + "`"
			_, execErr := conn.ExecContext(r.Context(), stmt)
			return execErr
		})
		if err != nil {
			p.Release(h)
			writeError(w, statusFor(err), err.Error())
			return
		}
		state.SetCurrentDatabase(req.InitialDatabase)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"handle": int64(h)})
}

type setDatabaseRequest struct {
	PoolID   int64      `json:"pool_id"`
	Handle   pool.Handle `json:"handle"`
	Database string     `json:"database"`
}

func (s *Server) poolSetDatabase(w http.ResponseWriter, r *http.Request) {
	var req setDatabaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.manager.Get(req.PoolID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	state, err := p.Lookup(req.Handle)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	err = p.WithHandle(r.Context(), req.Handle, func(conn *sql.Conn) error {
		stmt := "USE `" + strings.ReplaceAll(req.Database, "`", "``") + "`"
		_, execErr := conn.ExecContext(r.Context(), stmt)
		return execErr
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	state.SetCurrentDatabase(req.Database)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type handleRequest struct {
	PoolID int64       `json:"pool_id"`
	Handle pool.Handle `json:"handle"`
}

func (s *Server) poolReleaseConnection(w http.ResponseWriter, r *http.Request) {
	var req handleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.manager.Get(req.PoolID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err := p.Release(req.Handle); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) poolTestConnection(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := req.toPoolConfig()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	p, err := s.manager.GetOrCreate(cfg)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": false})
		return
	}
	h, _, err := p.Checkout(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": false})
		return
	}
	p.Release(h)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) poolGetStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.manager.Get(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p.Stats())
}

func (s *Server) poolGetDetailedStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.manager.Get(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":       p.Stats(),
		"connections": p.ActiveConnections(),
	})
}

func (s *Server) poolGetActiveConnections(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.manager.Get(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p.ActiveConnections())
}

func (s *Server) poolGetAllActiveConnections(w http.ResponseWriter, r *http.Request) {
	conns := []pool.Snapshot{}
	for _, st := range s.manager.AllStats() {
		p, err := s.manager.Get(st.PoolID)
		if err != nil {
			continue
		}
		conns = append(conns, p.ActiveConnections()...)
	}
	writeJSON(w, http.StatusOK, conns)
}

func (s *Server) poolGetConnectionProperties(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.manager.Get(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	fp := p.Fingerprint()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"host":     fp.Host,
		"port":     fp.Port,
		"user":     fp.User,
		"ssl_mode": fp.SSLMode.String(),
	})
}

func (s *Server) poolClose(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.manager.ClosePool(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.RemovePool(id)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) poolCloseAll(w http.ResponseWriter, r *http.Request) {
	s.manager.CloseAll()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Query Façade handlers ---

type queryRequest struct {
	PoolID int64       `json:"pool_id"`
	Handle pool.Handle `json:"handle"`
	SQL    string      `json:"sql"`
	Args   []interface{} `json:"args"`
}

func (s *Server) poolQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.policy.Check(req.SQL); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	start := time.Now()
	result, err := s.facade.Query(r.Context(), req.PoolID, req.Handle, req.SQL, req.Args...)
	if s.metrics != nil {
		s.metrics.QueryCompleted("query", time.Since(start), err)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) poolQueryMulti(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.policy.Check(req.SQL); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	start := time.Now()
	result, err := s.facade.QueryMulti(r.Context(), req.PoolID, req.Handle, req.SQL, req.Args...)
	if s.metrics != nil {
		s.metrics.QueryCompleted("query_multi", time.Since(start), err)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) poolExecute(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.policy.Check(req.SQL); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	start := time.Now()
	result, err := s.facade.Execute(r.Context(), req.PoolID, req.Handle, req.SQL, req.Args...)
	if s.metrics != nil {
		s.metrics.QueryCompleted("execute", time.Since(start), err)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type preparedRequest struct {
	PoolID int64        `json:"pool_id"`
	Handle pool.Handle  `json:"handle"`
	SQL    string       `json:"sql"`
	Params []query.Param `json:"params"`
}

func (s *Server) poolQueryPrepared(w http.ResponseWriter, r *http.Request) {
	var req preparedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.policy.Check(req.SQL); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	result, err := s.facade.QueryPrepared(r.Context(), req.PoolID, req.Handle, req.SQL, req.Params)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) poolQueryMultiPrepared(w http.ResponseWriter, r *http.Request) {
	var req preparedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.policy.Check(req.SQL); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	result, err := s.facade.QueryMultiPrepared(r.Context(), req.PoolID, req.Handle, req.SQL, req.Params)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) poolExecutePrepared(w http.ResponseWriter, r *http.Request) {
	var req preparedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.policy.Check(req.SQL); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	result, err := s.facade.ExecutePrepared(r.Context(), req.PoolID, req.Handle, req.SQL, req.Params)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Import/Export handlers ---

type importRequest struct {
	Profile profileRequest `json:"profile"`
	DB      string         `json:"db"`
	Table   string         `json:"table"`
	Path    string         `json:"path"`
	Format  string         `json:"format"`
}

func (s *Server) importTable(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := importer.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := req.Profile.toPoolConfig()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	var result *importer.Result
	err = s.jobs.Submit(r.Context(), func(ctx context.Context) error {
		var jerr error
		result, jerr = importer.Import(ctx, s.manager, cfg, req.DB, req.Table, req.Path, format)
		return jerr
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.ImportRows(req.Table, result.RowsInserted)
	}
	writeJSON(w, http.StatusOK, result)
}

type exportTableRequest struct {
	Profile profileRequest `json:"profile"`
	DB      string         `json:"db"`
	Table   string         `json:"table"`
	Path    string         `json:"path"`
	Format  string         `json:"format"`
}

func (s *Server) exportTable(w http.ResponseWriter, r *http.Request) {
	var req exportTableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := exporter.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := req.Profile.toPoolConfig()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	var result *exporter.Result
	err = s.jobs.Submit(r.Context(), func(ctx context.Context) error {
		var jerr error
		result, jerr = exporter.ExportTable(ctx, s.manager, cfg, req.DB, req.Table, req.Path, format)
		return jerr
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.ExportRows(req.Format, result.RowsExported)
	}
	writeJSON(w, http.StatusOK, result)
}

type exportQueryResultRequest struct {
	Path      string          `json:"path"`
	Headers   []string        `json:"headers"`
	Rows      [][]interface{} `json:"rows"`
	Format    string          `json:"format"`
	TableName string          `json:"table_name"`
}

func (s *Server) exportQueryResult(w http.ResponseWriter, r *http.Request) {
	var req exportQueryResultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := exporter.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := exporter.ExportQueryResult(req.Headers, req.Rows, format, req.Path, req.TableName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.ExportRows(req.Format, result.RowsExported)
	}
	writeJSON(w, http.StatusOK, result)
}

// --- SQL tool handlers ---

type sqlToolRequest struct {
	SQL     string `json:"sql"`
	DDL     string `json:"ddl"`
	Dialect string `json:"dialect"`
}

func (s *Server) sqlSplitStatements(w http.ResponseWriter, r *http.Request) {
	var req sqlToolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := splitter.ParseDialect(req.Dialect)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"statements": splitter.Split(req.SQL, d)})
}

func (s *Server) sqlFormat(w http.ResponseWriter, r *http.Request) {
	var req sqlToolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := splitter.ParseDialect(req.Dialect)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"formatted": splitter.Format(req.SQL, d)})
}

func (s *Server) sqlExtractViewSelect(w http.ResponseWriter, r *http.Request) {
	var req sqlToolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := splitter.ParseDialect(req.Dialect)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	selectStmt, err := splitter.ExtractViewSelect(req.DDL, d)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"select": selectStmt})
}

// --- Status/health handlers ---

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_mb":      float64(mem.Alloc) / 1024 / 1024,
		"pools":          len(s.manager.AllStats()),
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// --- Helpers ---

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func pathInt64(r *http.Request, key string) (int64, error) {
	raw := mux.Vars(r)[key]
	var n int64
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
