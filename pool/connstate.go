package pool

import (
	"database/sql"
	"sync"
	"time"
)

// ConnectionProfile is the user-supplied description of a MySQL server
// to connect to (spec.md §3).
type ConnectionProfile struct {
	Host     string
	Port     int
	Username string
	Password string

	// CurrentDatabase is the optional initial database (spec.md calls
	// this field "database" on ConnectionProfile and folds it into
	// PoolConfig.current_database).
	CurrentDatabase string

	Charset   string
	Collation string

	IdleTimeoutSeconds       int // default 28800
	ConnectionTimeoutSeconds int // default 30

	AutoReconnect bool

	SSLMode  SSLMode
	SSLPaths SSLPaths
}

// WithDefaults fills in spec.md §3's documented defaults for zero fields.
func (p ConnectionProfile) WithDefaults() ConnectionProfile {
	if p.IdleTimeoutSeconds == 0 {
		p.IdleTimeoutSeconds = 28800
	}
	if p.ConnectionTimeoutSeconds == 0 {
		p.ConnectionTimeoutSeconds = 30
	}
	return p
}

// Fingerprint is the 6-tuple identifying a pool per spec.md §3/GLOSSARY:
// (host, port, user, password, ssl_mode, ssl_ca_path). Different
// databases over the same credentials share a pool.
type Fingerprint struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  SSLMode
	CAPath   string
}

// FingerprintOf derives the pool fingerprint from a profile.
func FingerprintOf(p ConnectionProfile) Fingerprint {
	return Fingerprint{
		Host:     p.Host,
		Port:     p.Port,
		User:     p.Username,
		Password: p.Password,
		SSLMode:  p.SSLMode,
		CAPath:   p.SSLPaths.CAPath,
	}
}

// Config is PoolConfig from spec.md §3: ConnectionProfile plus
// pool-level tuning.
type Config struct {
	ConnectionProfile

	MaxPoolSize          int // default 10
	MinIdle              int // default 2, invariant: <= MaxPoolSize
	IdleTimeoutMS        int // default 600000
	MaxLifetimeMS        int // default 1800000
	ConnectionTimeoutMS  int
	CreateTimeoutMS      int
	RecycleTimeoutMS     int
	KeepaliveIntervalSec int // default 30; each pool's keepalive uses its own value, not shared across pools
}

// WithDefaults fills in spec.md §3's documented Config defaults.
func (c Config) WithDefaults() (Config, error) {
	c.ConnectionProfile = c.ConnectionProfile.WithDefaults()
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 10
	}
	if c.MinIdle == 0 {
		c.MinIdle = 2
	}
	if c.MinIdle > c.MaxPoolSize {
		return c, errConfigMinIdleTooLarge
	}
	if c.IdleTimeoutMS == 0 {
		c.IdleTimeoutMS = 600000
	}
	if c.MaxLifetimeMS == 0 {
		c.MaxLifetimeMS = 1800000
	}
	if c.KeepaliveIntervalSec == 0 {
		c.KeepaliveIntervalSec = 30
	}
	return c, nil
}

// ConnState mirrors JeelKantaria-db-bouncer's PooledConn state enum,
// generalized from a raw net.Conn to a checked-out *sql.Conn.
type ConnState int

const (
	StateIdle ConnState = iota
	StateActive
	StateClosed
)

// ConnectionState wraps one raw connection checked out to the UI
// (spec.md §3). Handle uniqueness, and the invariant that a handle
// identifies at most one ConnectionState, are enforced by Pool/Manager.
type ConnectionState struct {
	mu sync.Mutex

	// opMu serialises driver calls against this handle: with_handle and
	// the keepalive probe both acquire it before touching conn, per
	// spec.md §4's requirement that operations on the same handle are
	// serialised.
	opMu sync.Mutex

	handle Handle
	poolID int64
	conn   *sql.Conn
	state  ConnState

	currentDatabase string
	inTransaction   int
	temporaryTables int
	autoReconnect   bool

	createdAt time.Time
	lastUsed  time.Time
	useCount  int64
}

// Handle is the opaque, monotonically increasing, never-reused id that
// identifies a checked-out ConnectionState (GLOSSARY).
type Handle int64

func newConnectionState(handle Handle, poolID int64, conn *sql.Conn, initialDB string, autoReconnect bool) *ConnectionState {
	now := time.Now()
	return &ConnectionState{
		handle:          handle,
		poolID:          poolID,
		conn:            conn,
		state:           StateActive,
		currentDatabase: initialDB,
		autoReconnect:   autoReconnect,
		createdAt:       now,
		lastUsed:        now,
	}
}

// Handle returns the handle id identifying this state.
func (s *ConnectionState) Handle() Handle { return s.handle }

// Conn returns the underlying raw connection. Callers must hold the
// state's exclusive lease (see Pool.WithHandle) before using it for a
// driver call.
func (s *ConnectionState) Conn() *sql.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// CurrentDatabase returns the database name last executed via USE.
func (s *ConnectionState) CurrentDatabase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentDatabase
}

// SetCurrentDatabase updates the tracked database — called by the api's
// pool_set_database and pool_get_connection (initial_database) handlers
// after their USE statement succeeds.
func (s *ConnectionState) SetCurrentDatabase(db string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentDatabase = db
}

// AutoReconnect reports whether this state's connection may be silently
// replaced after a connection-lost error.
func (s *ConnectionState) AutoReconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoReconnect
}

// InTransaction returns the current BEGIN/COMMIT/ROLLBACK nesting level.
func (s *ConnectionState) InTransaction() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTransaction
}

// TemporaryTables returns the current open-temporary-table count.
func (s *ConnectionState) TemporaryTables() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temporaryTables
}

// ObserveStatement updates in_transaction/temporary_tables by
// classifying a statement's leading keyword with leadingKeyword,
// resolving the Open Question recorded in SPEC_FULL.md §4. The Query
// Façade calls this once per query/query_multi/execute request, on the
// request's whole SQL text, right before execution.
func (s *ConnectionState) ObserveStatement(stmt string) {
	kw := leadingKeyword(stmt)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kw {
	case "BEGIN", "START":
		s.inTransaction++
	case "COMMIT", "ROLLBACK":
		s.inTransaction = 0
	case "CREATE_TEMPORARY":
		s.temporaryTables++
	case "DROP_TEMPORARY":
		if s.temporaryTables > 0 {
			s.temporaryTables--
		}
	}
}

// CanSafelyReconnect implements the safety gate from spec.md §4.5.
func (s *ConnectionState) CanSafelyReconnect() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.autoReconnect {
		return false, "Auto-reconnect is disabled"
	}
	if s.inTransaction > 0 {
		return false, "Active transaction detected (nesting level: " + itoa(s.inTransaction) + ")"
	}
	if s.temporaryTables > 0 {
		return false, "Temporary tables open (count: " + itoa(s.temporaryTables) + ")"
	}
	return true, ""
}

// replaceConn swaps in a freshly reconnected raw connection under the
// same handle id, after the reconnect engine has restored session
// context. Counters are not reset — the spec keeps a ConnectionState's
// handle identity stable across a reconnect.
func (s *ConnectionState) replaceConn(conn *sql.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

// touch records a successful use.
func (s *ConnectionState) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	s.useCount++
}

// Snapshot is the observability view returned by pool_get_active_connections.
type Snapshot struct {
	Handle          Handle
	PoolID          int64
	CurrentDatabase string
	CreatedAt       time.Time
	LastUsedAt      time.Time
	UseCount        int64
}

func (s *ConnectionState) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Handle:          s.handle,
		PoolID:          s.poolID,
		CurrentDatabase: s.currentDatabase,
		CreatedAt:       s.createdAt,
		LastUsedAt:      s.lastUsed,
		UseCount:        s.useCount,
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// leadingKeyword classifies the statement's head for transaction/
// temp-table bookkeeping. It deliberately only looks at the first three
// words — full parsing is out of scope (spec.md §1 non-goals).
func leadingKeyword(stmt string) string {
	trimmed := stmt
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t' || trimmed[0] == '\n' || trimmed[0] == '\r') {
		trimmed = trimmed[1:]
	}
	upper := toUpperASCII(firstWords(trimmed, 3))
	switch {
	case hasPrefixWord(upper, "BEGIN"):
		return "BEGIN"
	case hasPrefixWord(upper, "START") && hasPrefixWord(skipWord(upper), "TRANSACTION"):
		return "START"
	case hasPrefixWord(upper, "COMMIT"):
		return "COMMIT"
	case hasPrefixWord(upper, "ROLLBACK"):
		return "ROLLBACK"
	case hasPrefixWord(upper, "CREATE") && containsWord(upper, "TEMPORARY"):
		return "CREATE_TEMPORARY"
	case hasPrefixWord(upper, "DROP") && containsWord(upper, "TEMPORARY"):
		return "DROP_TEMPORARY"
	default:
		return ""
	}
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}

func firstWords(s string, n int) string {
	count := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r' {
			count++
			if count >= n {
				return s[:i]
			}
		}
	}
	return s
}

func hasPrefixWord(s, word string) bool {
	if len(s) < len(word) {
		return false
	}
	if s[:len(word)] != word {
		return false
	}
	return len(s) == len(word) || s[len(word)] == ' ' || s[len(word)] == '\t' || s[len(word)] == '\n' || s[len(word)] == '\r'
}

func skipWord(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r' {
			return s[i+1:]
		}
	}
	return ""
}

func containsWord(s, word string) bool {
	for {
		idx := indexOf(s, word)
		if idx < 0 {
			return false
		}
		before := idx == 0 || s[idx-1] == ' ' || s[idx-1] == '\t'
		afterIdx := idx + len(word)
		after := afterIdx == len(s) || s[afterIdx] == ' ' || s[afterIdx] == '\t'
		if before && after {
			return true
		}
		s = s[idx+1:]
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
