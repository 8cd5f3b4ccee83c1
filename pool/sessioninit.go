package pool

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// identifierEscape doubles backticks to safely quote a MySQL identifier.
func identifierEscape(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var safeToken = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// BuildSessionInit produces the ordered session-setup statement list for
// a freshly minted raw connection (spec.md §4.2). Charset/collation
// tokens failing the whitelist are silently omitted rather than erroring,
// to avoid injection via profile fields.
func BuildSessionInit(profile ConnectionProfile, sslModeStmt string) []string {
	var stmts []string

	if db := strings.TrimSpace(profile.CurrentDatabase); db != "" {
		stmts = append(stmts, fmt.Sprintf("USE %s", identifierEscape(db)))
	}

	if charset := strings.TrimSpace(profile.Charset); charset != "" && safeToken.MatchString(charset) {
		if collation := strings.TrimSpace(profile.Collation); collation != "" && safeToken.MatchString(collation) {
			stmts = append(stmts, fmt.Sprintf("SET NAMES %s COLLATE %s", charset, collation))
		} else {
			stmts = append(stmts, fmt.Sprintf("SET NAMES %s", charset))
		}
	}

	if profile.IdleTimeoutSeconds > 0 {
		stmts = append(stmts, fmt.Sprintf("SET SESSION wait_timeout = %d", profile.IdleTimeoutSeconds))
	}

	if sslModeStmt != "" {
		stmts = append(stmts, sslModeStmt)
	}

	return stmts
}

// RunSessionInit executes every statement in order on conn. The ssl_mode
// mirror statement (identified by sslModeStmt) is allowed to fail silently
// — older MySQL servers reject SET SESSION ssl_mode entirely. Any other
// statement failure aborts the whole connection creation.
func RunSessionInit(ctx context.Context, conn *sql.Conn, stmts []string, sslModeStmt string) error {
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			if sslModeStmt != "" && stmt == sslModeStmt {
				continue
			}
			return fmt.Errorf("session init %q: %w", stmt, err)
		}
	}
	return nil
}
