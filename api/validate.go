package api

import (
	"fmt"
	"strings"
	"sync"
)

// CommandPolicy enforces a command-type whitelist/blacklist over
// incoming SQL, adapted from the teacher's SQLValidator: the
// injection-pattern regex bank is dropped (spec.md assumes
// parameterized queries throughout, not free-text SQL sanitization),
// but the command-classification shape is kept so DDL-ish statements
// can be gated the same way DML/DQL ones are, without special-casing
// any one façade operation.
type CommandPolicy struct {
	mu sync.RWMutex

	allowDDL bool
	allowDML bool
	allowDQL bool

	blocked map[string]bool
}

// DefaultCommandPolicy allows DML/DQL but blocks DDL, matching the
// teacher's DefaultSQLValidationConfig.
func DefaultCommandPolicy() *CommandPolicy {
	return &CommandPolicy{
		allowDDL: false,
		allowDML: true,
		allowDQL: true,
		blocked:  map[string]bool{"TRUNCATE": true, "GRANT": true, "REVOKE": true},
	}
}

// SetAllowDDL toggles whether CREATE/ALTER/DROP statements pass.
func (p *CommandPolicy) SetAllowDDL(allow bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowDDL = allow
}

// Check classifies stmt's leading keyword and rejects it with a
// *validationError if the current policy disallows that class.
func (p *CommandPolicy) Check(stmt string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cmd := leadingCommand(stmt)
	if p.blocked[cmd] {
		return &validationError{msg: fmt.Sprintf("command %q is blocked by policy", cmd)}
	}

	switch cmd {
	case "SELECT", "SHOW", "DESCRIBE", "EXPLAIN":
		if !p.allowDQL {
			return &validationError{msg: "data query commands are disabled by policy"}
		}
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
		if !p.allowDML {
			return &validationError{msg: "data manipulation commands are disabled by policy"}
		}
	case "CREATE", "ALTER", "DROP", "TRUNCATE":
		if !p.allowDDL {
			return &validationError{msg: fmt.Sprintf("command %q (DDL) is disabled by policy", cmd)}
		}
	}
	return nil
}

func leadingCommand(stmt string) string {
	trimmed := strings.TrimSpace(stmt)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
