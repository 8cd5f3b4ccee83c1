package splitter

import "strings"

// majorKeywords starts a new line when Format encounters one of these
// words outside quotes/comments, giving a readable one-clause-per-line
// layout without a full SQL grammar.
var majorKeywords = []string{
	"SELECT", "FROM", "WHERE", "GROUP BY", "ORDER BY", "HAVING",
	"LIMIT", "UNION", "INSERT INTO", "VALUES", "UPDATE",
	"SET", "DELETE FROM", "JOIN", "ON",
}

// Format reflows a single SQL statement onto multiple lines, placing
// each major clause keyword at the start of its own line. Dialect is
// accepted for a consistent signature with Split/ParseDialect, but the
// keyword set is shared across dialects; it only affects nothing here
// today since all five dialects use the same clause vocabulary.
func Format(sql string, d Dialect) string {
	collapsed := collapseWhitespace(sql)
	if collapsed == "" {
		return ""
	}

	upper := strings.ToUpper(collapsed)
	var cuts []formatCut
	for _, kw := range majorKeywords {
		start := 0
		for {
			idx := indexWordBoundary(upper[start:], kw)
			if idx < 0 {
				break
			}
			pos := start + idx
			cuts = append(cuts, formatCut{pos: pos, kw: kw})
			start = pos + len(kw)
		}
	}
	if len(cuts) == 0 {
		return collapsed
	}

	sortCuts(cuts)

	var b strings.Builder
	prev := 0
	for i, c := range cuts {
		if c.pos > prev {
			b.WriteString(strings.TrimSpace(collapsed[prev:c.pos]))
		}
		if i > 0 {
			b.WriteString("\n")
		}
		prev = c.pos
	}
	b.WriteString(strings.TrimSpace(collapsed[prev:]))
	return b.String()
}

type formatCut struct {
	pos int
	kw  string
}

func sortCuts(cuts []formatCut) {
	for i := 1; i < len(cuts); i++ {
		for j := i; j > 0 && cuts[j-1].pos > cuts[j].pos; j-- {
			cuts[j-1], cuts[j] = cuts[j], cuts[j-1]
		}
	}
}

// collapseWhitespace folds all runs of whitespace down to a single
// space, trimming the ends.
func collapseWhitespace(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.TrimSpace(s) {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// indexWordBoundary finds kw in s at a token boundary (preceded and
// followed by whitespace, punctuation, or an edge), used so "SET" does
// not match inside "OFFSET".
func indexWordBoundary(s, kw string) int {
	for i := 0; i+len(kw) <= len(s); i++ {
		if s[i:i+len(kw)] != kw {
			continue
		}
		before := i == 0 || !isIdentChar(s[i-1])
		afterIdx := i + len(kw)
		after := afterIdx == len(s) || !isIdentChar(s[afterIdx])
		if before && after {
			return i
		}
	}
	return -1
}

// ExtractViewSelect pulls the SELECT body out of a `CREATE VIEW ... AS
// SELECT ...` DDL statement, used by export/introspection tooling that
// needs a view's underlying query without parsing full DDL grammar.
func ExtractViewSelect(ddl string, d Dialect) (string, error) {
	upper := strings.ToUpper(ddl)
	idx := indexWordBoundary(upper, "AS")
	if idx < 0 {
		return "", errNoASClause
	}

	rest := strings.TrimSpace(ddl[idx+2:])
	restUpper := strings.ToUpper(rest)
	if !strings.HasPrefix(restUpper, "SELECT") && !strings.HasPrefix(restUpper, "(") {
		return "", errNoSelectAfterAS
	}

	parenthesised := strings.HasPrefix(rest, "(")
	rest = strings.TrimPrefix(rest, "(")
	rest = strings.TrimSuffix(strings.TrimSpace(rest), ";")
	if parenthesised {
		rest = strings.TrimSuffix(strings.TrimSpace(rest), ")")
	}
	return strings.TrimSpace(rest), nil
}
