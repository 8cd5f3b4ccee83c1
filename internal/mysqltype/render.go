// Package mysqltype renders raw database/sql scan values into the
// textual and JSON-tree forms shared by the Export Engine and the
// Query Façade (spec.md §4.9's "MySQL value -> string rendering
// rules"), grounded on iperfex-team-burrowctl/server/server.go's
// convertDatabaseValue scan-into-interface{} pattern.
package mysqltype

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// String renders a scanned column value to its canonical textual form
// per spec.md §4.9. It is used by the Export Engine for every
// non-JSON-native format (CSV, TXT, SQL, HTML, XML, XLSX cell text).
func String(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return decodeUTF8Lossy(t)
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case int:
		return strconv.Itoa(t)
	case float32:
		return formatFloat(float64(t))
	case float64:
		return formatFloat(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05.000000")
	case Duration:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func decodeUTF8Lossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}

// JSONValue renders a scanned column value into the null/number/string
// tree returned to the UI by the Query Façade (spec.md §4.10). Numbers
// are passed through as json.Number-compatible native types so the
// caller's encoder emits them unquoted; everything else becomes a
// string via String.
func JSONValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case int64:
		return t
	case uint64:
		return t
	case int:
		return t
	case float32:
		return jsonFloat(float64(t))
	case float64:
		return jsonFloat(t)
	case bool:
		return t
	default:
		return String(v)
	}
}

func jsonFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Duration represents a MySQL TIME value, which may exceed 24 hours
// and therefore cannot round-trip through time.Time. go-sql-driver
// returns TIME columns as raw []byte by default; ParseDuration parses
// that wire form into this type.
type Duration struct {
	Negative bool
	Days     int
	Hours    int
	Minutes  int
	Seconds  int
	Micros   int
}

// String renders "±HH:MM:SS.uuuuuu (D days)" per spec.md §4.9, omitting
// the day suffix when Days == 0.
func (d Duration) String() string {
	sign := ""
	if d.Negative {
		sign = "-"
	}
	base := fmt.Sprintf("%s%02d:%02d:%02d.%06d", sign, d.Hours, d.Minutes, d.Seconds, d.Micros)
	if d.Days == 0 {
		return base
	}
	return fmt.Sprintf("%s (%d days)", base, d.Days)
}

// ParseDuration parses a MySQL TIME column's raw text form
// ("[-]HHH:MM:SS[.ffffff]") into a Duration.
func ParseDuration(raw string) (Duration, error) {
	s := strings.TrimSpace(raw)
	var d Duration
	if strings.HasPrefix(s, "-") {
		d.Negative = true
		s = s[1:]
	}

	var secPart string
	parts := strings.SplitN(s, ".", 2)
	secPart = parts[0]
	if len(parts) == 2 {
		micros, err := parseMicros(parts[1])
		if err != nil {
			return Duration{}, fmt.Errorf("mysqltype: parsing time fraction %q: %w", raw, err)
		}
		d.Micros = micros
	}

	hms := strings.Split(secPart, ":")
	if len(hms) != 3 {
		return Duration{}, fmt.Errorf("mysqltype: malformed time value %q", raw)
	}
	hours, err := strconv.Atoi(hms[0])
	if err != nil {
		return Duration{}, fmt.Errorf("mysqltype: malformed time value %q: %w", raw, err)
	}
	minutes, err := strconv.Atoi(hms[1])
	if err != nil {
		return Duration{}, fmt.Errorf("mysqltype: malformed time value %q: %w", raw, err)
	}
	seconds, err := strconv.Atoi(hms[2])
	if err != nil {
		return Duration{}, fmt.Errorf("mysqltype: malformed time value %q: %w", raw, err)
	}

	d.Days = hours / 24
	d.Hours = hours % 24
	d.Minutes = minutes
	d.Seconds = seconds
	return d, nil
}

// CoerceByType converts a raw scanned value into the Go representation
// String/JSONValue expect, given the column's DatabaseTypeName(). Every
// MySQL type but TIME already arrives from the driver as the right Go
// type; TIME comes back as raw []byte (e.g. "838:59:59" or
// "-12:34:56.5"), which must be parsed into a Duration so it renders
// per spec.md §4.9's day-normalized "±HH:MM:SS.uuuuuu (D days)" form
// instead of being passed through as wire text.
func CoerceByType(typeName string, v interface{}) interface{} {
	if typeName != "TIME" {
		return v
	}
	raw, ok := v.([]byte)
	if !ok {
		return v
	}
	d, err := ParseDuration(string(raw))
	if err != nil {
		return v
	}
	return d
}

func parseMicros(frac string) (int, error) {
	for len(frac) < 6 {
		frac += "0"
	}
	frac = frac[:6]
	return strconv.Atoi(frac)
}
