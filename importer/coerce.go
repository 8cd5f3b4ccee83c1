package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// coerceError carries the 1-based data row number (the header row is
// row 1, so the first data row is row 2) so operators can find the
// offending line without re-scanning the source file.
type coerceError struct {
	row    int
	column string
	value  string
	reason string
}

func (e *coerceError) Error() string {
	return fmt.Sprintf("importer: row %d, column %q: %s (value %q)", e.row, e.column, e.reason, e.value)
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006"}

var datetimeLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

var timeLayouts = []string{"15:04:05.999999", "15:04:05"}

// coerce converts one field's raw trimmed text into the typed value
// the driver binds for the target column, per spec.md §4.8's type
// coercion table. row is the 1-based data-row number used in error
// messages (header row is row 1).
func coerce(dataType string, nullable bool, raw string, row int, column string) (interface{}, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		if nullable {
			return nil, nil
		}
		return []byte{}, nil
	}

	switch normalizeDataType(dataType) {
	case "int":
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, &coerceError{row, column, raw, "not a valid integer"}
		}
		return n, nil
	case "float":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, &coerceError{row, column, raw, "not a valid number"}
		}
		return f, nil
	case "bool":
		lower := strings.ToLower(text)
		if lower == "true" || lower == "1" {
			return 1, nil
		}
		return 0, nil
	case "date":
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return t.Format("2006-01-02"), nil
			}
		}
		return nil, &coerceError{row, column, raw, "not a recognized date"}
	case "datetime":
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return t.Format("2006-01-02 15:04:05"), nil
			}
		}
		return nil, &coerceError{row, column, raw, "not a recognized datetime"}
	case "time":
		for _, layout := range timeLayouts {
			if _, err := time.Parse(layout, text); err == nil {
				return text, nil
			}
		}
		return nil, &coerceError{row, column, raw, "not a recognized time"}
	case "json":
		return []byte(text), nil
	default:
		return []byte(text), nil
	}
}

// normalizeDataType buckets information_schema.columns.data_type
// values into the coercion table's categories (spec.md §4.8).
func normalizeDataType(dataType string) string {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "int", "integer", "bigint", "smallint", "mediumint", "tinyint":
		return "int"
	case "decimal", "numeric", "float", "double":
		return "float"
	case "boolean", "bool":
		return "bool"
	case "date":
		return "date"
	case "datetime", "timestamp":
		return "datetime"
	case "time":
		return "time"
	case "json":
		return "json"
	default:
		return "default"
	}
}
