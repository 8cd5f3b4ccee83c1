// Package query implements the Query Façade (spec.md §4.10): the
// query/query_multi/execute operations and their prepared variants,
// exposed per (pool_id, handle_id).
package query

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dbworkbench/core/internal/mysqltype"
	"github.com/dbworkbench/core/pool"
)

// Column describes one result-set column.
type Column struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	TypeName string `json:"type_name"`
}

// ResultSet is one columns+rows block (GLOSSARY).
type ResultSet struct {
	Columns []Column        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// QueryResult is the response shape of a single-statement query.
type QueryResult struct {
	ResultSet
}

// MultiResult is the response shape of query_multi.
type MultiResult struct {
	ResultSets   []ResultSet `json:"result_sets"`
	AffectedRows int64       `json:"affected_rows"`
	LastInsertID int64       `json:"last_insert_id"`
}

// ExecResult is the response shape of execute.
type ExecResult struct {
	AffectedRows int64 `json:"affected_rows"`
	LastInsertID int64 `json:"last_insert_id"`
}

// Param is a tagged (type, value) prepared-statement parameter
// (spec.md §4.10).
type Param struct {
	Tag   string      `json:"tag"`
	Value interface{} `json:"value"`
}

// Facade runs SQL against a pool-managed handle.
type Facade struct {
	manager *pool.Manager
}

// New builds a Query Façade over manager.
func New(manager *pool.Manager) *Facade {
	return &Facade{manager: manager}
}

// Query executes a single-result-set statement and renders rows as a
// JSON value tree (spec.md §4.10).
func (f *Facade) Query(ctx context.Context, poolID int64, h pool.Handle, query string, args ...interface{}) (*QueryResult, error) {
	p, err := f.manager.Get(poolID)
	if err != nil {
		return nil, err
	}

	state, err := p.Lookup(h)
	if err != nil {
		return nil, err
	}
	state.ObserveStatement(query)

	var result *QueryResult
	err = p.WithHandle(ctx, h, func(conn *sql.Conn) error {
		rows, qerr := conn.QueryContext(ctx, query, args...)
		if qerr != nil {
			return fmt.Errorf("Query failed: %w", qerr)
		}
		defer rows.Close()

		rs, rerr := scanResultSet(rows)
		if rerr != nil {
			return rerr
		}
		result = &QueryResult{ResultSet: rs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// QueryMulti iterates every result set a multi-statement call
// produces, discarding result sets empty of both columns and rows
// (spec.md §4.10 — "procedure trailing empties").
func (f *Facade) QueryMulti(ctx context.Context, poolID int64, h pool.Handle, query string, args ...interface{}) (*MultiResult, error) {
	p, err := f.manager.Get(poolID)
	if err != nil {
		return nil, err
	}
	state, err := p.Lookup(h)
	if err != nil {
		return nil, err
	}
	state.ObserveStatement(query)

	var result *MultiResult
	err = p.WithHandle(ctx, h, func(conn *sql.Conn) error {
		rows, qerr := conn.QueryContext(ctx, query, args...)
		if qerr != nil {
			return fmt.Errorf("Query failed: %w", qerr)
		}
		defer rows.Close()

		var sets []ResultSet
		for {
			rs, rerr := scanResultSet(rows)
			if rerr != nil {
				return rerr
			}
			if len(rs.Columns) > 0 || len(rs.Rows) > 0 {
				sets = append(sets, rs)
			}
			if !rows.NextResultSet() {
				break
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("Query failed: %w", err)
		}

		result = &MultiResult{ResultSets: sets}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Execute runs a non-result-producing statement.
func (f *Facade) Execute(ctx context.Context, poolID int64, h pool.Handle, stmt string, args ...interface{}) (*ExecResult, error) {
	p, err := f.manager.Get(poolID)
	if err != nil {
		return nil, err
	}
	state, err := p.Lookup(h)
	if err != nil {
		return nil, err
	}
	state.ObserveStatement(stmt)

	var result *ExecResult
	err = p.WithHandle(ctx, h, func(conn *sql.Conn) error {
		res, eerr := conn.ExecContext(ctx, stmt, args...)
		if eerr != nil {
			return fmt.Errorf("Query failed: %w", eerr)
		}
		affected, _ := res.RowsAffected()
		lastID, _ := res.LastInsertId()
		result = &ExecResult{AffectedRows: affected, LastInsertID: lastID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// QueryPrepared renders tagged params before delegating to Query.
func (f *Facade) QueryPrepared(ctx context.Context, poolID int64, h pool.Handle, query string, params []Param) (*QueryResult, error) {
	args, err := renderParams(params)
	if err != nil {
		return nil, err
	}
	return f.Query(ctx, poolID, h, query, args...)
}

// ExecutePrepared renders tagged params before delegating to Execute.
func (f *Facade) ExecutePrepared(ctx context.Context, poolID int64, h pool.Handle, stmt string, params []Param) (*ExecResult, error) {
	args, err := renderParams(params)
	if err != nil {
		return nil, err
	}
	return f.Execute(ctx, poolID, h, stmt, args...)
}

// QueryMultiPrepared renders tagged params before delegating to
// QueryMulti (spec.md §6's query_multi_prepared).
func (f *Facade) QueryMultiPrepared(ctx context.Context, poolID int64, h pool.Handle, query string, params []Param) (*MultiResult, error) {
	args, err := renderParams(params)
	if err != nil {
		return nil, err
	}
	return f.QueryMulti(ctx, poolID, h, query, args...)
}

func scanResultSet(rows *sql.Rows) (ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return ResultSet{}, fmt.Errorf("Query failed: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return ResultSet{}, fmt.Errorf("Query failed: %w", err)
	}

	columns := make([]Column, len(cols))
	for i, name := range cols {
		columns[i] = Column{Name: name, Label: name, TypeName: colTypes[i].DatabaseTypeName()}
	}

	var out [][]interface{}
	for rows.Next() {
		dest := make([]interface{}, len(cols))
		for i := range dest {
			dest[i] = new(interface{})
		}
		if err := rows.Scan(dest...); err != nil {
			return ResultSet{}, fmt.Errorf("Query failed: %w", err)
		}
		row := make([]interface{}, len(cols))
		for i, d := range dest {
			v := mysqltype.CoerceByType(colTypes[i].DatabaseTypeName(), *(d.(*interface{})))
			row[i] = mysqltype.JSONValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("Query failed: %w", err)
	}

	return ResultSet{Columns: columns, Rows: out}, nil
}

// renderParams converts tagged parameters into native Go values the
// go-sql-driver/mysql placeholder binder accepts (spec.md §4.10).
// Unknown tags fall back to a UTF-8 byte string of the JSON value, per
// spec.
func renderParams(params []Param) ([]interface{}, error) {
	args := make([]interface{}, len(params))
	for i, p := range params {
		v, err := renderParam(p)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func renderParam(p Param) (interface{}, error) {
	switch strings.ToLower(p.Tag) {
	case "null":
		return nil, nil
	case "string":
		s, _ := p.Value.(string)
		return s, nil
	case "int", "long":
		return toInt64(p.Value)
	case "double":
		return toFloat64(p.Value)
	case "bool", "boolean":
		b, _ := p.Value.(bool)
		return b, nil
	case "bytes":
		s, ok := p.Value.(string)
		if !ok {
			return nil, fmt.Errorf("bytes parameter requires a base64 string")
		}
		return base64.StdEncoding.DecodeString(s)
	case "timestamp", "date", "datetime":
		s, ok := p.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%s parameter requires a string value", p.Tag)
		}
		return parseTimestamp(s)
	default:
		b, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case string:
		var n int64
		if _, err := fmt.Sscanf(t, "%d", &n); err != nil {
			return 0, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(t, "%g", &f); err != nil {
			return 0, fmt.Errorf("not a double: %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a double: %v", v)
	}
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
