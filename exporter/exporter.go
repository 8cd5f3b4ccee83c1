package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/dbworkbench/core/internal/mysqltype"
	"github.com/dbworkbench/core/pool"
)

// Result summarizes a completed export.
type Result struct {
	RowsExported int64 `json:"rows_exported"`
}

// ExportTable runs operation export_table(profile, schema, table, path,
// format) (spec.md §4.9): it streams `SELECT * FROM schema.table`
// through a pooled connection and writes rows as they arrive.
func ExportTable(ctx context.Context, manager *pool.Manager, cfg pool.Config, schema, table, path string, format Format) (*Result, error) {
	p, err := manager.GetOrCreate(cfg)
	if err != nil {
		return nil, err
	}

	h, _, err := p.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(h)

	var result Result
	err = p.WithHandle(ctx, h, func(conn *sql.Conn) error {
		query := fmt.Sprintf("SELECT * FROM `%s`.`%s`", escapeIdent(schema), escapeIdent(table))
		rows, qerr := conn.QueryContext(ctx, query)
		if qerr != nil {
			return fmt.Errorf("exporter: querying %s.%s: %w", schema, table, qerr)
		}
		defer rows.Close()

		cols, cerr := rows.Columns()
		if cerr != nil {
			return fmt.Errorf("exporter: reading columns: %w", cerr)
		}
		colTypes, terr := rows.ColumnTypes()
		if terr != nil {
			return fmt.Errorf("exporter: reading column types: %w", terr)
		}

		if format == XLSX {
			n, werr := streamToXLSX(rows, cols, colTypes, path)
			result.RowsExported = n
			return werr
		}

		f, ferr := os.Create(path)
		if ferr != nil {
			return fmt.Errorf("exporter: creating %s: %w", path, ferr)
		}
		defer f.Close()

		w, werr := newWriter(format, f, schema, table)
		if werr != nil {
			return werr
		}
		if err := w.writeHeader(cols); err != nil {
			return fmt.Errorf("exporter: writing header: %w", err)
		}

		n, err := streamRows(rows, cols, colTypes, w)
		if err != nil {
			return err
		}
		result.RowsExported = n
		return w.close()
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExportQueryResult runs operation export_query_result(path, headers,
// rows, format, table_name?): it writes an already-materialized result
// set without touching the database.
func ExportQueryResult(headers []string, rows [][]interface{}, format Format, path, tableName string) (*Result, error) {
	if format == XLSX {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("exporter: creating %s: %w", path, err)
		}
		defer f.Close()
		if err := writeXLSX(f, headers, rows); err != nil {
			return nil, err
		}
		return &Result{RowsExported: int64(len(rows))}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("exporter: creating %s: %w", path, err)
	}
	defer f.Close()

	w, err := newWriter(format, f, "", tableName)
	if err != nil {
		return nil, err
	}
	if err := w.writeHeader(headers); err != nil {
		return nil, fmt.Errorf("exporter: writing header: %w", err)
	}
	for _, row := range rows {
		if err := w.writeRow(row); err != nil {
			return nil, fmt.Errorf("exporter: writing row: %w", err)
		}
	}
	if err := w.close(); err != nil {
		return nil, err
	}
	return &Result{RowsExported: int64(len(rows))}, nil
}

// streamRows drains rows into w one at a time, the "64 KiB buffered
// writer" behavior spec.md §4.9 calls for on export_table.
func streamRows(rows *sql.Rows, cols []string, colTypes []*sql.ColumnType, w rowWriter) (int64, error) {
	var n int64
	for rows.Next() {
		dest := make([]interface{}, len(cols))
		for i := range dest {
			dest[i] = new(interface{})
		}
		if err := rows.Scan(dest...); err != nil {
			return n, fmt.Errorf("exporter: scanning row: %w", err)
		}
		values := make([]interface{}, len(cols))
		for i, d := range dest {
			values[i] = mysqltype.CoerceByType(colTypes[i].DatabaseTypeName(), *(d.(*interface{})))
		}
		if err := w.writeRow(values); err != nil {
			return n, fmt.Errorf("exporter: writing row: %w", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("exporter: iterating rows: %w", err)
	}
	return n, nil
}

// streamToXLSX buffers the cursor's rows in memory before handing them
// to excelize, which builds a workbook all at once rather than
// streaming cell-by-cell.
func streamToXLSX(rows *sql.Rows, cols []string, colTypes []*sql.ColumnType, path string) (int64, error) {
	var collected [][]interface{}
	for rows.Next() {
		dest := make([]interface{}, len(cols))
		for i := range dest {
			dest[i] = new(interface{})
		}
		if err := rows.Scan(dest...); err != nil {
			return 0, fmt.Errorf("exporter: scanning row: %w", err)
		}
		values := make([]interface{}, len(cols))
		for i, d := range dest {
			values[i] = mysqltype.CoerceByType(colTypes[i].DatabaseTypeName(), *(d.(*interface{})))
		}
		collected = append(collected, values)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("exporter: iterating rows: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("exporter: creating %s: %w", path, err)
	}
	defer f.Close()

	if err := writeXLSX(f, cols, collected); err != nil {
		return 0, err
	}
	return int64(len(collected)), nil
}

func escapeIdent(ident string) string {
	return strings.ReplaceAll(ident, "`", "``")
}
