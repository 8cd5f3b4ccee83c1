// Package importer implements the Import Engine (spec.md §4.8): reading
// rows out of CSV/TXT/JSON/JSONL/XML/XLSX files and batch-inserting them
// into a target table whose schema is discovered from
// information_schema.columns.
package importer

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/dbworkbench/core/pool"
)

// batchSize is the row count at which a pending INSERT batch is
// flushed (spec.md §4.8, step 5).
const batchSize = 500

// targetColumn is one column of the table being imported into, as
// read from information_schema.columns.
type targetColumn struct {
	name     string
	dataType string
	nullable bool
}

// Result summarizes a completed import.
type Result struct {
	RowsInserted int64 `json:"rows_inserted"`
}

// Import runs operation import(profile, schema, table, path, format)
// (spec.md §4.8). It acquires its own pooled handle, holds it for the
// whole transaction, and releases it before returning.
func Import(ctx context.Context, manager *pool.Manager, cfg pool.Config, schema, table, path string, format Format) (*Result, error) {
	p, err := manager.GetOrCreate(cfg)
	if err != nil {
		return nil, err
	}

	h, _, err := p.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(h)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("importer: opening %s: %w", path, err)
	}
	defer f.Close()

	src, err := newSource(format, f)
	if err != nil {
		return nil, err
	}

	var result Result
	err = p.WithHandle(ctx, h, func(conn *sql.Conn) error {
		cols, err := loadTargetSchema(ctx, conn, schema, table)
		if err != nil {
			return err
		}

		headers, err := src.headers()
		if err != nil {
			return err
		}
		if err := validateHeaders(headers, cols); err != nil {
			return err
		}

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("importer: beginning transaction: %w", err)
		}

		n, err := drainRows(ctx, tx, schema, table, cols, src)
		if err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("importer: committing: %w", err)
		}
		result.RowsInserted = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// loadTargetSchema runs spec.md §4.8 step 2.
func loadTargetSchema(ctx context.Context, conn *sql.Conn, schema, table string) ([]targetColumn, error) {
	const q = `SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`
	rows, err := conn.QueryContext(ctx, q, schema, table)
	if err != nil {
		return nil, fmt.Errorf("importer: loading target schema: %w", err)
	}
	defer rows.Close()

	var cols []targetColumn
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("importer: loading target schema: %w", err)
		}
		cols = append(cols, targetColumn{
			name:     name,
			dataType: dataType,
			nullable: strings.EqualFold(isNullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("importer: loading target schema: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("No table columns found")
	}
	return cols, nil
}

// validateHeaders enforces spec.md §4.8 step 3's header-mapping rules.
// Source headers are already trim().lower()-normalized and
// duplicate-checked by the rowSource implementation; here we check
// count and existence against the target schema.
func validateHeaders(headers []string, cols []targetColumn) error {
	if len(headers) != len(cols) {
		return fmt.Errorf("Column count mismatch")
	}
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, c := range cols {
		n := strings.ToLower(strings.TrimSpace(c.name))
		if !present[n] {
			return fmt.Errorf("missing column %q", c.name)
		}
	}
	return nil
}

func escapeIdent(ident string) string {
	return strings.ReplaceAll(ident, "`", "``")
}

// drainRows streams rows out of src, coercing each field, and flushes
// every batchSize rows as a single exec_batch call (spec.md §4.8 step
// 5 — 501 rows becomes exactly two exec_batch calls: 500 + 1).
func drainRows(ctx context.Context, tx *sql.Tx, schema, table string, cols []targetColumn, src rowSource) (int64, error) {
	var total int64
	rowNum := 1 // header occupies row 1; first data row is row 2
	batch := make([][]interface{}, 0, batchSize)

	for {
		row, ok, err := src.next()
		if err != nil {
			return total, err
		}
		if !ok {
			break
		}
		rowNum++

		args := make([]interface{}, len(cols))
		for i, c := range cols {
			n := strings.ToLower(strings.TrimSpace(c.name))
			raw, present := row[n]
			if !present {
				raw = ""
			}
			v, cerr := coerce(c.dataType, c.nullable, raw, rowNum, c.name)
			if cerr != nil {
				return total, cerr
			}
			args[i] = v
		}
		batch = append(batch, args)

		if len(batch) == batchSize {
			if err := execBatch(ctx, tx, schema, table, cols, batch); err != nil {
				return total, err
			}
			total += int64(len(batch))
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := execBatch(ctx, tx, schema, table, cols, batch); err != nil {
			return total, err
		}
		total += int64(len(batch))
	}
	return total, nil
}

// execBatch runs one exec_batch: a single multi-row INSERT covering
// every row in batch.
func execBatch(ctx context.Context, tx *sql.Tx, schema, table string, cols []targetColumn, batch [][]interface{}) error {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = "`" + escapeIdent(c.name) + "`"
	}
	rowPlaceholder := "(" + strings.Repeat("?,", len(cols)-1) + "?)"
	valueGroups := make([]string, len(batch))
	args := make([]interface{}, 0, len(batch)*len(cols))
	for i, row := range batch {
		valueGroups[i] = rowPlaceholder
		args = append(args, row...)
	}

	stmt := fmt.Sprintf("INSERT INTO `%s`.`%s` (%s) VALUES %s",
		escapeIdent(schema), escapeIdent(table), strings.Join(names, ", "), strings.Join(valueGroups, ","))

	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("importer: exec_batch of %d rows: %w", len(batch), err)
	}
	return nil
}
