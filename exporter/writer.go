package exporter

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/dbworkbench/core/internal/mysqltype"
	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// rowWriter is the per-format sink a stream of rows is written to
// (spec.md §4.9's per-format conventions).
type rowWriter interface {
	writeHeader(headers []string) error
	writeRow(values []interface{}) error
	close() error
}

func newWriter(format Format, w io.Writer, schema, table string) (rowWriter, error) {
	bw := bufio.NewWriterSize(w, 64*1024)
	switch format {
	case CSV:
		return newCSVWriter(bw), nil
	case TXT:
		return newTXTWriter(bw), nil
	case JSON:
		return newJSONWriter(bw, false), nil
	case JSONL:
		return newJSONWriter(bw, true), nil
	case HTML:
		return newHTMLWriter(bw), nil
	case XML:
		return newXMLWriter(bw), nil
	case SQL:
		return newSQLWriter(bw, schema, table), nil
	case XLSX:
		return nil, fmt.Errorf("exporter: XLSX must be built via excelize, not a streaming writer")
	default:
		return nil, fmt.Errorf("exporter: unsupported format")
	}
}

// --- CSV ---

type csvWriter struct {
	bw *bufio.Writer
	cw *csv.Writer
}

func newCSVWriter(bw *bufio.Writer) *csvWriter {
	bw.Write(utf8BOM)
	cw := csv.NewWriter(bw)
	cw.UseCRLF = false
	return &csvWriter{bw: bw, cw: cw}
}

func (w *csvWriter) writeHeader(headers []string) error { return w.cw.Write(headers) }

func (w *csvWriter) writeRow(values []interface{}) error {
	rec := make([]string, len(values))
	for i, v := range values {
		rec[i] = mysqltype.String(v)
	}
	return w.cw.Write(rec)
}

func (w *csvWriter) close() error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return err
	}
	return w.bw.Flush()
}

// --- TXT: tab-separated, every field quoted, BOM-prefixed ---

type txtWriter struct {
	bw *bufio.Writer
}

func newTXTWriter(bw *bufio.Writer) *txtWriter {
	bw.Write(utf8BOM)
	return &txtWriter{bw: bw}
}

func (w *txtWriter) writeRecord(fields []string) error {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	_, err := w.bw.WriteString(strings.Join(quoted, "\t") + "\n")
	return err
}

func (w *txtWriter) writeHeader(headers []string) error { return w.writeRecord(headers) }

func (w *txtWriter) writeRow(values []interface{}) error {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = mysqltype.String(v)
	}
	return w.writeRecord(fields)
}

func (w *txtWriter) close() error { return w.bw.Flush() }

// --- JSON / JSONL ---

type jsonWriter struct {
	bw      *bufio.Writer
	lines   bool
	headers []string
	first   bool
}

func newJSONWriter(bw *bufio.Writer, lines bool) *jsonWriter {
	return &jsonWriter{bw: bw, lines: lines, first: true}
}

func (w *jsonWriter) writeHeader(headers []string) error {
	w.headers = headers
	if !w.lines {
		_, err := w.bw.WriteString("[\n")
		return err
	}
	return nil
}

func (w *jsonWriter) writeRow(values []interface{}) error {
	obj := make(map[string]interface{}, len(w.headers))
	for i, h := range w.headers {
		if i < len(values) {
			obj[h] = mysqltype.JSONValue(values[i])
		}
	}

	if w.lines {
		b, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = w.bw.Write(append(b, '\n'))
		return err
	}

	b, err := json.MarshalIndent(obj, "  ", "  ")
	if err != nil {
		return err
	}
	if !w.first {
		if _, err := w.bw.WriteString(",\n"); err != nil {
			return err
		}
	}
	w.first = false
	if _, err := w.bw.WriteString("  "); err != nil {
		return err
	}
	_, err = w.bw.Write(b)
	return err
}

func (w *jsonWriter) close() error {
	if !w.lines {
		if _, err := w.bw.WriteString("\n]\n"); err != nil {
			return err
		}
	}
	return w.bw.Flush()
}

// --- HTML: fixed template, entity-encoded cells, &nbsp; for empty ---

const htmlHeader = "<!DOCTYPE html>\n<html lang=\"zh-CN\">\n<head><meta charset=\"utf-8\"></head>\n<body>\n<table border=\"1\">\n"
const htmlFooter = "</table>\n</body>\n</html>\n"

type htmlWriter struct {
	bw *bufio.Writer
}

func newHTMLWriter(bw *bufio.Writer) *htmlWriter {
	bw.WriteString(htmlHeader)
	return &htmlWriter{bw: bw}
}

func (w *htmlWriter) writeCells(tag string, fields []string) error {
	w.bw.WriteString("<tr>")
	for _, f := range fields {
		cell := html.EscapeString(f)
		if cell == "" {
			cell = "&nbsp;"
		}
		fmt.Fprintf(w.bw, "<%s>%s</%s>", tag, cell, tag)
	}
	_, err := w.bw.WriteString("</tr>\n")
	return err
}

func (w *htmlWriter) writeHeader(headers []string) error { return w.writeCells("th", headers) }

func (w *htmlWriter) writeRow(values []interface{}) error {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = mysqltype.String(v)
	}
	return w.writeCells("td", fields)
}

func (w *htmlWriter) close() error {
	w.bw.WriteString(htmlFooter)
	return w.bw.Flush()
}

// --- XML ---

type xmlWriter struct {
	bw      *bufio.Writer
	headers []string
}

func newXMLWriter(bw *bufio.Writer) *xmlWriter {
	bw.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<RECORDS>\n")
	return &xmlWriter{bw: bw}
}

func (w *xmlWriter) writeHeader(headers []string) error {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = sanitizeElementName(h)
	}
	w.headers = out
	return nil
}

func (w *xmlWriter) writeRow(values []interface{}) error {
	w.bw.WriteString("  <RECORD>")
	for i, v := range values {
		name := "field"
		if i < len(w.headers) {
			name = w.headers[i]
		}
		var buf strings.Builder
		xml.EscapeText(&xmlEscapeWriter{&buf}, []byte(mysqltype.String(v)))
		fmt.Fprintf(w.bw, "<%s>%s</%s>", name, buf.String(), name)
	}
	_, err := w.bw.WriteString("</RECORD>\n")
	return err
}

func (w *xmlWriter) close() error {
	w.bw.WriteString("</RECORDS>\n")
	return w.bw.Flush()
}

type xmlEscapeWriter struct{ b *strings.Builder }

func (x *xmlEscapeWriter) Write(p []byte) (int, error) { return x.b.Write(p) }

// sanitizeElementName applies spec.md §4.9's XML element-name rule:
// leading char must be an ASCII letter or underscore; remaining chars
// ASCII alnum/underscore/hyphen/dot; anything else becomes "_"; an
// empty result becomes "field".
func sanitizeElementName(name string) string {
	if name == "" {
		return "field"
	}
	var b strings.Builder
	for i, r := range name {
		if i == 0 {
			if isASCIILetter(r) || r == '_' {
				b.WriteRune(r)
			} else {
				b.WriteByte('_')
			}
			continue
		}
		if isASCIILetter(r) || isASCIIDigit(r) || r == '_' || r == '-' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "field"
	}
	return out
}

func isASCIILetter(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isASCIIDigit(r rune) bool  { return r >= '0' && r <= '9' }

// --- SQL ---

type sqlWriter struct {
	bw            *bufio.Writer
	schema, table string
	headers       []string
}

func newSQLWriter(bw *bufio.Writer, schema, table string) *sqlWriter {
	return &sqlWriter{bw: bw, schema: schema, table: table}
}

func (w *sqlWriter) writeHeader(headers []string) error {
	w.headers = headers
	return nil
}

func (w *sqlWriter) writeRow(values []interface{}) error {
	names := make([]string, len(w.headers))
	for i, h := range w.headers {
		names[i] = "`" + strings.ReplaceAll(h, "`", "``") + "`"
	}
	vals := make([]string, len(values))
	for i, v := range values {
		vals[i] = sqlLiteral(v)
	}
	_, err := fmt.Fprintf(w.bw, "INSERT INTO `%s`.`%s` (%s) VALUES (%s);\n",
		strings.ReplaceAll(w.schema, "`", "``"), strings.ReplaceAll(w.table, "`", "``"),
		strings.Join(names, ", "), strings.Join(vals, ", "))
	return err
}

func (w *sqlWriter) close() error { return w.bw.Flush() }

func sqlLiteral(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	switch v.(type) {
	case int64, uint64, int, float32, float64, bool:
		return mysqltype.String(v)
	default:
		s := mysqltype.String(v)
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `'`, `\'`)
		return "'" + s + "'"
	}
}

// --- XLSX ---

// writeXLSX builds a full workbook: it cannot stream incrementally
// through excelize the way the other formats stream through a
// bufio.Writer, so export_table buffers the result in memory before
// handing rows here.
func writeXLSX(w io.Writer, headers []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	boldCenter, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("exporter: building header style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldCenter)
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, float64(len(h)+5))
	}

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if f64, ok := numericOf(v); ok {
				f.SetCellValue(sheet, cell, f64)
			} else {
				f.SetCellValue(sheet, cell, mysqltype.String(v))
			}
		}
	}

	return f.Write(w)
}

// numericOf reports whether v coerces to a float64 per spec.md §4.9's
// "numeric cells coerced via parse as f64, else string" rule.
func numericOf(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case int:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case nil:
		return 0, false
	default:
		f, err := strconv.ParseFloat(mysqltype.String(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}
