package exporter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAndRead(t *testing.T, format Format, headers []string, rows [][]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out")
	_, err := ExportQueryResult(headers, rows, format, path, "widgets")
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestExportQueryResult_CSV_BOMAndQuoting(t *testing.T) {
	out := writeAndRead(t, CSV, []string{"id", "note"}, [][]interface{}{
		{int64(1), "has,comma"},
		{int64(2), "has\"quote"},
	})
	assert.True(t, len(out) > 3 && out[0] == 0xEF && out[1] == 0xBB && out[2] == 0xBF)
	assert.Contains(t, out, `"has,comma"`)
	assert.Contains(t, out, `"has""quote"`)
}

func TestExportQueryResult_TXT_AlwaysQuoted(t *testing.T) {
	out := writeAndRead(t, TXT, []string{"id", "name"}, [][]interface{}{{int64(1), "alice"}})
	assert.Contains(t, out, "\"id\"\t\"name\"")
	assert.Contains(t, out, "\"1\"\t\"alice\"")
}

func TestExportQueryResult_JSONL(t *testing.T) {
	out := writeAndRead(t, JSONL, []string{"id"}, [][]interface{}{{int64(1)}, {int64(2)}})
	assert.Equal(t, "{\"id\":1}\n{\"id\":2}\n", out)
}

func TestExportQueryResult_JSON_Pretty(t *testing.T) {
	out := writeAndRead(t, JSON, []string{"id"}, [][]interface{}{{int64(1)}})
	assert.Contains(t, out, "[\n")
	assert.Contains(t, out, "\"id\": 1")
	assert.Contains(t, out, "\n]\n")
}

func TestExportQueryResult_HTML_EmptyCellNbsp(t *testing.T) {
	out := writeAndRead(t, HTML, []string{"id", "note"}, [][]interface{}{{int64(1), nil}})
	assert.Contains(t, out, "&nbsp;")
	assert.Contains(t, out, "<td>1</td>")
}

func TestExportQueryResult_XML_SanitizedElementNames(t *testing.T) {
	out := writeAndRead(t, XML, []string{"1bad name"}, [][]interface{}{{"v"}})
	assert.Contains(t, out, "<_bad_name>v</_bad_name>")
}

func TestExportQueryResult_SQL_StringEscaping(t *testing.T) {
	out := writeAndRead(t, SQL, []string{"id", "note"}, [][]interface{}{
		{int64(1), `it's a \backslash`},
		{int64(2), nil},
	})
	assert.Contains(t, out, `VALUES (1, 'it\'s a \\backslash');`)
	assert.Contains(t, out, "VALUES (2, NULL);")
}

func TestSanitizeElementName(t *testing.T) {
	assert.Equal(t, "field", sanitizeElementName(""))
	assert.Equal(t, "_1col", sanitizeElementName("1col"))
	assert.Equal(t, "col_1", sanitizeElementName("col 1"))
	assert.Equal(t, "col-1.x", sanitizeElementName("col-1.x"))
}

func TestNumericOf(t *testing.T) {
	if f, ok := numericOf(int64(5)); !ok || f != 5 {
		t.Fatalf("expected numeric 5, got %v %v", f, ok)
	}
	if _, ok := numericOf("not a number"); ok {
		t.Fatalf("expected non-numeric")
	}
	if f, ok := numericOf("3.5"); !ok || f != 3.5 {
		t.Fatalf("expected numeric 3.5, got %v %v", f, ok)
	}
}
