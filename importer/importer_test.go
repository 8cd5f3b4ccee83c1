package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHeaders_CountMismatch(t *testing.T) {
	cols := []targetColumn{{name: "id"}, {name: "name"}}
	err := validateHeaders([]string{"id"}, cols)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Column count mismatch")
}

func TestValidateHeaders_MissingColumn(t *testing.T) {
	cols := []targetColumn{{name: "id"}, {name: "name"}}
	err := validateHeaders([]string{"id", "other"}, cols)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")
}

func TestValidateHeaders_OK(t *testing.T) {
	cols := []targetColumn{{name: "ID"}, {name: "Name"}}
	err := validateHeaders([]string{"id", "name"}, cols)
	assert.NoError(t, err)
}

func TestBuildInsertBatch_PlaceholderShape(t *testing.T) {
	cols := []targetColumn{{name: "id"}, {name: "name"}}
	rowPlaceholder := "(" + strings.Repeat("?,", len(cols)-1) + "?)"
	assert.Equal(t, "(?,?)", rowPlaceholder)
}

func TestEscapeIdent_DoublesBackticks(t *testing.T) {
	assert.Equal(t, "a``b", escapeIdent("a`b"))
}

func TestCoerce_EmptyNullable(t *testing.T) {
	v, err := coerce("varchar", true, "  ", 2, "name")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCoerce_EmptyNotNullable(t *testing.T) {
	v, err := coerce("varchar", false, "", 2, "name")
	require.NoError(t, err)
	assert.Equal(t, []byte{}, v)
}

func TestCoerce_Int(t *testing.T) {
	v, err := coerce("bigint", false, " 42 ", 2, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestCoerce_IntMalformed(t *testing.T) {
	_, err := coerce("int", false, "abc", 5, "id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 5")
	assert.Contains(t, err.Error(), `"id"`)
}

func TestCoerce_Boolean(t *testing.T) {
	v, err := coerce("boolean", false, "TRUE", 2, "active")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = coerce("bool", false, "no", 2, "active")
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestCoerce_Date(t *testing.T) {
	v, err := coerce("date", false, "2024/03/05", 2, "d")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", v)
}

func TestCoerce_DateMalformed(t *testing.T) {
	_, err := coerce("date", false, "not-a-date", 2, "d")
	require.Error(t, err)
}

func TestCoerce_Json(t *testing.T) {
	v, err := coerce("json", false, `{"a":1}`, 2, "payload")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), v)
}

func TestParseFormat(t *testing.T) {
	for raw, want := range map[string]Format{
		"csv": CSV, "TXT": TXT, "json": JSON, "jsonl": JSONL, "xml": XML, "xlsx": XLSX, "xls": XLS,
	} {
		got, err := ParseFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("docx")
	assert.Error(t, err)
}

func TestNewSource_XLSUnsupported(t *testing.T) {
	_, err := newSource(XLS, strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestJSONSource_ArrayOfObjects(t *testing.T) {
	src, err := newJSONSource(strings.NewReader(`[{"A":"1","B":"x"},{"A":"2","B":"y"}]`), false)
	require.NoError(t, err)

	heads, err := src.headers()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, heads)

	row1, ok, err := src.next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", row1["a"])

	_, ok, err = src.next()
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = src.next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONSource_SingleObject(t *testing.T) {
	src, err := newJSONSource(strings.NewReader(`{"A":"1"}`), false)
	require.NoError(t, err)
	row, ok, err := src.next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", row["a"])

	_, ok, err = src.next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONLSource_SkipsBlankLines(t *testing.T) {
	input := "{\"A\":\"1\"}\n\n{\"A\":\"2\"}\n"
	src, err := newJSONSource(strings.NewReader(input), true)
	require.NoError(t, err)

	row1, ok, err := src.next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", row1["a"])

	row2, ok, err := src.next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", row2["a"])

	_, ok, err = src.next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelimitedSource_CSV(t *testing.T) {
	src, err := newDelimitedSource(strings.NewReader("ID,Name\n1,alice\n2,bob\n"), ',', false)
	require.NoError(t, err)
	heads, err := src.headers()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, heads)

	row, ok, err := src.next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", row["id"])
	assert.Equal(t, "alice", row["name"])
}

func TestDelimitedSource_DuplicateHeaderRejected(t *testing.T) {
	_, err := newDelimitedSource(strings.NewReader("ID,id\n1,2\n"), ',', false)
	require.Error(t, err)
}

func TestXMLSource(t *testing.T) {
	xmlDoc := `<RECORDS><RECORD><Id>1</Id><Name>alice</Name></RECORD><RECORD><Id>2</Id><Name>bob</Name></RECORD></RECORDS>`
	src, err := newXMLSource(strings.NewReader(xmlDoc))
	require.NoError(t, err)

	heads, err := src.headers()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, heads)

	row, ok, err := src.next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", row["id"])
	assert.Equal(t, "alice", row["name"])
}

// countingRowSource feeds a copy of drainRows' batching loop without a
// real database/sql.Tx, exercising the exec_batch split boundary directly.
type countingRowSource struct {
	total int
	n     int
}

func (c *countingRowSource) headers() ([]string, error) { return []string{"id"}, nil }

func (c *countingRowSource) next() (map[string]string, bool, error) {
	if c.n >= c.total {
		return nil, false, nil
	}
	c.n++
	return map[string]string{"id": "1"}, true, nil
}

func TestBatchBoundaries_501Rows(t *testing.T) {
	src := &countingRowSource{total: 501}
	var batches []int
	cols := []targetColumn{{name: "id", dataType: "int", nullable: false}}

	rowNum := 1
	batch := make([][]interface{}, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		batches = append(batches, len(batch))
		batch = batch[:0]
	}
	for {
		row, ok, _ := src.next()
		if !ok {
			break
		}
		rowNum++
		args := make([]interface{}, len(cols))
		for i, c := range cols {
			v, err := coerce(c.dataType, c.nullable, row[c.name], rowNum, c.name)
			require.NoError(t, err)
			args[i] = v
		}
		batch = append(batch, args)
		if len(batch) == batchSize {
			flush()
		}
	}
	flush()

	require.Len(t, batches, 2)
	assert.Equal(t, 500, batches[0])
	assert.Equal(t, 1, batches[1])
}
