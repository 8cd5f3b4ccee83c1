package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_MySQLDelimiterWithNestedBeginEnd(t *testing.T) {
	script := "DELIMITER $$\n" +
		"CREATE PROCEDURE p() BEGIN SELECT 1; SELECT 2; END$$\n" +
		"DELIMITER ;\n" +
		"SELECT 3;\n"

	got := Split(script, MySQL)
	require.Len(t, got, 2)
	assert.Equal(t, "CREATE PROCEDURE p() BEGIN SELECT 1; SELECT 2; END", got[0])
	assert.Equal(t, "SELECT 3", got[1])
}

func TestSplit_SQLServerGOTerminator(t *testing.T) {
	script := "SELECT 1\nGO\nSELECT 2\nGO\n"
	got := Split(script, SQLServer)
	require.Len(t, got, 2)
	assert.Equal(t, "SELECT 1", got[0])
	assert.Equal(t, "SELECT 2", got[1])
}

func TestSplit_GOInsideStringLiteralDoesNotSplit(t *testing.T) {
	script := "SELECT 'GO';\n"
	got := Split(script, SQLServer)
	require.Len(t, got, 1)
	assert.Equal(t, "SELECT 'GO'", got[0])
}

func TestSplit_OracleSlashTerminator(t *testing.T) {
	script := "BEGIN\n  NULL;\nEND;\n/\nSELECT 1 FROM dual;\n"
	got := Split(script, Oracle)
	require.Len(t, got, 2)
	assert.Equal(t, "BEGIN\n  NULL;\nEND", got[0])
	assert.Equal(t, "SELECT 1 FROM dual", got[1])
}

func TestSplit_DefaultSemicolonDelimiter(t *testing.T) {
	got := Split("SELECT 1; SELECT 2;", Postgres)
	require.Len(t, got, 2)
	assert.Equal(t, "SELECT 1", got[0])
	assert.Equal(t, "SELECT 2", got[1])
}

func TestSplit_SingleQuoteEscaping(t *testing.T) {
	got := Split(`SELECT 'it''s a test', 'back\'slash';`, MySQL)
	require.Len(t, got, 1)
	assert.Equal(t, `SELECT 'it''s a test', 'back\'slash'`, got[0])
}

func TestSplit_BlockCommentRetainedInStatement(t *testing.T) {
	got := Split("SELECT /* comment with ; inside */ 1;", MySQL)
	require.Len(t, got, 1)
	assert.Equal(t, "SELECT /* comment with ; inside */ 1", got[0])
}

func TestSplit_MySQLHashLineComment(t *testing.T) {
	got := Split("SELECT 1; # trailing comment\nSELECT 2;", MySQL)
	require.Len(t, got, 2)
}

func TestSplit_HashNotACommentOutsideMySQL(t *testing.T) {
	got := Split("SELECT 1; # not a comment\nSELECT 2;", Postgres)
	require.Len(t, got, 2)
}

func TestSplit_TrailingTextWithoutFinalDelimiterIsEmitted(t *testing.T) {
	got := Split("SELECT 1;\nSELECT 2", MySQL)
	require.Len(t, got, 2)
	assert.Equal(t, "SELECT 2", got[1])
}

func TestSplit_StrayDelimiterWordNotEmittedAsStatement(t *testing.T) {
	got := Split("SELECT 1;\ndelimiter", MySQL)
	require.Len(t, got, 1)
}

func TestParseDialect(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want Dialect
	}{
		{"mysql", MySQL},
		{"MySQL", MySQL},
		{"postgresql", Postgres},
		{"sqlite", SQLite},
		{"sql_server", SQLServer},
		{"SQLSERVER", SQLServer},
		{"oracle", Oracle},
	} {
		got, err := ParseDialect(tc.raw)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := ParseDialect("nonsense")
	assert.Error(t, err)
}
