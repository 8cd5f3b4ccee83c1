package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_PlacesMajorClausesOnOwnLines(t *testing.T) {
	out := Format("SELECT id,name FROM widgets WHERE id = 1 ORDER BY name", MySQL)
	assert.True(t, len(out) > 0 && out[:6] == "SELECT")
	assert.Contains(t, out, "\nFROM")
	assert.Contains(t, out, "\nWHERE")
	assert.Contains(t, out, "\nORDER BY")
}

func TestFormat_CollapsesWhitespace(t *testing.T) {
	out := Format("select   1\n\nfrom\tdual", MySQL)
	assert.NotContains(t, out, "  ")
}

func TestFormat_EmptyInput(t *testing.T) {
	assert.Equal(t, "", Format("   ", MySQL))
}

func TestExtractViewSelect_Basic(t *testing.T) {
	got, err := ExtractViewSelect("CREATE VIEW active_widgets AS SELECT * FROM widgets WHERE active = 1", MySQL)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM widgets WHERE active = 1", got)
}

func TestExtractViewSelect_ParenthesizedBody(t *testing.T) {
	got, err := ExtractViewSelect("CREATE VIEW v AS (SELECT 1);", MySQL)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)
}

func TestExtractViewSelect_NoAS(t *testing.T) {
	_, err := ExtractViewSelect("CREATE TABLE widgets (id INT)", MySQL)
	assert.Error(t, err)
}
