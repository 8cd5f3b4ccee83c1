package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandPolicy_AllowsDMLAndDQLByDefault(t *testing.T) {
	p := DefaultCommandPolicy()
	assert.NoError(t, p.Check("SELECT * FROM widgets"))
	assert.NoError(t, p.Check("insert into widgets (id) values (1)"))
	assert.NoError(t, p.Check("UPDATE widgets SET name = 'x'"))
}

func TestCommandPolicy_BlocksDDLByDefault(t *testing.T) {
	p := DefaultCommandPolicy()
	err := p.Check("CREATE TABLE widgets (id INT)")
	assert.Error(t, err)
}

func TestCommandPolicy_SetAllowDDL(t *testing.T) {
	p := DefaultCommandPolicy()
	p.SetAllowDDL(true)
	assert.NoError(t, p.Check("ALTER TABLE widgets ADD COLUMN x INT"))
}

func TestCommandPolicy_BlockedCommandsAlwaysRejected(t *testing.T) {
	p := DefaultCommandPolicy()
	p.SetAllowDDL(true)
	assert.Error(t, p.Check("TRUNCATE widgets"))
	assert.Error(t, p.Check("GRANT ALL ON widgets TO bob"))
}

func TestCommandPolicy_EmptyStatement(t *testing.T) {
	p := DefaultCommandPolicy()
	assert.NoError(t, p.Check("   "))
}

func TestLeadingCommand_IsCaseInsensitive(t *testing.T) {
	assert.Equal(t, "SELECT", leadingCommand("  select 1"))
	assert.Equal(t, "DELETE", leadingCommand("DELETE FROM widgets"))
}
