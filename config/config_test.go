package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
listen:
  api_port: 9091
profiles:
  primary:
    host: db.internal
    port: 3306
    username: app
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9091, cfg.Listen.APIPort)
	assert.Equal(t, "127.0.0.1", cfg.Listen.APIBind)
	assert.Equal(t, 10, cfg.Defaults.MaxPoolSize)
	assert.Equal(t, 2, cfg.Defaults.MinIdle)
	assert.Equal(t, 600000, cfg.Defaults.IdleTimeoutMS)
	assert.Equal(t, 1800000, cfg.Defaults.MaxLifetimeMS)
	assert.Equal(t, 30, cfg.Defaults.KeepaliveIntervalSec)

	p, ok := cfg.Profiles["primary"]
	require.True(t, ok)
	assert.Equal(t, "db.internal", p.Host)
}

func TestLoad_SubstitutesEnvVars(t *testing.T) {
	os.Setenv("DBWORKBENCH_TEST_PASSWORD", "s3cr3t")
	defer os.Unsetenv("DBWORKBENCH_TEST_PASSWORD")

	path := writeTempConfig(t, `
profiles:
  primary:
    host: db.internal
    password: ${DBWORKBENCH_TEST_PASSWORD}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Profiles["primary"].Password)
}

func TestLoad_UnresolvedEnvVarLeftAsIs(t *testing.T) {
	path := writeTempConfig(t, `
profiles:
  primary:
    host: db.internal
    password: ${DBWORKBENCH_UNSET_VAR}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${DBWORKBENCH_UNSET_VAR}", cfg.Profiles["primary"].Password)
}

func TestProfileConfig_ToPoolConfig_OverridesDefaults(t *testing.T) {
	maxSize := 25
	p := ProfileConfig{
		Host:     "db.internal",
		Port:     3306,
		Username: "app",
		Database: "widgets",
		SSLMode:  "required",
		MaxPoolSize: &maxSize,
	}
	defaults := PoolDefaults{MaxPoolSize: 10, MinIdle: 2, KeepaliveIntervalSec: 30}

	cfg, err := p.ToPoolConfig(defaults)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.MaxPoolSize)
	assert.Equal(t, 2, cfg.MinIdle)
	assert.Equal(t, "widgets", cfg.CurrentDatabase)
}

func TestProfileConfig_ToPoolConfig_InvalidSSLMode(t *testing.T) {
	p := ProfileConfig{Host: "db.internal", SSLMode: "bogus"}
	_, err := p.ToPoolConfig(PoolDefaults{})
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeTempConfig(t, "listen:\n  api_port: 9000\n")

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(c *Config) { reloaded <- c })
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("listen:\n  api_port: 9500\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9500, cfg.Listen.APIPort)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
