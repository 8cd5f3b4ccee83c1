// Package config loads the process-wide YAML configuration (listen
// address, pool defaults, named connection profiles) and watches it
// for hot-reload, grounded on JeelKantaria-db-bouncer's
// internal/config/config.go.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/dbworkbench/core/pool"
)

// Config is the top-level process configuration.
type Config struct {
	Listen   ListenConfig              `yaml:"listen"`
	Defaults PoolDefaults              `yaml:"defaults"`
	Profiles map[string]ProfileConfig  `yaml:"profiles"`
}

// ListenConfig is the HTTP command-surface listener (spec.md §6).
type ListenConfig struct {
	APIPort int    `yaml:"api_port"`
	APIBind string `yaml:"api_bind"`
}

// PoolDefaults mirrors spec.md §3's PoolConfig defaults, applied to any
// profile that does not override them.
type PoolDefaults struct {
	MaxPoolSize          int           `yaml:"max_pool_size"`
	MinIdle              int           `yaml:"min_idle"`
	IdleTimeoutMS        int           `yaml:"idle_timeout_ms"`
	MaxLifetimeMS        int           `yaml:"max_lifetime_ms"`
	ConnectionTimeoutMS  int           `yaml:"connection_timeout_ms"`
	CreateTimeoutMS      int           `yaml:"create_timeout_ms"`
	RecycleTimeoutMS     int           `yaml:"recycle_timeout_ms"`
	KeepaliveIntervalSec int           `yaml:"keepalive_interval_seconds"`
	_                    time.Duration // placeholder kept out of yaml surface
}

// ProfileConfig is one named ConnectionProfile (spec.md §3), with
// pool-tuning overrides layered on top of PoolDefaults.
type ProfileConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`

	AutoReconnect bool   `yaml:"auto_reconnect"`
	SSLMode       string `yaml:"ssl_mode"`
	SSLCAPath     string `yaml:"ssl_ca_path"`
	SSLCertPath   string `yaml:"ssl_cert_path"`
	SSLKeyPath    string `yaml:"ssl_key_path"`

	MaxPoolSize *int `yaml:"max_pool_size,omitempty"`
	MinIdle     *int `yaml:"min_idle,omitempty"`
}

// ToPoolConfig resolves a profile's effective pool.Config, applying
// PoolDefaults where the profile leaves a field unset.
func (p ProfileConfig) ToPoolConfig(defaults PoolDefaults) (pool.Config, error) {
	mode, err := pool.ParseSSLMode(p.SSLMode)
	if err != nil {
		return pool.Config{}, fmt.Errorf("config: %w", err)
	}

	cfg := pool.Config{
		ConnectionProfile: pool.ConnectionProfile{
			Host:            p.Host,
			Port:            p.Port,
			Username:        p.Username,
			Password:        p.Password,
			CurrentDatabase: p.Database,
			Charset:         p.Charset,
			AutoReconnect:   p.AutoReconnect,
			SSLMode:         mode,
			SSLPaths: pool.SSLPaths{
				CAPath:   p.SSLCAPath,
				CertPath: p.SSLCertPath,
				KeyPath:  p.SSLKeyPath,
			},
		},
		MaxPoolSize:          effectiveInt(p.MaxPoolSize, defaults.MaxPoolSize),
		MinIdle:              effectiveInt(p.MinIdle, defaults.MinIdle),
		IdleTimeoutMS:        defaults.IdleTimeoutMS,
		MaxLifetimeMS:        defaults.MaxLifetimeMS,
		ConnectionTimeoutMS:  defaults.ConnectionTimeoutMS,
		CreateTimeoutMS:      defaults.CreateTimeoutMS,
		RecycleTimeoutMS:     defaults.RecycleTimeoutMS,
		KeepaliveIntervalSec: defaults.KeepaliveIntervalSec,
	}
	return cfg, nil
}

func effectiveInt(override *int, fallback int) int {
	if override != nil {
		return *override
	}
	return fallback
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment
// variable values, leaving unresolved references untouched.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file with env var substitution
// and applies spec.md §3's documented defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.APIPort == 0 {
		cfg.Listen.APIPort = 8080
	}
	if cfg.Listen.APIBind == "" {
		cfg.Listen.APIBind = "127.0.0.1"
	}
	if cfg.Defaults.MaxPoolSize == 0 {
		cfg.Defaults.MaxPoolSize = 10
	}
	if cfg.Defaults.MinIdle == 0 {
		cfg.Defaults.MinIdle = 2
	}
	if cfg.Defaults.IdleTimeoutMS == 0 {
		cfg.Defaults.IdleTimeoutMS = 600000
	}
	if cfg.Defaults.MaxLifetimeMS == 0 {
		cfg.Defaults.MaxLifetimeMS = 1800000
	}
	if cfg.Defaults.KeepaliveIntervalSec == 0 {
		cfg.Defaults.KeepaliveIntervalSec = 30
	}
}

// Watcher watches the config file for changes and invokes callback
// with the freshly reloaded Config, debounced against editor
// save-as-multiple-events churn.
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher starts watching path for writes/creates.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating file watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	cw := &Watcher{path: path, callback: callback, watcher: w, stopCh: make(chan struct{})}
	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, cw.reload)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "err", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		slog.Warn("config hot-reload failed", "path", cw.path, "err", err)
		return
	}
	slog.Info("config reloaded", "path", cw.path)
	cw.callback(cfg)
}

// Stop stops the watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
