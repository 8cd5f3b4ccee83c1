package pool

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
)

// SSLMode is the symbolic TLS policy for a connection profile.
type SSLMode int

const (
	SSLDisabled SSLMode = iota
	SSLPreferred
	SSLRequired
	SSLVerifyCA
	SSLVerifyIdentity
)

// ParseSSLMode normalizes a user-supplied mode string: case-insensitive,
// with '_' and '-' treated as equivalent.
func ParseSSLMode(raw string) (SSLMode, error) {
	norm := strings.ToUpper(strings.NewReplacer("-", "_").Replace(strings.TrimSpace(raw)))
	switch norm {
	case "DISABLED", "":
		return SSLDisabled, nil
	case "PREFERRED":
		return SSLPreferred, nil
	case "REQUIRED":
		return SSLRequired, nil
	case "VERIFY_CA", "VERIFYCA":
		return SSLVerifyCA, nil
	case "VERIFY_IDENTITY", "VERIFYIDENTITY":
		return SSLVerifyIdentity, nil
	default:
		return SSLDisabled, fmt.Errorf("unknown ssl mode %q", raw)
	}
}

// String renders the upper-snake-case token used in SET SESSION ssl_mode.
func (m SSLMode) String() string {
	switch m {
	case SSLDisabled:
		return "DISABLED"
	case SSLPreferred:
		return "PREFERRED"
	case SSLRequired:
		return "REQUIRED"
	case SSLVerifyCA:
		return "VERIFY_CA"
	case SSLVerifyIdentity:
		return "VERIFY_IDENTITY"
	default:
		return "DISABLED"
	}
}

// SSLPaths holds the optional PEM file paths for a connection profile.
// Empty-after-trim fields are treated as absent.
type SSLPaths struct {
	CAPath   string
	CertPath string
	KeyPath  string
}

func (p SSLPaths) trimmed() SSLPaths {
	return SSLPaths{
		CAPath:   strings.TrimSpace(p.CAPath),
		CertPath: strings.TrimSpace(p.CertPath),
		KeyPath:  strings.TrimSpace(p.KeyPath),
	}
}

// tlsRegistry hands out unique registered TLS config names to
// mysql.RegisterTLSConfig, which is a process-wide registry keyed by
// string name.
var tlsRegistry struct {
	mu  sync.Mutex
	seq int
}

// ResolveSSL translates a symbolic mode plus optional PEM paths into the
// go-sql-driver/mysql `tls=<value>` DSN parameter, registering a custom
// TLS config with the driver when one is required. It also returns the
// extra session statement mandated by spec.md §4.1 (appended to the
// session-init list by the caller), except for SSLDisabled.
func ResolveSSL(mode SSLMode, paths SSLPaths) (dsnTLSParam string, sessionStmt string, err error) {
	paths = paths.trimmed()

	if (paths.CertPath == "") != (paths.KeyPath == "") {
		return "", "", fmt.Errorf("ssl: client cert and client key must both be present or both absent")
	}

	switch mode {
	case SSLDisabled:
		return "false", "", nil

	case SSLPreferred:
		cfg := &tls.Config{InsecureSkipVerify: true} //nolint:gosec // spec: accept invalid certs in Preferred mode
		if err := loadClientCert(cfg, paths); err != nil {
			return "", "", err
		}
		name := registerTLS(cfg)
		return name, sessionMirror(mode), nil

	case SSLRequired:
		cfg := &tls.Config{InsecureSkipVerify: true} //nolint:gosec // spec: skip verification when no CA supplied
		if paths.CAPath != "" {
			pool, err := loadCA(paths.CAPath)
			if err != nil {
				return "", "", err
			}
			cfg = &tls.Config{RootCAs: pool, InsecureSkipVerify: true} //nolint:gosec // verify CA but skip hostname
		}
		if err := loadClientCert(cfg, paths); err != nil {
			return "", "", err
		}
		name := registerTLS(cfg)
		return name, sessionMirror(mode), nil

	case SSLVerifyCA:
		if paths.CAPath == "" {
			return "", "", fmt.Errorf("ssl: verify-ca requires a CA path")
		}
		pool, err := loadCA(paths.CAPath)
		if err != nil {
			return "", "", err
		}
		cfg := &tls.Config{RootCAs: pool, InsecureSkipVerify: true} //nolint:gosec // CA verified below, hostname skipped
		cfg.VerifyPeerCertificate = verifyCAOnly(pool)
		if err := loadClientCert(cfg, paths); err != nil {
			return "", "", err
		}
		name := registerTLS(cfg)
		return name, sessionMirror(mode), nil

	case SSLVerifyIdentity:
		if paths.CAPath == "" {
			return "", "", fmt.Errorf("ssl: verify-identity requires a CA path")
		}
		pool, err := loadCA(paths.CAPath)
		if err != nil {
			return "", "", err
		}
		cfg := &tls.Config{RootCAs: pool}
		if err := loadClientCert(cfg, paths); err != nil {
			return "", "", err
		}
		name := registerTLS(cfg)
		return name, sessionMirror(mode), nil

	default:
		return "", "", fmt.Errorf("ssl: unsupported mode %v", mode)
	}
}

// sessionMirror builds the `SET SESSION ssl_mode = '...'` statement for
// any non-Disabled mode. Its failure is ignored by the session
// initializer (older servers reject it) — see pool/sessioninit.go.
func sessionMirror(mode SSLMode) string {
	return fmt.Sprintf("SET SESSION ssl_mode = '%s'", mode.String())
}

func loadCA(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ssl: reading CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ssl: no valid certificates found in %s", path)
	}
	return pool, nil
}

func loadClientCert(cfg *tls.Config, paths SSLPaths) error {
	if paths.CertPath == "" {
		return nil
	}
	cert, err := tls.LoadX509KeyPair(paths.CertPath, paths.KeyPath)
	if err != nil {
		return fmt.Errorf("ssl: loading client certificate: %w", err)
	}
	cfg.Certificates = []tls.Certificate{cert}
	return nil
}

// verifyCAOnly builds a VerifyPeerCertificate callback that checks the
// presented chain against pool without validating the hostname, used
// for VerifyCa mode (tls.Config.InsecureSkipVerify disables the
// default verification, this callback restores CA-only verification).
func verifyCAOnly(pool *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("ssl: no certificate presented by server")
		}
		cert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("ssl: parsing server certificate: %w", err)
		}
		opts := x509.VerifyOptions{Roots: pool}
		_, err = cert.Verify(opts)
		return err
	}
}

func registerTLS(cfg *tls.Config) string {
	tlsRegistry.mu.Lock()
	tlsRegistry.seq++
	name := fmt.Sprintf("dbworkbench-%d", tlsRegistry.seq)
	tlsRegistry.mu.Unlock()
	_ = mysql.RegisterTLSConfig(name, cfg)
	return name
}
