package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrNoCertsFound means a CA file or directory held no certificate.
	ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM data")

	// ErrIncompleteKeyPair means only one of cert_file and key_file is set.
	ErrIncompleteKeyPair = errors.New("tlsroots: client certificate and key must be set together")
)

// caExtensions are the files picked up from a CA directory.
var caExtensions = []string{".pem", ".crt", ".cer"}

// Config describes the transport's TLS settings.
type Config struct {
	CAFile             string
	CADir              string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

// IsZero reports whether no TLS setting is present.
func (c Config) IsZero() bool {
	return c == Config{}
}

// Build returns the client TLS configuration for cfg, or nil when cfg is
// empty and the transport defaults apply. When a client certificate is
// configured the returned KeyPair serves it; the caller owns Watch and Close.
func Build(cfg Config, logger *slog.Logger) (*tls.Config, *KeyPair, error) {
	if cfg.IsZero() {
		return nil, nil, nil
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, nil, ErrIncompleteKeyPair
	}
	if logger == nil {
		logger = slog.Default()
	}

	roots, err := Roots(cfg.CAFile, cfg.CADir, logger)
	if err != nil {
		return nil, nil, err
	}
	tc := &tls.Config{
		RootCAs:            roots,
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in for lab servers
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.CertFile == "" {
		return tc, nil, nil
	}

	kp, err := LoadKeyPair(cfg.CertFile, cfg.KeyFile, logger)
	if err != nil {
		return nil, nil, err
	}
	tc.GetClientCertificate = kp.GetClientCertificate
	return tc, kp, nil
}

// Roots returns the system roots extended with the certificates of caFile
// and of every CA file in caDir. Unparsable files in caDir are skipped.
func Roots(caFile, caDir string, logger *slog.Logger) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}

	if caFile != "" {
		if err := appendFile(pool, caFile); err != nil {
			return nil, err
		}
	}
	if caDir == "" {
		return pool, nil
	}

	entries, err := os.ReadDir(caDir)
	if err != nil {
		return nil, fmt.Errorf("tlsroots: read dir %s: %w", caDir, err)
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(caExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		path := filepath.Join(caDir, e.Name())
		if err := appendFile(pool, path); err != nil {
			logger.Warn("skipping CA file", "path", path, "error", err)
			continue
		}
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("tlsroots: %s: %w", caDir, ErrNoCertsFound)
	}
	return pool, nil
}

func appendFile(pool *x509.CertPool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read CA file: %w", err)
	}
	certs, err := parsePEM(data)
	if err != nil {
		return fmt.Errorf("tlsroots: %s: %w", path, err)
	}
	for _, c := range certs {
		pool.AddCert(c)
	}
	return nil
}

// parsePEM returns the CERTIFICATE blocks of data; other block types are
// ignored.
func parsePEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		if block, data = pem.Decode(data); block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, ErrNoCertsFound
	}
	return certs, nil
}
