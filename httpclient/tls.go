package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig customizes how the client trusts the identity provider.
// The zero value uses the system roots.
type TLSConfig struct {
	// CAFile is a PEM bundle of additional roots, for providers behind a private CA.
	CAFile string `yaml:"ca_file" mapstructure:"ca_file" env:"CA_FILE"`

	// CertFile and KeyFile present a client certificate (mTLS). Both or neither.
	CertFile string `yaml:"cert_file" mapstructure:"cert_file" env:"CERT_FILE"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file" env:"KEY_FILE"`

	// ServerName overrides the name verified against the provider certificate.
	ServerName string `yaml:"server_name" mapstructure:"server_name" env:"SERVER_NAME"`

	// SkipVerify disables certificate verification. Local development only.
	SkipVerify bool `yaml:"skip_verify" mapstructure:"skip_verify" env:"SKIP_VERIFY"`

	// MinVersion defaults to TLS 1.2.
	MinVersion uint16 `yaml:"min_version" mapstructure:"min_version"`
}

// customized reports whether any setting departs from the defaults.
func (c *TLSConfig) customized() bool {
	if c == nil {
		return false
	}
	return c.SkipVerify || c.CAFile != "" || c.CertFile != "" || c.ServerName != ""
}

// Validate checks that the certificate pair is complete.
func (c *TLSConfig) Validate() error {
	if c == nil {
		return nil
	}
	if (c.CertFile != "") != (c.KeyFile != "") {
		return fmt.Errorf("httpclient: tls cert_file and key_file must be set together")
	}
	return nil
}

// Build returns the *tls.Config for the transport, or nil when nothing is customized.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if !c.customized() {
		return nil, nil
	}
	out := &tls.Config{
		InsecureSkipVerify: c.SkipVerify, //nolint:gosec // opt-in for local providers
		ServerName:         c.ServerName,
		MinVersion:         c.MinVersion,
	}
	if out.MinVersion == 0 {
		out.MinVersion = tls.VersionTLS12
	}

	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("httpclient: read tls ca_file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("httpclient: no certificates found in %s", c.CAFile)
		}
		out.RootCAs = pool
	}

	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("httpclient: load tls client certificate: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}
	return out, nil
}
