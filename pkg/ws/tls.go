package ws

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
)

// TLSConfig holds the material for wss endpoints. Everything is optional:
// without RootCAs the system pool is used, without a certificate no client
// certificate is presented.
type TLSConfig struct {
	CertificatePEM []byte
	PrivateKeyPEM  []byte
	RootCAs        *x509.CertPool
	ServerName     string
}

// Build returns a *tls.Config with TLS 1.2 as the minimum version. The
// certificate and key must be set together or not at all.
func (c *TLSConfig) Build() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    c.RootCAs,
		ServerName: c.ServerName,
	}

	switch {
	case len(c.CertificatePEM) > 0 && len(c.PrivateKeyPEM) > 0:
		cert, err := tls.X509KeyPair(c.CertificatePEM, c.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		cfg.Certificates = []tls.Certificate{cert}

	case len(c.CertificatePEM) > 0 || len(c.PrivateKeyPEM) > 0:
		return nil, errors.New("client certificate and key must be set together")
	}

	return cfg, nil
}

// TLSConfigFromEnv loads TLS material from the environment:
// TDB_TLS_CA - CA certificate in base64
// TDB_TLS_CERT - client certificate in base64
// TDB_TLS_KEY - client private key in base64
// It returns nil when none of them is set.
func TLSConfigFromEnv() (*TLSConfig, error) {
	caB64 := os.Getenv("TDB_TLS_CA")
	certB64 := os.Getenv("TDB_TLS_CERT")
	keyB64 := os.Getenv("TDB_TLS_KEY")

	if caB64 == "" && certB64 == "" && keyB64 == "" {
		return nil, nil
	}

	cfg := &TLSConfig{}

	if certB64 != "" || keyB64 != "" {
		if certB64 == "" || keyB64 == "" {
			return nil, errors.New("TDB_TLS_CERT and TDB_TLS_KEY must be set together")
		}

		certPEM, err := base64.StdEncoding.DecodeString(certB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TDB_TLS_CERT: %w", err)
		}

		keyPEM, err := base64.StdEncoding.DecodeString(keyB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TDB_TLS_KEY: %w", err)
		}

		cfg.CertificatePEM = certPEM
		cfg.PrivateKeyPEM = keyPEM
	}

	if caB64 != "" {
		caPEM, err := base64.StdEncoding.DecodeString(caB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TDB_TLS_CA: %w", err)
		}

		rootCAs := x509.NewCertPool()
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}

		cfg.RootCAs = rootCAs
	}

	return cfg, nil
}
