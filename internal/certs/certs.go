// Package certs loads the TLS material used to reach the mapping service:
// a private certificate authority and an optional client certificate.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrIncompleteKeyPair indicates that only one of certificate and key was configured.
	ErrIncompleteKeyPair = errors.New("client certificate and key must be configured together")
	// ErrNoCertificates indicates a PEM file without any usable certificate.
	ErrNoCertificates = errors.New("no certificates found")
	// ErrCertificateExpired indicates a certificate past its NotAfter date.
	ErrCertificateExpired = errors.New("certificate has expired")
	// ErrCertificateNotYetValid indicates a certificate before its NotBefore date.
	ErrCertificateNotYetValid = errors.New("certificate not yet valid")
)

// Options names the PEM files of a TLS setup. Empty fields are unused.
type Options struct {
	CAFile   string
	CertFile string
	KeyFile  string
}

// Enabled reports whether any TLS material is configured.
func (o Options) Enabled() bool {
	return o.CAFile != "" || o.CertFile != "" || o.KeyFile != ""
}

// TLSConfig builds a client TLS configuration from opts. It returns nil
// when nothing is configured, leaving the system defaults in place.
func TLSConfig(opts Options) (*tls.Config, error) {
	if !opts.Enabled() {
		return nil, nil
	}
	if (opts.CertFile == "") != (opts.KeyFile == "") {
		return nil, ErrIncompleteKeyPair
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if opts.CAFile != "" {
		pool, err := loadCertPool(opts.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	if opts.CertFile != "" {
		cert, err := loadClientCertificate(opts.CertFile, opts.KeyFile, time.Now())
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// loadCertPool adds the certificates in caFile to the system pool.
func loadCertPool(caFile string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}

	data, err := os.ReadFile(caFile) //nolint:gosec // operator-configured path
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w in %s", ErrNoCertificates, caFile)
	}
	return pool, nil
}

// loadClientCertificate loads a key pair and checks that it is usable at now.
func loadClientCertificate(certFile, keyFile string, now time.Time) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load client certificate: %w", err)
	}
	if err := verifyValidity(cert, now); err != nil {
		return tls.Certificate{}, fmt.Errorf("client certificate %s: %w", certFile, err)
	}
	return cert, nil
}

// verifyValidity checks the leaf certificate's validity window.
func verifyValidity(cert tls.Certificate, now time.Time) error {
	if len(cert.Certificate) == 0 {
		return ErrNoCertificates
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	if now.Before(leaf.NotBefore) {
		return ErrCertificateNotYetValid
	}
	if now.After(leaf.NotAfter) {
		return ErrCertificateExpired
	}
	return nil
}
