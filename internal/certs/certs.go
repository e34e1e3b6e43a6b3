// Package certs builds the *tls.Config the gateway presents to both the
// QUIC listener and the ACME HTTP-01 challenge path. It falls back to a
// locally generated credential whenever the managed path is unavailable
// or disabled.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// ServerTLSConfig returns a *tls.Config advertising alpn. When enabled is
// true and email is non-empty, certificates are managed via ACME for
// domain, and the returned manager must be mounted on port 80 via
// ACMEChallengeHandler for HTTP-01 to succeed. Otherwise a self-signed
// certificate is generated for domain and used directly, and the returned
// manager is nil.
func ServerTLSConfig(enabled bool, domain, email, certsDir, alpn string) (*tls.Config, *autocert.Manager, error) {
	if enabled && email != "" && domain != "" {
		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Cache:      autocert.DirCache(certsDir),
			HostPolicy: autocert.HostWhitelist(domain),
			Email:      email,
		}
		cfg := manager.TLSConfig()
		cfg.NextProtos = append([]string{alpn}, cfg.NextProtos...)
		return cfg, manager, nil
	}

	cert, err := selfSignedCert(domain)
	if err != nil {
		return nil, nil, fmt.Errorf("generate self-signed certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpn},
	}, nil, nil
}

// ACMEChallengeHandler returns the HTTP handler that must be mounted on
// port 80 for ACME's HTTP-01 challenge to succeed, or nil if m is nil.
func ACMEChallengeHandler(m *autocert.Manager) http.Handler {
	if m == nil {
		return nil
	}
	return m.HTTPHandler(nil)
}

func selfSignedCert(domain string) (tls.Certificate, error) {
	if domain == "" {
		domain = "localhost"
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{domain},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}, nil
}
