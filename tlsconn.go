package httpcore

import (
	"crypto/tls"
	"fmt"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

// CertificateResolver resolves a TLS certificate for a ClientHello, the
// same shape as tls.Config.GetCertificate. Endpoints configured with more
// than one certificate use this instead of a
// single static tls.Certificate so S0's handshake step can pick the right
// one by SNI.
type CertificateResolver func(*tls.ClientHelloInfo) (*tls.Certificate, error)

// StaticCertificateResolver always returns the same certificate,
// regardless of the requested server name; used when an endpoint is
// configured with exactly one certificate and SNI selection doesn't apply.
func StaticCertificateResolver(cert tls.Certificate) CertificateResolver {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		return &cert, nil
	}
}

// SNICertificateResolver dispatches to one of several certificates by exact
// ServerName match, falling back to a default when the ClientHello carries
// no SNI extension or an unrecognized name.
func SNICertificateResolver(certs map[string]tls.Certificate, def *tls.Certificate) CertificateResolver {
	return func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
		if hello.ServerName != "" {
			if c, ok := certs[hello.ServerName]; ok {
				return &c, nil
			}
		}
		if def != nil {
			return def, nil
		}
		return nil, fmt.Errorf("httpcore: no certificate configured for server name %q", hello.ServerName)
	}
}

// AutocertResolver wraps an ACME autocert.Manager as a CertificateResolver,
// for endpoints that provision certificates on demand instead of being
// configured with a fixed set.
func AutocertResolver(m *autocert.Manager) CertificateResolver {
	return m.GetCertificate
}

// buildTLSConfig assembles the *tls.Config an S0 listener uses, wiring a
// resolver into GetCertificate instead of a static Certificates list so
// the handshake step always goes through SNI-aware resolution uniformly.
func buildTLSConfig(resolver CertificateResolver, nextProtos []string, minVersion uint16) *tls.Config {
	cfg := &tls.Config{
		GetCertificate: resolver,
		NextProtos:     nextProtos,
		MinVersion:     minVersion,
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"http/1.1"}
	}
	return cfg
}

// autocertNextProtos appends the ACME TLS-ALPN-01 challenge protocol
// autocert needs negotiated during the handshake, alongside plain
// "http/1.1" (letsencryptserver.go does the same).
func autocertNextProtos() []string {
	return []string{"http/1.1", acme.ALPNProto}
}
