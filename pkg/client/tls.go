package client

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/keboola/go-restclient/pkg/request"
)

// ValidCertificate returns true if the value contains at least one PEM encoded x509 certificate.
func ValidCertificate(certPEM []byte) bool {
	for rest := certPEM; len(rest) > 0; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return false
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err == nil {
			return true
		}
	}
	return false
}

func newTLSConfig(base *tls.Config, opts request.TransportOptions) (*tls.Config, error) {
	var cfg *tls.Config
	if base == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	} else {
		cfg = base.Clone()
	}

	if cert := opts.Certificate; cert != nil {
		if cert.IsClientCertificate() {
			pair, err := tls.X509KeyPair(cert.CertPEM, cert.KeyPEM)
			if err != nil {
				return nil, fmt.Errorf("cannot load client certificate: %w", err)
			}
			cfg.Certificates = append(cfg.Certificates, pair)
		} else {
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(cert.CertPEM) {
				return nil, fmt.Errorf("cannot load trusted certificate: no valid PEM certificate found")
			}
			cfg.RootCAs = pool
		}
	}

	if opts.SkipHostnameVerification {
		// The standard verification is replaced by a chain verification without the hostname check
		rootCAs := cfg.RootCAs
		cfg.InsecureSkipVerify = true //nolint:gosec
		cfg.VerifyConnection = func(state tls.ConnectionState) error {
			if len(state.PeerCertificates) == 0 {
				return fmt.Errorf("server did not present a certificate")
			}
			intermediates := x509.NewCertPool()
			for _, c := range state.PeerCertificates[1:] {
				intermediates.AddCert(c)
			}
			_, err := state.PeerCertificates[0].Verify(x509.VerifyOptions{
				Roots:         rootCAs,
				Intermediates: intermediates,
			})
			return err
		}
	}

	return cfg, nil
}
