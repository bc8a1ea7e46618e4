package request

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// TransportOptions is the per-request transport configuration, it is interpreted by the Sender.
// The zero value means the Sender defaults are used.
type TransportOptions struct {
	// Timeout of the connection setup, dial and TLS handshake.
	Timeout time.Duration
	// ReadWriteTimeout of each read and write on the connection.
	ReadWriteTimeout time.Duration
	Proxy            *Proxy
	Certificate      *Certificate
	// SkipHostnameVerification disables the server hostname check, the certificate chain is still verified.
	SkipHostnameVerification bool
	DisableRedirects         bool
}

// CustomTransport returns true if the options require a dedicated transport for the request.
func (o TransportOptions) CustomTransport() bool {
	return o.Timeout > 0 || o.ReadWriteTimeout > 0 || o.Proxy != nil || o.Certificate != nil || o.SkipHostnameVerification
}

// Proxy is an HTTP proxy, the credentials are optional.
type Proxy struct {
	Host     string
	Port     int
	Username string
	Password string
}

// URL returns the proxy URL with the credentials.
func (p Proxy) URL() (*url.URL, error) {
	if p.Host == "" {
		return nil, fmt.Errorf("proxy host is not set")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return nil, fmt.Errorf(`proxy port "%d" is not valid`, p.Port)
	}
	out := &url.URL{Scheme: "http", Host: net.JoinHostPort(p.Host, strconv.Itoa(p.Port))}
	if p.Username != "" {
		out.User = url.UserPassword(p.Username, p.Password)
	}
	return out, nil
}

// Certificate in the PEM format.
// If the KeyPEM is set, it is a client certificate, otherwise it is a trusted server certificate.
type Certificate struct {
	CertPEM []byte
	KeyPEM  []byte
}

// IsClientCertificate returns true, if the certificate has a private key.
func (c Certificate) IsClientCertificate() bool {
	return len(c.KeyPEM) > 0
}
