package client

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/keboola/go-restclient/pkg/request"
)

// DialTimeout specifies default maximum connection initialization time.
const DialTimeout = 3 * time.Second

// KeepAlive specifies default interval between keep-alive probes.
const KeepAlive = 10 * time.Second

// TLSHandshakeTimeout specifies default timeout of TLS handshake.
const TLSHandshakeTimeout = 5 * time.Second

// ResponseHeaderTimeout specifies default amount of time to wait for a server's response headers.
const ResponseHeaderTimeout = 20 * time.Second

// MaxConnectionsPerHost specifies default maximum number of open connections to a host.
const MaxConnectionsPerHost = 32

// DefaultTransport default transport with reasonable limits.
func DefaultTransport() http.RoundTripper {
	return NewTransport(DefaultTransportConfig())
}

// NewTransport creates a transport from the configuration.
func NewTransport(cfg TransportConfig) http.RoundTripper {
	dialer := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: cfg.KeepAlive}
	if cfg.HTTP2Only {
		return newHTTP2Transport(dialer)
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true, // HTTP2 is preferred.
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		MaxConnsPerHost:       cfg.MaxConnectionsPerHost,
		MaxIdleConnsPerHost:   cfg.MaxConnectionsPerHost,
	}
}

// HTTP2Transport forces HTTP2 protocol.
// Per-request transport options are not applied to this transport.
func HTTP2Transport() http.RoundTripper {
	return newHTTP2Transport(Dialer())
}

func newHTTP2Transport(dialer *net.Dialer) http.RoundTripper {
	return &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
			tlsDialer := &tls.Dialer{NetDialer: dialer, Config: cfg}
			return tlsDialer.DialContext(ctx, network, addr)
		},
		ReadIdleTimeout:  3 * time.Second,
		PingTimeout:      3 * time.Second,
		WriteByteTimeout: 3 * time.Second,
	}
}

// Dialer - default dialer.
func Dialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   DialTimeout,
		KeepAlive: KeepAlive,
	}
}

// newRequestTransport returns a transport configured by the per-request options.
// A clone is created only if the options customize the transport and the base is a *http.Transport,
// other transports, for example mocks, are used as they are.
// The cleanup function closes idle connections of the clone.
func newRequestTransport(base http.RoundTripper, opts request.TransportOptions) (http.RoundTripper, func(), error) {
	noop := func() {}
	baseTransport, ok := base.(*http.Transport)
	if !opts.CustomTransport() || !ok {
		return base, noop, nil
	}

	t := baseTransport.Clone()

	// Timeouts
	if opts.Timeout > 0 || opts.ReadWriteTimeout > 0 {
		dialer := Dialer()
		if opts.Timeout > 0 {
			dialer.Timeout = opts.Timeout
			t.TLSHandshakeTimeout = opts.Timeout
		}
		if opts.ReadWriteTimeout > 0 {
			t.ResponseHeaderTimeout = opts.ReadWriteTimeout
		}
		t.DialContext = deadlineDialer(dialer, opts.ReadWriteTimeout)
	}

	// Proxy
	if opts.Proxy != nil {
		proxyURL, err := opts.Proxy.URL()
		if err != nil {
			return nil, nil, err
		}
		t.Proxy = http.ProxyURL(proxyURL)
	}

	// TLS
	if opts.Certificate != nil || opts.SkipHostnameVerification {
		tlsConfig, err := newTLSConfig(t.TLSClientConfig, opts)
		if err != nil {
			return nil, nil, err
		}
		t.TLSClientConfig = tlsConfig
	}

	return t, t.CloseIdleConnections, nil
}

// deadlineDialer sets a deadline before each read and write, if the timeout is set.
func deadlineDialer(dialer *net.Dialer, timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil || timeout <= 0 {
			return conn, err
		}
		return &deadlineConn{Conn: conn, timeout: timeout}, nil
	}
}

type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}
