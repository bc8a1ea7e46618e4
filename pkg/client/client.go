// Package client provides the default implementation of the request.Sender interface.
//
// Client is based on the standard net/http package and contains tracing/telemetry support.
// Requests are defined by request.NewHTTPRequest and sent by the Client.
// It is easy to implement your custom HTTP client, by implementing the request.Sender interface.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/keboola/go-restclient/pkg/client/counter"
	"github.com/keboola/go-restclient/pkg/client/decode"
	"github.com/keboola/go-restclient/pkg/request"
	"github.com/keboola/go-restclient/pkg/trace"
)

// DefaultUserAgent is sent if the request has no User-Agent header.
const DefaultUserAgent = "keboola-go-restclient"

// Client is a default and configurable implementation of the request.Sender interface by Go native http.Client.
// It is immutable, each With* method returns a modified clone.
type Client struct {
	transport      http.RoundTripper
	baseURL        *url.URL
	header         http.Header
	traceFactories []trace.Factory
}

// New creates new HTTP Client.
func New() Client {
	c := Client{transport: DefaultTransport(), header: make(http.Header)}
	c.header.Set("User-Agent", DefaultUserAgent)
	c.header.Set("Accept-Encoding", "gzip, br")
	return c
}

// WithBaseURL returns a clone of the Client with base url set.
// Relative request URLs are resolved against the base URL.
func (c Client) WithBaseURL(baseURLStr string) Client {
	baseURL, err := url.Parse(strings.TrimRight(baseURLStr, "/"))
	if err != nil {
		panic(fmt.Errorf(`base url "%s" is not valid: %w`, baseURLStr, err))
	}
	// Normalize base URL, so baseURL.ResolveReference(...) will work
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/"
	c.baseURL = baseURL
	return c
}

// WithUserAgent returns a clone of the Client with user agent set.
func (c Client) WithUserAgent(v string) Client {
	return c.WithHeader("User-Agent", v)
}

// WithHeader returns a clone of the Client with common header set.
// A request header of the same name has priority.
func (c Client) WithHeader(key, value string) Client {
	c.header = c.header.Clone()
	c.header.Set(key, value)
	return c
}

// WithHeaders returns a clone of the Client with common headers set.
func (c Client) WithHeaders(headers map[string]string) Client {
	c.header = c.header.Clone()
	for k, v := range headers {
		c.header.Set(k, v)
	}
	return c
}

// WithTransport returns a clone of the Client with a HTTP transport set.
func (c Client) WithTransport(transport http.RoundTripper) Client {
	if transport == nil {
		panic(fmt.Errorf("transport cannot be nil"))
	}
	c.transport = transport
	return c
}

// AndTrace returns a clone of the Client with the trace factory added.
// Hooks of all registered factories are called, in the order of registration.
func (c Client) AndTrace(fn trace.Factory) Client {
	c.traceFactories = append(append([]trace.Factory(nil), c.traceFactories...), fn)
	return c
}

// Send method sends the request, it implements the request.Sender interface.
func (c Client) Send(ctx context.Context, req *http.Request, opts request.TransportOptions, handler request.ResponseHandler) (*http.Response, error) {
	// Method cannot be called on an empty value
	if c.transport == nil {
		panic(fmt.Errorf("client value is not initialized"))
	}

	req = c.prepareRequest(req)

	// Init trace
	var clientTrace *trace.ClientTrace
	for _, factory := range c.traceFactories {
		var t *trace.ClientTrace
		ctx, t = factory(ctx, req)
		if t == nil {
			continue
		}
		if clientTrace == nil {
			clientTrace = t
		} else {
			t.Compose(clientTrace)
			clientTrace = t
		}
	}
	if clientTrace != nil {
		ctx = httptrace.WithClientTrace(ctx, &clientTrace.ClientTrace)
	}
	req = req.WithContext(ctx)

	res, err := c.send(req, opts, clientTrace, handler)

	// Trace request processed
	if clientTrace != nil && clientTrace.RequestProcessed != nil {
		clientTrace.RequestProcessed(res, err)
	}

	return res, err
}

func (c Client) send(req *http.Request, opts request.TransportOptions, clientTrace *trace.ClientTrace, handler request.ResponseHandler) (*http.Response, error) {
	// Dedicated transport, if needed
	transport, cleanup, err := newRequestTransport(c.transport, opts)
	if err != nil {
		return nil, fmt.Errorf(`request %s "%s" failed: %w`, req.Method, req.URL.String(), err)
	}
	defer cleanup()

	// Setup native client
	nativeClient := http.Client{
		Transport: roundTripper{trace: clientTrace, wrapped: transport}, // wrapped transport for trace
	}
	if opts.DisableRedirects {
		nativeClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	// Send request
	startedAt := time.Now()
	res, err := nativeClient.Do(req) //nolint:bodyclose // closed in handleResponseBody
	if err != nil {
		return nil, handleSendError(startedAt, req, err)
	}
	if res.Request == nil {
		res.Request = req
	}

	// Process body
	if err := handleResponseBody(res, clientTrace, handler); err != nil {
		return res, fmt.Errorf(`cannot process request %s "%s": %w`, res.Request.Method, res.Request.URL.String(), err)
	}
	return res, nil
}

// prepareRequest resolves the base URL and merges the common headers.
func (c Client) prepareRequest(in *http.Request) *http.Request {
	req := in.Clone(in.Context())
	if c.baseURL != nil && !req.URL.IsAbs() {
		relative := *req.URL
		relative.Path = strings.TrimLeft(relative.Path, "/")
		req.URL = c.baseURL.ResolveReference(&relative)
		req.Host = req.URL.Host
	}

	// Global headers, the request value has priority
	for k, values := range c.header {
		if _, found := req.Header[k]; found {
			continue
		}
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return req
}

func handleResponseBody(res *http.Response, clientTrace *trace.ClientTrace, handler request.ResponseHandler) (err error) {
	noBody := withoutBody(res)

	// Count bytes read from the wire
	body := counter.NewReadCloser(res.Body, nil)
	defer func() {
		if closeErr := body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("cannot close response body: %w", closeErr)
		}
	}()

	if clientTrace != nil && clientTrace.BodyParseStart != nil {
		clientTrace.BodyParseStart(res)
	}
	if clientTrace != nil && clientTrace.BodyParseDone != nil {
		defer func() {
			clientTrace.BodyParseDone(res, body.Bytes(), err)
		}()
	}

	// Process content encoding, responses without a body are not decoded
	res.Body = body
	if !noBody {
		decoded, err := decode.Decode(body, res.Header.Get("Content-Encoding"))
		if err != nil {
			return err
		}
		res.Body = decoded
	}

	if handler == nil {
		return nil
	}
	return handler(res)
}

// withoutBody returns true for responses which never carry a body.
func withoutBody(res *http.Response) bool {
	if res.Body == http.NoBody || res.StatusCode == http.StatusNoContent || res.StatusCode == http.StatusNotModified {
		return true
	}
	return res.Request != nil && res.Request.Method == http.MethodHead
}

func handleSendError(startedAt time.Time, req *http.Request, err error) error {
	// Timeout
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) {
		err = urlError(req, fmt.Errorf("timeout after %s", time.Since(startedAt).Round(time.Millisecond)))
	} else if errors.Is(err, context.Canceled) {
		err = urlError(req, fmt.Errorf("canceled after %s", time.Since(startedAt).Round(time.Millisecond)))
	} else if errors.As(err, &netErr) && netErr.Timeout() {
		err = urlError(req, fmt.Errorf("timeout after %s: %w", time.Since(startedAt).Round(time.Millisecond), unwrapURLError(err)))
	}

	// Url error
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf(`request %s "%s" failed: %w`, strings.ToUpper(urlErr.Op), urlErr.URL, urlErr.Err)
	}

	return err
}

func urlError(req *http.Request, err error) *url.Error {
	return &url.Error{Op: req.Method, URL: req.URL.String(), Err: err}
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// roundTripper wraps a http.RoundTripper and adds trace functionality.
type roundTripper struct {
	trace   *trace.ClientTrace
	wrapped http.RoundTripper
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Trace request start
	if rt.trace != nil && rt.trace.HTTPRequestStart != nil {
		rt.trace.HTTPRequestStart(req)
	}

	// Send
	res, err := rt.wrapped.RoundTrip(req)

	// Trace request done
	if rt.trace != nil && rt.trace.HTTPRequestDone != nil {
		rt.trace.HTTPRequestDone(res, err)
	}

	return res, err
}
