// Package request provides a strongly-typed HTTP request builder and executor, see NewHTTPRequest function.
//
// HTTPRequest[S, E] is configured by chained With* and And* methods,
// S is the type of the success response, E is the type of the error response.
// Use NoResult if the response body is not expected.
//
// The request is executed by the Execute method, it returns the Result[S, E].
// Transport and decoding failures are captured in the Result, only an invalid
// request configuration is returned as an error.
//
// Requests are sent using the Sender interface.
// The client.Client is a default implementation of the request.Sender
// interface based on the standard net/http package.
//
// RunGroup, WaitGroup and Parallel are helpers for concurrent requests.
package request

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"golang.org/x/oauth2"
)

// NoResult type marks that no response body is expected.
type NoResult struct{}

// HTTPRequest describes one HTTP call, it is configured before execution.
// The configuration methods modify the request and return the same instance.
//
// The request must not be modified while it is being executed.
// Each execution creates a new Result and does not modify the request.
type HTTPRequest[S, E any] struct {
	sender         Sender
	method         Method
	url            string
	header         *orderedmap.OrderedMap // canonical key -> string
	query          *orderedmap.OrderedMap // key -> []string
	body           BodyProducer
	successDecoder ResponseDecoder[S]
	errorDecoder   ResponseDecoder[E]
	options        TransportOptions
	listeners      []func(ctx context.Context, result *Result[S, E])
}

// NewHTTPRequest creates a new request sent by the sender.
func NewHTTPRequest[S, E any](sender Sender) *HTTPRequest[S, E] {
	return &HTTPRequest[S, E]{
		sender: sender,
		header: orderedmap.New(),
		query:  orderedmap.New(),
	}
}

// WithGet is shortcut for WithMethod(MethodGet).WithURL(url).
func (r *HTTPRequest[S, E]) WithGet(url string) *HTTPRequest[S, E] {
	return r.WithMethod(MethodGet).WithURL(url)
}

// WithPost is shortcut for WithMethod(MethodPost).WithURL(url).
func (r *HTTPRequest[S, E]) WithPost(url string) *HTTPRequest[S, E] {
	return r.WithMethod(MethodPost).WithURL(url)
}

// WithPut is shortcut for WithMethod(MethodPut).WithURL(url).
func (r *HTTPRequest[S, E]) WithPut(url string) *HTTPRequest[S, E] {
	return r.WithMethod(MethodPut).WithURL(url)
}

// WithPatch is shortcut for WithMethod(MethodPatch).WithURL(url).
func (r *HTTPRequest[S, E]) WithPatch(url string) *HTTPRequest[S, E] {
	return r.WithMethod(MethodPatch).WithURL(url)
}

// WithDelete is shortcut for WithMethod(MethodDelete).WithURL(url).
func (r *HTTPRequest[S, E]) WithDelete(url string) *HTTPRequest[S, E] {
	return r.WithMethod(MethodDelete).WithURL(url)
}

// WithHead is shortcut for WithMethod(MethodHead).WithURL(url).
// The success decoder is not used for HEAD requests.
func (r *HTTPRequest[S, E]) WithHead(url string) *HTTPRequest[S, E] {
	return r.WithMethod(MethodHead).WithURL(url)
}

// WithMethod sets the HTTP method.
func (r *HTTPRequest[S, E]) WithMethod(method Method) *HTTPRequest[S, E] {
	r.method = method
	return r
}

// WithURL replaces the URL.
func (r *HTTPRequest[S, E]) WithURL(url string) *HTTPRequest[S, E] {
	r.url = url
	return r
}

// AndPathSegment appends one escaped path segment, separated by exactly one "/".
// A nil value is ignored, other values are converted to string like query parameters.
func (r *HTTPRequest[S, E]) AndPathSegment(segment any) *HTTPRequest[S, E] {
	if isNil(segment) {
		return r
	}
	r.url = joinPath(r.url, escapePathSegment(castToString(segment)))
	return r
}

// AndURIPath appends a path fragment as it is, separated by exactly one "/".
func (r *HTTPRequest[S, E]) AndURIPath(path string) *HTTPRequest[S, E] {
	r.url = joinPath(r.url, path)
	return r
}

// AndQueryParam appends values of the query parameter.
//
// A nil value is ignored. A time.Time is converted to epoch milliseconds in UTC.
// Each element of a slice or an array is appended as a separate value.
// A bool is converted to "true" or "false". Other values are converted to their string form.
func (r *HTTPRequest[S, E]) AndQueryParam(name string, value any) *HTTPRequest[S, E] {
	values := queryValues(value)
	if len(values) == 0 {
		return r
	}
	var existing []string
	if v, found := r.query.Get(name); found {
		existing = v.([]string)
	}
	r.query.Set(name, append(existing, values...))
	return r
}

// AndQueryParams appends values of multiple query parameters, see AndQueryParam.
// Parameters are added in the order of sorted names.
func (r *HTTPRequest[S, E]) AndQueryParams(params map[string]any) *HTTPRequest[S, E] {
	for _, name := range sortedKeys(params) {
		r.AndQueryParam(name, params[name])
	}
	return r
}

// AndHeader sets a header, it replaces the previous value of the same header.
func (r *HTTPRequest[S, E]) AndHeader(name, value string) *HTTPRequest[S, E] {
	r.header.Set(http.CanonicalHeaderKey(name), value)
	return r
}

// AndHeaders sets multiple headers, see AndHeader.
func (r *HTTPRequest[S, E]) AndHeaders(headers map[string]string) *HTTPRequest[S, E] {
	for _, name := range sortedKeys(headers) {
		r.AndHeader(name, headers[name])
	}
	return r
}

// WithAuthorization sets the Authorization header to the token as it is.
// An empty token removes the header.
func (r *HTTPRequest[S, E]) WithAuthorization(token string) *HTTPRequest[S, E] {
	if token == "" {
		r.header.Delete(headerAuthorization)
		return r
	}
	return r.AndHeader(headerAuthorization, token)
}

// WithBasicAuth sets the Authorization header to the basic auth credentials.
// If the user is empty, the header is not modified. An empty password is valid, for example for API keys.
func (r *HTTPRequest[S, E]) WithBasicAuth(user, password string) *HTTPRequest[S, E] {
	if user == "" {
		return r
	}
	return r.AndHeader(headerAuthorization, "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+password)))
}

// WithOAuth2Token sets the Authorization header from an already obtained token.
// A nil or an invalid token does not modify the header.
func (r *HTTPRequest[S, E]) WithOAuth2Token(token *oauth2.Token) *HTTPRequest[S, E] {
	if token == nil || !token.Valid() {
		return r
	}
	return r.AndHeader(headerAuthorization, token.Type()+" "+token.AccessToken)
}

// WithUserAgent sets the User-Agent header, it overrides the client default.
func (r *HTTPRequest[S, E]) WithUserAgent(userAgent string) *HTTPRequest[S, E] {
	return r.AndHeader("User-Agent", userAgent)
}

// WithBody sets the request body producer.
func (r *HTTPRequest[S, E]) WithBody(body BodyProducer) *HTTPRequest[S, E] {
	r.body = body
	return r
}

// WithResult sets the decoder of a success response, status code 200-299.
func (r *HTTPRequest[S, E]) WithResult(decoder ResponseDecoder[S]) *HTTPRequest[S, E] {
	r.successDecoder = decoder
	return r
}

// WithError sets the decoder of an error response, any status code outside 200-299.
func (r *HTTPRequest[S, E]) WithError(decoder ResponseDecoder[E]) *HTTPRequest[S, E] {
	r.errorDecoder = decoder
	return r
}

// WithTimeout sets the connection timeout, it covers dial and TLS handshake.
func (r *HTTPRequest[S, E]) WithTimeout(timeout time.Duration) *HTTPRequest[S, E] {
	r.options.Timeout = timeout
	return r
}

// WithReadWriteTimeout sets the timeout of each read and write on the connection.
func (r *HTTPRequest[S, E]) WithReadWriteTimeout(timeout time.Duration) *HTTPRequest[S, E] {
	r.options.ReadWriteTimeout = timeout
	return r
}

// WithProxy sends the request through the HTTP proxy.
func (r *HTTPRequest[S, E]) WithProxy(proxy *Proxy) *HTTPRequest[S, E] {
	r.options.Proxy = proxy
	return r
}

// WithCertificate sets a client certificate, or a trusted server certificate if the key is empty.
func (r *HTTPRequest[S, E]) WithCertificate(certificate *Certificate) *HTTPRequest[S, E] {
	r.options.Certificate = certificate
	return r
}

// WithoutHostnameVerification disables verification of the server hostname.
// The server certificate chain is still verified.
func (r *HTTPRequest[S, E]) WithoutHostnameVerification() *HTTPRequest[S, E] {
	r.options.SkipHostnameVerification = true
	return r
}

// WithFollowRedirects enables or disables following of redirects, it is enabled by default.
func (r *HTTPRequest[S, E]) WithFollowRedirects(follow bool) *HTTPRequest[S, E] {
	r.options.DisableRedirects = !follow
	return r
}

// WithOnComplete registers a callback called after each execution.
func (r *HTTPRequest[S, E]) WithOnComplete(fn func(ctx context.Context, result *Result[S, E])) *HTTPRequest[S, E] {
	r.listeners = append(r.listeners, fn)
	return r
}

// WithOnSuccess registers a callback called after each successful execution.
func (r *HTTPRequest[S, E]) WithOnSuccess(fn func(ctx context.Context, result *Result[S, E])) *HTTPRequest[S, E] {
	return r.WithOnComplete(func(ctx context.Context, result *Result[S, E]) {
		if result.WasSuccessful() {
			fn(ctx, result)
		}
	})
}

// WithOnError registers a callback called after each unsuccessful execution.
func (r *HTTPRequest[S, E]) WithOnError(fn func(ctx context.Context, result *Result[S, E])) *HTTPRequest[S, E] {
	return r.WithOnComplete(func(ctx context.Context, result *Result[S, E]) {
		if !result.WasSuccessful() {
			fn(ctx, result)
		}
	})
}

// Method returns the HTTP method, it is empty if not set.
func (r *HTTPRequest[S, E]) Method() Method {
	return r.method
}

// URL returns the URL without query parameters.
func (r *HTTPRequest[S, E]) URL() string {
	return r.url
}

// Header returns value of the header.
func (r *HTTPRequest[S, E]) Header(name string) string {
	if v, found := r.header.Get(http.CanonicalHeaderKey(name)); found {
		return v.(string)
	}
	return ""
}

// Headers returns a copy of all headers.
func (r *HTTPRequest[S, E]) Headers() http.Header {
	out := make(http.Header)
	for _, k := range r.header.Keys() {
		v, _ := r.header.Get(k)
		out.Set(k, v.(string))
	}
	return out
}

// QueryParams returns a copy of all query parameters.
func (r *HTTPRequest[S, E]) QueryParams() map[string][]string {
	out := make(map[string][]string)
	for _, k := range r.query.Keys() {
		v, _ := r.query.Get(k)
		out[k] = append([]string(nil), v.([]string)...)
	}
	return out
}

// EncodedURL returns the URL with encoded query parameters, the request is not modified.
func (r *HTTPRequest[S, E]) EncodedURL() string {
	return appendQuery(r.url, r.query)
}

// TransportOptions returns the per-request transport configuration.
func (r *HTTPRequest[S, E]) TransportOptions() TransportOptions {
	return r.options
}
