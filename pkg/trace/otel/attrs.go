package otel

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const maskedAttrValue = "****"

type attributes struct {
	config config
	// httpRequest attributes for span and metrics
	httpRequest []attribute.KeyValue
	// httpRequestExtra attributes for span only
	httpRequestExtra []attribute.KeyValue
	// httpResponse attributes for span and metrics
	httpResponse []attribute.KeyValue
	// httpResponseExtra attributes for span only
	httpResponseExtra []attribute.KeyValue
}

func newAttributes(cfg config) *attributes {
	return &attributes{config: cfg}
}

func (v *attributes) SetFromRequest(req *http.Request) {
	if req == nil {
		v.httpRequest = nil
		v.httpRequestExtra = nil
		return
	}

	// Base
	v.httpRequest = []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(req.Method),
		semconv.URLScheme(req.URL.Scheme),
		semconv.ServerAddress(req.URL.Hostname()),
	}
	if port := urlPort(req.URL); port > 0 {
		v.httpRequest = append(v.httpRequest, semconv.ServerPort(port))
	}

	// Extra
	attrs := []attribute.KeyValue{
		semconv.URLFull(v.redactedURL(req.URL)),
		semconv.URLPath(req.URL.Path),
	}
	if ua := req.UserAgent(); ua != "" {
		attrs = append(attrs, semconv.UserAgentOriginal(ua))
	}
	attrs = append(attrs, v.headerAttrs("http.request.header.", req.Header)...)
	v.httpRequestExtra = attrs
}

func (v *attributes) SetFromResponse(res *http.Response, err error) {
	v.httpResponse = nil
	v.httpResponseExtra = nil
	if res != nil {
		v.httpResponse = append(v.httpResponse, semconv.HTTPResponseStatusCode(res.StatusCode))
		v.httpResponseExtra = v.headerAttrs("http.response.header.", res.Header)
	}
	if errType := errorType(res, err); errType != "" {
		v.httpResponse = append(v.httpResponse, semconv.ErrorTypeKey.String(errType))
	}
}

func (v *attributes) headerAttrs(prefix string, header http.Header) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for key, values := range header {
		key = strings.ToLower(key)
		value := strings.Join(values, ";")
		if _, found := v.config.redactedHeaders[key]; found {
			value = maskedAttrValue
		}
		attrs = append(attrs, attribute.String(prefix+key, value))
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})
	return attrs
}

func (v *attributes) redactedURL(in *url.URL) string {
	out := *in
	out.User = nil
	if len(v.config.redactedQueryParams) > 0 && out.RawQuery != "" {
		query := out.Query()
		for key := range query {
			if _, found := v.config.redactedQueryParams[strings.ToLower(key)]; found {
				query.Set(key, maskedAttrValue)
			}
		}
		out.RawQuery = query.Encode()
	}
	return mustURLPathUnescape(out.String())
}

func errorType(res *http.Response, err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case err != nil:
		return "error"
	case res != nil && res.StatusCode >= http.StatusBadRequest:
		return strconv.Itoa(res.StatusCode)
	default:
		return ""
	}
}

func urlPort(u *url.URL) int {
	if p := u.Port(); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			return port
		}
	}
	switch u.Scheme {
	case "http":
		return 80
	case "https":
		return 443
	default:
		return 0
	}
}

func mustURLPathUnescape(in string) string {
	out, err := url.PathUnescape(in)
	if err != nil {
		return in
	}
	return out
}
