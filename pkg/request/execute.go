package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-multierror"
)

// Execute sends the request and returns the Result.
//
// The error is returned only if the request configuration is not valid, see ConfigurationError.
// In that case, no network activity occurs.
// Transport and decoding failures are reported by Result.Failure.
//
// Result.Status is NoStatus if the failure occurred before a status line has been received.
// If the failure occurred later, for example on decoding, the real status is kept.
func (r *HTTPRequest[S, E]) Execute(ctx context.Context) (*Result[S, E], error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	result := &Result[S, E]{Status: NoStatus, Method: r.method}
	r.execute(ctx, result)
	for _, fn := range r.listeners {
		fn(ctx, result)
	}
	return result, nil
}

// SendOrErr executes the request and converts an unsuccessful Result to an error.
// It implements the Sendable interface.
func (r *HTTPRequest[S, E]) SendOrErr(ctx context.Context) error {
	result, err := r.Execute(ctx)
	if err != nil {
		return err
	}
	if result.Failure != nil {
		return result.Failure
	}
	if !result.WasSuccessful() {
		statusErr := &UnexpectedStatusError{Method: result.Method, URL: r.url, Status: result.Status}
		if result.URL != nil {
			statusErr.URL = result.URL.String()
		}
		if result.ErrorResponse != nil {
			statusErr.Response = result.ErrorResponse
		}
		return statusErr
	}
	return nil
}

func (r *HTTPRequest[S, E]) validate() error {
	errs := &multierror.Error{}
	if r.sender == nil {
		errs = multierror.Append(errs, &ConfigurationError{Reason: "sender is not set"})
	}
	if r.url == "" {
		errs = multierror.Append(errs, &ConfigurationError{Reason: "url is not set"})
	}
	if r.method == "" {
		errs = multierror.Append(errs, &ConfigurationError{Reason: "method is not set"})
	}
	if !isNoResult[S]() && r.successDecoder == nil {
		errs = multierror.Append(errs, &ConfigurationError{Reason: fmt.Sprintf("success decoder for type %s is not set", typeName[S]())})
	}
	if !isNoResult[E]() && r.errorDecoder == nil {
		errs = multierror.Append(errs, &ConfigurationError{Reason: fmt.Sprintf("error decoder for type %s is not set", typeName[E]())})
	}

	// If there is only one error, then unwrap multierror
	if len(errs.Errors) == 1 {
		return errs.Errors[0]
	}
	return errs.ErrorOrNil()
}

func (r *HTTPRequest[S, E]) execute(ctx context.Context, result *Result[S, E]) {
	// Query parameters are encoded to a local copy of the URL
	urlStr := r.EncodedURL()
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		result.Failure = fmt.Errorf(`url "%s" is not valid: %w`, urlStr, err)
		return
	}
	result.URL = reqURL

	header := r.Headers()

	// The body is produced once, then the producer can describe it by headers
	var body []byte
	if r.body != nil {
		if body, err = r.body.ProduceBody(); err != nil {
			result.Failure = fmt.Errorf(`request %s "%s": cannot produce request body: %w`, r.method, urlStr, err)
			return
		}
		r.body.ContributeHeaders(header)
		if v, ok := r.body.(BodyObject); ok {
			result.Request = v.BodyObject()
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method.String(), reqURL.String(), nil)
	if err != nil {
		result.Failure = fmt.Errorf(`request %s "%s": %w`, r.method, urlStr, err)
		return
	}
	req.Header = header
	if r.body != nil {
		// GetBody factory is used for requests when a redirect requires reading the body more than once.
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req.Body, _ = req.GetBody()
		req.ContentLength = int64(len(body))
		if len(body) == 0 {
			req.Body = http.NoBody
		}
	}
	result.RawRequest = req

	res, err := r.sender.Send(ctx, req, r.options, func(res *http.Response) error {
		return r.decode(res, result)
	})
	if res == nil {
		// No status line
		if err == nil {
			err = fmt.Errorf(`request %s "%s" failed: no response`, r.method, urlStr)
		}
		result.Status = NoStatus
		result.Failure = err
		return
	}

	result.setResponse(res)
	if res.Request != nil {
		// The last request, after the base URL resolution and redirects
		result.RawRequest = res.Request
		result.URL = res.Request.URL
	}
	if err != nil {
		// The status is kept, but no decoded value is valid
		result.SuccessResponse = nil
		result.ErrorResponse = nil
		result.Failure = err
	}
}

func (r *HTTPRequest[S, E]) decode(res *http.Response, result *Result[S, E]) error {
	if isSuccessStatus(res.StatusCode) {
		if r.successDecoder == nil || r.method == MethodHead {
			return nil
		}
		value, err := r.successDecoder.Decode(res.Body)
		if err != nil {
			return fmt.Errorf(`cannot decode success response: %w`, err)
		}
		result.SuccessResponse = &value
		return nil
	}

	if r.errorDecoder == nil {
		return nil
	}
	value, err := r.errorDecoder.Decode(res.Body)
	if err != nil {
		return fmt.Errorf(`cannot decode error response: %w`, err)
	}
	result.ErrorResponse = &value
	return nil
}

func isNoResult[T any]() bool {
	var zero T
	_, ok := any(zero).(NoResult)
	return ok
}

func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}
