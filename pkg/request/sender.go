package request

import (
	"context"
	"net/http"
)

// Sender represents an HTTP client, the client.Client is a default implementation using the standard net/http package.
type Sender interface {
	// Send method sends the request and calls the handler with the response, if a status line is received.
	//
	// The returned response is nil, if no status line has been received, the error describes why.
	// If the response is not nil and the error is set, the failure occurred after the status line,
	// for example while reading or decoding the body.
	// The Sender closes the response body after the handler returns.
	Send(ctx context.Context, req *http.Request, opts TransportOptions, handler ResponseHandler) (*http.Response, error)
}

// ResponseHandler consumes the response body.
type ResponseHandler func(res *http.Response) error

// Sendable is a request that can be sent by a concurrent helper.
type Sendable interface {
	SendOrErr(ctx context.Context) error
}

// ReqDefinitionError can be used as the Sendable interface.
// So the error will be returned when you try to send the request.
// This simplifies usage, the error is checked only once, in one place.
type ReqDefinitionError struct {
	error
}

func NewReqDefinitionError(err error) Sendable {
	return ReqDefinitionError{error: err}
}

func (v ReqDefinitionError) SendOrErr(_ context.Context) error {
	return v
}

func (v ReqDefinitionError) Unwrap() error {
	return v.error
}
