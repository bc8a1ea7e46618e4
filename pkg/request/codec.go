package request

import (
	"io"
	"net/http"
)

// BodyProducer serializes the request body, see the body package for implementations.
//
// ProduceBody is called at most once per execution, then ContributeHeaders is called.
// A producer shared by multiple requests must be safe for concurrent use.
type BodyProducer interface {
	// ContributeHeaders sets headers describing the body, for example Content-Type.
	ContributeHeaders(header http.Header)
	ProduceBody() ([]byte, error)
}

// BodyObject is an optional interface of a BodyProducer.
// The object is stored in the Result.Request for diagnostics.
type BodyObject interface {
	BodyObject() any
}

// ResponseDecoder deserializes the response body, see the decoder package for implementations.
// An empty body must be decoded to the zero value of T, without an error.
// A decoder shared by multiple requests must be safe for concurrent use.
type ResponseDecoder[T any] interface {
	Decode(body io.Reader) (T, error)
}
