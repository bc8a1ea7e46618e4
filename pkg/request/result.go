package request

import (
	"net/http"
	"net/url"
	"time"
)

// NoStatus is the Result.Status value if no HTTP status line has been received.
const NoStatus = -1

// Result is the outcome of one HTTPRequest execution.
//
// After the execution, at most one of SuccessResponse, ErrorResponse and Failure is set.
// If none of them is set, the response has no decoder, the Status is still valid.
type Result[S, E any] struct {
	// Status is the HTTP status code, or NoStatus.
	Status int
	// SuccessResponse is the decoded body of a success response, status code 200-299.
	SuccessResponse *S
	// ErrorResponse is the decoded body of an error response.
	ErrorResponse *E
	// Failure is a transport or a decoding failure.
	Failure error
	// Request is the object serialized to the request body, if the body producer provides it.
	Request any
	// URL is the final URL, including query parameters.
	URL    *url.URL
	Method Method
	// Header contains response headers.
	Header       http.Header
	Date         time.Time
	LastModified time.Time
	RawRequest   *http.Request
}

// WasSuccessful returns true if the status code is 200-299 and no failure occurred.
func (r *Result[S, E]) WasSuccessful() bool {
	return isSuccessStatus(r.Status) && r.Failure == nil
}

// Cookies parses cookies from the Set-Cookie response headers.
func (r *Result[S, E]) Cookies() []*http.Cookie {
	if r.Header == nil {
		return nil
	}
	return (&http.Response{Header: r.Header}).Cookies()
}

func (r *Result[S, E]) setResponse(res *http.Response) {
	r.Status = res.StatusCode
	r.Header = res.Header
	r.Date = parseTimeHeader(res.Header, "Date")
	r.LastModified = parseTimeHeader(res.Header, "Last-Modified")
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status <= 299
}

func parseTimeHeader(header http.Header, name string) time.Time {
	if v := header.Get(name); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			return t
		}
	}
	return time.Time{}
}
