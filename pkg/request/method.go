package request

import "net/http"

// Method is an HTTP method, the empty value means the method is not set.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
	MethodHead   Method = http.MethodHead
)

func (m Method) String() string {
	return string(m)
}
