package request

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigurationError is returned by HTTPRequest.Execute before any network activity,
// if the request cannot be executed at all.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid request configuration: " + e.Reason
}

// UnexpectedStatusError is returned by HTTPRequest.SendOrErr, if the response status is not 200-299.
// If the decoded error response implements the error interface, it is wrapped.
type UnexpectedStatusError struct {
	Method   Method
	URL      string
	Status   int
	Response any
}

func (e *UnexpectedStatusError) Error() string {
	msg := fmt.Sprintf(`request %s "%s" failed: %d %s`, e.Method, e.URL, e.Status, http.StatusText(e.Status))
	if err := e.Unwrap(); err != nil {
		msg += ": " + err.Error()
	}
	return msg
}

func (e *UnexpectedStatusError) Unwrap() error {
	if err, ok := e.Response.(error); ok {
		return err
	}
	return nil
}

// IsConfigurationError returns true if the err is or contains a ConfigurationError.
func IsConfigurationError(err error) bool {
	var configErr *ConfigurationError
	return errors.As(err, &configErr)
}
