// Package trace extends the httptrace.ClientTrace and adds additional request execution hooks.
// A custom ClientTrace definition can be registered in the client.Client by the AndTrace method.
package trace

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"reflect"
)

// Factory creates ClientTrace hooks for a request execution.
// The returned context is used for the rest of the execution, so the factory can start a span.
type Factory func(ctx context.Context, req *http.Request) (context.Context, *ClientTrace)

// ClientTrace is a set of hooks to run at various stages of an outgoing request.
type ClientTrace struct {
	httptrace.ClientTrace // native, low level trace
	// HTTPRequestStart is called when the round trip begins. It includes redirects.
	HTTPRequestStart func(request *http.Request)
	// HTTPRequestDone is called when the round trip completes. It includes redirects.
	HTTPRequestDone func(response *http.Response, err error)
	// BodyParseStart is called before the response body is decoded.
	BodyParseStart func(response *http.Response)
	// BodyParseDone is called after the response body is decoded.
	// The bytes argument is the number of the body bytes read from the wire.
	BodyParseDone func(response *http.Response, bytes int64, err error)
	// RequestProcessed is called when Client.Send method is done.
	// The response is nil if no status line has been received.
	RequestProcessed func(response *http.Response, err error)
}

// Compose modifies t such that it respects the previously-registered hooks in old.
// Hooks from old are called first.
// Copy of httptrace.compose.
func (t *ClientTrace) Compose(old *ClientTrace) {
	if old == nil {
		return
	}
	tv := reflect.ValueOf(t).Elem()
	ov := reflect.ValueOf(old).Elem()
	composeHooks(tv, ov)
	composeHooks(tv.FieldByName("ClientTrace"), ov.FieldByName("ClientTrace"))
}

func composeHooks(tv, ov reflect.Value) {
	structType := tv.Type()
	for i := 0; i < structType.NumField(); i++ {
		tf := tv.Field(i)
		hookType := tf.Type()
		if hookType.Kind() != reflect.Func {
			continue
		}
		of := ov.Field(i)
		if of.IsNil() {
			continue
		}
		if tf.IsNil() {
			tf.Set(of)
			continue
		}

		// Make a copy of tf for tf to call. (Otherwise it
		// creates a recursive call cycle and stack overflows)
		tfCopy := reflect.ValueOf(tf.Interface())

		// We need to call both tf and of in some order.
		newFunc := reflect.MakeFunc(hookType, func(args []reflect.Value) []reflect.Value {
			of.Call(args)
			return tfCopy.Call(args)
		})
		tf.Set(newFunc)
	}
}
