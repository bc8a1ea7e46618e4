package trace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"
)

type logTrace struct {
	ClientTrace
	wr io.Writer
}

// LogTracer writes one line per execution phase to the writer.
func LogTracer(wr io.Writer) Factory {
	var idGenerator uint64
	return func(ctx context.Context, req *http.Request) (context.Context, *ClientTrace) {
		requestID := atomic.AddUint64(&idGenerator, 1)
		method := req.Method
		urlStr := req.URL.String()

		var connStartTime time.Time
		var startTime time.Time
		var doneTime time.Time

		t := &logTrace{wr: wr}
		t.ConnectStart = func(network, addr string) {
			connStartTime = time.Now()
		}
		t.GotConn = func(info httptrace.GotConnInfo) {
			var infoStr string
			if info.Reused {
				if info.WasIdle {
					infoStr = fmt.Sprintf("reused conn (was idle=%s)", info.IdleTime)
				} else {
					infoStr = "reused conn"
				}
			} else {
				infoStr = fmt.Sprintf("new conn | %s", time.Since(connStartTime))
			}
			t.log(requestID, fmt.Sprintf(`CONN  %s "%s" | %s`, method, urlStr, infoStr))
		}
		t.HTTPRequestStart = func(r *http.Request) {
			startTime = time.Now()
			method, urlStr = r.Method, r.URL.String()
			t.log(requestID, fmt.Sprintf(`START %s "%s"`, method, urlStr))
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			doneTime = time.Now()
			statusCode := -1
			var errorStr string
			if r != nil {
				statusCode = r.StatusCode
			}
			if err != nil {
				errorStr = fmt.Sprintf(" | error=%s", err)
			}
			t.log(requestID, fmt.Sprintf(`DONE  %s "%s" | %d | %s%s`, method, urlStr, statusCode, doneTime.Sub(startTime).String(), errorStr))
		}
		t.RequestProcessed = func(r *http.Response, err error) {
			var errorStr string
			if err != nil {
				errorStr = fmt.Sprintf(" | error=%s", err)
			}
			if doneTime.IsZero() {
				doneTime = time.Now()
			}
			t.log(requestID, fmt.Sprintf(`BODY  %s "%s" | %s%s`, method, urlStr, time.Since(doneTime).String(), errorStr))
		}
		return ctx, &t.ClientTrace
	}
}

func (t *logTrace) log(requestID uint64, a ...any) {
	a = append([]any{fmt.Sprintf("HTTP_REQUEST[%04d]", requestID)}, a...)
	_, _ = fmt.Fprintln(t.wr, a...)
}
