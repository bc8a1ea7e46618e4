package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ZerologTracer logs request execution phases as structured debug events.
// Failures are logged at the debug level too, the caller decides what is an error by the Result.
func ZerologTracer(logger zerolog.Logger) Factory {
	var idGenerator uint64
	return func(ctx context.Context, req *http.Request) (context.Context, *ClientTrace) {
		requestID := atomic.AddUint64(&idGenerator, 1)
		log := logger.With().
			Uint64("request.id", requestID).
			Str("http.method", req.Method).
			Str("http.url", req.URL.String()).
			Logger()

		var startTime time.Time
		executionStart := time.Now()

		t := &ClientTrace{}
		t.HTTPRequestStart = func(r *http.Request) {
			startTime = time.Now()
			log.Debug().Str("http.request.url", r.URL.String()).Msg("http request started")
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			event := log.Debug().Dur("duration", time.Since(startTime))
			if r != nil {
				event = event.Int("http.status", r.StatusCode)
			}
			if err != nil {
				event = event.Err(err)
			}
			event.Msg("http request done")
		}
		t.BodyParseDone = func(_ *http.Response, bytes int64, err error) {
			event := log.Debug().Int64("http.response.bytes", bytes)
			if err != nil {
				event = event.Err(err)
			}
			event.Msg("http response body parsed")
		}
		t.RequestProcessed = func(r *http.Response, err error) {
			status := -1
			if r != nil {
				status = r.StatusCode
			}
			event := log.Debug().Int("http.status", status).Dur("duration", time.Since(executionStart))
			if err != nil {
				event = event.Err(err)
			}
			event.Msg("request processed")
		}
		return ctx, t
	}
}
