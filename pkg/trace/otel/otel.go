// Package otel provides OpenTelemetry tracing and metrics for requests sent by the client.Client.
//
// Spans:
//   - "keboola.go.restclient.request" wraps the whole request execution, including redirects.
//   - "http.request" is created for each round trip, redirects included.
//   - "http.request.body.parse" tracks reading and decoding of the final response body.
//   - "http.dns", "http.getconn", "http.connect", "http.tls", "http.headers", "http.send" are low-level spans.
//
// Metrics names start with "keboola.go.restclient.", see the meters struct.
package otel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelMetric "go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/keboola/go-restclient/pkg/trace"
)

const (
	traceAppName     = "github.com/keboola/go-restclient"
	attrResourceName = attribute.Key("resource.name")
	// Low-level tracing, for each round trip.
	httpSpanPrefix             = "http."
	httpRequestSpanName        = httpSpanPrefix + "request"
	httpDNSSpanName            = httpSpanPrefix + "dns"
	httpGetConnSpanName        = httpSpanPrefix + "getconn"
	httpConnectSpanName        = httpSpanPrefix + "connect"
	httpTLSHandshakeSpanName   = httpSpanPrefix + "tls"
	httpHeadersSpanName        = httpSpanPrefix + "headers"
	httpSendSpanName           = httpSpanPrefix + "send"
	attrDNSAddresses           = attribute.Key("http.dns.addrs")
	attrRemoteAddr             = attribute.Key("http.remote")
	attrLocalAddr              = attribute.Key("http.local")
	attrConnectionReused       = attribute.Key("http.conn.reused")
	attrConnectionWasIdle      = attribute.Key("http.conn.wasidle")
	attrConnectionIdleTime     = attribute.Key("http.conn.idletime")
	attrConnectionStartNetwork = attribute.Key("http.conn.start.network")
	attrConnectionDoneNetwork  = attribute.Key("http.conn.done.network")
	attrConnectionDoneAddr     = attribute.Key("http.conn.done.addr")
	attrReadBytes              = attribute.Key("http.read_bytes")
	// High-level tracing.
	clientRequestSpanName   = "keboola.go.restclient.request"
	clientBodyParseSpanName = httpSpanPrefix + "request.body.parse"
	// Extra attributes for DataDog.
	attrSpanKind            = attribute.Key("span.kind")
	attrSpanKindValueClient = "client"
	attrSpanType            = attribute.Key("span.type")
	attrSpanTypeValueHTTP   = "http"
)

// NewTrace creates a trace.Factory reporting spans and metrics to the providers.
// Nil providers are replaced by noop implementations.
func NewTrace(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...Option) trace.Factory {
	cfg := newConfig(opts)
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = metricNoop.NewMeterProvider()
	}
	tracer := tracerProvider.Tracer(traceAppName)
	meters := newMeters(meterProvider.Meter(traceAppName))

	return func(rootCtx context.Context, req *http.Request) (context.Context, *trace.ClientTrace) {
		tc := &trace.ClientTrace{}
		rootAttrs := newAttributes(cfg)
		rootAttrs.SetFromRequest(req)
		attrs := newAttributes(cfg)

		// Root span and metrics, it may contain multiple round trips (redirects).
		{
			var rootSpan otelTrace.Span

			// Metrics
			startTime := time.Now()
			meters.client.inFlight.Add(rootCtx, 1, otelMetric.WithAttributes(rootAttrs.httpRequest...))

			// Tracing
			rootCtx, rootSpan = tracer.Start(
				rootCtx,
				clientRequestSpanName,
				otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				otelTrace.WithAttributes(
					attrResourceName.String(req.URL.Path),
					attrSpanKind.String(attrSpanKindValueClient),
					attrSpanType.String(attrSpanTypeValueHTTP),
				),
				otelTrace.WithAttributes(rootAttrs.httpRequest...),
				otelTrace.WithAttributes(rootAttrs.httpRequestExtra...),
			)
			tc.RequestProcessed = func(res *http.Response, err error) {
				elapsedTime := float64(time.Since(startTime)) / float64(time.Millisecond)
				rootAttrs.SetFromResponse(res, err)

				// Metrics
				meterAttrs := append(append([]attribute.KeyValue(nil), rootAttrs.httpRequest...), rootAttrs.httpResponse...)
				meters.client.inFlight.Add(rootCtx, -1, otelMetric.WithAttributes(rootAttrs.httpRequest...)) // same attributes as above (+1)!
				meters.client.duration.Record(rootCtx, elapsedTime, otelMetric.WithAttributes(meterAttrs...))

				// Tracing
				if rootSpan == nil {
					return
				}
				rootSpan.SetAttributes(rootAttrs.httpResponse...)
				rootSpan.SetAttributes(rootAttrs.httpResponseExtra...)
				if err == nil {
					rootSpan.End()
				} else {
					rootSpan.RecordError(err)
					rootSpan.SetStatus(codes.Error, err.Error())
					rootSpan.End(otelTrace.WithStackTrace(true))
				}
				rootSpan = nil
			}
		}

		// Round trips
		httpCtx := rootCtx
		{
			var httpRequestSpan otelTrace.Span
			var httpRequestStart time.Time
			tc.HTTPRequestStart = func(req *http.Request) {
				httpCtx, httpRequestSpan = tracer.Start(
					rootCtx,
					httpRequestSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(
						attrResourceName.String(req.URL.Path),
						attrSpanKind.String(attrSpanKindValueClient),
						attrSpanType.String(attrSpanTypeValueHTTP),
					),
				)

				// Inject trace headers
				if cfg.propagators != nil {
					cfg.propagators.Inject(httpCtx, propagation.HeaderCarrier(req.Header))
				}

				httpRequestStart = time.Now()
				attrs.SetFromRequest(req)
				meters.http.inFlight.Add(rootCtx, 1, otelMetric.WithAttributes(attrs.httpRequest...))
				httpRequestSpan.SetAttributes(attrs.httpRequest...)
				httpRequestSpan.SetAttributes(attrs.httpRequestExtra...)
			}
			tc.HTTPRequestDone = func(res *http.Response, err error) {
				elapsedTime := float64(time.Since(httpRequestStart)) / float64(time.Millisecond)
				attrs.SetFromResponse(res, err)

				// Metrics
				meters.http.inFlight.Add(rootCtx, -1, otelMetric.WithAttributes(attrs.httpRequest...)) // same attributes as in HTTPRequestStart!
				meters.http.duration.Record(
					rootCtx,
					elapsedTime,
					otelMetric.WithAttributes(attrs.httpRequest...),
					otelMetric.WithAttributes(attrs.httpResponse...),
				)

				// Tracing
				if httpRequestSpan == nil {
					return
				}
				httpRequestSpan.SetAttributes(attrs.httpResponse...)
				httpRequestSpan.SetAttributes(attrs.httpResponseExtra...)
				switch {
				case err != nil:
					httpRequestSpan.RecordError(err)
					httpRequestSpan.SetStatus(codes.Error, err.Error())
				case res != nil && res.StatusCode >= http.StatusBadRequest:
					httpErr := fmt.Errorf(`HTTP status code: %d %s`, res.StatusCode, http.StatusText(res.StatusCode))
					httpRequestSpan.RecordError(httpErr)
					httpRequestSpan.SetStatus(codes.Error, httpErr.Error())
				}
				httpRequestSpan.End()
				httpRequestSpan = nil
			}
		}

		// Body parsing
		{
			var bodyParseSpan otelTrace.Span
			var bodyParseStart time.Time
			var bodyParseMeterAttrs []attribute.KeyValue
			tc.BodyParseStart = func(res *http.Response) {
				bodyParseStart = time.Now()
				bodyParseMeterAttrs = append(append([]attribute.KeyValue(nil), attrs.httpRequest...), attrs.httpResponse...)
				meters.parse.inFlight.Add(rootCtx, 1, otelMetric.WithAttributes(bodyParseMeterAttrs...))
				_, bodyParseSpan = tracer.Start(
					httpCtx,
					clientBodyParseSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(attrs.httpRequest...),
					otelTrace.WithAttributes(attrs.httpResponse...),
				)
			}
			tc.BodyParseDone = func(res *http.Response, bytes int64, err error) {
				elapsedTime := float64(time.Since(bodyParseStart)) / float64(time.Millisecond)

				// Metrics
				meters.parse.inFlight.Add(rootCtx, -1, otelMetric.WithAttributes(bodyParseMeterAttrs...))
				meters.parse.duration.Record(rootCtx, elapsedTime, otelMetric.WithAttributes(bodyParseMeterAttrs...))
				meters.http.responseContentLength.Add(rootCtx, bytes, otelMetric.WithAttributes(bodyParseMeterAttrs...))

				// Tracing
				if bodyParseSpan == nil {
					return
				}
				bodyParseSpan.SetAttributes(attrReadBytes.Int64(bytes))
				if err != nil {
					bodyParseSpan.RecordError(err)
					bodyParseSpan.SetStatus(codes.Error, err.Error())
				}
				bodyParseSpan.End()
				bodyParseSpan = nil
			}
		}

		// Low-level tracing.
		// httptrace: DNS
		{
			var dnsSpan otelTrace.Span
			tc.DNSStart = func(info httptrace.DNSStartInfo) {
				_, dnsSpan = tracer.Start(
					httpCtx,
					httpDNSSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(semconv.ServerAddress(info.Host)),
				)
			}
			tc.DNSDone = func(info httptrace.DNSDoneInfo) {
				if dnsSpan == nil {
					return
				}
				var addrs []string
				for _, netAddr := range info.Addrs {
					addrs = append(addrs, netAddr.String())
				}
				dnsSpan.SetAttributes(attrDNSAddresses.String(strings.Join(addrs, ";")))
				if info.Err != nil {
					dnsSpan.RecordError(info.Err)
					dnsSpan.SetStatus(codes.Error, info.Err.Error())
				}
				dnsSpan.End()
				dnsSpan = nil
			}
		}
		// httptrace: Get connection
		{
			var getConnSpan otelTrace.Span
			tc.GetConn = func(host string) {
				_, getConnSpan = tracer.Start(
					httpCtx,
					httpGetConnSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(semconv.ServerAddress(host)),
				)
			}
			tc.GotConn = func(info httptrace.GotConnInfo) {
				if getConnSpan == nil {
					return
				}
				getConnSpan.SetAttributes(
					attrRemoteAddr.String(info.Conn.RemoteAddr().String()),
					attrLocalAddr.String(info.Conn.LocalAddr().String()),
					attrConnectionReused.Bool(info.Reused),
					attrConnectionWasIdle.Bool(info.WasIdle),
				)
				if info.WasIdle {
					getConnSpan.SetAttributes(attrConnectionIdleTime.String(info.IdleTime.String()))
				}
				getConnSpan.End()
				getConnSpan = nil
			}
		}
		// httptrace: Connect
		{
			var connectSpan otelTrace.Span
			tc.ConnectStart = func(network, addr string) {
				_, connectSpan = tracer.Start(
					httpCtx,
					httpConnectSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					otelTrace.WithAttributes(
						attrRemoteAddr.String(addr),
						attrConnectionStartNetwork.String(network),
					),
				)
			}
			tc.ConnectDone = func(network, addr string, err error) {
				if connectSpan == nil {
					return
				}
				connectSpan.SetAttributes(
					attrConnectionDoneAddr.String(addr),
					attrConnectionDoneNetwork.String(network),
				)
				if err != nil {
					connectSpan.RecordError(err)
					connectSpan.SetStatus(codes.Error, err.Error())
				}
				connectSpan.End()
				connectSpan = nil
			}
		}
		// httptrace: TLS handshake
		// Note: It is not reported if the http2.Transport is used directly.
		{
			var tlsSpan otelTrace.Span
			tc.TLSHandshakeStart = func() {
				_, tlsSpan = tracer.Start(
					httpCtx,
					httpTLSHandshakeSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				)
			}
			tc.TLSHandshakeDone = func(_ tls.ConnectionState, err error) {
				if tlsSpan == nil {
					return
				}
				if err != nil {
					tlsSpan.RecordError(err)
					tlsSpan.SetStatus(codes.Error, err.Error())
				}
				tlsSpan.End()
				tlsSpan = nil
			}
		}
		// httptrace: headers, send
		{
			var headersSpan otelTrace.Span
			var sendSpan otelTrace.Span
			tc.WroteHeaderField = func(_ string, _ []string) {
				// Start headers span at first header
				if headersSpan == nil {
					_, headersSpan = tracer.Start(
						httpCtx,
						httpHeadersSpanName,
						otelTrace.WithSpanKind(otelTrace.SpanKindClient),
					)
				}
			}
			tc.WroteHeaders = func() {
				if headersSpan != nil {
					headersSpan.End()
					headersSpan = nil
				}
				_, sendSpan = tracer.Start(
					httpCtx,
					httpSendSpanName,
					otelTrace.WithSpanKind(otelTrace.SpanKindClient),
				)
			}
			tc.WroteRequest = func(info httptrace.WroteRequestInfo) {
				if sendSpan == nil {
					return
				}
				if info.Err != nil {
					sendSpan.RecordError(info.Err)
					sendSpan.SetStatus(codes.Error, info.Err.Error())
				}
				sendSpan.End()
				sendSpan = nil
			}
		}

		return rootCtx, tc
	}
}
