package otel

import otelMetric "go.opentelemetry.io/otel/metric"

const (
	meterPrefix       = "keboola.go.restclient."
	clientMeterPrefix = meterPrefix + "client."
	httpMeterPrefix   = meterPrefix + "http."
)

type meters struct {
	client struct {
		inFlight otelMetric.Int64UpDownCounter
		duration otelMetric.Float64Histogram
	}
	http struct {
		inFlight              otelMetric.Int64UpDownCounter
		duration              otelMetric.Float64Histogram
		responseContentLength otelMetric.Int64Counter
	}
	parse struct {
		inFlight otelMetric.Int64UpDownCounter
		duration otelMetric.Float64Histogram
	}
}

func newMeters(meter otelMetric.Meter) *meters {
	m := &meters{}
	m.client.inFlight = upDownCounter(meter, clientMeterPrefix+"request.in_flight", "HTTP client: in flight requests.")
	m.client.duration = histogram(meter, clientMeterPrefix+"request.duration", "HTTP client: requests duration.", "ms")
	m.http.inFlight = upDownCounter(meter, httpMeterPrefix+"request.in_flight", "HTTP request: in flight requests.")
	m.http.duration = histogram(meter, httpMeterPrefix+"request.duration", "HTTP request: response received duration (without parsing).", "ms")
	m.http.responseContentLength = counter(meter, httpMeterPrefix+"response.content_length", "HTTP response: read body bytes.", "By")
	m.parse.inFlight = upDownCounter(meter, clientMeterPrefix+"request.parse.in_flight", "HTTP client: in flight request parsing.")
	m.parse.duration = histogram(meter, clientMeterPrefix+"request.parse.duration", "HTTP client: request parse duration.", "ms")
	return m
}

func upDownCounter(meter otelMetric.Meter, name, desc string) otelMetric.Int64UpDownCounter {
	return mustInstrument(meter.Int64UpDownCounter(name, otelMetric.WithDescription(desc)))
}

func counter(meter otelMetric.Meter, name, desc, unit string) otelMetric.Int64Counter {
	return mustInstrument(meter.Int64Counter(name, otelMetric.WithDescription(desc), otelMetric.WithUnit(unit)))
}

func histogram(meter otelMetric.Meter, name, desc, unit string) otelMetric.Float64Histogram {
	return mustInstrument(meter.Float64Histogram(name, otelMetric.WithDescription(desc), otelMetric.WithUnit(unit)))
}

func mustInstrument[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}
