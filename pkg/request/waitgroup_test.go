package request_test

import (
	"context"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/go-restclient/pkg/client"
	"github.com/keboola/go-restclient/pkg/request"
)

type emptyResult = request.Result[request.NoResult, request.NoResult]

func newEmptyRequest(c client.Client) *request.HTTPRequest[request.NoResult, request.NoResult] {
	return request.NewHTTPRequest[request.NoResult, request.NoResult](c)
}

func TestWaitGroup(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	c = c.WithBaseURL("https://example.com")
	transport.RegisterResponder("GET", `=~^https://example.com/`, httpmock.NewStringResponder(200, "OK"))

	// Create wait group
	g := request.NewWaitGroup(context.Background())

	// Send requests
	g.Send(newEmptyRequest(c).WithGet("foo1"))
	g.Send(newEmptyRequest(c).WithGet("foo2"))
	g.Send(newEmptyRequest(c).
		WithGet("foo3").
		WithOnSuccess(func(ctx context.Context, result *emptyResult) {
			g.Send(newEmptyRequest(c).WithGet("foo5"))
		}).
		WithOnError(func(ctx context.Context, result *emptyResult) {
			g.Send(newEmptyRequest(c).WithGet("err"))
		}),
	)
	g.Send(newEmptyRequest(c).
		WithGet("foo4").
		WithOnSuccess(func(ctx context.Context, result *emptyResult) {
			g.Send(newEmptyRequest(c).WithGet("foo6"))
		}),
	)

	// Requests are sent immediately
	time.Sleep(100 * time.Millisecond)
	assert.Greater(t, transport.GetTotalCallCount(), 0)

	// Wait for all requests
	assert.NoError(t, g.Wait())

	// No new request
	assert.Equal(t, map[string]int{
		"GET =~^https://example.com/":  6,
		"GET https://example.com/foo1": 1,
		"GET https://example.com/foo2": 1,
		"GET https://example.com/foo3": 1,
		"GET https://example.com/foo4": 1,
		"GET https://example.com/foo5": 1,
		"GET https://example.com/foo6": 1,
	}, transport.GetCallCountInfo())
}

func TestWaitGroup_HandleError(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	c = c.WithBaseURL("https://example.com")
	transport.RegisterResponder("GET", `=~^https://example.com/`, httpmock.NewStringResponder(401, "Forbidden"))

	// Create wait group
	g := request.NewWaitGroup(context.Background())

	// Send requests
	requestsCount := 100
	assert.Greater(t, requestsCount, request.WaitGroupConcurrencyLimit)
	for i := 1; i <= requestsCount; i++ {
		g.Send(newEmptyRequest(c).WithGet("foo"))
	}

	// All errors are returned
	err := g.Wait()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `100 errors occurred:`)
	assert.Contains(t, err.Error(), `request GET "https://example.com/foo" failed: 401 Unauthorized`)

	// All requests have been sent
	assert.Equal(t, 100, transport.GetTotalCallCount())
}

func TestParallel(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	c = c.WithBaseURL("https://example.com")
	transport.RegisterResponder("GET", `https://example.com/ok`, httpmock.NewStringResponder(200, "OK"))
	transport.RegisterResponder("GET", `https://example.com/err`, httpmock.NewStringResponder(500, "Error"))

	// One error is unwrapped
	err := request.Parallel(
		newEmptyRequest(c).WithGet("ok"),
		newEmptyRequest(c).WithGet("err"),
		newEmptyRequest(c).WithGet("ok"),
	).SendOrErr(context.Background())
	var statusErr *request.UnexpectedStatusError
	if assert.ErrorAs(t, err, &statusErr) {
		assert.Equal(t, 500, statusErr.Status)
	}
	assert.Equal(t, 3, transport.GetTotalCallCount())
}

func TestExecuteParallel(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	c = c.WithBaseURL("https://example.com")
	transport.RegisterResponder("GET", `https://example.com/ok`, httpmock.NewStringResponder(200, "OK"))
	transport.RegisterResponder("GET", `https://example.com/err`, httpmock.NewStringResponder(500, "Error"))

	results, err := request.ExecuteParallel(context.Background(), 2,
		newEmptyRequest(c).WithGet("ok"),
		newEmptyRequest(c).WithGet("err"),
		newEmptyRequest(c).WithMethod(request.MethodGet),
		newEmptyRequest(c).WithGet("ok"),
	)

	// Only the configuration error is returned
	require.Error(t, err)
	assert.Equal(t, "invalid request configuration: url is not set", err.Error())

	// Results are in the order of requests
	require.Len(t, results, 4)
	assert.True(t, results[0].WasSuccessful())
	assert.Equal(t, 500, results[1].Status)
	assert.False(t, results[1].WasSuccessful())
	assert.Nil(t, results[2])
	assert.True(t, results[3].WasSuccessful())
	assert.Equal(t, 3, transport.GetTotalCallCount())
}
