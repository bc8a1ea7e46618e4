package request_test

import (
	"context"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/keboola/go-restclient/pkg/client"
	"github.com/keboola/go-restclient/pkg/request"
)

func TestRunGroup(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	c = c.WithBaseURL("https://example.com")
	transport.RegisterResponder("GET", `=~^https://example.com/`, httpmock.NewStringResponder(200, "OK"))

	// Create run group
	g := request.NewRunGroup(context.Background())

	// Add requests
	g.Add(newEmptyRequest(c).WithGet("foo1"))
	g.Add(newEmptyRequest(c).WithGet("foo2"))
	g.Add(newEmptyRequest(c).
		WithGet("foo3").
		WithOnSuccess(func(ctx context.Context, result *emptyResult) {
			g.Add(newEmptyRequest(c).WithGet("foo5"))
		}).
		WithOnError(func(ctx context.Context, result *emptyResult) {
			g.Add(newEmptyRequest(c).WithGet("err"))
		}),
	)
	g.Add(newEmptyRequest(c).
		WithGet("foo4").
		WithOnSuccess(func(ctx context.Context, result *emptyResult) {
			g.Add(newEmptyRequest(c).WithGet("foo6"))
		}),
	)

	// No requests have been sent yet
	assert.Equal(t, 0, transport.GetTotalCallCount())

	// Run and wait
	assert.NoError(t, g.RunAndWait())

	// All requests have been sent
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

func TestRunGroup_StopOnError(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	c = c.WithBaseURL("https://example.com")
	transport.RegisterResponder("GET", `=~^https://example.com/`, httpmock.NewStringResponder(404, "Not Found"))

	// Create run group with a single worker
	g := request.NewRunGroupWithLimit(context.Background(), 1)
	for i := 0; i < 10; i++ {
		g.Add(newEmptyRequest(c).WithGet("foo"))
	}

	// The first error is returned, the rest is not sent
	err := g.RunAndWait()
	if assert.Error(t, err) {
		assert.Equal(t, `request GET "https://example.com/foo" failed: 404 Not Found`, err.Error())
	}
	assert.Less(t, transport.GetTotalCallCount(), 10)
}

func TestRunGroup_Empty(t *testing.T) {
	t.Parallel()
	assert.NoError(t, request.NewRunGroup(context.Background()).RunAndWait())
}
