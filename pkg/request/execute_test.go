package request_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/go-restclient/pkg/client"
	"github.com/keboola/go-restclient/pkg/request"
	"github.com/keboola/go-restclient/pkg/request/body"
	"github.com/keboola/go-restclient/pkg/request/decoder"
)

type testError struct {
	Message string `json:"message"`
}

func (e testError) Error() string {
	return e.Message
}

type testItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// failSender fails the test if a request reaches the network.
type failSender struct {
	t *testing.T
}

func (s failSender) Send(_ context.Context, req *http.Request, _ request.TransportOptions, _ request.ResponseHandler) (*http.Response, error) {
	s.t.Errorf(`unexpected request %s "%s"`, req.Method, req.URL)
	return nil, errors.New("unexpected request")
}

func TestExecute_ConfigurationError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sender := failSender{t: t}

	cases := []struct {
		name     string
		execute  func() error
		expected string
	}{
		{
			name: "empty url",
			execute: func() error {
				_, err := newRequest[request.NoResult, request.NoResult](sender).WithMethod(request.MethodGet).Execute(ctx)
				return err
			},
			expected: "invalid request configuration: url is not set",
		},
		{
			name: "unset method",
			execute: func() error {
				_, err := newRequest[request.NoResult, request.NoResult](sender).WithURL("https://example.com").Execute(ctx)
				return err
			},
			expected: "invalid request configuration: method is not set",
		},
		{
			name: "missing success decoder",
			execute: func() error {
				_, err := newRequest[string, request.NoResult](sender).WithGet("https://example.com").Execute(ctx)
				return err
			},
			expected: "invalid request configuration: success decoder for type string is not set",
		},
		{
			name: "missing error decoder",
			execute: func() error {
				_, err := newRequest[request.NoResult, testError](sender).WithGet("https://example.com").Execute(ctx)
				return err
			},
			expected: "invalid request configuration: error decoder for type request_test.testError is not set",
		},
	}

	for _, tc := range cases {
		err := tc.execute()
		require.Error(t, err, tc.name)
		assert.Equal(t, tc.expected, err.Error(), tc.name)
		assert.True(t, request.IsConfigurationError(err), tc.name)
	}
}

func TestExecute_ConfigurationError_Multiple(t *testing.T) {
	t.Parallel()
	result, err := request.NewHTTPRequest[string, testError](nil).Execute(context.Background())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, request.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "5 errors occurred:")
	assert.Contains(t, err.Error(), "invalid request configuration: sender is not set")
	assert.Contains(t, err.Error(), "invalid request configuration: url is not set")
	assert.Contains(t, err.Error(), "invalid request configuration: method is not set")

	// SendOrErr returns the same error
	err = request.NewHTTPRequest[request.NoResult, request.NoResult](failSender{t: t}).SendOrErr(context.Background())
	assert.True(t, request.IsConfigurationError(err))
}

func TestExecute_Success(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	c = c.WithBaseURL("https://example.com/api")
	transport.RegisterResponder("GET", `https://example.com/api/items/1`, func(req *http.Request) (*http.Response, error) {
		res := httpmock.NewStringResponse(http.StatusOK, `{"id":1,"name":"foo"}`)
		res.Header.Set("Content-Type", "application/json")
		res.Header.Set("Date", "Wed, 21 Oct 2015 07:28:00 GMT")
		res.Header.Set("Last-Modified", "Tue, 20 Oct 2015 07:28:00 GMT")
		res.Header.Add("Set-Cookie", "session=abc")
		return res, nil
	})

	result, err := newRequest[testItem, testError](c).
		WithGet("items").
		AndPathSegment(1).
		WithResult(decoder.JSON[testItem]()).
		WithError(decoder.JSON[testError]()).
		Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, result.WasSuccessful())
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, &testItem{ID: 1, Name: "foo"}, result.SuccessResponse)
	assert.Nil(t, result.ErrorResponse)
	assert.NoError(t, result.Failure)
	assert.Equal(t, request.MethodGet, result.Method)
	assert.Equal(t, "https://example.com/api/items/1", result.URL.String())
	assert.Equal(t, "application/json", result.Header.Get("Content-Type"))
	assert.Equal(t, "2015-10-21T07:28:00Z", result.Date.UTC().Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "2015-10-20T07:28:00Z", result.LastModified.UTC().Format("2006-01-02T15:04:05Z07:00"))
	require.Len(t, result.Cookies(), 1)
	assert.Equal(t, "abc", result.Cookies()[0].Value)
	assert.NotNil(t, result.RawRequest)
}

func TestExecute_ErrorResponse(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	transport.RegisterResponder("GET", `https://example.com/missing`, httpmock.NewStringResponder(http.StatusNotFound, `{"message":"item not found"}`))

	r := newRequest[testItem, testError](c).
		WithGet("https://example.com/missing").
		WithResult(decoder.JSON[testItem]()).
		WithError(decoder.JSON[testError]())

	result, err := r.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, result.WasSuccessful())
	assert.Equal(t, http.StatusNotFound, result.Status)
	assert.Nil(t, result.SuccessResponse)
	assert.Equal(t, &testError{Message: "item not found"}, result.ErrorResponse)
	assert.NoError(t, result.Failure)

	// SendOrErr wraps the error response
	err = r.SendOrErr(context.Background())
	assert.EqualError(t, err, `request GET "https://example.com/missing" failed: 404 Not Found: item not found`)
	var statusErr *request.UnexpectedStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	var apiErr *testError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "item not found", apiErr.Message)
}

func TestExecute_ConnectFailure(t *testing.T) {
	t.Parallel()

	// Closed server, the connection is refused
	srv := httptest.NewServer(http.NotFoundHandler())
	srvURL := srv.URL
	srv.Close()

	result, err := newRequest[testItem, testError](client.NewTestClient()).
		WithGet(srvURL).
		WithResult(decoder.JSON[testItem]()).
		WithError(decoder.JSON[testError]()).
		Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, result.WasSuccessful())
	assert.Equal(t, request.NoStatus, result.Status)
	assert.Nil(t, result.SuccessResponse)
	assert.Nil(t, result.ErrorResponse)
	require.Error(t, result.Failure)
	assert.Contains(t, result.Failure.Error(), fmt.Sprintf(`request GET "%s" failed: `, srvURL))
	assert.Contains(t, result.Failure.Error(), "connection refused")
}

func TestExecute_TransportError(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	transport.RegisterResponder("GET", `https://example.com/foo`, httpmock.NewErrorResponder(errors.New("network is down")))

	result, err := newEmptyRequest(c).WithGet("https://example.com/foo").Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, request.NoStatus, result.Status)
	assert.EqualError(t, result.Failure, `request GET "https://example.com/foo" failed: network is down`)

	// SendOrErr returns the failure
	err = newEmptyRequest(c).WithGet("https://example.com/foo").SendOrErr(context.Background())
	assert.EqualError(t, err, `request GET "https://example.com/foo" failed: network is down`)
}

func TestExecute_DecodeFailure(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	transport.RegisterResponder("GET", `https://example.com/foo`, httpmock.NewStringResponder(http.StatusOK, `{"id":`))

	result, err := newRequest[testItem, testError](c).
		WithGet("https://example.com/foo").
		WithResult(decoder.JSON[testItem]()).
		WithError(decoder.JSON[testError]()).
		Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, result.WasSuccessful())
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Nil(t, result.SuccessResponse)
	assert.Nil(t, result.ErrorResponse)
	require.Error(t, result.Failure)
	assert.Contains(t, result.Failure.Error(), `cannot process request GET "https://example.com/foo": cannot decode success response: cannot parse the response as JSON:`)
	var jsonErr *decoder.JSONError
	require.ErrorAs(t, result.Failure, &jsonErr)
	assert.Equal(t, `{"id":`, string(jsonErr.Body))
}

func TestExecute_ErrorDecodeFailure(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	transport.RegisterResponder("GET", `https://example.com/foo`, httpmock.NewStringResponder(http.StatusBadGateway, `<html>Bad Gateway</html>`))

	result, err := newRequest[request.NoResult, testError](c).
		WithGet("https://example.com/foo").
		WithError(decoder.JSON[testError]()).
		Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, result.Status)
	assert.Nil(t, result.ErrorResponse)
	require.Error(t, result.Failure)
	assert.Contains(t, result.Failure.Error(), "cannot decode error response: cannot parse the response as JSON:")
}

func TestExecute_EmptyBody(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	transport.RegisterResponder("GET", `https://example.com/foo`, httpmock.NewStringResponder(http.StatusOK, ""))

	result, err := newRequest[testItem, testError](c).
		WithGet("https://example.com/foo").
		WithResult(decoder.JSON[testItem]()).
		WithError(decoder.JSON[testError]()).
		Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, result.WasSuccessful())
	assert.Equal(t, &testItem{}, result.SuccessResponse)
}

func TestExecute_NoDecoder(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	transport.RegisterResponder("GET", `https://example.com/foo`, httpmock.NewStringResponder(http.StatusInternalServerError, "some error"))

	r := newEmptyRequest(c).WithGet("https://example.com/foo")
	result, err := r.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, result.WasSuccessful())
	assert.Equal(t, http.StatusInternalServerError, result.Status)
	assert.Nil(t, result.SuccessResponse)
	assert.Nil(t, result.ErrorResponse)
	assert.NoError(t, result.Failure)

	err = r.SendOrErr(context.Background())
	assert.EqualError(t, err, `request GET "https://example.com/foo" failed: 500 Internal Server Error`)
}

func TestExecute_Head(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	transport.RegisterResponder("HEAD", `https://example.com/foo`, httpmock.NewStringResponder(http.StatusOK, ""))

	result, err := newRequest[testItem, request.NoResult](c).
		WithHead("https://example.com/foo").
		WithResult(decoder.JSON[testItem]()).
		Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, result.WasSuccessful())
	assert.Nil(t, result.SuccessResponse)
}

func TestExecute_RequestBody(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	transport.RegisterResponder("POST", `https://example.com/items`, func(req *http.Request) (*http.Response, error) {
		content, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if req.Header.Get("Content-Type") != body.ContentTypeJSON {
			return httpmock.NewStringResponse(http.StatusUnsupportedMediaType, ""), nil
		}
		return httpmock.NewStringResponse(http.StatusCreated, string(content)), nil
	})

	item := testItem{ID: 2, Name: "bar"}
	result, err := newRequest[testItem, request.NoResult](c).
		WithPost("https://example.com/items").
		WithBody(body.JSON(item)).
		WithResult(decoder.JSON[testItem]()).
		Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, result.Status)
	assert.Equal(t, &item, result.SuccessResponse)
	assert.Equal(t, item, result.Request)
	assert.Equal(t, int64(len(`{"id":2,"name":"bar"}`)), result.RawRequest.ContentLength)
}

func TestExecute_RequestBodyFailure(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()

	result, err := newEmptyRequest(c).
		WithPost("https://example.com/items").
		WithBody(body.JSON(make(chan int))).
		Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, request.NoStatus, result.Status)
	require.Error(t, result.Failure)
	assert.Contains(t, result.Failure.Error(), `request POST "https://example.com/items": cannot produce request body: cannot encode JSON body:`)
	assert.Equal(t, 0, transport.GetTotalCallCount())
}

func TestExecute_Independent(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	counter := 0
	transport.RegisterResponder("GET", `https://example.com/counter?foo=bar`, func(req *http.Request) (*http.Response, error) {
		counter++
		return httpmock.NewStringResponse(http.StatusOK, fmt.Sprintf("%d", counter)), nil
	})

	r := newRequest[string, request.NoResult](c).
		WithGet("https://example.com/counter").
		AndQueryParam("foo", "bar").
		WithResult(decoder.Text())

	result1, err := r.Execute(context.Background())
	require.NoError(t, err)
	result2, err := r.Execute(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, result1, result2)
	assert.Equal(t, "1", *result1.SuccessResponse)
	assert.Equal(t, "2", *result2.SuccessResponse)

	// The request is not modified by the execution
	assert.Equal(t, "https://example.com/counter", r.URL())
	assert.Equal(t, "https://example.com/counter?foo=bar", r.EncodedURL())
}

func TestExecute_Listeners(t *testing.T) {
	t.Parallel()
	c, transport := client.NewMockedClient()
	transport.RegisterResponder("GET", `https://example.com/ok`, httpmock.NewStringResponder(http.StatusOK, "OK"))
	transport.RegisterResponder("GET", `https://example.com/err`, httpmock.NewStringResponder(http.StatusBadRequest, "ERR"))

	var log []string
	newListenedRequest := func(url string) *request.HTTPRequest[string, string] {
		return newRequest[string, string](c).
			WithGet(url).
			WithResult(decoder.Text()).
			WithError(decoder.Text()).
			WithOnComplete(func(_ context.Context, result *request.Result[string, string]) {
				log = append(log, fmt.Sprintf("complete %d", result.Status))
			}).
			WithOnSuccess(func(_ context.Context, result *request.Result[string, string]) {
				log = append(log, "success "+*result.SuccessResponse)
			}).
			WithOnError(func(_ context.Context, result *request.Result[string, string]) {
				log = append(log, "error "+*result.ErrorResponse)
			})
	}

	_, err := newListenedRequest("https://example.com/ok").Execute(context.Background())
	require.NoError(t, err)
	_, err = newListenedRequest("https://example.com/err").Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"complete 200",
		"success OK",
		"complete 400",
		"error ERR",
	}, log)
}

func TestResult_WasSuccessful(t *testing.T) {
	t.Parallel()
	failure := errors.New("some failure")
	for _, status := range []int{199, 200, 250, 299, 300, request.NoStatus} {
		for _, err := range []error{nil, failure} {
			result := &request.Result[request.NoResult, request.NoResult]{Status: status, Failure: err}
			expected := status >= 200 && status <= 299 && err == nil
			assert.Equal(t, expected, result.WasSuccessful(), fmt.Sprintf("status=%d, failure=%v", status, err))
		}
	}
}

func newRequest[S, E any](sender request.Sender) *request.HTTPRequest[S, E] {
	return request.NewHTTPRequest[S, E](sender)
}
