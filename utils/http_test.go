package utils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-scraper/internal/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestHTTPClient() *HTTPClient {
	config := types.DefaultConfig()
	config.ProbeRetries = 2
	client := NewHTTPClient(config, testLogger())
	client.retryDelay = 0
	return client
}

func TestHTTPClient_GetRetriesUntilSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, err := newTestHTTPClient().Get(context.Background(), server.URL)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPClient_GetGivesUp(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestHTTPClient().Get(context.Background(), server.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retry attempts failed")
	assert.Contains(t, err.Error(), "unexpected status code: 404")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPClient_GetCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestHTTPClient().Get(ctx, "http://127.0.0.1:1")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveDevToolsURL(t *testing.T) {
	client := newTestHTTPClient()
	httpmock.ActivateNonDefault(client.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://chrome:9222/json/version",
		httpmock.NewStringResponder(200, `{"Browser":"HeadlessChrome/120.0.6099.109","webSocketDebuggerUrl":"ws://chrome:9222/devtools/browser/abc"}`))
	httpmock.RegisterResponder(http.MethodGet, "http://empty:9222/json/version",
		httpmock.NewStringResponder(200, `{"Browser":"HeadlessChrome/120.0.6099.109"}`))

	wsURL, err := client.ResolveDevToolsURL(context.Background(), "chrome:9222/")
	require.NoError(t, err)
	assert.Equal(t, "ws://chrome:9222/devtools/browser/abc", wsURL)

	wsURL, err = client.ResolveDevToolsURL(context.Background(), "ws://already:9222/devtools/browser/x")
	require.NoError(t, err)
	assert.Equal(t, "ws://already:9222/devtools/browser/x", wsURL)

	_, err = client.ResolveDevToolsURL(context.Background(), "http://empty:9222")
	assert.ErrorContains(t, err, "did not report a websocket URL")

	assert.Equal(t, 1, httpmock.GetCallCountInfo()["GET http://chrome:9222/json/version"])
}
