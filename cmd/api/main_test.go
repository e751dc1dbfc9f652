package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-scraper/extractor"
	"review-scraper/internal/browsertest"
	"review-scraper/internal/types"
	"review-scraper/utils"
)

func testServer(t *testing.T, opener extractor.SessionOpener) *httptest.Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	config := types.DefaultConfig()
	config.MinActionDelay = 0
	config.MaxActionDelay = 0

	server := NewServer(config, logger, "", extractor.WithSessionOpener(opener))
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts
}

func serving(pages map[string]browsertest.Page) extractor.SessionOpener {
	return func(ctx context.Context, config *types.Config, logger types.Logger) (types.Page, error) {
		browser := browsertest.New(pages)
		return utils.NewSession(browser, utils.Identity{}, utils.NewPacer(0, 0, utils.NewRand()), logger), nil
	}
}

func postScrape(t *testing.T, ts *httptest.Server, body string) (*http.Response, APIResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/scrape", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHandleScrape(t *testing.T) {
	ts := testServer(t, serving(map[string]browsertest.Page{
		"https://www.g2.com/products/zoom/reviews": browsertest.OK("Zoom Reviews", browsertest.ReviewListing("Zoom", []browsertest.Review{
			{Title: "Clear calls", Body: "Video quality is great.", Date: "04/11/2023", Rating: "5"},
		}, "")),
	}))

	resp, decoded := postScrape(t, ts, `{"company":"Zoom","platform":"g2","start_date":"2023-01-01","end_date":"2023-12-31"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decoded.Success)
	require.NotNil(t, decoded.Data)
	assert.Equal(t, types.StatusComplete, decoded.Data.Status)
	require.Len(t, decoded.Data.Reviews, 1)
	assert.Equal(t, "Video quality is great.", decoded.Data.Reviews[0].Body)
}

func TestHandleScrape_Errors(t *testing.T) {
	tests := []struct {
		name   string
		opener extractor.SessionOpener
		body   string
		status int
	}{
		{
			name:   "invalid json",
			opener: serving(nil),
			body:   `{"company":`,
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid platform",
			opener: serving(nil),
			body:   `{"company":"Zoom","platform":"yelp","start_date":"2023-01-01","end_date":"2023-12-31"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "start after end",
			opener: serving(nil),
			body:   `{"company":"Zoom","platform":"g2","start_date":"2023-12-31","end_date":"2023-01-01"}`,
			status: http.StatusBadRequest,
		},
		{
			name: "no browser",
			opener: func(ctx context.Context, config *types.Config, logger types.Logger) (types.Page, error) {
				return nil, fmt.Errorf("%w: no compatible browser binary found", types.ErrSessionUnavailable)
			},
			body:   `{"company":"Zoom","platform":"g2","start_date":"2023-01-01","end_date":"2023-12-31"}`,
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := testServer(t, tt.opener)

			resp, decoded := postScrape(t, ts, tt.body)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, decoded.Success)
			assert.NotEmpty(t, decoded.Error)
		})
	}
}

func TestHandleHealthAndMetrics(t *testing.T) {
	ts := testServer(t, serving(map[string]browsertest.Page{
		"https://www.g2.com/products/zoom/reviews": browsertest.ChallengePage(),
	}))
	postScrape(t, ts, `{"company":"Zoom","platform":"g2","start_date":"2023-01-01","end_date":"2023-12-31"}`)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `review_scraper_scrapes_total{platform="g2",status="blocked"} 1`)
	assert.Contains(t, string(body), `review_scraper_blocks_total{platform="g2",signature="cloudflare-challenge"} 1`)
}
