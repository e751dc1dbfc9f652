package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"review-scraper/internal/types"
)

// HTTPClient talks to a remote browser's DevTools HTTP endpoint with retries
type HTTPClient struct {
	client     *http.Client
	config     *types.Config
	logger     types.Logger
	retryDelay time.Duration
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config *types.Config, logger types.Logger) *HTTPClient {
	client := &http.Client{
		Timeout: config.ElementTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	return &HTTPClient{
		client:     client,
		config:     config,
		logger:     logger,
		retryDelay: 500 * time.Millisecond,
	}
}

// Get performs a GET request with retries
func (h *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= h.config.ProbeRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, h.retryDelay); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		h.logger.Debugf("Probing %s (attempt %d/%d)", url, attempt+1, h.config.ProbeRetries+1)

		body, err := h.do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			h.logger.Warnf("Probe failed (attempt %d): %v", attempt+1, err)
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("all retry attempts failed: %w", lastErr)
}

func (h *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// ResolveDevToolsURL turns a DevTools endpoint into the browser's websocket URL.
// Websocket URLs are returned unchanged; http(s) endpoints are asked via /json/version.
func (h *HTTPClient) ResolveDevToolsURL(ctx context.Context, endpoint string) (string, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return endpoint, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}

	body, err := h.Get(ctx, endpoint+"/json/version")
	if err != nil {
		return "", fmt.Errorf("failed to reach DevTools endpoint: %w", err)
	}

	var info versionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("failed to decode DevTools version: %w", err)
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("DevTools endpoint %s did not report a websocket URL", endpoint)
	}

	h.logger.Debugf("Remote browser %s at %s", info.Browser, info.WebSocketDebuggerURL)
	return info.WebSocketDebuggerURL, nil
}
