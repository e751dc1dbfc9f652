package types

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Platform identifies a supported review site
type Platform string

const (
	PlatformG2          Platform = "g2"
	PlatformCapterra    Platform = "capterra"
	PlatformTrustRadius Platform = "trustradius"
)

// SupportedPlatforms lists every platform the engine has an adapter for
var SupportedPlatforms = []Platform{PlatformG2, PlatformCapterra, PlatformTrustRadius}

// ParsePlatform converts user input into a Platform, rejecting anything outside the enumeration
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range SupportedPlatforms {
		if p == supported {
			return p, nil
		}
	}
	names := make([]string, len(SupportedPlatforms))
	for i, supported := range SupportedPlatforms {
		names[i] = string(supported)
	}
	return "", &ConfigurationError{
		Field:  "platform",
		Reason: fmt.Sprintf("invalid platform %q, must be one of: %s", s, strings.Join(names, ", ")),
	}
}

// Status is the outcome of a single scrape invocation
type Status string

const (
	StatusComplete  Status = "complete"
	StatusPartial   Status = "partial"
	StatusBlocked   Status = "blocked"
	StatusNoResults Status = "no_results"
)

// ReviewRecord is the canonical output unit
type ReviewRecord struct {
	ReviewerName string   `json:"reviewer_name,omitempty"`
	ReviewerInfo string   `json:"reviewer_info,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	Date         Date     `json:"date"`
	Title        string   `json:"title,omitempty"`
	Body         string   `json:"body"`
	Pros         string   `json:"pros,omitempty"`
	Cons         string   `json:"cons,omitempty"`
	Source       Platform `json:"source"`
	SourceURL    string   `json:"source_url"`
}

// RawReviewFragment is one candidate review matched on a live page.
// Fields hold unparsed text exactly as found in the markup.
type RawReviewFragment struct {
	Matcher      string
	Index        int
	SourceURL    string
	Title        string
	Body         string
	DateText     string
	RatingText   string
	Reviewer     string
	ReviewerInfo string
	Pros         string
	Cons         string
	FullText     string
}

// ScrapeResult is the manifest produced once per invocation
type ScrapeResult struct {
	RunID              string         `json:"run_id"`
	Company            string         `json:"company"`
	Platform           Platform       `json:"platform"`
	StartDate          Date           `json:"start_date"`
	EndDate            Date           `json:"end_date"`
	Status             Status         `json:"status"`
	LowConfidenceMatch bool           `json:"low_confidence_match"`
	MatchedCompany     string         `json:"matched_company,omitempty"`
	MatchScore         float64        `json:"match_score"`
	RatingScale        float64        `json:"rating_scale"`
	TotalReviews       int            `json:"total_reviews"`
	DroppedFragments   int            `json:"dropped_fragments"`
	PagesVisited       int            `json:"pages_visited"`
	Error              string         `json:"error,omitempty"`
	ScrapedAt          time.Time      `json:"scraped_at"`
	Reviews            []ReviewRecord `json:"reviews"`
}

// Config holds the configuration for the scraping engine
type Config struct {
	Headless          bool
	UserAgent         string
	MinActionDelay    time.Duration
	MaxActionDelay    time.Duration
	Timeout           time.Duration
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	MaxScrollAttempts int
	MaxPages          int
	WindowWidth       int
	WindowHeight      int
	BrowserPath       string
	RemoteURL         string
	ProbeRetries      int
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Headless:          false,
		MinActionDelay:    2 * time.Second,
		MaxActionDelay:    6 * time.Second,
		Timeout:           10 * time.Minute,
		NavigationTimeout: 45 * time.Second,
		ElementTimeout:    15 * time.Second,
		MaxScrollAttempts: 10,
		MaxPages:          50,
		WindowWidth:       1920,
		WindowHeight:      1080,
		ProbeRetries:      3,
	}
}

// Validate ensures all configuration values are coherent
func (c *Config) Validate() error {
	if c.MinActionDelay < 0 {
		return &ConfigurationError{Field: "min_action_delay", Reason: "cannot be negative"}
	}
	if c.MaxActionDelay < c.MinActionDelay {
		return &ConfigurationError{
			Field:  "max_action_delay",
			Reason: fmt.Sprintf("(%s) cannot be lower than min action delay (%s)", c.MaxActionDelay, c.MinActionDelay),
		}
	}
	if c.Timeout <= 0 {
		return &ConfigurationError{Field: "timeout", Reason: "must be positive"}
	}
	if c.NavigationTimeout <= 0 || c.ElementTimeout <= 0 {
		return &ConfigurationError{Field: "timeout", Reason: "navigation and element timeouts must be positive"}
	}
	if c.MaxScrollAttempts <= 0 {
		return &ConfigurationError{Field: "max_scroll_attempts", Reason: "must be positive"}
	}
	if c.MaxPages <= 0 {
		return &ConfigurationError{Field: "max_pages", Reason: "must be positive"}
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return &ConfigurationError{Field: "window_size", Reason: "must be positive"}
	}
	if c.ProbeRetries < 0 {
		return &ConfigurationError{Field: "probe_retries", Reason: "cannot be negative"}
	}
	return nil
}

// Browser is the set of raw operations the engine needs from a browser tab
type Browser interface {
	// Navigate loads url and returns the HTTP status of the main document (0 if unknown)
	Navigate(ctx context.Context, url string) (int, error)
	HTML(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, text string) error
	Submit(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	// ScrollTo scrolls to a fraction of the document height (1 is the bottom)
	ScrollTo(ctx context.Context, fraction float64) error
	Evaluate(ctx context.Context, script string, res interface{}) error
	Close()
}

// Page is a Browser whose interactions follow the human-like pacing discipline
type Page interface {
	Browser
	// Pause waits for one randomized action delay
	Pause(ctx context.Context) error
	// SimulateHuman performs incidental scrolling and pointer movement
	SimulateHuman(ctx context.Context) error
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
