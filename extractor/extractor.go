package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"review-scraper/adapters"
	"review-scraper/engine"
	"review-scraper/internal/metrics"
	"review-scraper/internal/types"
	"review-scraper/utils"
)

// SessionOpener starts the browser session used by one invocation
type SessionOpener func(ctx context.Context, config *types.Config, logger types.Logger) (types.Page, error)

// Option customizes a ReviewExtractor
type Option func(*ReviewExtractor)

// WithSessionOpener replaces the chromedp session with another page implementation
func WithSessionOpener(open SessionOpener) Option {
	return func(e *ReviewExtractor) {
		e.open = open
	}
}

// WithMetrics records every invocation in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *ReviewExtractor) {
		e.metrics = m
	}
}

// WithClock sets the time source used for validation and timestamps
func WithClock(now func() time.Time) Option {
	return func(e *ReviewExtractor) {
		e.now = now
	}
}

// ReviewExtractor runs scrape invocations. It holds no per-invocation state and
// may run several invocations concurrently, each with its own session.
type ReviewExtractor struct {
	config  *types.Config
	logger  types.Logger
	open    SessionOpener
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewReviewExtractor creates a new review extractor
func NewReviewExtractor(config *types.Config, logger types.Logger, opts ...Option) *ReviewExtractor {
	e := &ReviewExtractor{
		config: config,
		logger: logger,
		open:   openBrowserSession,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func openBrowserSession(ctx context.Context, config *types.Config, logger types.Logger) (types.Page, error) {
	session, err := utils.OpenSession(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Run scrapes the reviews described by req. It returns an error only for invalid
// input or when no browser session can be opened; every other failure is reported
// through the result status.
func (e *ReviewExtractor) Run(ctx context.Context, req types.ScrapeRequest) (*types.ScrapeResult, error) {
	startTime := e.now()

	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	if err := req.Validate(startTime); err != nil {
		return nil, err
	}
	adapter, err := adapters.ForPlatform(req.Platform, e.logger)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := e.logger
	if fields, ok := e.logger.(logrus.FieldLogger); ok {
		logger = fields.WithFields(logrus.Fields{
			"run_id":   runID,
			"platform": req.Platform,
			"company":  req.Company,
		})
	}
	logger.Infof("Starting %s review scrape for %q (%s to %s, max %d)", req.Platform, req.Company, req.StartDate, req.EndDate, req.MaxReviews)

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	page, err := e.open(ctx, e.config, logger)
	if err != nil {
		if !errors.Is(err, types.ErrSessionUnavailable) {
			err = fmt.Errorf("%w: %v", types.ErrSessionUnavailable, err)
		}
		logger.Errorf("Failed to open browser session: %v", err)
		return nil, err
	}
	defer page.Close()

	s := &scrape{
		req:        req,
		adapter:    adapter,
		page:       page,
		logger:     logger,
		metrics:    e.metrics,
		navigator:  engine.NewNavigator(e.config, logger),
		locator:    engine.NewLocator(logger),
		paginator:  engine.NewPaginator(e.config, logger),
		normalizer: engine.NewNormalizer(adapter),
		stop: engine.StopRule{
			MaxReviews:  req.MaxReviews,
			Start:       req.StartDate,
			NewestFirst: adapter.Pagination().NewestFirst,
		},
		seen:    map[string]bool{},
		records: []types.ReviewRecord{},
	}
	s.run(ctx)

	result := s.result(runID, e.now())
	elapsed := time.Since(startTime)
	e.metrics.ObserveScrape(string(req.Platform), string(result.Status), elapsed)
	e.metrics.AddReviews(string(req.Platform), result.TotalReviews)

	switch result.Status {
	case types.StatusBlocked:
		logger.Warnf("Scrape blocked by %s after %v", req.Platform, elapsed)
	default:
		logger.Infof("Scrape finished with status %s in %v: %d reviews, %d dropped, %d pages",
			result.Status, elapsed, result.TotalReviews, result.DroppedFragments, result.PagesVisited)
	}
	return result, nil
}
