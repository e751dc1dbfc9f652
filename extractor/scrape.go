package extractor

import (
	"context"
	"errors"
	"strings"
	"time"

	"review-scraper/engine"
	"review-scraper/internal/metrics"
	"review-scraper/internal/types"
)

type state int

const (
	stateNavigating state = iota
	stateExtracting
	statePaginating
	stateFinalized
)

func (s state) String() string {
	switch s {
	case stateNavigating:
		return "navigating"
	case stateExtracting:
		return "extracting"
	case statePaginating:
		return "paginating"
	default:
		return "finalized"
	}
}

// scrape is the mutable state of one invocation
type scrape struct {
	req     types.ScrapeRequest
	adapter types.PlatformAdapter
	page    types.Page
	logger  types.Logger
	metrics *metrics.Metrics

	navigator  *engine.Navigator
	locator    *engine.Locator
	paginator  *engine.Paginator
	normalizer *engine.Normalizer
	stop       engine.StopRule

	handle         *engine.ReviewPageHandle
	seen           map[string]bool
	records        []types.ReviewRecord
	dropped        int
	pages          int
	blocked        bool
	stoppedByError bool
	err            error
}

// run drives the state machine until it is finalized
func (s *scrape) run(ctx context.Context) {
	for current := stateNavigating; current != stateFinalized; {
		s.logger.Debugf("Scrape state: %s", current)
		switch current {
		case stateNavigating:
			current = s.navigate(ctx)
		case stateExtracting:
			current = s.extract(ctx)
		case statePaginating:
			current = s.paginate(ctx)
		}
	}
}

func (s *scrape) navigate(ctx context.Context) state {
	handle, err := s.navigator.LocateCompanyPage(ctx, s.page, s.adapter, s.req.Company)
	if err != nil {
		return s.fail(err)
	}
	s.handle = handle
	s.visited()
	if handle.LowConfidence {
		s.logger.Warnf("No exact match for %q, using %q (score %.2f)", s.req.Company, handle.MatchedName, handle.MatchScore)
	}
	return stateExtracting
}

func (s *scrape) extract(ctx context.Context) state {
	fragments, err := s.locator.Extract(ctx, s.page, s.adapter)
	if err != nil {
		if errors.Is(err, types.ErrNoMatchersSucceeded) {
			return s.noMatchers(ctx, err)
		}
		return s.fail(err)
	}

	fresh := 0
	for fragment, ok := fragments.Next(); ok; fragment, ok = fragments.Next() {
		key := fragmentKey(fragment)
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		fresh++

		if date, ok := s.normalizer.ParseDate(fragment.DateText); ok && s.stop.PredatesRange(date) {
			s.logger.Infof("Review dated %s predates %s, stopping", date, s.req.StartDate)
			return stateFinalized
		}

		record, err := s.normalizer.Normalize(fragment, s.req.StartDate, s.req.EndDate)
		if err != nil {
			s.dropped++
			s.metrics.IncDropped(string(s.req.Platform), dropReason(err))
			s.logger.Debugf("Dropped fragment %d (%s): %v", fragment.Index, fragment.Matcher, err)
			continue
		}
		s.records = append(s.records, *record)
		if s.stop.Quota(len(s.records)) {
			s.logger.Infof("Reached the requested %d reviews", s.req.MaxReviews)
			return stateFinalized
		}
	}

	if fresh == 0 {
		s.logger.Infof("No new reviews on page %d, listing exhausted", s.paginator.Page())
		return stateFinalized
	}
	s.logger.Infof("Page %d: %d fragments with %q, %d reviews so far", s.paginator.Page(), fresh, fragments.Matcher().Name, len(s.records))
	return statePaginating
}

// noMatchers decides whether an empty page is a block or a genuine absence of reviews
func (s *scrape) noMatchers(ctx context.Context, cause error) state {
	first := s.paginator.Page() == 1
	if err := engine.CheckBlocked(ctx, s.page, s.adapter, s.handle.Current, s.handle.Status, first); err != nil {
		return s.fail(err)
	}
	if first {
		s.logger.Infof("No reviews found for %q on %s", s.req.Company, s.req.Platform)
		s.err = cause
		return stateFinalized
	}
	s.logger.Infof("No reviews on page %d, listing exhausted", s.paginator.Page())
	return stateFinalized
}

func (s *scrape) paginate(ctx context.Context) state {
	more, err := s.paginator.Advance(ctx, s.page, s.handle, s.adapter)
	if err != nil {
		return s.fail(err)
	}
	if !more {
		return stateFinalized
	}
	s.visited()
	return stateExtracting
}

func (s *scrape) visited() {
	s.pages++
	s.metrics.IncPages(string(s.req.Platform))
}

// fail absorbs an error into the run state and finalizes
func (s *scrape) fail(err error) state {
	s.err = err
	var blocked *types.BlockedError
	switch {
	case errors.As(err, &blocked):
		s.blocked = true
		s.metrics.IncBlock(string(s.req.Platform), blocked.Signature)
		s.logger.Warnf("Blocked by %s: %v", s.req.Platform, err)
	case errors.Is(err, types.ErrCompanyNotFound):
		s.logger.Warnf("Company not found: %v", err)
	default:
		s.stoppedByError = true
		s.logger.Errorf("Scrape stopped: %v", err)
	}
	return stateFinalized
}

func (s *scrape) result(runID string, scrapedAt time.Time) *types.ScrapeResult {
	result := &types.ScrapeResult{
		RunID:            runID,
		Company:          s.req.Company,
		Platform:         s.req.Platform,
		StartDate:        s.req.StartDate,
		EndDate:          s.req.EndDate,
		Status:           decideStatus(s.blocked, s.stoppedByError, len(s.records)),
		RatingScale:      s.adapter.RatingScale(),
		TotalReviews:     len(s.records),
		DroppedFragments: s.dropped,
		PagesVisited:     s.pages,
		Error:            types.ErrorLabel(s.err),
		ScrapedAt:        scrapedAt,
		Reviews:          s.records,
	}
	if s.handle != nil {
		result.MatchedCompany = s.handle.MatchedName
		result.MatchScore = s.handle.MatchScore
		result.LowConfidenceMatch = s.handle.LowConfidence
	}
	return result
}

// decideStatus applies the status rule at finalization
func decideStatus(blocked, stoppedByError bool, records int) types.Status {
	switch {
	case blocked && records < 1:
		return types.StatusBlocked
	case records == 0:
		return types.StatusNoResults
	case stoppedByError || blocked:
		return types.StatusPartial
	default:
		return types.StatusComplete
	}
}

func fragmentKey(f types.RawReviewFragment) string {
	return strings.Join([]string{f.Title, f.Body, f.DateText, f.Reviewer, f.FullText}, "\x1f")
}

func dropReason(err error) string {
	if errors.Is(err, types.ErrOutOfRange) {
		return "out_of_range"
	}
	return "malformed"
}
