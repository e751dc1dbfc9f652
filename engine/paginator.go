package engine

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"review-scraper/internal/types"
)

// Paginator loads further review batches for one listing. It tracks the page
// number and is not shared between invocations.
type Paginator struct {
	config *types.Config
	logger types.Logger
	page   int
}

// NewPaginator creates a paginator positioned on the first page
func NewPaginator(config *types.Config, logger types.Logger) *Paginator {
	return &Paginator{
		config: config,
		logger: logger,
		page:   1,
	}
}

// Page returns the number of the page (or scroll batch) currently loaded
func (p *Paginator) Page() int {
	return p.page
}

// Advance loads the next batch of reviews. It reports false once the listing is
// exhausted, and fails with a *BlockedError when a newly loaded page is a block page.
func (p *Paginator) Advance(ctx context.Context, page types.Page, handle *ReviewPageHandle, adapter types.PlatformAdapter) (bool, error) {
	if p.page >= p.config.MaxPages {
		p.logger.Infof("Reached the page limit (%d)", p.config.MaxPages)
		return false, nil
	}
	if err := page.Pause(ctx); err != nil {
		return false, err
	}

	spec := adapter.Pagination()
	var (
		more bool
		err  error
	)
	switch spec.Mode {
	case types.PaginateScroll:
		more, err = p.scroll(ctx, page, spec)
	default:
		more, err = p.nextPage(ctx, page, handle, adapter, spec)
	}
	if err != nil || !more {
		return false, err
	}

	p.page++
	if err := page.SimulateHuman(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// nextPage clicks the next-page control, or loads the next page number directly
// when the platform exposes one and no control is present
func (p *Paginator) nextPage(ctx context.Context, page types.Page, handle *ReviewPageHandle, adapter types.PlatformAdapter, spec types.PaginationSpec) (bool, error) {
	if selector, ok := p.firstPresent(ctx, page, spec.NextSelectors); ok {
		p.logger.Debugf("Moving to page %d with %s", p.page+1, selector)
		if err := page.Click(ctx, selector); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			p.logger.Warnf("Next page control %s not clickable: %v", selector, err)
			return false, nil
		}
		location, err := page.Location(ctx)
		if err != nil {
			return false, err
		}
		handle.Current = location
		if err := CheckBlocked(ctx, page, adapter, location, 0, false); err != nil {
			return false, err
		}
		if err := page.WaitFor(ctx, spec.ContentMarker, p.config.ElementTimeout); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			p.logger.Infof("No reviews appeared after moving to page %d", p.page+1)
			return false, nil
		}
		return true, nil
	}

	if spec.PageParam == "" {
		p.logger.Debug("No next page control, listing exhausted")
		return false, nil
	}

	next := PageURL(handle.URL, spec.PageParam, p.page+1)
	p.logger.Debugf("Loading page %d at %s", p.page+1, next)
	status, err := page.Navigate(ctx, next)
	if err != nil {
		return false, fmt.Errorf("failed to load page %d: %w", p.page+1, err)
	}
	handle.Current = next
	handle.Status = status
	if err := CheckBlocked(ctx, page, adapter, next, status, false); err != nil {
		return false, err
	}
	if status >= 400 {
		p.logger.Infof("Page %d answered %d, listing exhausted", p.page+1, status)
		return false, nil
	}
	return true, nil
}

// scroll triggers lazy loading with the load-more control or by scrolling to the
// bottom, until the number of reviews grows or the attempts run out
func (p *Paginator) scroll(ctx context.Context, page types.Page, spec types.PaginationSpec) (bool, error) {
	before, err := countMarkers(ctx, page, spec.ContentMarker)
	if err != nil {
		return false, err
	}

	for attempt := 1; attempt <= p.config.MaxScrollAttempts; attempt++ {
		if selector, ok := p.firstPresent(ctx, page, spec.LoadMoreSelectors); ok {
			p.logger.Debugf("Clicking load more %s (attempt %d)", selector, attempt)
			if err := page.Click(ctx, selector); err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				p.logger.Debugf("Load more control %s not clickable: %v", selector, err)
				if err := page.ScrollTo(ctx, 1); err != nil {
					return false, err
				}
			}
		} else {
			p.logger.Debugf("Scrolling for more reviews (attempt %d)", attempt)
			if err := page.ScrollTo(ctx, 1); err != nil {
				return false, err
			}
		}

		after, err := countMarkers(ctx, page, spec.ContentMarker)
		if err != nil {
			return false, err
		}
		if after > before {
			p.logger.Debugf("Loaded %d more reviews", after-before)
			return true, nil
		}
	}

	p.logger.Infof("No new reviews after %d scroll attempts", p.config.MaxScrollAttempts)
	return false, nil
}

// firstPresent returns the first selector currently matching an element
func (p *Paginator) firstPresent(ctx context.Context, page types.Page, selectors []string) (string, bool) {
	for _, selector := range selectors {
		exists, err := page.Exists(ctx, selector)
		if err == nil && exists {
			return selector, true
		}
	}
	return "", false
}

func countMarkers(ctx context.Context, page types.Browser, marker string) (int, error) {
	content, err := page.HTML(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return 0, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc.Find(marker).Length(), nil
}

// PageURL sets the page query parameter of a listing URL
func PageURL(listing, param string, page int) string {
	u, err := url.Parse(listing)
	if err != nil {
		return listing
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// StopRule decides when extraction ends independently of site exhaustion
type StopRule struct {
	MaxReviews  int
	Start       types.Date
	NewestFirst bool
}

// Quota reports whether the requested number of records has been extracted
func (r StopRule) Quota(extracted int) bool {
	return r.MaxReviews > 0 && extracted >= r.MaxReviews
}

// PredatesRange reports whether a review dated d means every later review on a
// newest-first listing also falls before the range
func (r StopRule) PredatesRange(d types.Date) bool {
	return r.NewestFirst && !d.IsZero() && d.Before(r.Start)
}
