// Package engine holds the platform-independent scraping components: the Navigator
// reaching a company's review listing, the Locator finding review fragments on it,
// the Paginator loading more of them and the Normalizer turning them into records.
// Platform specifics come from a types.PlatformAdapter.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"

	"review-scraper/internal/types"
)

// ReviewPageHandle is the company's review listing reached by the Navigator
type ReviewPageHandle struct {
	// URL is the first page of the review listing
	URL string
	// Current is the page currently loaded, which moves as pagination advances
	Current string
	// Status is the HTTP status of the last document loaded
	Status        int
	MatchedName   string
	MatchScore    float64
	LowConfidence bool
	Page          types.Page
}

// Navigator resolves a platform's search flow to a company's review listing
type Navigator struct {
	config *types.Config
	logger types.Logger
}

// NewNavigator creates a new navigator
func NewNavigator(config *types.Config, logger types.Logger) *Navigator {
	return &Navigator{
		config: config,
		logger: logger,
	}
}

// LocateCompanyPage walks the adapter's search flow for company. Once a result has
// been selected, remaining search steps are skipped and only reveal steps run, so
// later navigate/fill/select steps act as fallbacks for an empty result list.
// It fails with ErrCompanyNotFound when no step produced a result and with a
// *BlockedError when any page loaded on the way matches a blocking signature.
func (n *Navigator) LocateCompanyPage(ctx context.Context, page types.Page, adapter types.PlatformAdapter, company string) (*ReviewPageHandle, error) {
	company = strings.TrimSpace(company)
	handle := &ReviewPageHandle{Page: page}

	if productURL, ok := adapter.KnownProductURL(company); ok {
		n.logger.Infof("Using known %s product page for %s", adapter.Platform(), company)
		handle.URL = adapter.ReviewsURL(productURL)
		handle.MatchedName = company
		handle.MatchScore = 1
		if err := n.load(ctx, page, adapter, handle, handle.URL); err != nil {
			return nil, err
		}
		for _, step := range adapter.SearchFlow(company) {
			if step.Kind == types.StepRevealReviews {
				if err := n.reveal(ctx, page, step); err != nil {
					return nil, err
				}
			}
		}
		return n.settle(ctx, page, handle)
	}

	resolved, skipSelect := false, false
	for i, step := range adapter.SearchFlow(company) {
		if resolved && step.Kind != types.StepRevealReviews {
			continue
		}

		switch step.Kind {
		case types.StepNavigate:
			n.logger.Debugf("Search step %d: navigate to %s", i+1, step.URL)
			if err := n.load(ctx, page, adapter, handle, step.URL); err != nil {
				return nil, err
			}

		case types.StepFillSearch:
			n.logger.Debugf("Search step %d: fill %s", i+1, step.Selector)
			searched, err := n.search(ctx, page, adapter, handle, step.Selector, company)
			if err != nil {
				return nil, err
			}
			skipSelect = !searched

		case types.StepSelectResult:
			if skipSelect {
				skipSelect = false
				continue
			}
			result, found, err := n.selectResult(ctx, page, adapter, handle, company)
			if err != nil {
				return nil, err
			}
			if !found {
				n.logger.Debugf("Search step %d: no results", i+1)
				continue
			}
			resolved = true
			handle.URL = adapter.ReviewsURL(result.URL)
			if err := n.load(ctx, page, adapter, handle, handle.URL); err != nil {
				return nil, err
			}

		case types.StepRevealReviews:
			if !resolved {
				continue
			}
			if err := n.reveal(ctx, page, step); err != nil {
				return nil, err
			}
		}
	}

	if !resolved {
		return nil, fmt.Errorf("%w: %q on %s", types.ErrCompanyNotFound, company, adapter.Platform())
	}
	return n.settle(ctx, page, handle)
}

// settle lets the review listing render and performs the incidental movements a reader would
func (n *Navigator) settle(ctx context.Context, page types.Page, handle *ReviewPageHandle) (*ReviewPageHandle, error) {
	if err := page.SimulateHuman(ctx); err != nil {
		return nil, err
	}
	n.logger.Infof("Reached review listing %s (matched %q, score %.2f)", handle.URL, handle.MatchedName, handle.MatchScore)
	return handle, nil
}

// load navigates to url and checks the result for blocking signatures
func (n *Navigator) load(ctx context.Context, page types.Page, adapter types.PlatformAdapter, handle *ReviewPageHandle, url string) error {
	status, err := page.Navigate(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	handle.Current = url
	handle.Status = status
	return CheckBlocked(ctx, page, adapter, url, status, false)
}

// search types company into the search box and submits it. searched is false when
// the page has no search box, in which case the following result selection is skipped.
func (n *Navigator) search(ctx context.Context, page types.Page, adapter types.PlatformAdapter, handle *ReviewPageHandle, selector, company string) (searched bool, err error) {
	if err := page.WaitFor(ctx, selector, n.config.ElementTimeout); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		n.logger.Warnf("Search box %s not available: %v", selector, err)
		return false, nil
	}
	if err := page.Fill(ctx, selector, company); err != nil {
		return false, fmt.Errorf("failed to fill search box: %w", err)
	}
	if err := page.Submit(ctx, selector); err != nil {
		return false, fmt.Errorf("failed to submit search: %w", err)
	}
	location, err := page.Location(ctx)
	if err != nil {
		return false, err
	}
	handle.Current = location
	return true, CheckBlocked(ctx, page, adapter, location, 0, false)
}

// selectResult picks a search result from the current page
func (n *Navigator) selectResult(ctx context.Context, page types.Page, adapter types.PlatformAdapter, handle *ReviewPageHandle, company string) (types.SearchResult, bool, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return types.SearchResult{}, false, fmt.Errorf("failed to read search results: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return types.SearchResult{}, false, fmt.Errorf("failed to parse search results: %w", err)
	}

	results := adapter.SearchResults(doc)
	if len(results) == 0 {
		return types.SearchResult{}, false, nil
	}

	result, exact := ChooseResult(results, company)
	handle.MatchedName = result.Name
	handle.MatchScore = MatchScore(company, result.Name)
	handle.LowConfidence = !exact
	if !exact {
		n.logger.Warnf("No exact match for %q among %d results, using %q", company, len(results), result.Name)
	}
	return result, true, nil
}

// reveal clicks the first control that brings reviews into view, or scrolls half-way
func (n *Navigator) reveal(ctx context.Context, page types.Page, step types.SearchStep) error {
	for _, selector := range step.Selectors {
		exists, err := page.Exists(ctx, selector)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if !exists {
			continue
		}
		if err := page.Click(ctx, selector); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.logger.Debugf("Reviews control %s not clickable: %v", selector, err)
			continue
		}
		n.logger.Debugf("Opened reviews with %s", selector)
		return nil
	}
	return page.ScrollTo(ctx, 0.5)
}

// ChooseResult returns the first result whose name equals company case-insensitively,
// or the first result overall. exact reports which rule applied. An empty list yields
// the zero result.
func ChooseResult(results []types.SearchResult, company string) (result types.SearchResult, exact bool) {
	if len(results) == 0 {
		return types.SearchResult{}, false
	}
	want := strings.TrimSpace(company)
	for _, r := range results {
		if strings.EqualFold(strings.TrimSpace(r.Name), want) {
			return r, true
		}
	}
	return results[0], false
}

// MatchScore is the Jaro-Winkler similarity of the requested and matched names
func MatchScore(company, matched string) float64 {
	left := strings.ToLower(strings.TrimSpace(company))
	right := strings.ToLower(strings.TrimSpace(matched))
	if left == "" || right == "" {
		return 0
	}
	return matchr.JaroWinkler(left, right, false)
}

// CheckBlocked reads the current page and returns a *BlockedError when it matches
// one of the adapter's blocking signatures
func CheckBlocked(ctx context.Context, page types.Browser, adapter types.PlatformAdapter, url string, status int, expectReviews bool) error {
	title, err := page.Title(ctx)
	if err != nil {
		return err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return err
	}
	sig, blocked := adapter.DetectBlock(types.PageState{
		URL:           url,
		Status:        status,
		Title:         title,
		HTML:          html,
		ExpectReviews: expectReviews,
	})
	if blocked {
		return &types.BlockedError{Signature: sig.Name, URL: url}
	}
	return nil
}
