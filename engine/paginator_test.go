package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-scraper/adapters"
	"review-scraper/internal/browsertest"
	"review-scraper/internal/types"
)

func reviews(dates ...string) []browsertest.Review {
	out := make([]browsertest.Review, len(dates))
	for i, date := range dates {
		out[i] = browsertest.Review{Title: "Review " + date, Body: "Body for " + date, Date: date}
	}
	return out
}

func TestPaginator_ClicksNextControl(t *testing.T) {
	config := testConfig()
	adapter := adapters.NewG2Adapter(testLogger())
	first := "https://www.g2.com/products/slack/reviews"
	second := "https://www.g2.com/products/slack/reviews?page=2"
	browser := browsertest.New(map[string]browsertest.Page{
		first:  browsertest.OK("Slack Reviews", browsertest.ReviewListing("Slack", reviews("2023-05-01"), second)),
		second: browsertest.OK("Slack Reviews", browsertest.ReviewListing("Slack", reviews("2023-04-01"), "")),
	})
	browser.ClickTargets["a[data-testid='pagination-next']"] = second
	page := newPage(t, browser)
	_, err := page.Navigate(context.Background(), first)
	require.NoError(t, err)
	handle := &ReviewPageHandle{URL: first, Current: first, Page: page}
	paginator := NewPaginator(config, testLogger())

	more, err := paginator.Advance(context.Background(), page, handle, adapter)

	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, 2, paginator.Page())
	assert.Equal(t, second, handle.Current)
	assert.Contains(t, browser.Actions(), "click a[data-testid='pagination-next']")

	// The second page has no control, so the page parameter is used next
	more, err = paginator.Advance(context.Background(), page, handle, adapter)

	require.NoError(t, err)
	assert.False(t, more, "page 3 does not exist")
	assert.Equal(t, "https://www.g2.com/products/slack/reviews?page=3", handle.Current)
	assert.Equal(t, 2, paginator.Page())
}

func TestPaginator_PageParameter(t *testing.T) {
	config := testConfig()
	adapter := adapters.NewTrustRadiusAdapter(testLogger())
	first := "https://www.trustradius.com/products/acme/reviews"
	browser := browsertest.New(map[string]browsertest.Page{
		first:             browsertest.OK("Acme", browsertest.ReviewListing("Acme", nil, "")),
		first + "?page=2": browsertest.OK("Acme", browsertest.ReviewListing("Acme", nil, "")),
	})
	page := newPage(t, browser)
	handle := &ReviewPageHandle{URL: first, Current: first, Page: page}

	more, err := NewPaginator(config, testLogger()).Advance(context.Background(), page, handle, adapter)

	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, []string{first + "?page=2"}, browser.Visited())
}

func TestPaginator_ExhaustedWithoutControl(t *testing.T) {
	config := testConfig()
	g2 := adapters.NewG2Adapter(testLogger())
	spec := g2.Pagination()
	spec.PageParam = ""
	adapter := paginationOverride{PlatformAdapter: g2, spec: spec}
	first := "https://www.g2.com/products/slack/reviews"
	browser := browsertest.New(map[string]browsertest.Page{
		first: browsertest.OK("Slack Reviews", browsertest.ReviewListing("Slack", reviews("2023-05-01"), "")),
	})
	page := newPage(t, browser)
	_, err := page.Navigate(context.Background(), first)
	require.NoError(t, err)

	more, err := NewPaginator(config, testLogger()).Advance(context.Background(), page, &ReviewPageHandle{URL: first}, adapter)

	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, []string{first}, browser.Visited())
}

func TestPaginator_BlockedOnNextPage(t *testing.T) {
	config := testConfig()
	adapter := adapters.NewG2Adapter(testLogger())
	first := "https://www.g2.com/products/slack/reviews"
	browser := browsertest.New(map[string]browsertest.Page{
		first + "?page=2": browsertest.ChallengePage(),
	})
	page := newPage(t, browser)

	_, err := NewPaginator(config, testLogger()).Advance(context.Background(), page, &ReviewPageHandle{URL: first}, adapter)

	assert.ErrorIs(t, err, types.ErrBlocked)
}

func TestPaginator_PageLimit(t *testing.T) {
	config := testConfig()
	config.MaxPages = 1
	adapter := adapters.NewG2Adapter(testLogger())
	browser := browsertest.New(nil)
	page := newPage(t, browser)

	more, err := NewPaginator(config, testLogger()).Advance(context.Background(), page, &ReviewPageHandle{URL: "https://www.g2.com/products/slack/reviews"}, adapter)

	require.NoError(t, err)
	assert.False(t, more)
	assert.Empty(t, browser.Actions())
}

func capterraListing(n int) string {
	var cards string
	for i := 0; i < n; i++ {
		cards += `<div class="review-item"><p class="review-text">review</p></div>`
	}
	return "<html><body>" + cards + "</body></html>"
}

func TestPaginator_ScrollLoadsMore(t *testing.T) {
	config := testConfig()
	adapter := adapters.NewCapterraAdapter(testLogger())
	listing := "https://www.capterra.com/p/1/Acme/#reviews"
	browser := browsertest.New(map[string]browsertest.Page{
		listing: browsertest.OK("Acme", capterraListing(2)),
	})
	browser.ScrollStates[listing] = []string{capterraListing(2), capterraListing(4)}
	page := newPage(t, browser)
	_, err := page.Navigate(context.Background(), listing)
	require.NoError(t, err)
	paginator := NewPaginator(config, testLogger())

	more, err := paginator.Advance(context.Background(), page, &ReviewPageHandle{URL: listing}, adapter)

	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, 2, paginator.Page())

	more, err = paginator.Advance(context.Background(), page, &ReviewPageHandle{URL: listing}, adapter)

	require.NoError(t, err)
	assert.False(t, more)
	scrolls := 0
	for _, action := range browser.Actions() {
		if action == "scroll 1.00" {
			scrolls++
		}
	}
	assert.Equal(t, 2+config.MaxScrollAttempts, scrolls)
}

func TestPaginator_ScrollClicksLoadMore(t *testing.T) {
	config := testConfig()
	adapter := adapters.NewCapterraAdapter(testLogger())
	listing := "https://www.capterra.com/p/1/Acme/#reviews"
	expanded := "https://www.capterra.com/p/1/Acme/?more=1"
	withButton := capterraListing(1)
	withButton = withButton[:len(withButton)-len("</body></html>")] + `<button class="load-more-reviews">Show more</button></body></html>`
	browser := browsertest.New(map[string]browsertest.Page{
		listing:  browsertest.OK("Acme", withButton),
		expanded: browsertest.OK("Acme", capterraListing(3)),
	})
	browser.ClickTargets[".load-more-reviews"] = expanded
	page := newPage(t, browser)
	_, err := page.Navigate(context.Background(), listing)
	require.NoError(t, err)

	more, err := NewPaginator(config, testLogger()).Advance(context.Background(), page, &ReviewPageHandle{URL: listing}, adapter)

	require.NoError(t, err)
	assert.True(t, more)
	assert.Contains(t, browser.Actions(), "click .load-more-reviews")
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "https://x.test/r?page=2", PageURL("https://x.test/r", "page", 2))
	assert.Equal(t, "https://x.test/r?page=3&sort=new", PageURL("https://x.test/r?page=2&sort=new", "page", 3))
}

func TestStopRule(t *testing.T) {
	rule := StopRule{MaxReviews: 2, Start: mustDate(t, "2023-01-01"), NewestFirst: true}

	assert.False(t, rule.Quota(1))
	assert.True(t, rule.Quota(2))
	assert.True(t, rule.PredatesRange(mustDate(t, "2022-12-31")))
	assert.False(t, rule.PredatesRange(mustDate(t, "2023-01-01")))
	assert.False(t, rule.PredatesRange(types.Date{}))

	rule.NewestFirst = false
	assert.False(t, rule.PredatesRange(mustDate(t, "2022-12-31")))
}
