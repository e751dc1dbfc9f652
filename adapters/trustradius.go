package adapters

import (
	"review-scraper/internal/types"
)

// TrustRadiusAdapter handles review extraction for trustradius.com
type TrustRadiusAdapter struct {
	*BaseAdapter
}

// NewTrustRadiusAdapter creates a new TrustRadius adapter
func NewTrustRadiusAdapter(logger types.Logger) *TrustRadiusAdapter {
	b := NewBaseAdapter(logger, types.PlatformTrustRadius, "https://www.trustradius.com")
	b.productPath = "/products/"

	b.searchFlow = []types.SearchStep{
		{Kind: types.StepNavigate, URL: "https://www.trustradius.com/search?query={query}"},
		{Kind: types.StepSelectResult},
	}
	b.resultSelectors = []string{
		".search-result a",
		".product-card a",
		".listing-card a",
		".product-listing a",
		"a[href*='/products/']",
	}

	b.matchers = []types.Matcher{
		{Kind: types.MatchSelector, Name: "article-review", Selector: "article.review"},
		{Kind: types.MatchSelector, Name: "review-card", Selector: ".review-card"},
		{Kind: types.MatchSelector, Name: "review-item", Selector: ".review-item"},
		{Kind: types.MatchMicrodata, Name: "microdata", Selector: "[itemtype*='schema.org/Review']"},
		{Kind: types.MatchJSONLD, Name: "json-ld"},
		{Kind: types.MatchSelector, Name: "user-review", Selector: ".user-review, .review-container"},
		{Kind: types.MatchSelector, Name: "testid-review", Selector: "[data-testid*='review']"},
		{Kind: types.MatchTextBlock, Name: "review", Selector: ".review", MinTextLength: 80},
	}
	b.fields = types.FieldSelectors{
		Title: []string{
			".review-title",
			".review-header h3",
			".review-headline",
			".review-summary",
			"h3",
			"[data-testid*='title']",
		},
		Body: []string{
			".review-content",
			".review-text",
			".review-body",
			".review-description",
			".user-review-text",
			".review-details",
			"[data-testid*='review-body']",
		},
		Date: []string{
			".review-date",
			"time",
			".posted-date",
			".publication-date",
			".date",
			"[datetime]",
		},
		Rating: []string{
			".trust-score",
			".star-rating",
			".rating",
			"[data-rating]",
			".score",
			"[aria-label*='star']",
		},
		Reviewer: []string{
			".reviewer-name",
			".review-author",
			".author-name",
			".user-name",
			".reviewer",
		},
		ReviewerInfo: []string{
			".reviewer-company",
			".company-name",
			".job-title",
			".reviewer-info",
			".company-size",
			".industry",
		},
		Pros: []string{".likes", ".pros", ".positives", "[data-testid*='likes']"},
		Cons: []string{".dislikes", ".cons", ".negatives", "[data-testid*='dislikes']"},
	}
	b.pagination = types.PaginationSpec{
		Mode: types.PaginateNextPage,
		NextSelectors: []string{
			"a[rel='next']",
			".pagination-next a",
			".pagination .next",
			"button[aria-label*='Next']",
		},
		PageParam:     "page",
		ContentMarker: "article.review, .review-card, .review-item, .user-review",
		NewestFirst:   true,
	}
	b.dateFormats = []string{
		"January 2, 2006",
		"Jan 2, 2006",
		"January 2006",
		"Jan 2006",
	}
	b.ratingScale = 10

	return &TrustRadiusAdapter{BaseAdapter: b}
}

// SearchFlow retries the search with a "<company> software" query when the plain
// company name lists no products
func (t *TrustRadiusAdapter) SearchFlow(company string) []types.SearchStep {
	steps := t.BaseAdapter.SearchFlow(company)
	return append(steps, t.BaseAdapter.SearchFlow(company+" software")...)
}
