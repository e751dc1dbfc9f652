package adapters

import (
	"strings"

	"review-scraper/internal/types"
)

// CapterraAdapter handles review extraction for capterra.com.
// Capterra renders its reviews under a tab on the product page and appends more
// reviews behind a load-more control instead of paging.
type CapterraAdapter struct {
	*BaseAdapter
}

// NewCapterraAdapter creates a new Capterra adapter
func NewCapterraAdapter(logger types.Logger) *CapterraAdapter {
	b := NewBaseAdapter(logger, types.PlatformCapterra, "https://www.capterra.com")
	b.productPath = "/p/"

	b.searchFlow = []types.SearchStep{
		{Kind: types.StepNavigate, URL: "https://www.capterra.com/search/?query={query}"},
		{Kind: types.StepSelectResult},
		{
			Kind: types.StepRevealReviews,
			Selectors: []string{
				"a[href*='#reviews']",
				"button[data-target*='review']",
				".reviews-tab",
				"[data-scroll-to='reviews']",
			},
		},
	}
	b.resultSelectors = []string{
		"a[data-link-action='Product Page']",
		".search-results a[href*='/p/']",
		".product-card a",
		".listing-item a",
		"a[href*='/p/']",
	}

	b.matchers = []types.Matcher{
		{Kind: types.MatchSelector, Name: "review-item", Selector: ".review-item"},
		{Kind: types.MatchSelector, Name: "review-card", Selector: ".review-card"},
		{Kind: types.MatchSelector, Name: "review-id", Selector: "article[data-review-id]"},
		{Kind: types.MatchMicrodata, Name: "microdata", Selector: "[itemtype*='schema.org/Review']"},
		{Kind: types.MatchJSONLD, Name: "json-ld"},
		{Kind: types.MatchSelector, Name: "testid-review", Selector: "[data-testid*='review']"},
		{Kind: types.MatchSelector, Name: "user-review", Selector: ".user-review, .review-container"},
		{Kind: types.MatchTextBlock, Name: "review-class", Selector: ".review, [class*='review']", MinTextLength: 80},
	}
	b.fields = types.FieldSelectors{
		Title: []string{
			".review-title",
			".review-header h3",
			".review-headline",
			"h3",
			".title",
			"[data-testid*='title']",
		},
		Body: []string{
			".review-content",
			".review-text",
			".review-body",
			".review-description",
			".user-review-text",
			"p[data-testid*='review-body']",
			"[itemprop='reviewBody']",
		},
		Date: []string{
			".review-date",
			"time",
			".posted-date",
			".date",
			"[datetime]",
			"[data-testid*='date']",
		},
		Rating: []string{
			".star-rating",
			".rating",
			"[data-rating]",
			".stars",
			"[aria-label*='star']",
		},
		Reviewer: []string{
			".reviewer-name",
			".review-author",
			".author-name",
			".user-name",
			"[data-testid*='reviewer']",
		},
		ReviewerInfo: []string{
			".reviewer-company",
			".company-name",
			".job-title",
			".user-info",
			".reviewer-info",
		},
		Pros: []string{".pros", ".review-pros", "[data-testid*='pros']"},
		Cons: []string{".cons", ".review-cons", "[data-testid*='cons']"},
	}
	b.pagination = types.PaginationSpec{
		Mode: types.PaginateScroll,
		LoadMoreSelectors: []string{
			"button[data-action*='load-more']",
			"button[data-action*='show-more']",
			".load-more-reviews",
			".show-more-reviews",
		},
		ContentMarker: ".review-item, .review-card, article[data-review-id]",
		NewestFirst:   true,
	}
	b.blockSignatures = append(b.blockSignatures, types.BlockSignature{
		Name:          "capterra-bot-wall",
		TitlePrefixes: []string{"are you a robot"},
		Selectors:     []string{"form[action*='validateCaptcha']", "#captcha-container"},
	})
	b.dateFormats = []string{
		"January 2, 2006",
		"Jan 2, 2006",
		"01/02/2006",
	}
	b.ratingScale = 5

	return &CapterraAdapter{BaseAdapter: b}
}

// ReviewsURL anchors the product page on its reviews section
func (c *CapterraAdapter) ReviewsURL(productURL string) string {
	base := productURL
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "#reviews"
}
