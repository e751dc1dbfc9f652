package adapters

import (
	"review-scraper/internal/types"
)

// g2KnownProducts are product pages reached directly, skipping search
var g2KnownProducts = map[string]string{
	"slack":           "https://www.g2.com/products/slack",
	"zoom":            "https://www.g2.com/products/zoom",
	"salesforce":      "https://www.g2.com/products/salesforce-sales-cloud",
	"hubspot":         "https://www.g2.com/products/hubspot-marketing-hub",
	"microsoft teams": "https://www.g2.com/products/microsoft-teams",
	"asana":           "https://www.g2.com/products/asana",
	"trello":          "https://www.g2.com/products/trello",
}

// G2Adapter handles review extraction for g2.com
type G2Adapter struct {
	*BaseAdapter
}

// NewG2Adapter creates a new G2 adapter
func NewG2Adapter(logger types.Logger) *G2Adapter {
	b := NewBaseAdapter(logger, types.PlatformG2, "https://www.g2.com")
	b.productPath = "/products/"
	b.knownProducts = g2KnownProducts

	// The search box on the home page is the fallback when the search URL lists nothing
	b.searchFlow = []types.SearchStep{
		{Kind: types.StepNavigate, URL: "https://www.g2.com/search?query={query}"},
		{Kind: types.StepSelectResult},
		{Kind: types.StepNavigate, URL: "https://www.g2.com/"},
		{Kind: types.StepFillSearch, Selector: "input[name='query']"},
		{Kind: types.StepSelectResult},
	}
	b.resultSelectors = []string{
		"[data-testid*='product'] a",
		".product-listing a",
		".search-result a",
		"h3 a[href*='/products/']",
		"a[href*='/products/']",
	}

	b.matchers = []types.Matcher{
		{Kind: types.MatchSelector, Name: "testid-review", Selector: "div[data-testid='review']"},
		{Kind: types.MatchSelector, Name: "cy-review", Selector: "[data-cy='review']"},
		{Kind: types.MatchMicrodata, Name: "microdata", Selector: "[itemtype*='schema.org/Review']"},
		{Kind: types.MatchJSONLD, Name: "json-ld"},
		{Kind: types.MatchSelector, Name: "review-item", Selector: ".review-item"},
		{Kind: types.MatchSelector, Name: "review-card", Selector: ".review-card"},
		{Kind: types.MatchSelector, Name: "paper", Selector: ".paper"},
		{Kind: types.MatchTextBlock, Name: "review-class", Selector: "[class*='review']", MinTextLength: 80},
	}
	b.fields = types.FieldSelectors{
		Title: []string{
			"[data-testid*='title']",
			".review-title",
			".review-header h3",
			".review-headline",
			"[itemprop='name']",
			"div[class*='title']",
		},
		Body: []string{
			"[data-testid*='body']",
			"[data-testid*='content']",
			".review-content",
			".review-text",
			".review-body",
			"[itemprop='reviewBody']",
			".review-description",
		},
		Date: []string{
			"[data-testid='review-date']",
			".review-date",
			"time",
			".date",
			"[datetime]",
		},
		Rating: []string{
			"[data-testid='star-rating']",
			".star-rating",
			".rating",
			"[aria-label*='star']",
			".stars",
		},
		Reviewer: []string{
			"[data-testid='reviewer-name']",
			".reviewer-name",
			".review-author",
			".author-name",
			"[itemprop='author']",
		},
		ReviewerInfo: []string{
			"[data-testid='reviewer-info']",
			".reviewer-company",
			".company-name",
			".job-title",
		},
		Pros: []string{"[data-testid*='likes']", ".review-likes", ".pros"},
		Cons: []string{"[data-testid*='dislikes']", ".review-dislikes", ".cons"},
	}
	b.pagination = types.PaginationSpec{
		Mode: types.PaginateNextPage,
		NextSelectors: []string{
			"a[data-testid='pagination-next']",
			".pagination .next a",
			".pagination a[rel='next']",
			"a[aria-label='Next']",
			"button[aria-label*='next']",
		},
		PageParam:     "page",
		ContentMarker: "div[data-testid='review'], [data-cy='review'], .review-item, .review-card, .paper",
		NewestFirst:   true,
	}
	b.blockSignatures = append(b.blockSignatures, types.BlockSignature{
		Name:      "g2-verification",
		Selectors: []string{"#g2-captcha", "form[action*='/captcha']", "iframe[src*='hcaptcha.com']"},
	})
	b.dateFormats = []string{
		"01/02/2006",
		"January 2, 2006",
		"Jan 2, 2006",
	}
	b.ratingScale = 5

	return &G2Adapter{BaseAdapter: b}
}
