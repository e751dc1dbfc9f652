package adapters

import (
	"fmt"
	"net/url"
	"strings"

	"review-scraper/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// maxSearchResults caps how many search results are considered per page
const maxSearchResults = 10

// minContentBytes is the size under which a review page is treated as a block page
const minContentBytes = 5000

// commonBlockSignatures are refusal pages shared by the bot-protection vendors these sites use.
// Titles are matched as prefixes so a product named after a vendor does not trip them.
var commonBlockSignatures = []types.BlockSignature{
	{
		Name:          "cloudflare-challenge",
		TitlePrefixes: []string{"just a moment...", "attention required! | cloudflare"},
		Selectors:     []string{"#challenge-form", "#challenge-running", "#challenge-stage", "#cf-challenge-running", "#cf-wrapper #cf-error-details"},
	},
	{
		Name:          "perimeterx-captcha",
		TitlePrefixes: []string{"access to this page has been denied"},
		Selectors:     []string{"#px-captcha", "#px-captcha-wrapper"},
	},
	{
		Name:          "access-denied",
		TitlePrefixes: []string{"access denied", "pardon our interruption", "403 forbidden"},
		Selectors:     []string{"iframe[src*='captcha-delivery.com']", "#distil_ident_block"},
	},
	{
		Name:     "http-refused",
		Statuses: []int{403, 429, 503},
	},
	{
		Name:            "minimal-content",
		MinContentBytes: minContentBytes,
	},
}

// BaseAdapter holds the platform configuration consumed by the generic engine
// and the markup helpers every platform shares. Platform adapters embed it and
// fill in their own selectors, flows and signatures.
type BaseAdapter struct {
	logger types.Logger

	platform        types.Platform
	baseURL         string
	host            string
	productPath     string
	knownProducts   map[string]string
	searchFlow      []types.SearchStep
	resultSelectors []string
	matchers        []types.Matcher
	fields          types.FieldSelectors
	pagination      types.PaginationSpec
	blockSignatures []types.BlockSignature
	dateFormats     []string
	ratingScale     float64
}

// NewBaseAdapter creates a base adapter for a platform rooted at baseURL
func NewBaseAdapter(logger types.Logger, platform types.Platform, baseURL string) *BaseAdapter {
	host := baseURL
	if parsed, err := url.Parse(baseURL); err == nil {
		host = strings.TrimPrefix(parsed.Hostname(), "www.")
	}
	return &BaseAdapter{
		logger:          logger,
		platform:        platform,
		baseURL:         strings.TrimRight(baseURL, "/"),
		host:            host,
		knownProducts:   map[string]string{},
		blockSignatures: append([]types.BlockSignature(nil), commonBlockSignatures...),
	}
}

func (b *BaseAdapter) Platform() types.Platform { return b.platform }
func (b *BaseAdapter) BaseURL() string { return b.baseURL }
func (b *BaseAdapter) Matchers() []types.Matcher { return b.matchers }
func (b *BaseAdapter) Fields() types.FieldSelectors { return b.fields }
func (b *BaseAdapter) Pagination() types.PaginationSpec { return b.pagination }
func (b *BaseAdapter) DateFormats() []string { return b.dateFormats }
func (b *BaseAdapter) RatingScale() float64 { return b.ratingScale }
func (b *BaseAdapter) BlockSignatures() []types.BlockSignature { return b.blockSignatures }

// KnownProductURL returns a product page for a company matched case-insensitively
func (b *BaseAdapter) KnownProductURL(company string) (string, bool) {
	productURL, ok := b.knownProducts[strings.ToLower(strings.TrimSpace(company))]
	return productURL, ok
}

// SearchFlow expands {query} in the flow's URL templates
func (b *BaseAdapter) SearchFlow(company string) []types.SearchStep {
	steps := make([]types.SearchStep, len(b.searchFlow))
	for i, step := range b.searchFlow {
		steps[i] = step
		steps[i].URL = b.SearchURL(step.URL, company)
	}
	return steps
}

// SearchURL fills a URL template with the escaped company name
func (b *BaseAdapter) SearchURL(template, company string) string {
	return strings.ReplaceAll(template, "{query}", url.QueryEscape(strings.TrimSpace(company)))
}

// ReviewsURL converts a product URL into its reviews listing URL
func (b *BaseAdapter) ReviewsURL(productURL string) string {
	base := productURL
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/reviews") {
		return base
	}
	return base + "/reviews"
}

// SearchResults collects product links from a search page. Result selectors are tried
// in order; the first one yielding product links wins.
func (b *BaseAdapter) SearchResults(doc *goquery.Document) []types.SearchResult {
	for _, selector := range b.resultSelectors {
		var results []types.SearchResult
		seen := make(map[string]bool)

		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			href, exists := s.Attr("href")
			if !exists {
				return true
			}
			productURL, ok := b.productLink(href)
			if !ok || seen[productURL] {
				return true
			}
			seen[productURL] = true
			results = append(results, types.SearchResult{
				Name: resultName(s),
				URL:  productURL,
			})
			return len(results) < maxSearchResults
		})

		if len(results) > 0 {
			b.logger.Debugf("Found %d search results using selector: %s", len(results), selector)
			return results
		}
	}
	return nil
}

// productLink normalizes href and keeps it only if it is a product page on this platform
func (b *BaseAdapter) productLink(href string) (string, bool) {
	href = b.AbsoluteURL(href)
	if href == "" || !strings.Contains(href, b.productPath) {
		return "", false
	}
	parsed, err := url.Parse(href)
	if err != nil || !strings.HasSuffix(parsed.Hostname(), b.host) {
		return "", false
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), true
}

// AbsoluteURL converts relative links to absolute URLs on this platform
func (b *BaseAdapter) AbsoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "/") {
		return b.baseURL + href
	}
	if !strings.HasPrefix(href, "http") {
		return b.baseURL + "/" + href
	}
	return href
}

// resultName is the displayed name of a search result
func resultName(s *goquery.Selection) string {
	for _, attr := range []string{"data-product-name", "title", "aria-label"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return CleanText(v)
		}
	}
	for _, selector := range []string{"h3", "h2", "[itemprop='name']", "strong"} {
		if text := CleanText(s.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return CleanText(s.Text())
}

// DetectBlock checks a page against the platform's blocking signatures. Titles
// match by prefix; selectors match only challenge markup, never review text.
func (b *BaseAdapter) DetectBlock(state types.PageState) (types.BlockSignature, bool) {
	title := strings.ToLower(strings.TrimSpace(state.Title))
	var doc *goquery.Document
	parsed := false

	for _, sig := range b.blockSignatures {
		for _, status := range sig.Statuses {
			if state.Status == status {
				return sig, true
			}
		}
		for _, prefix := range sig.TitlePrefixes {
			if title != "" && strings.HasPrefix(title, prefix) {
				return sig, true
			}
		}
		if len(sig.Selectors) > 0 {
			if !parsed {
				parsed = true
				var err error
				if doc, err = b.ParseHTML(state.HTML); err != nil {
					b.logger.Debugf("Failed to parse %s for block detection: %v", state.URL, err)
				}
			}
			if doc != nil && doc.Find(strings.Join(sig.Selectors, ", ")).Length() > 0 {
				return sig, true
			}
		}
		if sig.MinContentBytes > 0 && state.ExpectReviews && len(state.HTML) < sig.MinContentBytes {
			return sig, true
		}
	}
	return types.BlockSignature{}, false
}

// ParseHTML parses HTML content into a goquery document
func (b *BaseAdapter) ParseHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ExtractText returns the cleaned text of the first selector in the ladder that
// yields non-empty text inside s
func ExtractText(s *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if text := CleanText(s.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// ExtractAttribute extracts an attribute value from the first match of selector
func ExtractAttribute(s *goquery.Selection, selector string, attribute string) (string, error) {
	element := s.Find(selector).First()
	if element.Length() == 0 {
		return "", fmt.Errorf("element not found with selector: %s", selector)
	}

	value, exists := element.Attr(attribute)
	if !exists {
		return "", fmt.Errorf("attribute %s not found on element %s", attribute, selector)
	}

	return value, nil
}

// CleanText collapses whitespace and normalizes typographic artifacts
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "\u2026", "...")
	return strings.Join(strings.Fields(text), " ")
}
