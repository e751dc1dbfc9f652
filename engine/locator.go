package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"review-scraper/adapters"
	"review-scraper/internal/types"
)

const (
	defaultMicrodataSelector = "[itemtype*='schema.org/Review']"
	jsonLDSelector           = "script[type='application/ld+json']"
)

// Locator finds review fragments on a loaded listing page
type Locator struct {
	logger types.Logger
}

// NewLocator creates a new locator
func NewLocator(logger types.Logger) *Locator {
	return &Locator{logger: logger}
}

// Extract reads the live page and returns a cursor over its review fragments.
// Every call takes a fresh snapshot of the page. It fails with
// ErrNoMatchersSucceeded when none of the adapter's matchers finds anything.
func (l *Locator) Extract(ctx context.Context, page types.Browser, adapter types.PlatformAdapter) (*Fragments, error) {
	content, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read review page: %w", err)
	}
	location, err := page.Location(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read review page location: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse review page: %w", err)
	}

	fragments, err := MatchDocument(doc, location, adapter)
	if err != nil {
		return nil, err
	}
	l.logger.Debugf("Matcher %s found %d review fragments on %s", fragments.Matcher().Name, fragments.Len(), location)
	return fragments, nil
}

// MatchDocument applies the adapter's matchers to doc in order and returns the
// fragments of the first matcher with at least one match
func MatchDocument(doc *goquery.Document, sourceURL string, adapter types.PlatformAdapter) (*Fragments, error) {
	for _, matcher := range adapter.Matchers() {
		fragments := matchOne(doc, matcher, sourceURL, adapter.Fields())
		if fragments.Len() > 0 {
			return fragments, nil
		}
	}
	return nil, fmt.Errorf("%w on %s", types.ErrNoMatchersSucceeded, sourceURL)
}

// MatcherCount is how many fragments one matcher finds on a page
type MatcherCount struct {
	Matcher types.Matcher
	Count   int
}

// CountMatches reports, for every matcher of the adapter, how many fragments it finds on doc
func CountMatches(doc *goquery.Document, adapter types.PlatformAdapter) []MatcherCount {
	counts := make([]MatcherCount, 0, len(adapter.Matchers()))
	for _, matcher := range adapter.Matchers() {
		counts = append(counts, MatcherCount{
			Matcher: matcher,
			Count:   matchOne(doc, matcher, "", adapter.Fields()).Len(),
		})
	}
	return counts
}

func matchOne(doc *goquery.Document, matcher types.Matcher, sourceURL string, fields types.FieldSelectors) *Fragments {
	f := &Fragments{
		matcher:   matcher,
		sourceURL: sourceURL,
		fields:    fields,
	}
	switch matcher.Kind {
	case types.MatchSelector:
		f.nodes = doc.Find(matcher.Selector)
	case types.MatchMicrodata:
		selector := matcher.Selector
		if selector == "" {
			selector = defaultMicrodataSelector
		}
		f.nodes = doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
			itemtype, _ := s.Attr("itemtype")
			return !strings.Contains(strings.ToLower(itemtype), "aggregaterating")
		})
	case types.MatchTextBlock:
		f.nodes = textBlocks(doc, matcher)
	case types.MatchJSONLD:
		doc.Find(jsonLDSelector).Each(func(_ int, s *goquery.Selection) {
			f.ld = append(f.ld, jsonLDReviews(s.Text())...)
		})
	}
	return f
}

// textBlocks keeps selector matches carrying at least MinTextLength characters that
// repeat as siblings, the shape of a rendered review list. When nothing repeats,
// the outermost qualifying blocks are used.
func textBlocks(doc *goquery.Document, matcher types.Matcher) *goquery.Selection {
	candidates := doc.Find(matcher.Selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return len([]rune(adapters.CleanText(s.Text()))) >= matcher.MinTextLength
	})
	if candidates.Length() == 0 {
		return candidates
	}

	siblings := make(map[*html.Node]int)
	candidates.Each(func(_ int, s *goquery.Selection) {
		siblings[s.Nodes[0].Parent]++
	})
	repeated := candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return siblings[s.Nodes[0].Parent] >= 2
	})
	if repeated.Length() > 0 {
		candidates = repeated
	}

	return candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Parents().FilterNodes(candidates.Nodes...).Length() == 0
	})
}

// Fragments is a lazy, single-pass cursor over the review fragments of one page snapshot
type Fragments struct {
	matcher   types.Matcher
	sourceURL string
	fields    types.FieldSelectors
	nodes     *goquery.Selection
	ld        []map[string]interface{}
	pos       int
}

// Matcher returns the matcher that produced the fragments
func (f *Fragments) Matcher() types.Matcher {
	return f.matcher
}

// Len returns the total number of fragments, consumed or not
func (f *Fragments) Len() int {
	if f.matcher.Kind == types.MatchJSONLD {
		return len(f.ld)
	}
	if f.nodes == nil {
		return 0
	}
	return f.nodes.Length()
}

// Next returns the next fragment, or false once the cursor is exhausted
func (f *Fragments) Next() (types.RawReviewFragment, bool) {
	if f.pos >= f.Len() {
		return types.RawReviewFragment{}, false
	}
	index := f.pos
	f.pos++

	var fragment types.RawReviewFragment
	switch f.matcher.Kind {
	case types.MatchJSONLD:
		fragment = jsonLDFragment(f.ld[index])
	case types.MatchMicrodata:
		fragment = microdataFragment(f.nodes.Eq(index), f.fields)
	default:
		fragment = selectionFragment(f.nodes.Eq(index), f.fields)
	}
	fragment.Matcher = f.matcher.Name
	fragment.Index = index
	fragment.SourceURL = f.sourceURL
	return fragment, true
}

// selectionFragment reads every field of a review element through the adapter's selector ladders
func selectionFragment(s *goquery.Selection, fields types.FieldSelectors) types.RawReviewFragment {
	return types.RawReviewFragment{
		Title:        adapters.ExtractText(s, fields.Title),
		Body:         adapters.ExtractText(s, fields.Body),
		DateText:     dateText(s, fields.Date),
		RatingText:   ratingText(s, fields.Rating),
		Reviewer:     adapters.ExtractText(s, fields.Reviewer),
		ReviewerInfo: adapters.ExtractText(s, fields.ReviewerInfo),
		Pros:         adapters.ExtractText(s, fields.Pros),
		Cons:         adapters.ExtractText(s, fields.Cons),
		FullText:     textLines(s),
	}
}

// microdataFragment prefers schema.org itemprops and falls back to the selector ladders
func microdataFragment(s *goquery.Selection, fields types.FieldSelectors) types.RawReviewFragment {
	fragment := selectionFragment(s, fields)

	if title := itemprop(s, "name", "headline"); title != "" {
		fragment.Title = title
	}
	if body := itemprop(s, "reviewBody", "description"); body != "" {
		fragment.Body = body
	}
	if date := itemprop(s, "datePublished", "dateCreated"); date != "" {
		fragment.DateText = date
	}
	if rating := itemprop(s.Find("[itemprop='reviewRating']"), "ratingValue"); rating != "" {
		fragment.RatingText = rating
	} else if rating := itemprop(s, "ratingValue"); rating != "" {
		fragment.RatingText = rating
	}
	author := s.Find("[itemprop='author']").First()
	if name := itemprop(author, "name"); name != "" {
		fragment.Reviewer = name
	} else if name := adapters.CleanText(author.Text()); name != "" {
		fragment.Reviewer = name
	}
	return fragment
}

// itemprop returns the value of the first property of s's own item found among
// names, reading content and datetime attributes before text
func itemprop(s *goquery.Selection, names ...string) string {
	if s.Length() == 0 {
		return ""
	}
	scope, scoped := s.Nodes[0], s.Is("[itemscope]")
	for _, name := range names {
		el := s.Find("[itemprop='" + name + "']").FilterFunction(func(_ int, p *goquery.Selection) bool {
			if !scoped {
				return true
			}
			owner := p.ParentsFiltered("[itemscope]")
			return owner.Length() == 0 || owner.Nodes[0] == scope
		}).First()
		if el.Length() == 0 {
			continue
		}
		for _, attr := range []string{"content", "datetime"} {
			if v, ok := el.Attr(attr); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		if text := adapters.CleanText(el.Text()); text != "" {
			return text
		}
	}
	return ""
}

// dateText prefers a machine-readable datetime attribute over displayed text
func dateText(s *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		el := s.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if v, err := adapters.ExtractAttribute(s, selector, "datetime"); err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if text := adapters.CleanText(el.Text()); text != "" {
			return text
		}
	}
	return ""
}

// ratingText returns the first rating candidate containing a digit. Per element the
// order is: aria-label mentioning stars, text, data-rating, data-score, title.
func ratingText(s *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		el := s.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		var candidates []string
		if label, err := adapters.ExtractAttribute(s, selector, "aria-label"); err == nil && strings.Contains(strings.ToLower(label), "star") {
			candidates = append(candidates, label)
		}
		candidates = append(candidates, el.Text())
		for _, attr := range []string{"data-rating", "data-score", "title"} {
			if v, err := adapters.ExtractAttribute(s, selector, attr); err == nil {
				candidates = append(candidates, v)
			}
		}
		for _, candidate := range candidates {
			if strings.ContainsAny(candidate, "0123456789") {
				return adapters.CleanText(candidate)
			}
		}
	}
	return ""
}

// textLines returns the element's visible text, one text node per line
func textLines(s *goquery.Selection) string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := adapters.CleanText(n.Data); text != "" {
				lines = append(lines, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(lines, "\n")
}

// jsonLDReviews collects Review objects from one ld+json payload, including
// reviews nested under a product's "review" property or an "@graph"
func jsonLDReviews(raw string) []map[string]interface{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var payload interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	var reviews []map[string]interface{}
	collectReviews(payload, &reviews)
	return reviews
}

func collectReviews(payload interface{}, reviews *[]map[string]interface{}) {
	switch t := payload.(type) {
	case map[string]interface{}:
		if isReviewType(t["@type"]) {
			*reviews = append(*reviews, t)
			return
		}
		for _, key := range []string{"@graph", "review", "reviews", "itemListElement", "item"} {
			if nested, ok := t[key]; ok {
				collectReviews(nested, reviews)
			}
		}
	case []interface{}:
		for _, item := range t {
			collectReviews(item, reviews)
		}
	}
}

func isReviewType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return v == "Review"
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Review" {
				return true
			}
		}
	}
	return false
}

func jsonLDFragment(review map[string]interface{}) types.RawReviewFragment {
	fragment := types.RawReviewFragment{
		Title:    jsonString(review, "name", "headline"),
		Body:     jsonString(review, "reviewBody", "description"),
		DateText: jsonString(review, "datePublished", "dateCreated"),
	}
	if rating, ok := review["reviewRating"].(map[string]interface{}); ok {
		fragment.RatingText = jsonString(rating, "ratingValue")
	}
	switch author := review["author"].(type) {
	case map[string]interface{}:
		fragment.Reviewer = jsonString(author, "name")
		fragment.ReviewerInfo = jsonString(author, "jobTitle")
	case []interface{}:
		if len(author) > 0 {
			if first, ok := author[0].(map[string]interface{}); ok {
				fragment.Reviewer = jsonString(first, "name")
			}
		}
	case string:
		fragment.Reviewer = adapters.CleanText(author)
	}
	fragment.Pros = jsonString(review, "positiveNotes")
	fragment.Cons = jsonString(review, "negativeNotes")
	fragment.FullText = strings.Join(nonEmpty(fragment.Title, fragment.Body), "\n")
	return fragment
}

// jsonString returns the first key holding a string or number, as cleaned text
func jsonString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if text := adapters.CleanText(v); text != "" {
				return text
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
