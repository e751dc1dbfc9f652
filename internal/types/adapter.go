package types

import "github.com/PuerkitoBio/goquery"

// StepKind tags one step of a platform's search flow
type StepKind int

const (
	// StepNavigate loads URL, where {query} is replaced by the escaped company name
	StepNavigate StepKind = iota
	// StepFillSearch types the company name into Selector and submits its form
	StepFillSearch
	// StepSelectResult picks a search result and loads its review listing
	StepSelectResult
	// StepRevealReviews clicks the first visible control in Selectors, or scrolls half-way
	StepRevealReviews
)

// SearchStep is one step of the search flow that leads to a company's review listing
type SearchStep struct {
	Kind      StepKind
	URL       string
	Selector  string
	Selectors []string
}

// SearchResult is one candidate company found on a search page
type SearchResult struct {
	Name string
	URL  string
}

// MatcherKind tags the structural strategy a Matcher uses
type MatcherKind int

const (
	// MatchSelector treats every element matched by a CSS selector as a review
	MatchSelector MatcherKind = iota
	// MatchMicrodata reads schema.org Review microdata (itemprop/itemtype)
	MatchMicrodata
	// MatchJSONLD reads Review objects from application/ld+json scripts
	MatchJSONLD
	// MatchTextBlock accepts selector matches only when they carry enough text
	MatchTextBlock
)

func (k MatcherKind) String() string {
	switch k {
	case MatchSelector:
		return "selector"
	case MatchMicrodata:
		return "microdata"
	case MatchJSONLD:
		return "json-ld"
	case MatchTextBlock:
		return "text-block"
	default:
		return "unknown"
	}
}

// Matcher is one structural pattern for locating review content
type Matcher struct {
	Kind          MatcherKind
	Name          string
	Selector      string
	MinTextLength int
}

// FieldSelectors are ordered selector ladders for each review field, most specific first
type FieldSelectors struct {
	Title        []string
	Body         []string
	Date         []string
	Rating       []string
	Reviewer     []string
	ReviewerInfo []string
	Pros         []string
	Cons         []string
}

// PaginationMode selects how more reviews are loaded
type PaginationMode int

const (
	PaginateNextPage PaginationMode = iota
	PaginateScroll
)

// PaginationSpec describes how a platform loads additional review batches
type PaginationSpec struct {
	Mode              PaginationMode
	NextSelectors     []string
	LoadMoreSelectors []string
	// PageParam, when set, makes next-page mode navigate to ?<PageParam>=N instead of clicking
	PageParam     string
	ContentMarker string
	// NewestFirst enables stopping once a review predates the requested range
	NewestFirst bool
}

// BlockSignature is a recognizable page state meaning automated access was refused
type BlockSignature struct {
	Name string
	// TitlePrefixes match the start of the lowercased page title
	TitlePrefixes []string
	// Selectors match challenge markup such as captcha forms
	Selectors []string
	Statuses  []int
	// MinContentBytes fires when a page expected to list reviews is smaller than this
	MinContentBytes int
}

// PageState is the observable state of a page checked against blocking signatures
type PageState struct {
	URL           string
	Status        int
	Title         string
	HTML          string
	ExpectReviews bool
}

// PlatformAdapter supplies platform specifics to the generic engine
type PlatformAdapter interface {
	Platform() Platform
	BaseURL() string
	// KnownProductURL returns a product page for well-known companies, skipping search
	KnownProductURL(company string) (string, bool)
	SearchFlow(company string) []SearchStep
	SearchResults(doc *goquery.Document) []SearchResult
	ReviewsURL(productURL string) string
	Matchers() []Matcher
	Fields() FieldSelectors
	Pagination() PaginationSpec
	DetectBlock(state PageState) (BlockSignature, bool)
	BlockSignatures() []BlockSignature
	DateFormats() []string
	RatingScale() float64
}
