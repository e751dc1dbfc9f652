package adapters

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-scraper/internal/types"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestForPlatform(t *testing.T) {
	logger := logrus.New()

	for _, platform := range types.SupportedPlatforms {
		adapter, err := ForPlatform(platform, logger)
		require.NoError(t, err)
		assert.Equal(t, platform, adapter.Platform())
		assert.NotEmpty(t, adapter.Matchers())
		assert.NotEmpty(t, adapter.DateFormats())
		assert.Positive(t, adapter.RatingScale())
		assert.NotEmpty(t, adapter.Pagination().ContentMarker)
		assert.True(t, adapter.Pagination().NewestFirst)
	}

	_, err := ForPlatform(types.Platform("yelp"), logger)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestG2Adapter_KnownProductURL(t *testing.T) {
	adapter := NewG2Adapter(logrus.New())

	url, ok := adapter.KnownProductURL("  Salesforce ")
	require.True(t, ok)
	assert.Equal(t, "https://www.g2.com/products/salesforce-sales-cloud", url)

	_, ok = adapter.KnownProductURL("Salesforce CRM")
	assert.False(t, ok)
}

func TestBaseAdapter_SearchFlow(t *testing.T) {
	adapter := NewG2Adapter(logrus.New())

	steps := adapter.SearchFlow("Monday.com & Co")
	require.NotEmpty(t, steps)
	assert.Equal(t, types.StepNavigate, steps[0].Kind)
	assert.Equal(t, "https://www.g2.com/search?query=Monday.com+%26+Co", steps[0].URL)

	again := adapter.SearchFlow("Other")
	assert.Equal(t, "https://www.g2.com/search?query=Other", again[0].URL)
}

func TestTrustRadiusAdapter_SearchFlowRetriesWithSoftwareQuery(t *testing.T) {
	adapter := NewTrustRadiusAdapter(logrus.New())

	steps := adapter.SearchFlow("Acme")
	require.Len(t, steps, 4)
	assert.Equal(t, "https://www.trustradius.com/search?query=Acme", steps[0].URL)
	assert.Equal(t, "https://www.trustradius.com/search?query=Acme+software", steps[2].URL)
	assert.Equal(t, types.StepSelectResult, steps[3].Kind)
}

func TestReviewsURL(t *testing.T) {
	g2 := NewG2Adapter(logrus.New())
	assert.Equal(t, "https://www.g2.com/products/slack/reviews", g2.ReviewsURL("https://www.g2.com/products/slack"))
	assert.Equal(t, "https://www.g2.com/products/slack/reviews", g2.ReviewsURL("https://www.g2.com/products/slack/reviews?page=3"))
	assert.Equal(t, "https://www.g2.com/products/slack/reviews", g2.ReviewsURL("https://www.g2.com/products/slack/"))

	capterra := NewCapterraAdapter(logrus.New())
	assert.Equal(t, "https://www.capterra.com/p/135003/Slack/#reviews", capterra.ReviewsURL("https://www.capterra.com/p/135003/Slack/"))
	assert.Equal(t, "https://www.capterra.com/p/135003/Slack/#reviews", capterra.ReviewsURL("https://www.capterra.com/p/135003/Slack?utm=x"))
}

func TestBaseAdapter_SearchResults(t *testing.T) {
	adapter := NewG2Adapter(logrus.New())
	doc := parse(t, `<html><body>
		<div class="search-result"><a href="/categories/chat">Chat</a></div>
		<div class="search-result"><a href="/products/slack-connect?ref=search"><h3>Slack Connect</h3></a></div>
		<div class="search-result"><a href="https://www.g2.com/products/slack" title="Slack">x</a></div>
		<div class="search-result"><a href="https://evil.example.com/products/slack">Slack</a></div>
		<div class="search-result"><a href="/products/slack-connect">Slack Connect again</a></div>
	</body></html>`)

	results := adapter.SearchResults(doc)

	require.Len(t, results, 2)
	assert.Equal(t, types.SearchResult{Name: "Slack Connect", URL: "https://www.g2.com/products/slack-connect"}, results[0])
	assert.Equal(t, types.SearchResult{Name: "Slack", URL: "https://www.g2.com/products/slack"}, results[1])
}

func TestBaseAdapter_SearchResults_None(t *testing.T) {
	adapter := NewCapterraAdapter(logrus.New())
	doc := parse(t, `<html><body><p>No results for "zzz"</p><a href="/categories">Browse</a></body></html>`)

	assert.Empty(t, adapter.SearchResults(doc))
}

func TestBaseAdapter_DetectBlock(t *testing.T) {
	adapter := NewG2Adapter(logrus.New())
	bigPage := "<html><body>" + strings.Repeat("<p>plenty of ordinary content</p>", 300) + "</body></html>"

	tests := []struct {
		name      string
		state     types.PageState
		signature string
		blocked   bool
	}{
		{
			name:      "cloudflare title",
			state:     types.PageState{Status: 200, Title: "Just a moment...", HTML: bigPage},
			signature: "cloudflare-challenge",
			blocked:   true,
		},
		{
			name:      "forbidden status",
			state:     types.PageState{Status: 403, Title: "G2", HTML: bigPage},
			signature: "http-refused",
			blocked:   true,
		},
		{
			name:      "captcha text",
			state:     types.PageState{Status: 200, Title: "G2", HTML: `<div id="px-captcha"></div>` + bigPage},
			signature: "perimeterx-captcha",
			blocked:   true,
		},
		{
			name:      "cloudflare error page",
			state:     types.PageState{Status: 200, Title: "Attention Required! | Cloudflare", HTML: bigPage},
			signature: "cloudflare-challenge",
			blocked:   true,
		},
		{
			name:      "challenge form",
			state:     types.PageState{Status: 200, Title: "G2", HTML: `<form id="challenge-form" action="/"></form>` + bigPage},
			signature: "cloudflare-challenge",
			blocked:   true,
		},
		{
			name:      "platform captcha form",
			state:     types.PageState{Status: 200, Title: "G2", HTML: bigPage + `<form action="/captcha/verify"></form>`},
			signature: "g2-verification",
			blocked:   true,
		},
		{
			name: "company named after a bot-protection vendor",
			state: types.PageState{
				Status:        200,
				Title:         "Cloudflare Reviews 2024: Details, Pricing, & Features | G2",
				HTML:          "<html><body>" + strings.Repeat(`<div data-testid="review"><p>Solid CDN and WAF.</p></div>`, 200) + "</body></html>",
				ExpectReviews: true,
			},
		},
		{
			name:  "search for a vendor",
			state: types.PageState{Status: 200, Title: "Search results for Cloudflare | G2", HTML: bigPage},
		},
		{
			name:  "product named forbidden",
			state: types.PageState{Status: 200, Title: "Forbidden Reviews | G2", HTML: bigPage},
		},
		{
			name: "review text quoting a challenge",
			state: types.PageState{
				Status: 200,
				Title:  "PerimeterX Reviews | G2",
				HTML:   bigPage + `<div data-testid="review"><p>Users rarely see "press and hold" or "unusual traffic from your computer". Checking your browser is fast.</p></div>`,
			},
		},
		{
			name:      "tiny page expected to hold reviews",
			state:     types.PageState{Status: 200, Title: "Slack Reviews", HTML: "<html></html>", ExpectReviews: true},
			signature: "minimal-content",
			blocked:   true,
		},
		{
			name:  "tiny page during search",
			state: types.PageState{Status: 200, Title: "Search", HTML: "<html></html>"},
		},
		{
			name:  "ordinary page",
			state: types.PageState{Status: 200, Title: "Slack Reviews 2023", HTML: bigPage, ExpectReviews: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, blocked := adapter.DetectBlock(tt.state)
			assert.Equal(t, tt.blocked, blocked)
			assert.Equal(t, tt.signature, sig.Name)
		})
	}
}

func TestExtractText(t *testing.T) {
	doc := parse(t, `<div class="r"><span class="empty"> </span><p class="body">Great&nbsp;tool,
		works   well…</p></div>`)
	s := doc.Find(".r")

	assert.Equal(t, "Great tool, works well...", ExtractText(s, []string{".missing", ".empty", ".body"}))
	assert.Empty(t, ExtractText(s, []string{".missing"}))
}

func TestExtractAttribute(t *testing.T) {
	doc := parse(t, `<div class="r"><time datetime="2023-05-01">May 1</time></div>`)

	value, err := ExtractAttribute(doc.Selection, "time", "datetime")
	require.NoError(t, err)
	assert.Equal(t, "2023-05-01", value)

	_, err = ExtractAttribute(doc.Selection, "time", "title")
	assert.Error(t, err)

	_, err = ExtractAttribute(doc.Selection, "span", "datetime")
	assert.Error(t, err)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "", CleanText(""))
	assert.Equal(t, "a b c", CleanText("  a\n\tb  c "))
	assert.Equal(t, "more...", CleanText("more…"))
}
