package browsertest

import (
	"fmt"
	"html"
	"strings"
)

// filler pads pages past the minimal-content block threshold
var filler = strings.Repeat(`<p class="filler">Compare the best business software, read verified user opinions and pricing details.</p>`+"\n", 80)

// Review is one review rendered by ReviewListing
type Review struct {
	Title    string
	Body     string
	Date     string
	Rating   string
	Reviewer string
}

// Result is one search result rendered by SearchPage
type Result struct {
	Name string
	Href string
}

// ReviewListing renders a G2-style review listing. A next-page link to next is
// included when next is not empty.
func ReviewListing(product string, reviews []Review, next string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s Reviews</title></head><body>\n<h1>%s</h1>\n<section id=\"listing\">\n", html.EscapeString(product), html.EscapeString(product))
	for _, r := range reviews {
		b.WriteString(ReviewCard(r))
	}
	b.WriteString("</section>\n")
	if next != "" {
		fmt.Fprintf(&b, "<nav class=\"pagination\"><a data-testid=\"pagination-next\" href=\"%s\">Next</a></nav>\n", next)
	}
	b.WriteString(filler)
	b.WriteString("</body></html>")
	return b.String()
}

// ReviewCard renders a single G2-style review element
func ReviewCard(r Review) string {
	var b strings.Builder
	b.WriteString("<div data-testid=\"review\">\n")
	if r.Title != "" {
		fmt.Fprintf(&b, "  <h3 data-testid=\"review-title\">%s</h3>\n", html.EscapeString(r.Title))
	}
	if r.Reviewer != "" {
		fmt.Fprintf(&b, "  <span data-testid=\"reviewer-name\">%s</span>\n", html.EscapeString(r.Reviewer))
	}
	if r.Rating != "" {
		fmt.Fprintf(&b, "  <div data-testid=\"star-rating\" aria-label=\"%s out of 5 stars\"></div>\n", html.EscapeString(r.Rating))
	}
	if r.Date != "" {
		fmt.Fprintf(&b, "  <time data-testid=\"review-date\">%s</time>\n", html.EscapeString(r.Date))
	}
	if r.Body != "" {
		fmt.Fprintf(&b, "  <div data-testid=\"review-body\"><p>%s</p></div>\n", html.EscapeString(r.Body))
	}
	b.WriteString("</div>\n")
	return b.String()
}

// EmptyListing renders a regular-sized product page without any reviews
func EmptyListing(product string) string {
	return ReviewListing(product, nil, "")
}

// SearchPage renders a search results page
func SearchPage(results ...Result) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Search</title></head><body>\n<form><input name=\"query\"></form>\n")
	for _, r := range results {
		fmt.Fprintf(&b, "<div class=\"search-result\"><a href=\"%s\"><h3>%s</h3></a></div>\n", r.Href, html.EscapeString(r.Name))
	}
	b.WriteString(filler)
	b.WriteString("</body></html>")
	return b.String()
}

// ChallengePage is a bot-protection interstitial
func ChallengePage() Page {
	return Page{
		Status: 403,
		Title:  "Just a moment...",
		HTML:   "<html><head><title>Just a moment...</title></head><body><div id=\"challenge-running\">Checking your browser before accessing the site.</div><form id=\"challenge-form\" action=\"/\"></form></body></html>",
	}
}

// OK wraps markup into a page served with status 200
func OK(title, markup string) Page {
	return Page{Status: 200, Title: title, HTML: markup}
}
