package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"review-scraper/adapters"
	"review-scraper/internal/types"
)

// maxTitleLength bounds titles recovered from a fragment's first line
const maxTitleLength = 100

// genericDateFormats are tried after the adapter's own formats
var genericDateFormats = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"01/02/2006",
	"1/2/2006",
	"02/01/2006",
	"January 2006",
	"Jan 2006",
}

const (
	monthNames   = `Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec`
	monthPattern = `(?:` + monthNames + `)[a-z]*\.?`
)

var (
	// dateCandidates pull a date out of surrounding text such as "Reviewed on ..."
	dateCandidates = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`(?i)` + monthPattern + `\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}`),
		regexp.MustCompile(`(?i)\d{1,2}(?:st|nd|rd|th)?\s+` + monthPattern + `,?\s+\d{4}`),
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
		regexp.MustCompile(`(?i)` + monthPattern + `,?\s+\d{4}`),
	}
	ordinalSuffix = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)
	monthPeriod   = regexp.MustCompile(`(?i)\b(` + monthNames + `)\.`)
	ratingNumber  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)
)

// Normalizer maps raw fragments into canonical records for one platform.
// It holds no mutable state: the same fragment always yields the same record.
type Normalizer struct {
	platform    types.Platform
	formats     []string
	ratingScale float64
}

// NewNormalizer creates a normalizer using the adapter's date formats and rating scale
func NewNormalizer(adapter types.PlatformAdapter) *Normalizer {
	formats := []string{time.RFC3339, "2006-01-02"}
	seen := map[string]bool{time.RFC3339: true, "2006-01-02": true}
	for _, group := range [][]string{adapter.DateFormats(), genericDateFormats} {
		for _, format := range group {
			if !seen[format] {
				seen[format] = true
				formats = append(formats, format)
			}
		}
	}
	return &Normalizer{
		platform:    adapter.Platform(),
		formats:     formats,
		ratingScale: adapter.RatingScale(),
	}
}

// Normalize converts a fragment into a record whose date lies in [start, end].
// It fails with ErrMalformedFragment when the fragment has no body text or no
// parseable date, and with ErrOutOfRange when the date falls outside the range.
// A rating that cannot be read is left absent.
func (n *Normalizer) Normalize(fragment types.RawReviewFragment, start, end types.Date) (*types.ReviewRecord, error) {
	title, body := n.content(fragment)
	if body == "" {
		return nil, fmt.Errorf("%w: fragment %d has no body text", types.ErrMalformedFragment, fragment.Index)
	}

	date, ok := n.ParseDate(fragment.DateText)
	if !ok {
		return nil, fmt.Errorf("%w: fragment %d has unreadable date %q", types.ErrMalformedFragment, fragment.Index, fragment.DateText)
	}
	if !date.Within(start, end) {
		return nil, fmt.Errorf("%w: %s not in %s..%s", types.ErrOutOfRange, date, start, end)
	}

	return &types.ReviewRecord{
		ReviewerName: adapters.CleanText(fragment.Reviewer),
		ReviewerInfo: adapters.CleanText(fragment.ReviewerInfo),
		Rating:       n.ParseRating(fragment.RatingText),
		Date:         date,
		Title:        title,
		Body:         body,
		Pros:         adapters.CleanText(fragment.Pros),
		Cons:         adapters.CleanText(fragment.Cons),
		Source:       n.platform,
		SourceURL:    fragment.SourceURL,
	}, nil
}

// content returns the title and body. A fragment with neither is split from its
// full text: the first line becomes the title and the remaining lines the body.
func (n *Normalizer) content(fragment types.RawReviewFragment) (string, string) {
	title := adapters.CleanText(fragment.Title)
	body := adapters.CleanText(fragment.Body)
	if body != "" {
		return title, body
	}
	if title != "" {
		return title, title
	}

	var lines []string
	for _, line := range strings.Split(fragment.FullText, "\n") {
		if line = adapters.CleanText(line); line != "" {
			lines = append(lines, line)
		}
	}
	switch len(lines) {
	case 0:
		return "", ""
	case 1:
		return "", lines[0]
	}
	title = lines[0]
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength]) + "..."
	}
	return title, strings.Join(lines[1:], " ")
}

// ParseDate reads a calendar date out of free text. Dates given as a month and
// year only resolve to the first of that month.
func (n *Normalizer) ParseDate(text string) (types.Date, bool) {
	text = adapters.CleanText(text)
	if text == "" {
		return types.Date{}, false
	}
	if d, ok := n.parseLayouts(text); ok {
		return d, true
	}
	for _, pattern := range dateCandidates {
		candidate := pattern.FindString(text)
		if candidate == "" {
			continue
		}
		if d, ok := n.parseLayouts(cleanDate(candidate)); ok {
			return d, true
		}
	}
	return types.Date{}, false
}

func (n *Normalizer) parseLayouts(text string) (types.Date, bool) {
	for _, format := range n.formats {
		if t, err := time.Parse(format, text); err == nil {
			return types.DateOf(t), true
		}
	}
	return types.Date{}, false
}

// cleanDate strips ordinal suffixes and abbreviation periods, and shortens "Sept"
func cleanDate(s string) string {
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = monthPeriod.ReplaceAllString(s, "$1")
	s = strings.Replace(s, "Sept ", "Sep ", 1)
	return strings.Join(strings.Fields(s), " ")
}

// ParseRating reads the first number in text. Values outside [0, scale] are
// treated as absent.
func (n *Normalizer) ParseRating(text string) *float64 {
	match := ratingNumber.FindString(text)
	if match == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.Replace(match, ",", ".", 1), 64)
	if err != nil || value < 0 || value > n.ratingScale {
		return nil
	}
	return &value
}
