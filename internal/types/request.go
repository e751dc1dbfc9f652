package types

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultMaxReviews = 100
	minCompanyLength  = 2
	minYear           = 2000
	maxRangeDays      = 1826
	forbiddenChars    = `<>"\/`
)

// ScrapeRequest describes one invocation
type ScrapeRequest struct {
	Company    string   `json:"company"`
	Platform   Platform `json:"platform"`
	StartDate  Date     `json:"start_date"`
	EndDate    Date     `json:"end_date"`
	MaxReviews int      `json:"max_reviews,omitempty"`
}

// NewScrapeRequest parses raw invocation input into a validated request
func NewScrapeRequest(company, platform, startDate, endDate string, maxReviews int, now time.Time) (ScrapeRequest, error) {
	p, err := ParsePlatform(platform)
	if err != nil {
		return ScrapeRequest{}, err
	}
	start, err := ParseISODate(strings.TrimSpace(startDate))
	if err != nil {
		return ScrapeRequest{}, &ConfigurationError{Field: "start_date", Reason: err.Error()}
	}
	end, err := ParseISODate(strings.TrimSpace(endDate))
	if err != nil {
		return ScrapeRequest{}, &ConfigurationError{Field: "end_date", Reason: err.Error()}
	}
	req := ScrapeRequest{
		Company:    company,
		Platform:   p,
		StartDate:  start,
		EndDate:    end,
		MaxReviews: maxReviews,
	}
	if err := req.Validate(now); err != nil {
		return ScrapeRequest{}, err
	}
	return req, nil
}

// Validate checks the request invariants and fills defaults.
// now bounds how far into the future dates may reach.
func (r *ScrapeRequest) Validate(now time.Time) error {
	r.Company = strings.TrimSpace(r.Company)
	if r.Company == "" {
		return &ConfigurationError{Field: "company", Reason: "cannot be empty"}
	}
	if len([]rune(r.Company)) < minCompanyLength {
		return &ConfigurationError{Field: "company", Reason: fmt.Sprintf("must be at least %d characters long", minCompanyLength)}
	}
	if strings.ContainsAny(r.Company, forbiddenChars) {
		return &ConfigurationError{Field: "company", Reason: "contains invalid characters"}
	}

	if _, err := ParsePlatform(string(r.Platform)); err != nil {
		return err
	}
	r.Platform = Platform(strings.ToLower(string(r.Platform)))

	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return &ConfigurationError{Field: "date_range", Reason: "start and end dates are required"}
	}
	for field, d := range map[string]Date{"start_date": r.StartDate, "end_date": r.EndDate} {
		if d.Year() < minYear {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("year %d is too far in the past", d.Year())}
		}
		if d.Year() > now.Year()+1 {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("year %d is in the future", d.Year())}
		}
	}
	if r.StartDate.After(r.EndDate) {
		return &ConfigurationError{
			Field:  "date_range",
			Reason: fmt.Sprintf("start date %s is after end date %s", r.StartDate, r.EndDate),
		}
	}
	if r.StartDate.DaysUntil(r.EndDate) > maxRangeDays {
		return &ConfigurationError{Field: "date_range", Reason: "date range cannot exceed 5 years"}
	}

	if r.MaxReviews == 0 {
		r.MaxReviews = DefaultMaxReviews
	}
	if r.MaxReviews < 0 {
		return &ConfigurationError{Field: "max_reviews", Reason: "must be a positive integer"}
	}
	return nil
}
