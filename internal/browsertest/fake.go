// Package browsertest provides an in-memory types.Browser serving canned pages,
// for exercising the scraping engine without launching a browser.
package browsertest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is a canned document
type Page struct {
	Status int
	Title  string
	HTML   string
	// Delay stalls the navigation or click that loads the page, until the context ends
	Delay time.Duration
}

// Browser is a scripted fake tab. Navigations load entries from Pages by exact URL;
// unknown URLs load a 404 page. Clicks on a selector present in the current document
// navigate to ClickTargets[selector]. Scrolling to the bottom advances through
// ScrollStates[current URL], replacing the current HTML.
type Browser struct {
	Pages        map[string]Page
	ClickTargets map[string]string
	ScrollStates map[string][]string
	// SubmitURL builds the URL loaded when a filled search form is submitted
	SubmitURL func(value string) string
	// NavigateErr, when set, fails every navigation
	NavigateErr error

	mu          sync.Mutex
	current     string
	page        Page
	filled      map[string]string
	scrollIndex map[string]int
	actions     []string
	closed      int
}

// New returns a fake browser serving pages
func New(pages map[string]Page) *Browser {
	return &Browser{
		Pages:        pages,
		ClickTargets: map[string]string{},
		ScrollStates: map[string][]string{},
		filled:       map[string]string{},
		scrollIndex:  map[string]int{},
	}
}

// Actions returns the recorded interaction log
func (b *Browser) Actions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.actions...)
}

// Visited returns the URLs navigated to, in order
func (b *Browser) Visited() []string {
	var visited []string
	for _, action := range b.Actions() {
		if strings.HasPrefix(action, "navigate ") {
			visited = append(visited, strings.TrimPrefix(action, "navigate "))
		}
	}
	return visited
}

// CloseCount reports how many times Close was called
func (b *Browser) CloseCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Browser) record(format string, args ...interface{}) {
	b.actions = append(b.actions, fmt.Sprintf(format, args...))
}

// settle waits out a page's load delay
func settle(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *Browser) load(rawURL string) int {
	b.current = rawURL
	page, ok := b.Pages[rawURL]
	if !ok {
		page = Page{Status: 404, Title: "Not Found", HTML: "<html><body><h1>Not Found</h1></body></html>"}
	}
	b.page = page
	return page.Status
}

func (b *Browser) Navigate(ctx context.Context, rawURL string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	b.record("navigate %s", rawURL)
	if b.NavigateErr != nil {
		b.mu.Unlock()
		return 0, b.NavigateErr
	}
	status := b.load(rawURL)
	delay := b.page.Delay
	b.mu.Unlock()

	if err := settle(ctx, delay); err != nil {
		return 0, err
	}
	return status, nil
}

func (b *Browser) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page.HTML, nil
}

func (b *Browser) Title(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page.Title, nil
}

func (b *Browser) Location(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, nil
}

func (b *Browser) matches(selector string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.page.HTML))
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

func (b *Browser) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.matches(selector), nil
}

func (b *Browser) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.matches(selector) {
		return fmt.Errorf("failed to wait for element %s: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (b *Browser) Fill(ctx context.Context, selector, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("fill %s %s", selector, text)
	if !b.matches(selector) {
		return fmt.Errorf("failed to fill %s: element not found", selector)
	}
	b.filled[selector] = text
	return nil
}

func (b *Browser) Submit(ctx context.Context, selector string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("submit %s", selector)
	if b.SubmitURL == nil {
		return fmt.Errorf("failed to submit %s: no form handler", selector)
	}
	target := b.SubmitURL(b.filled[selector])
	b.record("navigate %s", target)
	b.load(target)
	return nil
}

func (b *Browser) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.record("click %s", selector)
	if !b.matches(selector) {
		b.mu.Unlock()
		return fmt.Errorf("failed to click %s: element not found", selector)
	}
	var delay time.Duration
	if target, ok := b.ClickTargets[selector]; ok {
		b.record("navigate %s", target)
		b.load(target)
		delay = b.page.Delay
	}
	b.mu.Unlock()

	return settle(ctx, delay)
}

func (b *Browser) ScrollTo(ctx context.Context, fraction float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("scroll %.2f", fraction)
	if fraction < 1 {
		return nil
	}
	states := b.ScrollStates[b.current]
	idx := b.scrollIndex[b.current]
	if idx < len(states) {
		b.page.HTML = states[idx]
		b.scrollIndex[b.current] = idx + 1
	}
	return nil
}

func (b *Browser) Evaluate(ctx context.Context, script string, res interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("evaluate")
	return nil
}

func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
}

// WithQuery appends query parameters to a URL, for building page keys in tests
func WithQuery(rawURL string, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
