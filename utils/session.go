package utils

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"review-scraper/internal/types"
)

// Session is the stealth wrapper around one browser tab.
// Every navigation or interaction is followed by a randomized pause.
type Session struct {
	browser  types.Browser
	identity Identity
	pacer    *Pacer
	logger   types.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	closeOnce sync.Once
	closed    bool
}

// NewSession wraps an already started browser
func NewSession(browser types.Browser, identity Identity, pacer *Pacer, logger types.Logger) *Session {
	return &Session{
		browser:  browser,
		identity: identity,
		pacer:    pacer,
		logger:   logger,
		rng:      NewRand(),
	}
}

// Identity returns the fingerprint this session presents
func (s *Session) Identity() Identity {
	return s.identity
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the browser. It is idempotent and safe on a nil session.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if s.browser != nil {
			s.browser.Close()
		}
		s.logger.Debug("Browser session closed")
	})
}

// Pause waits for one randomized action delay
func (s *Session) Pause(ctx context.Context) error {
	return s.pacer.Wait(ctx)
}

func (s *Session) paced(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	return s.pacer.Wait(ctx)
}

func (s *Session) Navigate(ctx context.Context, url string) (int, error) {
	s.logger.Debugf("Navigating to %s", url)
	status, err := s.browser.Navigate(ctx, url)
	if err != nil {
		return status, err
	}
	return status, s.pacer.Wait(ctx)
}

func (s *Session) Fill(ctx context.Context, selector, text string) error {
	return s.paced(ctx, s.browser.Fill(ctx, selector, text))
}

func (s *Session) Submit(ctx context.Context, selector string) error {
	return s.paced(ctx, s.browser.Submit(ctx, selector))
}

func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debugf("Clicking %s", selector)
	return s.paced(ctx, s.browser.Click(ctx, selector))
}

func (s *Session) ScrollTo(ctx context.Context, fraction float64) error {
	return s.paced(ctx, s.browser.ScrollTo(ctx, fraction))
}

func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	return s.paced(ctx, s.browser.Evaluate(ctx, script, res))
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.browser.HTML(ctx)
}

func (s *Session) Title(ctx context.Context) (string, error) {
	return s.browser.Title(ctx)
}

func (s *Session) Location(ctx context.Context) (string, error) {
	return s.browser.Location(ctx)
}

func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	return s.browser.Exists(ctx, selector)
}

func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return s.browser.WaitFor(ctx, selector, timeout)
}

// SimulateHuman scrolls down a random amount, scrolls back a third of it and
// moves the pointer somewhere inside the viewport. Failures are logged, not returned,
// except for context cancellation.
func (s *Session) SimulateHuman(ctx context.Context) error {
	s.mu.Lock()
	dy := 200 + s.rng.IntN(601)
	s.mu.Unlock()

	steps := []string{scrollByScript(dy), scrollByScript(-dy / 3), mouseMoveScript}
	for _, script := range steps {
		if err := s.Evaluate(ctx, script, nil); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Debugf("Human simulation step failed: %v", err)
		}
	}
	return nil
}

// OpenSession launches (or attaches to) a browser configured for stealth browsing.
// It fails with ErrSessionUnavailable when no compatible browser can be started.
func OpenSession(ctx context.Context, config *types.Config, logger types.Logger) (*Session, error) {
	rng := NewRand()
	identity := NewIdentity(config, rng)
	pacer := NewPacer(config.MinActionDelay, config.MaxActionDelay, rng)

	var (
		browser *ChromeDriver
		err     error
	)
	if config.RemoteURL != "" {
		probe := NewHTTPClient(config, logger)
		wsURL, probeErr := probe.ResolveDevToolsURL(ctx, config.RemoteURL)
		if probeErr != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrSessionUnavailable, probeErr)
		}
		browser, err = NewRemoteChromeDriver(ctx, wsURL, identity, config, logger)
	} else {
		execPath, findErr := FindBrowser(config.BrowserPath)
		if findErr != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrSessionUnavailable, findErr)
		}
		browser, err = NewChromeDriver(ctx, execPath, identity, config, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSessionUnavailable, err)
	}

	logger.Infof("Browser session opened (headless=%t, user agent %q)", config.Headless, identity.UserAgent)
	return NewSession(browser, identity, pacer, logger), nil
}
