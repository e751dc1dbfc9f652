package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"review-scraper/internal/types"
)

// browserCandidates are tried in order when no explicit browser path is configured
var browserCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// FindBrowser locates a Chrome-compatible binary
func FindBrowser(explicit string) (string, error) {
	if explicit != "" {
		return lookupBrowser(explicit)
	}
	for _, candidate := range browserCandidates {
		if path, err := lookupBrowser(candidate); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no compatible browser binary found (install Chrome or Chromium, or set a browser path)")
}

func lookupBrowser(candidate string) (string, error) {
	if filepath.IsAbs(candidate) {
		info, err := os.Stat(candidate)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", candidate)
		}
		return candidate, nil
	}
	return exec.LookPath(candidate)
}

// ChromeDriver drives a single Chrome tab through the DevTools protocol
type ChromeDriver struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	config      *types.Config
	logger      types.Logger
	closeOnce   sync.Once
}

// NewChromeDriver launches a local browser with anti-automation flags
func NewChromeDriver(ctx context.Context, execPath string, identity Identity, config *types.Config, logger types.Logger) (*ChromeDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", config.Headless),
		chromedp.WindowSize(identity.WindowWidth, identity.WindowHeight),
		chromedp.UserAgent(identity.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	return startDriver(allocCtx, cancelAlloc, identity, config, logger)
}

// NewRemoteChromeDriver attaches to an already running browser at a DevTools websocket URL
func NewRemoteChromeDriver(ctx context.Context, wsURL string, identity Identity, config *types.Config, logger types.Logger) (*ChromeDriver, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, wsURL)
	return startDriver(allocCtx, cancelAlloc, identity, config, logger)
}

func startDriver(allocCtx context.Context, cancelAlloc context.CancelFunc, identity Identity, config *types.Config, logger types.Logger) (*ChromeDriver, error) {
	// chromedp reports protocol noise through the standard logger
	log.SetOutput(io.Discard)

	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithErrorf(logger.Debugf))

	d := &ChromeDriver{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		config:      config,
		logger:      logger,
	}

	// The first Run starts the browser process (or attaches to the remote one) and
	// ties the browser to the context it runs on, so it must run on the tab context
	// itself. The startup deadline closes the driver instead.
	startup := time.AfterFunc(config.NavigationTimeout, d.Close)
	err := chromedp.Run(d.ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverScript).Do(ctx)
			return err
		}),
		emulation.SetUserAgentOverride(identity.UserAgent).WithAcceptLanguage("en-US,en;q=0.9"),
		emulation.SetDeviceMetricsOverride(int64(identity.WindowWidth), int64(identity.WindowHeight), 1, false),
	)
	if !startup.Stop() && err == nil {
		err = fmt.Errorf("startup exceeded %s", config.NavigationTimeout)
	}
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return d, nil
}

// run executes actions on the tab, bounded by timeout and by the caller's context
func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate loads url and reports the main document's HTTP status
func (d *ChromeDriver) Navigate(ctx context.Context, url string) (int, error) {
	runCtx, cancel := context.WithTimeout(d.ctx, d.config.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if resp == nil {
		return 0, nil
	}
	return int(resp.Status), nil
}

// HTML returns the current document markup
func (d *ChromeDriver) HTML(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, d.config.ElementTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

// Title returns the document title
func (d *ChromeDriver) Title(ctx context.Context) (string, error) {
	var title string
	if err := d.run(ctx, d.config.ElementTimeout, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to get page title: %w", err)
	}
	return title, nil
}

// Location returns the current URL
func (d *ChromeDriver) Location(ctx context.Context) (string, error) {
	var location string
	if err := d.run(ctx, d.config.ElementTimeout, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to get page location: %w", err)
	}
	return location, nil
}

// Exists reports whether selector currently matches anything, without waiting
func (d *ChromeDriver) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := d.run(ctx, d.config.ElementTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	return len(nodes) > 0, nil
}

// WaitFor waits for selector to appear in the DOM
func (d *ChromeDriver) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := d.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to wait for element %s: %w", selector, err)
	}
	return nil
}

// Fill types text into the element matched by selector
func (d *ChromeDriver) Fill(ctx context.Context, selector, text string) error {
	err := d.run(ctx, d.config.ElementTimeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

// Submit submits the form containing selector
func (d *ChromeDriver) Submit(ctx context.Context, selector string) error {
	if err := d.run(ctx, d.config.NavigationTimeout, chromedp.Submit(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to submit %s: %w", selector, err)
	}
	return nil
}

// Click clicks the first visible element matched by selector
func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	if err := d.run(ctx, d.config.ElementTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// ScrollTo scrolls to a fraction of the document height
func (d *ChromeDriver) ScrollTo(ctx context.Context, fraction float64) error {
	script := fmt.Sprintf("window.scrollTo(0, document.body.scrollHeight * %.2f);", fraction)
	return d.Evaluate(ctx, script, nil)
}

// Evaluate executes JavaScript on the page
func (d *ChromeDriver) Evaluate(ctx context.Context, script string, res interface{}) error {
	if err := d.run(ctx, d.config.ElementTimeout, chromedp.Evaluate(script, res)); err != nil {
		return fmt.Errorf("failed to execute JavaScript: %w", err)
	}
	return nil
}

// Close terminates the tab and the browser process. Safe to call more than once.
func (d *ChromeDriver) Close() {
	d.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(d.ctx, d.config.ElementTimeout)
		defer cancel()
		if err := chromedp.Cancel(ctx); err != nil {
			d.logger.Debugf("Browser did not close cleanly: %v", err)
		}
		d.cancelTab()
		d.cancelAlloc()
	})
}
