package utils

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"review-scraper/internal/types"
)

// userAgents is the rotating pool used when no user agent is configured
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// UserAgents returns a copy of the rotating user-agent pool
func UserAgents() []string {
	return append([]string(nil), userAgents...)
}

// hideWebdriverScript runs before any page script on every new document
const hideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
window.chrome = window.chrome || { runtime: {} };
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});`

const mouseMoveScript = `document.dispatchEvent(new MouseEvent('mousemove', {
	view: window, bubbles: true, cancelable: true,
	clientX: Math.random() * window.innerWidth,
	clientY: Math.random() * window.innerHeight
}));`

// Identity is the fingerprint presented for the whole lifetime of one session
type Identity struct {
	UserAgent    string
	WindowWidth  int
	WindowHeight int
}

// NewIdentity resolves the session identity once, picking from the pool when needed
func NewIdentity(config *types.Config, rng *rand.Rand) Identity {
	ua := config.UserAgent
	if ua == "" {
		ua = userAgents[rng.IntN(len(userAgents))]
	}
	return Identity{
		UserAgent:    ua,
		WindowWidth:  config.WindowWidth,
		WindowHeight: config.WindowHeight,
	}
}

// Pacer produces randomized pauses drawn uniformly from [min, max]
type Pacer struct {
	min   time.Duration
	max   time.Duration
	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer with its own random source
func NewPacer(min, max time.Duration, rng *rand.Rand) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{
		min:   min,
		max:   max,
		rng:   rng,
		sleep: sleepContext,
	}
}

// NewRand returns a randomly seeded generator
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Next draws the next delay without sleeping
func (p *Pacer) Next() time.Duration {
	if p.max == p.min {
		return p.min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.min + time.Duration(p.rng.Int64N(int64(p.max-p.min)+1))
}

// Wait sleeps for one randomized delay, returning early if ctx is done
func (p *Pacer) Wait(ctx context.Context) error {
	return p.sleep(ctx, p.Next())
}

// Bounds returns the configured delay bounds
func (p *Pacer) Bounds() (time.Duration, time.Duration) {
	return p.min, p.max
}

// WithSleep replaces the sleep function, used to observe pacing in tests
func (p *Pacer) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Pacer {
	p.sleep = sleep
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scrollByScript returns a script scrolling the window by dy pixels
func scrollByScript(dy int) string {
	return fmt.Sprintf("window.scrollBy(0, %d);", dy)
}
