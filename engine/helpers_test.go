package engine

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"review-scraper/internal/browsertest"
	"review-scraper/internal/types"
	"review-scraper/utils"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() *types.Config {
	config := types.DefaultConfig()
	config.MinActionDelay = 0
	config.MaxActionDelay = 0
	config.MaxScrollAttempts = 3
	return config
}

// newPage wraps the fake browser in a real stealth session without delays
func newPage(t *testing.T, browser *browsertest.Browser) *utils.Session {
	t.Helper()
	session := utils.NewSession(browser, utils.Identity{}, utils.NewPacer(0, 0, utils.NewRand()), testLogger())
	t.Cleanup(session.Close)
	return session
}

// paginationOverride replaces an adapter's pagination spec
type paginationOverride struct {
	types.PlatformAdapter
	spec types.PaginationSpec
}

func (p paginationOverride) Pagination() types.PaginationSpec {
	return p.spec
}

func mustDate(t *testing.T, s string) types.Date {
	t.Helper()
	d, err := types.ParseISODate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
