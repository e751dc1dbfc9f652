package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"review-scraper/extractor"
	"review-scraper/internal/types"
)

const envPrefix = "REVIEW_SCRAPER"

// Process exit codes. Every scrape outcome, blocked included, exits with exitOK.
const (
	exitOK                 = 0
	exitFailure            = 1
	exitConfiguration      = 2
	exitSessionUnavailable = 3
)

// newRootCommand builds the scraper command. Settings resolve from flags, then
// REVIEW_SCRAPER_* environment variables, then the optional config file, then defaults.
func newRootCommand(v *viper.Viper, opts ...extractor.Option) *cobra.Command {
	defaults := types.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "review-scraper",
		Short: "Scrape software reviews from G2, Capterra or TrustRadius",
		Long: `Scrape the reviews of one company from one review platform within a date range,
using a stealth browser session, and save them as a JSON document.`,
		Example: `  review-scraper --company Slack --platform g2 --start-date 2023-01-01 --end-date 2023-12-31
  REVIEW_SCRAPER_HEADLESS=true review-scraper -c Zoom -p capterra -s 2024-01-01 -e 2024-03-31 -m 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), v, cmd.OutOrStdout(), opts...)
		},
	}

	flags := cmd.Flags()
	flags.StringP("company", "c", "", "company or product name to search for")
	flags.StringP("platform", "p", "", "review platform (g2, capterra, trustradius)")
	flags.StringP("start-date", "s", "", "first review date to include (YYYY-MM-DD)")
	flags.StringP("end-date", "e", "", "last review date to include (YYYY-MM-DD)")
	flags.IntP("max-reviews", "m", types.DefaultMaxReviews, "maximum number of reviews to collect")
	flags.StringP("output", "o", extractor.DefaultOutputDir, "directory for the result document")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("config", "", "optional config file (yaml, json or toml)")
	flags.Bool("headless", defaults.Headless, "run the browser without a window")
	flags.Duration("min-delay", defaults.MinActionDelay, "minimum pause after each browser action")
	flags.Duration("max-delay", defaults.MaxActionDelay, "maximum pause after each browser action")
	flags.Duration("timeout", defaults.Timeout, "overall time limit of the scrape")
	flags.Duration("navigation-timeout", defaults.NavigationTimeout, "time limit of one page load")
	flags.Duration("element-timeout", defaults.ElementTimeout, "time limit when waiting for an element")
	flags.Int("max-pages", defaults.MaxPages, "maximum number of listing pages to visit")
	flags.Int("max-scroll-attempts", defaults.MaxScrollAttempts, "scroll attempts before a listing counts as exhausted")
	flags.String("user-agent", "", "fixed user agent (default: rotate through a built-in pool)")
	flags.String("browser-path", "", "Chrome or Chromium binary to launch")
	flags.String("remote-url", "", "DevTools endpoint of an already running browser")

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &types.ConfigurationError{Field: "flags", Reason: err.Error()}
	})

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func runScrape(ctx context.Context, v *viper.Viper, out io.Writer, opts ...extractor.Option) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return &types.ConfigurationError{Field: "config", Reason: err.Error()}
		}
	}

	logger := newLogger(v.GetBool("verbose"))
	config := loadConfig(v)

	req, err := types.NewScrapeRequest(
		v.GetString("company"),
		v.GetString("platform"),
		v.GetString("start-date"),
		v.GetString("end-date"),
		v.GetInt("max-reviews"),
		time.Now(),
	)
	if err != nil {
		return err
	}

	e := extractor.NewReviewExtractor(config, logger, opts...)
	result, path, err := e.ExtractToJSON(ctx, req, v.GetString("output"))
	if err != nil {
		return err
	}

	switch result.Status {
	case types.StatusBlocked:
		logger.Warnf("%s blocked automated access; no reviews were collected", result.Platform)
	case types.StatusNoResults:
		logger.Warnf("No reviews found for %q on %s between %s and %s", result.Company, result.Platform, result.StartDate, result.EndDate)
	case types.StatusPartial:
		logger.Warnf("Scrape stopped early (%s); %d reviews saved", result.Error, result.TotalReviews)
	default:
		logger.Infof("Scraped %d reviews", result.TotalReviews)
	}
	if result.LowConfidenceMatch {
		logger.Warnf("Reviews belong to %q, the closest match for %q", result.MatchedCompany, result.Company)
	}
	fmt.Fprintln(out, path)
	return nil
}

// loadConfig builds the engine configuration from the resolved settings
func loadConfig(v *viper.Viper) *types.Config {
	config := types.DefaultConfig()
	config.Headless = v.GetBool("headless")
	config.UserAgent = v.GetString("user-agent")
	config.MinActionDelay = v.GetDuration("min-delay")
	config.MaxActionDelay = v.GetDuration("max-delay")
	config.Timeout = v.GetDuration("timeout")
	config.NavigationTimeout = v.GetDuration("navigation-timeout")
	config.ElementTimeout = v.GetDuration("element-timeout")
	config.MaxPages = v.GetInt("max-pages")
	config.MaxScrollAttempts = v.GetInt("max-scroll-attempts")
	config.BrowserPath = v.GetString("browser-path")
	config.RemoteURL = v.GetString("remote-url")
	return config
}

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	// Set log level from LOG_LEVEL env if present
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// exitCode maps an invocation error to the process exit code
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, types.ErrConfiguration):
		return exitConfiguration
	case errors.Is(err, types.ErrSessionUnavailable):
		return exitSessionUnavailable
	default:
		return exitFailure
	}
}
