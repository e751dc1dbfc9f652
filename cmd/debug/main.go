package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"review-scraper/adapters"
	"review-scraper/engine"
	"review-scraper/internal/types"
	"review-scraper/utils"
)

func main() {
	_ = godotenv.Load()
	if err := newDebugCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newDebugCommand() *cobra.Command {
	var (
		platform string
		headless bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "review-debug [url]",
		Short: "Report which review matchers hit on a live page",
		Long: `Open a stealth browser session on a review listing and print, for every matcher
of the platform adapter, how many review fragments it finds. Useful when a platform
changes its markup. Without a url the platform's home page is inspected.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := types.ParsePlatform(platform)
			if err != nil {
				return err
			}

			logger := logrus.New()
			logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}

			config := types.DefaultConfig()
			config.Headless = headless
			adapter, err := adapters.ForPlatform(p, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), config.NavigationTimeout*2)
			defer cancel()
			url := adapter.BaseURL()
			if len(args) == 1 {
				url = args[0]
			}
			return inspect(ctx, cmd.OutOrStdout(), config, logger, adapter, url)
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "g2", "platform adapter to test (g2, capterra, trustradius)")
	cmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func inspect(ctx context.Context, w io.Writer, config *types.Config, logger types.Logger, adapter types.PlatformAdapter, url string) error {
	session, err := utils.OpenSession(ctx, config, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	status, err := session.Navigate(ctx, url)
	if err != nil {
		return err
	}
	if err := session.SimulateHuman(ctx); err != nil {
		return err
	}
	title, err := session.Title(ctx)
	if err != nil {
		return err
	}
	html, err := session.HTML(ctx)
	if err != nil {
		return err
	}

	return report(w, adapter, types.PageState{URL: url, Status: status, Title: title, HTML: html, ExpectReviews: true})
}

// report prints the page summary, blocking verdict and matcher hit counts
func report(w io.Writer, adapter types.PlatformAdapter, state types.PageState) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(state.HTML))
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	fmt.Fprintf(w, "=== %s ===\n", state.URL)
	fmt.Fprintf(w, "Title: %s\n", state.Title)
	fmt.Fprintf(w, "Status: %d, %d bytes\n", state.Status, len(state.HTML))
	if sig, blocked := adapter.DetectBlock(state); blocked {
		fmt.Fprintf(w, "Blocking signature: %s\n", sig.Name)
	} else {
		fmt.Fprintln(w, "Blocking signature: none")
	}
	names := make([]string, 0, len(adapter.BlockSignatures()))
	for _, sig := range adapter.BlockSignatures() {
		names = append(names, sig.Name)
	}
	fmt.Fprintf(w, "Checked signatures: %s\n", strings.Join(names, ", "))

	fmt.Fprintln(w, "Matchers:")
	for i, count := range engine.CountMatches(doc, adapter) {
		fmt.Fprintf(w, "  %d: %-14s %-11s %3d  %s\n", i+1, count.Matcher.Name, count.Matcher.Kind, count.Count, count.Matcher.Selector)
	}

	results := adapter.SearchResults(doc)
	fmt.Fprintf(w, "Search results: %d\n", len(results))
	for i, result := range results {
		if i >= 10 {
			break
		}
		fmt.Fprintf(w, "  %d: %s -> %s\n", i+1, result.Name, result.URL)
	}
	return nil
}
