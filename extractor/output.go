package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"review-scraper/internal/types"
)

// DefaultOutputDir is where result documents are written unless configured otherwise
const DefaultOutputDir = "output"

// OutputFilename names the result document of an invocation
func OutputFilename(result *types.ScrapeResult) string {
	company := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(result.Company), " ", "_"))
	return fmt.Sprintf("%s_%s_%s_%s_%s.json",
		company,
		result.Platform,
		result.StartDate,
		result.EndDate,
		result.ScrapedAt.Format("20060102_150405"))
}

// WriteResult saves result as indented JSON into dir and returns the file path
func WriteResult(result *types.ScrapeResult, dir string) (string, error) {
	if dir == "" {
		dir = DefaultOutputDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result to JSON: %w", err)
	}

	path := filepath.Join(dir, OutputFilename(result))
	if err := writeToFile(path, jsonData); err != nil {
		return "", fmt.Errorf("failed to write result to file: %w", err)
	}
	return path, nil
}

// ExtractToJSON runs req and saves the result document into dir
func (e *ReviewExtractor) ExtractToJSON(ctx context.Context, req types.ScrapeRequest, dir string) (*types.ScrapeResult, string, error) {
	result, err := e.Run(ctx, req)
	if err != nil {
		return nil, "", err
	}

	path, err := WriteResult(result, dir)
	if err != nil {
		return result, "", err
	}

	e.logger.Infof("Results saved to %s", path)
	return result, path, nil
}

// writeToFile writes data to a file
func writeToFile(filename string, data []byte) error {
	return os.WriteFile(filename, data, 0644)
}
