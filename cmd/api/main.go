package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"review-scraper/extractor"
	"review-scraper/internal/metrics"
	"review-scraper/internal/types"
)

// APIRequest represents the request body of POST /scrape
type APIRequest struct {
	Company    string `json:"company"`
	Platform   string `json:"platform"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	MaxReviews int    `json:"max_reviews,omitempty"`
}

// APIResponse represents the response from the API
type APIResponse struct {
	Success bool                `json:"success"`
	Data    *types.ScrapeResult `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Server holds the API server configuration. Every request runs an independent
// scrape with its own browser session.
type Server struct {
	logger    *logrus.Logger
	config    *types.Config
	metrics   *metrics.Metrics
	extractor *extractor.ReviewExtractor
	outputDir string
	router    *chi.Mux
}

// NewServer creates a new API server
func NewServer(config *types.Config, logger *logrus.Logger, outputDir string, opts ...extractor.Option) *Server {
	m := metrics.NewMetrics()
	s := &Server{
		logger:    logger,
		config:    config,
		metrics:   m,
		extractor: extractor.NewReviewExtractor(config, logger, append([]extractor.Option{extractor.WithMetrics(m)}, opts...)...),
		outputDir: outputDir,
		router:    chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/scrape", s.handleScrape)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
}

// Router returns the HTTP handler of the server
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
		}).Info("Request handled")
	})
}

// handleScrape runs one scrape and returns its result document
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var body APIRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req, err := types.NewScrapeRequest(body.Company, body.Platform, body.StartDate, body.EndDate, body.MaxReviews, time.Now())
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Infof("API request received for %q on %s", req.Company, req.Platform)

	result, err := s.extractor.Run(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrConfiguration):
			s.sendError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, types.ErrSessionUnavailable):
			s.sendError(w, err.Error(), http.StatusServiceUnavailable)
		default:
			s.sendError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if s.outputDir != "" {
		if path, err := extractor.WriteResult(result, s.outputDir); err != nil {
			s.logger.Errorf("Failed to save result: %v", err)
		} else {
			s.logger.Infof("Results saved to %s", path)
		}
	}

	s.sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: result})
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	s.sendJSON(w, statusCode, APIResponse{Success: false, Error: message})
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// Start serves the API until ctx is done
func (s *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting API server on port %s", port)
	s.logger.Info("Available endpoints:")
	s.logger.Info("  POST /scrape  - Scrape reviews of one company from one platform")
	s.logger.Info("  GET  /health  - Health check")
	s.logger.Info("  GET  /metrics - Prometheus metrics")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.logger.Info("Shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}

// loadSettings reads the server settings from REVIEW_SCRAPER_* environment variables
func loadSettings() (*types.Config, string, string) {
	v := viper.New()
	v.SetEnvPrefix("REVIEW_SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := types.DefaultConfig()
	v.SetDefault("api-port", "8080")
	v.SetDefault("output", "")
	v.SetDefault("headless", true)
	v.SetDefault("min-delay", defaults.MinActionDelay)
	v.SetDefault("max-delay", defaults.MaxActionDelay)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("max-pages", defaults.MaxPages)
	v.SetDefault("browser-path", "")
	v.SetDefault("remote-url", "")

	config := types.DefaultConfig()
	config.Headless = v.GetBool("headless")
	config.MinActionDelay = v.GetDuration("min-delay")
	config.MaxActionDelay = v.GetDuration("max-delay")
	config.Timeout = v.GetDuration("timeout")
	config.MaxPages = v.GetInt("max-pages")
	config.BrowserPath = v.GetString("browser-path")
	config.RemoteURL = v.GetString("remote-url")

	port := v.GetString("api-port")
	if envPort := os.Getenv("API_PORT"); envPort != "" {
		port = envPort
	}
	return config, port, v.GetString("output")
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	logger := newLogger()
	config, port, outputDir := loadSettings()
	if err := config.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(config, logger, outputDir)
	if err := server.Start(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("API server failed: %v", err)
	}
}
