package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for scrape invocations.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	Registry         *prometheus.Registry
	ScrapesTotal     *prometheus.CounterVec
	ReviewsExtracted *prometheus.CounterVec
	FragmentsDropped *prometheus.CounterVec
	PagesVisited     *prometheus.CounterVec
	BlocksTotal      *prometheus.CounterVec
	ScrapeDuration   *prometheus.HistogramVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	scrapes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_scraper_scrapes_total",
			Help: "Total scrape invocations by platform and final status.",
		},
		[]string{"platform", "status"},
	)
	reviews := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_scraper_reviews_extracted_total",
			Help: "Total review records emitted.",
		},
		[]string{"platform"},
	)
	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_scraper_fragments_dropped_total",
			Help: "Total fragments dropped as malformed or out of range.",
		},
		[]string{"platform", "reason"},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_scraper_pages_visited_total",
			Help: "Total review listing pages (or scroll batches) read.",
		},
		[]string{"platform"},
	)
	blocks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_scraper_blocks_total",
			Help: "Total blocking signatures detected.",
		},
		[]string{"platform", "signature"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_scraper_scrape_duration_seconds",
			Help:    "Wall time of complete scrape invocations.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"platform"},
	)

	registry.MustRegister(scrapes, reviews, dropped, pages, blocks, duration)

	return &Metrics{
		Registry:         registry,
		ScrapesTotal:     scrapes,
		ReviewsExtracted: reviews,
		FragmentsDropped: dropped,
		PagesVisited:     pages,
		BlocksTotal:      blocks,
		ScrapeDuration:   duration,
	}
}

// ObserveScrape records a finished invocation.
func (m *Metrics) ObserveScrape(platform, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScrapesTotal.WithLabelValues(platform, status).Inc()
	m.ScrapeDuration.WithLabelValues(platform).Observe(d.Seconds())
}

// AddReviews increments the extracted reviews counter.
func (m *Metrics) AddReviews(platform string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ReviewsExtracted.WithLabelValues(platform).Add(float64(n))
}

// IncDropped increments the dropped fragments counter for a reason label.
func (m *Metrics) IncDropped(platform, reason string) {
	if m == nil {
		return
	}
	m.FragmentsDropped.WithLabelValues(platform, reason).Inc()
}

// IncPages increments the pages visited counter.
func (m *Metrics) IncPages(platform string) {
	if m == nil {
		return
	}
	m.PagesVisited.WithLabelValues(platform).Inc()
}

// IncBlock increments the blocks counter for a signature.
func (m *Metrics) IncBlock(platform, signature string) {
	if m == nil {
		return
	}
	m.BlocksTotal.WithLabelValues(platform, signature).Inc()
}
