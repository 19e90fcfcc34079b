package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spider_pages_fetched_total",
			Help: "Total number of page fetches, by outcome",
		},
		[]string{"host", "outcome"},
	)

	PagesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spider_pages_stored_total",
			Help: "Total number of page rows persisted",
		},
	)

	PagesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spider_pages_skipped_total",
			Help: "Total number of URLs skipped by extension filter",
		},
	)

	BytesDownloaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spider_bytes_downloaded_total",
			Help: "Total bytes downloaded after gzip decoding",
		},
		[]string{"host"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spider_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"host"},
	)

	LinksDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spider_links_discovered_total",
			Help: "Total links accepted into the frontier",
		},
	)

	LinksDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spider_links_discarded_total",
			Help: "Total links discarded by the scope predicate",
		},
	)

	FrontierDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spider_frontier_depth",
			Help: "Current number of entries waiting in the frontier",
		},
	)
)

// RecordFetch updates the fetch metrics for one completed request.
func RecordFetch(host string, ok bool, bytes int, duration time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	PagesFetched.WithLabelValues(host, outcome).Inc()
	FetchDuration.WithLabelValues(host).Observe(duration.Seconds())
	if bytes > 0 {
		BytesDownloaded.WithLabelValues(host).Add(float64(bytes))
	}
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
// The server runs in a background goroutine and must be stopped via
// Server.Stop() to release resources.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
