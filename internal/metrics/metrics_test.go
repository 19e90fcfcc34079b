package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(18972)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	RecordFetch("example.com", true, 11, 120*time.Millisecond)
	RecordFetch("example.com", false, 0, 5*time.Second)
	PagesStored.Inc()
	LinksDiscovered.Inc()
	FrontierDepth.Set(3)

	resp, err := http.Get("http://127.0.0.1:18972/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	output := string(body)

	for _, metric := range []string{
		`spider_pages_fetched_total{host="example.com",outcome="ok"}`,
		`spider_pages_fetched_total{host="example.com",outcome="error"}`,
		`spider_bytes_downloaded_total{host="example.com"}`,
		"spider_fetch_duration_seconds_bucket",
		"spider_pages_stored_total",
		"spider_links_discovered_total",
		"spider_frontier_depth",
	} {
		if !strings.Contains(output, metric) {
			t.Errorf("expected %s in metrics output", metric)
		}
	}
}
