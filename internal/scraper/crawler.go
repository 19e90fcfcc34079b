package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/spider/internal/metrics"
	"github.com/FranksOps/spider/internal/storage"
	"github.com/FranksOps/spider/pkg/pool"
)

// ErrInterrupted is returned by Run when the crawl was torn down
// because the context was canceled by an operator interrupt.
var ErrInterrupted = errors.New("scraper: interrupted")

// skipExtensions lists path extensions whose URLs are tracked in the
// visited set but never downloaded.
var skipExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".jpg": {}, ".jpeg": {}, ".jpe": {},
	".gif": {}, ".bmp": {}, ".exe": {}, ".avi": {}, ".rmvb": {},
	".mp4": {}, ".mp3": {}, ".wav": {},
}

// CrawlConfig provides parameters for the BFS crawl.
type CrawlConfig struct {
	// Deep is the maximum crawl depth; pages at this depth are fetched
	// but their links are not followed.
	Deep int
	// Threads is the worker pool size; coerced to at least 1.
	Threads int
	// Keyword gates persistence of non-seed pages: a page body must
	// contain it (byte-compared in the page's charset). Empty disables
	// the gate.
	Keyword string
	// PriDomain restricts the crawl to the exact seed host instead of
	// every host under the seed's primary domain.
	PriDomain bool
	// StoreRaw persists bodies whose charset cannot be resolved.
	StoreRaw bool
	Store    storage.PageStore
}

// entry is one frontier element: a normalized URL, its path extension
// (".html" when the path has none) and its crawl depth.
type entry struct {
	url   string
	ext   string
	depth int
}

// Crawler owns the frontier queue and the visited set and drives the
// worker pool until the crawl is quiescent.
type Crawler struct {
	cfg     CrawlConfig
	fetcher *Fetcher
	logger  *slog.Logger
	pool    *pool.Pool

	seed string
	host string
	dom  string

	// mu guards queue, seen and count. When held together with the
	// pool's internal lock, this one is acquired first.
	mu    sync.Mutex
	queue []entry
	seen  map[string]struct{}
	count int
}

// NormalizeSeed canonicalizes a start URL: an http:// scheme is
// prepended when no http(s):// prefix is present, and trailing slashes
// are stripped.
func NormalizeSeed(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	for strings.HasSuffix(raw, "/") {
		raw = raw[:len(raw)-1]
	}
	return raw
}

// NewCrawler creates a crawler rooted at the given seed URL. The seed
// is normalized, recorded as visited and becomes the sole initial
// frontier entry at depth 0.
func NewCrawler(seedURL string, cfg CrawlConfig, fetcher *Fetcher, logger *slog.Logger) (*Crawler, error) {
	if cfg.Store == nil {
		return nil, errors.New("scraper: CrawlConfig.Store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	seed := NormalizeSeed(seedURL)
	u, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("scraper: bad seed URL %q: %w", seedURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("scraper: seed URL %q has no host", seedURL)
	}

	labels := strings.Split(host, ".")
	dom := host
	if len(labels) >= 2 {
		dom = strings.Join(labels[len(labels)-2:], ".")
	}

	c := &Crawler{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
		pool:    pool.New(cfg.Threads),
		seed:    seed,
		host:    host,
		dom:     dom,
		queue:   []entry{{url: seed, ext: pathExt(u.Path), depth: 0}},
		seen:    map[string]struct{}{seed: {}},
	}
	return c, nil
}

// Seed returns the normalized seed URL.
func (c *Crawler) Seed() string { return c.seed }

// VisitedCount returns the current size of the visited set.
func (c *Crawler) VisitedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// HasVisited reports whether a normalized URL was enqueued or
// processed during this crawl.
func (c *Crawler) HasVisited(u string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[u]
	return ok
}

// Run drives the crawl to quiescence: it feeds frontier entries to the
// pool and exits once the frontier is empty, the pool task list is
// empty and no worker is running. On context cancellation it tears the
// pool down and returns ErrInterrupted.
func (c *Crawler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			c.teardown()
			return ErrInterrupted
		}

		c.mu.Lock()
		if len(c.queue) > 0 {
			e := c.queue[0]
			c.queue = c.queue[1:]
			metrics.FrontierDepth.Set(float64(len(c.queue)))
			c.mu.Unlock()

			if _, err := c.pool.Add(func() any {
				c.process(ctx, e)
				return nil
			}); err != nil {
				return err
			}
			continue
		}
		c.mu.Unlock()

		if c.pool.Running() == 0 {
			c.mu.Lock()
			quiet := len(c.queue) == 0 && c.pool.Quiescent()
			c.mu.Unlock()
			if quiet {
				break
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Millisecond):
		}
	}

	c.pool.Close()
	return c.pool.Join()
}

// teardown discards all pending work and waits for the workers to
// exit. In-flight fetches run to their own completion or timeout.
func (c *Crawler) teardown() {
	c.mu.Lock()
	c.pool.Shutdown()
	c.queue = nil
	metrics.FrontierDepth.Set(0)
	c.mu.Unlock()
	_ = c.pool.Join()
}

// inScope applies the scope predicate to an absolute link's host.
func (c *Crawler) inScope(host string) bool {
	if c.cfg.PriDomain {
		return host == c.host
	}
	return strings.HasSuffix(host, c.dom)
}

// pathExt returns the extension of a URL path, defaulting to ".html"
// when the path has none.
func pathExt(p string) string {
	if e := path.Ext(p); e != "" {
		return e
	}
	return ".html"
}
