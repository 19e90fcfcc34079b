package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/FranksOps/spider/internal/charset"
	"github.com/FranksOps/spider/internal/metrics"
	"github.com/FranksOps/spider/internal/parser"
)

// process handles one frontier entry: fetch, optional keyword-gated
// persistence, link extraction and enqueueing of newly discovered
// in-scope links. Every failure is contained here; nothing may
// propagate into the worker and take down the pool.
func (c *Crawler) process(ctx context.Context, e entry) {
	c.mu.Lock()
	c.count++
	n := c.count
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(fmt.Sprintf("No.%d URL: %s task failed: %v", n, e.url, r))
		}
	}()

	c.logger.Info(fmt.Sprintf("No.%d URL: %s starting to handle", n, e.url))

	if _, skip := skipExtensions[e.ext]; skip {
		c.logger.Debug(fmt.Sprintf("No.%d URL: %s skipping download", n, e.url))
		metrics.PagesSkipped.Inc()
		return
	}

	// The seed page is stored unconditionally; the keyword gate only
	// applies below the root.
	keyword := ""
	if e.depth > 0 {
		keyword = c.cfg.Keyword
	}

	w := c.cfg.Store.Writer(e.url, keyword)
	defer w.Close()

	// Cancellation must not abort an in-flight fetch or write; they
	// finish on their own 5 s budget.
	detached := context.WithoutCancel(ctx)

	res := c.fetcher.Fetch(detached, e.url)
	if !res.OK() {
		c.logger.Warn(res.Status)
		return
	}
	c.logger.Debug(fmt.Sprintf("No.%d URL: %s has been downloaded", n, e.url))

	write := true
	if keyword != "" {
		enc := res.Charset
		if enc == "" {
			enc = "utf-8"
		}
		kb, ok := charset.Encode(keyword, enc)
		if !ok {
			kb = []byte(keyword)
		}
		write = bytes.Contains(res.Body, kb)
	}
	if write && !c.cfg.StoreRaw && !charset.Resolvable(res.Body, res.Charset) {
		c.logger.Debug(fmt.Sprintf("No.%d URL: %s skipping store of undecodable body", n, e.url))
		write = false
	}
	if write {
		if err := w.Write(detached, res.Body); err != nil {
			c.logger.Error(fmt.Sprintf("No.%d URL: %s store failed: %v", n, e.url, err))
			return
		}
		metrics.PagesStored.Inc()
	}

	if e.depth == c.cfg.Deep {
		c.logger.Debug(fmt.Sprintf("No.%d URL: %s skipping parse", n, e.url))
		return
	}
	if res.MIME != "" && !strings.HasPrefix(res.MIME, "text/html") {
		c.logger.Debug(fmt.Sprintf("No.%d URL: %s skipping parse", n, e.url))
		return
	}

	for _, link := range uniqueLinks(parser.LinksBytes(res.Body, e.url, res.Charset)) {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		ext := pathExt(u.Path)

		if strings.HasPrefix(link, "http") && !c.inScope(u.Hostname()) {
			c.logger.Debug("LINK: discarded link " + link)
			metrics.LinksDiscarded.Inc()
			continue
		}

		// The membership test and the insert must happen under the
		// same critical section; no URL may enter the frontier twice.
		c.mu.Lock()
		if _, ok := c.seen[link]; !ok {
			c.seen[link] = struct{}{}
			c.queue = append(c.queue, entry{url: link, ext: ext, depth: e.depth + 1})
			metrics.FrontierDepth.Set(float64(len(c.queue)))
			metrics.LinksDiscovered.Inc()
			c.logger.Debug("LINK: found link " + link)
		}
		c.mu.Unlock()
	}
}

// uniqueLinks de-duplicates while preserving first-seen order.
func uniqueLinks(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := links[:0]
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
