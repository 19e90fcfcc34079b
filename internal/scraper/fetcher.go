package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/spider/internal/charset"
	"github.com/FranksOps/spider/internal/fingerprint"
	"github.com/FranksOps/spider/internal/metrics"
	"github.com/FranksOps/spider/pkg/httpclient"
	"github.com/FranksOps/spider/pkg/useragent"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// Result is the outcome of fetching a single URL. Failures are data,
// not errors: Status carries either "ok" or a formatted error string,
// and the fetch path never panics or returns an error to its caller.
type Result struct {
	ID       string
	URL      string
	Status   string
	MIME     string
	Charset  string
	Body     []byte
	Duration time.Duration
}

// OK reports whether the fetch succeeded.
func (r *Result) OK() bool {
	return !strings.HasPrefix(r.Status, "*")
}

// FetchConfig configures the Fetcher.
type FetchConfig struct {
	// Timeout bounds the whole request. Defaults to 5 seconds.
	Timeout     time.Duration
	Fingerprint fingerprint.Profile
	UAPool      *useragent.Pool
}

// Fetcher performs single page fetches with the crawler's fixed header
// set and transparent gzip decoding.
type Fetcher struct {
	cfg    FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a Fetcher. The transport is built once so
// connections pool across requests.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("scraper: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: %w", err)
	}

	return &Fetcher{cfg: cfg, client: client}, nil
}

// Fetch issues one GET request for rawURL. The URL is percent-encoded
// with the printable-ASCII allowlist first; the response body is
// inflated when the server applied gzip. The returned Result's MIME
// and Charset come from the Content-Type header, with the charset
// falling back to content detection.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *Result {
	start := time.Now()
	quoted := quoteURL(rawURL)
	result := &Result{
		ID:     uuid.New().String(),
		URL:    rawURL,
		Status: "ok",
	}

	fail := func(reason error) *Result {
		result.Status = fmt.Sprintf(`*** ERROR: bad URL "%s": %v`, quoted, reason)
		result.MIME = ""
		result.Duration = time.Since(start)
		metrics.RecordFetch(hostOf(quoted), false, 0, result.Duration)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, quoted, nil)
	if err != nil {
		return fail(err)
	}

	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.8,en;q=0.6")
	req.Header.Set("User-Agent", f.cfg.UAPool.GetSequential())

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fail(fmt.Errorf("HTTP %s", resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(err)
	}

	// Because Accept-Encoding is set explicitly, the transport does
	// not decompress for us.
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return fail(err)
		}
		data, err = io.ReadAll(gz)
		if err != nil {
			return fail(err)
		}
	}

	mime, cs := splitContentType(resp.Header.Get("Content-Type"))
	if cs == "" {
		cs = charset.Detect(data)
	}

	result.MIME = mime
	result.Charset = cs
	result.Body = data
	result.Duration = time.Since(start)
	metrics.RecordFetch(hostOf(quoted), true, len(data), result.Duration)
	return result
}

// splitContentType separates a Content-Type header into its MIME type
// (the first `;`-separated token) and the declared charset, if any.
func splitContentType(ct string) (mime, cs string) {
	if ct == "" {
		return "", ""
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		rest := ct[i+1:]
		if j := strings.Index(rest, "charset="); j >= 0 {
			cs = rest[j+len("charset="):]
			if k := strings.IndexByte(cs, ';'); k >= 0 {
				cs = cs[:k]
			}
			cs = strings.Trim(strings.TrimSpace(cs), `"'`)
		}
		ct = ct[:i]
	}
	return strings.TrimSpace(ct), cs
}

// quoteURL percent-encodes every byte outside the printable-ASCII
// range, leaving already-encoded sequences untouched.
func quoteURL(raw string) string {
	needsQuoting := false
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x20 || raw[i] > 0x7e {
			needsQuoting = true
			break
		}
	}
	if !needsQuoting {
		return raw
	}

	var sb strings.Builder
	sb.Grow(len(raw) + 8)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c < 0x20 || c > 0x7e {
			fmt.Fprintf(&sb, "%%%02X", c)
		} else {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Hostname()
	}
	return ""
}
