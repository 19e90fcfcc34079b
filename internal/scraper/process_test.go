package scraper

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestUniqueLinks(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b", "a"}
	want := []string{"a", "b", "c"}
	if got := uniqueLinks(in); !reflect.DeepEqual(got, want) {
		t.Errorf("uniqueLinks(%v) = %v, want %v", in, got, want)
	}

	if got := uniqueLinks(nil); len(got) != 0 {
		t.Errorf("uniqueLinks(nil) = %v", got)
	}
}

func TestProcess_MailtoAndJavascriptNeverEnqueued(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html>
			<a href="mailto:x@example.com">mail</a>
			<a href="javascript:void(0)">js</a>
			<a href="/real#frag">real</a>
		</html>`))
	})
	mux.HandleFunc("/real", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html>leaf</html>`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	store := &memStore{}
	c := newTestCrawler(t, ts.URL, CrawlConfig{Deep: 1, Store: store})

	if err := c.Run(t.Context()); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	if c.VisitedCount() != 2 {
		t.Errorf("visited = %d, want seed plus /real only", c.VisitedCount())
	}
	// The fragment is stripped before the visited-set insertion.
	if !c.HasVisited(ts.URL + "/real") {
		t.Errorf("expected fragment-stripped link in visited set")
	}
}

func TestProcess_DepthCapStopsExpansion(t *testing.T) {
	// Every page links onward; only depth 0..deep may be visited.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><a href="/p1">next</a></html>`))
	})
	mux.HandleFunc("/p1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><a href="/p2">next</a></html>`))
	})
	mux.HandleFunc("/p2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><a href="/p3">next</a></html>`))
	})
	mux.HandleFunc("/p3", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("page beyond the depth cap was fetched")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	store := &memStore{}
	c := newTestCrawler(t, ts.URL, CrawlConfig{Deep: 2, Store: store})

	if err := c.Run(t.Context()); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	if got := c.VisitedCount(); got != 3 {
		t.Errorf("visited = %d, want 3 (depths 0,1,2)", got)
	}
	if len(store.pages()) != 3 {
		t.Errorf("rows = %d, want 3", len(store.pages()))
	}
}

func TestProcess_KeywordComparedInPageCharset(t *testing.T) {
	// The body is GBK-encoded; the keyword must be encoded with the
	// fetched charset before the byte comparison.
	body, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(`<html>关键词在此</html>`))
	if err != nil {
		t.Fatalf("failed to build gbk fixture: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><a href="/zh">zh</a></html>`))
	})
	mux.HandleFunc("/zh", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=gbk")
		_, _ = w.Write(body)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	store := &memStore{}
	c := newTestCrawler(t, ts.URL, CrawlConfig{Deep: 1, Keyword: "关键词", Store: store})

	if err := c.Run(t.Context()); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	if !store.urls()[ts.URL+"/zh"] {
		t.Errorf("gbk page containing the gbk-encoded keyword must be persisted")
	}
}
