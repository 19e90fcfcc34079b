// Package parser extracts anchor targets from HTML documents and
// normalizes them into absolute URLs.
package parser

import (
	"net/url"
	"strings"

	"github.com/FranksOps/spider/internal/charset"
	"github.com/PuerkitoBio/goquery"
)

// Links walks every <a> element of the document in order and returns
// the normalized href targets. Duplicates inside the same page are
// preserved; de-duplication belongs to the crawl coordinator.
func Links(html, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var base *url.URL
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil {
			base = u
		}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if link := Normalize(href, base); link != "" {
			links = append(links, link)
		}
	})
	return links
}

// LinksBytes decodes raw payload bytes and extracts links from the
// result. Decoding tries the hinted charset strictly, then falls back
// to detection with lenient decoding. An undecodable payload yields no
// links.
func LinksBytes(payload []byte, baseURL, charsetHint string) []string {
	html, ok := decode(payload, charsetHint)
	if !ok {
		return nil
	}
	return Links(html, baseURL)
}

func decode(payload []byte, hint string) (string, bool) {
	if hint == "" {
		hint = "utf-8"
	}
	if s, ok := charset.DecodeStrict(payload, hint); ok {
		return s, true
	}
	name := charset.Detect(payload)
	if name == "" {
		return "", false
	}
	return charset.DecodeLenient(payload, name)
}

// Normalize applies the anchor filter rules to a raw href value:
// mailto: and javascript: targets are dropped, fragments stripped,
// empty remainders dropped, relative references resolved against base,
// and trailing slashes removed. It returns the empty string for a
// discarded href. Normalize is idempotent over its own output.
func Normalize(href string, base *url.URL) string {
	if strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if href == "" {
		return ""
	}
	if base != nil {
		ref, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = base.ResolveReference(ref).String()
	}
	for strings.HasSuffix(href, "/") {
		href = href[:len(href)-1]
	}
	return href
}
