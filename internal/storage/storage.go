// Package storage defines the narrow persistence contracts consumed by
// the crawler: a per-crawl page store keyed by the seed netloc, and a
// per-URL scoped writer that appends exactly one row.
package storage

import (
	"context"
	"fmt"
	"regexp"
)

// Page is one persisted row of a crawl table.
type Page struct {
	ID      int64
	URL     string
	Keyword string
	HTML    []byte
}

// PageWriter is a scoped handle bound to a single URL. Acquiring one
// has no side effects; a row exists only after a successful Write.
// Close must be called on every exit path of the owning scope.
type PageWriter interface {
	Write(ctx context.Context, body []byte) error
	Close() error
}

// PageStore persists crawled pages for one seed host.
type PageStore interface {
	Writer(url, keyword string) PageWriter
	Close() error
}

// tableIdent is the allowed identifier class for interpolated table
// names: the usual host characters plus ':' for an explicit port.
var tableIdent = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// TableName derives the crawl table identifier for a seed netloc and
// validates it before it may be interpolated into DDL. All value
// positions elsewhere use parameter placeholders; the table name is
// the only dynamic identifier.
func TableName(netloc string) (string, error) {
	name := "_" + netloc
	if netloc == "" || !tableIdent.MatchString(name) {
		return "", fmt.Errorf("storage: invalid table identifier %q", name)
	}
	return name, nil
}
