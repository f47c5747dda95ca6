package mdview

import (
	"log/slog"
	"time"

	"github.com/alnah/go-mdview/internal/assets"
	"github.com/alnah/go-mdview/internal/dom"
)

// Document is a mounted page: head, body and a ".markdown-body" container.
type Document = dom.Document

// NewDocument creates a Document from a minimal built-in shell.
func NewDocument() *Document {
	return dom.New()
}

// ParseDocument creates a Document from a full HTML page. A ".markdown-body"
// container is appended to the body when the page has none.
func ParseDocument(page string) (*Document, error) {
	return dom.Parse(page)
}

// AssetURLs are the opaque math stylesheet and diagram script locations.
type AssetURLs = assets.URLs

// NewLazyLoader creates the asset loader of one page. The diagram script is
// fetched over HTTP to verify it loads; fetchTimeout <= 0 means no timeout.
func NewLazyLoader(doc *Document, urls AssetURLs, fetchTimeout time.Duration, logger *slog.Logger) *assets.LazyLoader {
	return assets.NewLazyLoader(doc, assets.NewHTTPFetcher(fetchTimeout), urls, assets.WithLazyLogger(logger))
}
