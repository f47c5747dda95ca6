package mdview

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/alnah/go-mdview/internal/dom"
	"github.com/alnah/go-mdview/internal/pipeline"
)

// Viewport is the scrollable window a document is displayed in.
// *browser.Viewport implements it.
type Viewport interface {
	// ElementTop returns the top edge of the heading with tag and id,
	// relative to the visible area.
	ElementTop(ctx context.Context, tag, key string) (float64, error)
	// NavBarBottom returns the bottom edge of the fixed navigation bar.
	NavBarBottom(ctx context.Context) (float64, error)
	ScrollBy(ctx context.Context, dy float64, smooth bool) error
}

// Navigator scrolls a viewport to table of contents entries.
type Navigator struct {
	doc      *dom.Document
	viewport Viewport
	logger   *slog.Logger
}

// NewNavigator creates a Navigator over the mounted doc. A nil logger discards.
func NewNavigator(doc *dom.Document, viewport Viewport, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Navigator{doc: doc, viewport: viewport, logger: logger}
}

// Navigate smooth-scrolls to item's heading so that it sits just below the
// navigation bar. The scroll offset is clamped at zero. A heading missing
// from the mounted document is ignored; viewport failures are logged only.
func (n *Navigator) Navigate(ctx context.Context, item TOCItem) {
	if !n.mounted(item) {
		n.logger.Debug("anchor not mounted", "tag", item.TagName, "key", item.Key)
		return
	}

	top, err := n.viewport.ElementTop(ctx, item.TagName, item.Key)
	if err != nil {
		n.logger.Debug("anchor position unavailable", "key", item.Key, "error", err)
		return
	}
	navBottom, err := n.viewport.NavBarBottom(ctx)
	if err != nil {
		n.logger.Debug("navigation bar position unavailable", "error", err)
		return
	}

	offset := max(0, top-navBottom)
	if err := n.viewport.ScrollBy(ctx, offset, true); err != nil {
		n.logger.Debug("scroll failed", "key", item.Key, "error", err)
	}
}

// mounted reports whether the container holds a heading with item's tag and key.
func (n *Navigator) mounted(item TOCItem) bool {
	tag := strings.ToLower(item.TagName)
	found := false
	n.doc.View(func(container *html.Node) {
		found = dom.FindFirst(container, func(el *html.Node) bool {
			if el.Data != tag {
				return false
			}
			key, ok := dom.Attr(el, pipeline.TOCKeyAttr)
			return ok && key == item.Key
		}) != nil
	})
	return found
}
