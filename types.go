package mdview

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/alnah/go-mdview/internal/pipeline"
	"github.com/alnah/go-mdview/internal/textenc"
)

// Input is one document to render.
type Input struct {
	// Content is the document text. When empty, Raw is decoded with Charset.
	Content string
	Raw     []byte
	Charset string // WHATWG label; empty sniffs a BOM and falls back to UTF-8

	Ext     string // Extension hint; empty or markdown renders as markdown
	Readme  bool   // Resolve relative images against DocPath itself
	ShowTOC bool
	DocPath string // Path of the document, e.g. /docs/page.md
}

// text returns the document text, decoding Raw when Content is empty.
func (in Input) text() (string, error) {
	if in.Content != "" || in.Raw == nil {
		return in.Content, nil
	}
	s, _, err := textenc.Decode(in.Raw, in.Charset)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return s, nil
}

// TOCItem is one table of contents entry.
type TOCItem = pipeline.TOCItem

// RenderResult is the immutable output of one render.
type RenderResult struct {
	HTML        string
	HasDiagrams bool
	HasMath     bool
	TOC         []TOCItem
}

// TOCVisible reports whether a table of contents should be shown:
// showTOC is set and there are at least two entries.
func TOCVisible(items []TOCItem, showTOC bool) bool {
	return pipeline.TOCVisible(items, showTOC)
}

// LazyLoader performs the one-time asset side effects of a page.
// *assets.LazyLoader implements it.
type LazyLoader interface {
	InjectMathStylesheet()
	StartDiagramEngine(ctx context.Context)
	LoadDiagramEngine(ctx context.Context) error
}

// Notifier surfaces non-fatal problems to the user, such as a diagram
// engine that failed to load.
type Notifier interface {
	Notify(ctx context.Context, message string, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string, err error)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, message string, err error) {
	f(ctx, message, err)
}

// MathRenderer renders TeX for the math-render stage.
type MathRenderer = pipeline.MathRenderer

// Highlighter highlights the code blocks of a mounted container.
type Highlighter interface {
	Highlight(container *html.Node) (int, error)
}

// DiagramEngine renders mounted diagram blocks.
type DiagramEngine = pipeline.DiagramEngine
