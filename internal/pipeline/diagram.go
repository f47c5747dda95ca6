package pipeline

import (
	"context"
	"sync"

	"golang.org/x/net/html"

	"github.com/alnah/go-mdview/internal/dom"
)

// DiagramLanguage is the fence info string of diagram blocks.
const DiagramLanguage = "mermaid"

// DiagramEngine renders mounted diagram blocks.
type DiagramEngine interface {
	// Initialize configures the engine for a page theme; startOnLoad stays off.
	Initialize(theme string)
	// Run renders the given code elements in place.
	Run(ctx context.Context, nodes []*html.Node) error
}

// DiagramNodes returns the diagram code elements under container.
func DiagramNodes(container *html.Node) []*html.Node {
	if container == nil {
		return nil
	}
	return dom.FindAll(container, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "code" && dom.HasClass(n, "language-"+DiagramLanguage)
	})
}

// HydrationEngine replaces diagram code blocks with <pre class="mermaid">
// containers that the client-side engine renders on page load.
type HydrationEngine struct {
	mu    sync.Mutex
	theme string
}

// Compile-time interface check.
var _ DiagramEngine = (*HydrationEngine)(nil)

// Initialize implements DiagramEngine.
func (e *HydrationEngine) Initialize(theme string) {
	e.mu.Lock()
	e.theme = theme
	e.mu.Unlock()
}

// Theme returns the theme set by the last Initialize.
func (e *HydrationEngine) Theme() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.theme
}

// Run implements DiagramEngine. Processed nodes no longer match DiagramNodes.
func (e *HydrationEngine) Run(ctx context.Context, nodes []*html.Node) error {
	theme := e.Theme()
	for _, code := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := code
		if p := code.Parent; p != nil && p.Data == "pre" {
			target = p
		}

		attrs := []string{"class", DiagramLanguage}
		if theme != "" {
			attrs = append(attrs, "data-theme", theme)
		}
		block := dom.Element("pre", attrs...)
		block.AppendChild(&html.Node{Type: html.TextNode, Data: dom.TextContent(code)})
		dom.Replace(target, block)
	}
	return nil
}
