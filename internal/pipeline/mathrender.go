package pipeline

import (
	"context"
	"fmt"
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-mdview/internal/dom"
)

// MathRenderer turns TeX source into HTML.
type MathRenderer interface {
	RenderMath(ctx context.Context, tex string, display bool) (string, error)
}

// DelimiterRenderer wraps TeX in \( \) or \[ \] delimiters for typesetting in
// the browser. It is the fallback when no server-side engine is configured.
type DelimiterRenderer struct{}

// Compile-time interface check.
var _ MathRenderer = DelimiterRenderer{}

// RenderMath implements MathRenderer.
func (DelimiterRenderer) RenderMath(_ context.Context, tex string, display bool) (string, error) {
	esc := html.EscapeString(tex)
	if display {
		return `<div class="math ` + MathDisplayClass + `">\[` + esc + `\]</div>`, nil
	}
	return `<span class="math ` + MathInlineClass + `">\(` + esc + `\)</span>`, nil
}

// isMathCode matches <code class="language-math ...">.
func isMathCode(n *xhtml.Node) bool {
	return n.Type == xhtml.ElementNode && n.Data == "code" && dom.HasClass(n, MathLanguageClass)
}

// renderMath replaces every math code element under container with the
// renderer output. Display blocks replace their wrapping <pre>.
func renderMath(ctx context.Context, container *xhtml.Node, r MathRenderer) error {
	for _, code := range dom.FindAll(container, isMathCode) {
		if err := ctx.Err(); err != nil {
			return err
		}

		display := dom.HasClass(code, MathDisplayClass)
		tex := strings.TrimSpace(dom.TextContent(code))

		out, err := r.RenderMath(ctx, tex, display)
		if err != nil {
			return fmt.Errorf("rendering %q: %w", abbreviate(tex, 40), err)
		}
		nodes, err := dom.ParseFragment(out)
		if err != nil {
			return err
		}

		target := code
		if p := code.Parent; display && p != nil && p.Data == "pre" && p.FirstChild == code && p.LastChild == code {
			target = p
		} else if display {
			inlineBlocks(nodes)
		}
		dom.Replace(target, nodes...)
	}
	return nil
}

// inlineBlocks turns top-level <div> elements into <span> so display math
// written inside a paragraph stays phrasing content.
func inlineBlocks(nodes []*xhtml.Node) {
	for _, n := range nodes {
		if n.Type == xhtml.ElementNode && n.DataAtom == atom.Div {
			n.Data = "span"
			n.DataAtom = atom.Span
		}
	}
}

func abbreviate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
