package pipeline

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/net/html"

	"github.com/alnah/go-mdview/internal/dom"
)

// HighlightedAttr marks code blocks already processed by a Highlighter.
const HighlightedAttr = "data-highlighted"

// Chroma styles per page theme.
const (
	LightCodeStyle = "github"
	DarkCodeStyle  = "monokai"
)

// Highlighter applies chroma syntax highlighting to mounted code blocks.
// Output uses CSS classes; pair it with CSS for the active theme.
type Highlighter struct {
	formatter *chromahtml.Formatter
}

// NewHighlighter creates a class-based Highlighter.
func NewHighlighter() *Highlighter {
	return &Highlighter{
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
	}
}

// Highlight processes every pre>code block under container that is not yet
// highlighted. Diagram and math blocks are left to their own passes.
// It returns the number of blocks highlighted.
func (h *Highlighter) Highlight(container *html.Node) (int, error) {
	if container == nil {
		return 0, nil
	}

	blocks := dom.FindAll(container, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "code" && n.Parent != nil && n.Parent.Data == "pre"
	})

	count := 0
	for _, code := range blocks {
		if _, done := dom.Attr(code, HighlightedAttr); done {
			continue
		}
		lang, _ := dom.ClassWithPrefix(code, "language-")
		if lang == DiagramLanguage || lang == "math" {
			continue
		}

		src := dom.TextContent(code)
		out, err := h.format(lang, src)
		if err != nil {
			return count, fmt.Errorf("highlighting %s block: %w", lang, err)
		}
		nodes, err := dom.ParseFragment(out)
		if err != nil {
			return count, err
		}

		for c := code.FirstChild; c != nil; c = code.FirstChild {
			code.RemoveChild(c)
		}
		for _, n := range nodes {
			code.AppendChild(n)
		}
		dom.SetAttr(code, HighlightedAttr, "true")
		if !dom.HasClass(code.Parent, "chroma") {
			dom.SetAttr(code.Parent, "class", strings.TrimSpace(classAttr(code.Parent)+" chroma"))
		}
		count++
	}
	return count, nil
}

// CSS returns the chroma stylesheet for theme ("dark" or anything else for light).
func (h *Highlighter) CSS(theme string) (string, error) {
	var buf strings.Builder
	if err := h.formatter.WriteCSS(&buf, styles.Get(CodeStyle(theme))); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// CodeStyle maps a page theme to a chroma style name.
func CodeStyle(theme string) string {
	if strings.EqualFold(theme, "dark") {
		return DarkCodeStyle
	}
	return LightCodeStyle
}

func (h *Highlighter) format(lang, src string) (string, error) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(src)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, src)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := h.formatter.Format(&buf, styles.Fallback, it); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func classAttr(n *html.Node) string {
	v, _ := dom.Attr(n, "class")
	return v
}
