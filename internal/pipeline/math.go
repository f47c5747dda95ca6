package pipeline

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Classes that mark math in the to-html output. The sanitizer keeps them on
// <code> so the math-render stage can find its input after sanitization.
const (
	MathLanguageClass = "language-math"
	MathInlineClass   = "math-inline"
	MathDisplayClass  = "math-display"
)

var mathDelim = []byte("$$")

// KindMathBlock is the NodeKind of a display math block.
var KindMathBlock = ast.NewNodeKind("MathBlock")

// KindInlineMath is the NodeKind of inline math.
var KindInlineMath = ast.NewNodeKind("InlineMath")

// MathBlock is a $$ ... $$ block. Its lines hold the TeX source.
type MathBlock struct {
	ast.BaseBlock
	closed bool
}

// Kind implements ast.Node.
func (n *MathBlock) Kind() ast.NodeKind { return KindMathBlock }

// IsRaw implements ast.Node.
func (n *MathBlock) IsRaw() bool { return true }

// Dump implements ast.Node.
func (n *MathBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

// InlineMath is $...$ (or $$...$$ within a paragraph).
type InlineMath struct {
	ast.BaseInline
	Segment text.Segment
	Display bool
}

// Kind implements ast.Node.
func (n *InlineMath) Kind() ast.NodeKind { return KindInlineMath }

// Dump implements ast.Node.
func (n *InlineMath) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"TeX": string(n.Segment.Value(source))}, nil)
}

// ---------------------------------------------------------------------------
// Block parser
// ---------------------------------------------------------------------------

type mathBlockParser struct{}

func (b *mathBlockParser) Trigger() []byte { return []byte{'$'} }

func (b *mathBlockParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || !bytes.HasPrefix(line[pos:], mathDelim) {
		return nil, parser.NoChildren
	}

	node := &MathBlock{}
	rest := util.TrimRightSpace(line[pos+len(mathDelim):])
	if len(util.TrimLeftSpace(rest)) > 0 {
		// Single line $$...$$; anything else after $$ is paragraph text
		if len(rest) < len(mathDelim) || !bytes.HasSuffix(rest, mathDelim) {
			return nil, parser.NoChildren
		}
		start := segment.Start + pos + len(mathDelim)
		node.Lines().Append(text.NewSegment(start, start+len(rest)-len(mathDelim)))
		node.closed = true
	}

	reader.Advance(segment.Len() - trailingNewline(line))
	return node, parser.NoChildren
}

func (b *mathBlockParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	n := node.(*MathBlock)
	if n.closed {
		return parser.Close
	}

	line, segment := reader.PeekLine()
	if w, pos := util.IndentWidth(line, reader.LineOffset()); w < 4 {
		if bytes.Equal(util.TrimRightSpace(line[pos:]), mathDelim) {
			reader.Advance(segment.Len() - trailingNewline(line))
			return parser.Close
		}
	}

	node.Lines().Append(segment)
	reader.Advance(segment.Len() - trailingNewline(line))
	return parser.Continue | parser.NoChildren
}

func (b *mathBlockParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

func (b *mathBlockParser) CanInterruptParagraph() bool { return true }

func (b *mathBlockParser) CanAcceptIndentedLine() bool { return false }

func trailingNewline(line []byte) int {
	if len(line) > 0 && line[len(line)-1] == '\n' {
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Inline parser
// ---------------------------------------------------------------------------

type inlineMathParser struct{}

func (p *inlineMathParser) Trigger() []byte { return []byte{'$'} }

func (p *inlineMathParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, segment := block.PeekLine()
	if len(line) < 2 || line[0] != '$' {
		return nil
	}

	delim := 1
	if line[1] == '$' {
		delim = 2
	}

	rest := line[delim:]
	var end int
	if delim == 2 {
		end = bytes.Index(rest, mathDelim)
	} else {
		end = bytes.IndexAny(rest, "$\n")
		if end >= 0 && rest[end] != '$' {
			end = -1
		}
	}
	if end <= 0 {
		return nil
	}

	start := segment.Start + delim
	node := &InlineMath{
		Segment: text.NewSegment(start, start+end),
		Display: delim == 2,
	}
	block.Advance(2*delim + end)
	return node
}

// ---------------------------------------------------------------------------
// Renderer
// ---------------------------------------------------------------------------

type mathHTMLRenderer struct{}

func (r *mathHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMathBlock, r.renderBlock)
	reg.Register(KindInlineMath, r.renderInline)
}

func (r *mathHTMLRenderer) renderBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString(`<pre><code class="` + MathLanguageClass + " " + MathDisplayClass + `">`)
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(seg.Value(source)))
	}
	_, _ = w.WriteString("</code></pre>\n")
	return ast.WalkSkipChildren, nil
}

func (r *mathHTMLRenderer) renderInline(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	n := node.(*InlineMath)
	class := MathInlineClass
	if n.Display {
		class = MathDisplayClass
	}
	_, _ = w.WriteString(`<code class="` + MathLanguageClass + " " + class + `">`)
	_, _ = w.Write(util.EscapeHTML(n.Segment.Value(source)))
	_, _ = w.WriteString("</code>")
	return ast.WalkSkipChildren, nil
}

// ---------------------------------------------------------------------------
// Extension
// ---------------------------------------------------------------------------

type mathExtension struct{}

// Math is a goldmark extension adding $...$ and $$...$$ syntax.
var Math goldmark.Extender = &mathExtension{}

func (e *mathExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(&mathBlockParser{}, 850)),
		parser.WithInlineParsers(util.Prioritized(&inlineMathParser{}, 500)),
	)
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&mathHTMLRenderer{}, 500),
	))
}
