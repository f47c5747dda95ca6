package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"github.com/alnah/go-mdview/internal/dom"
)

// ErrHTMLConversion indicates a pipeline stage failed.
var ErrHTMLConversion = errors.New("HTML conversion failed")

// Stage names in execution order. Optional stages only appear when enabled.
const (
	StageParse      = "parse"
	StageMathSyntax = "math-syntax"
	StageToHTML     = "to-html"
	StageSanitize   = "sanitize"
	StageMathRender = "math-render"
	StageStringify  = "stringify"
)

// Hooks are callbacks run between stages.
type Hooks struct {
	// BeforeStringify runs after every transform, before stringification.
	// It is used to inject the math stylesheet when math is enabled.
	BeforeStringify func(ctx context.Context) error
}

// Output is the result of running a Pipeline.
type Output struct {
	HTML string
	TOC  []TOCItem
}

// Builder assembles pipelines from detected features.
// Goldmark instances are created once and shared; a Builder is safe for concurrent use.
type Builder struct {
	sanitizer HTMLSanitizer
	math      MathRenderer

	mdOnce   sync.Once
	plain    goldmark.Markdown
	withMath goldmark.Markdown
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithMathRenderer sets the engine used by the math-render stage.
func WithMathRenderer(r MathRenderer) BuilderOption {
	return func(b *Builder) {
		if r != nil {
			b.math = r
		}
	}
}

// WithSanitizer replaces the default sanitizer.
func WithSanitizer(s HTMLSanitizer) BuilderOption {
	return func(b *Builder) {
		if s != nil {
			b.sanitizer = s
		}
	}
}

// NewBuilder creates a Builder with the default sanitizer and math renderer.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		sanitizer: NewSanitizer(),
		math:      DelimiterRenderer{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns a pipeline for the given features.
// Math stages are included only when f.HasMath is set.
func (b *Builder) Build(f Features, hooks Hooks) *Pipeline {
	b.mdOnce.Do(func() {
		b.plain = newMarkdown(false)
		b.withMath = newMarkdown(true)
	})

	p := &Pipeline{
		features:  f,
		md:        b.plain,
		sanitizer: b.sanitizer,
		math:      b.math,
		hooks:     hooks,
	}

	p.stages = []string{StageParse}
	if f.HasMath {
		p.md = b.withMath
		p.stages = append(p.stages, StageMathSyntax)
	}
	p.stages = append(p.stages, StageToHTML, StageSanitize)
	if f.HasMath {
		p.stages = append(p.stages, StageMathRender)
	}
	p.stages = append(p.stages, StageStringify)
	return p
}

// newMarkdown creates a goldmark instance with GFM tables, strikethrough and
// task lists. Raw HTML passes through to the sanitize stage.
func newMarkdown(withMath bool) goldmark.Markdown {
	exts := []goldmark.Extender{
		extension.Table,
		extension.Strikethrough,
		extension.TaskList,
	}
	if withMath {
		exts = append(exts, Math)
	}

	return goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(), // Heading ids are the TOC keys
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(), // Raw HTML is merged here and cleaned by the sanitizer
		),
	)
}

// Pipeline is an ordered chain of stages built for one render.
type Pipeline struct {
	features  Features
	md        goldmark.Markdown
	sanitizer HTMLSanitizer
	math      MathRenderer
	hooks     Hooks
	stages    []string
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	out := make([]string, len(p.stages))
	copy(out, p.stages)
	return out
}

// Run processes content through every stage.
// Supports context cancellation via goroutine + select pattern since
// Goldmark doesn't natively support context.
func (p *Pipeline) Run(ctx context.Context, content string) (*Output, error) {
	// Fast path: check context before starting
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		out *Output
		err error
	}

	done := make(chan result, 1)

	go func() {
		out, err := p.run(ctx, content)
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.out, r.err
	}
}

func (p *Pipeline) run(ctx context.Context, content string) (*Output, error) {
	src := []byte(content)

	// parse (+ math-syntax via the extension registered on p.md)
	doc := p.md.Parser().Parse(text.NewReader(src))

	// to-html
	var buf bytes.Buffer
	if err := p.md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, stageError(StageToHTML, err)
	}

	// sanitize
	safe := p.sanitizer.Sanitize(buf.Bytes())

	container, err := dom.ParseContainer(string(safe))
	if err != nil {
		return nil, stageError(StageSanitize, err)
	}

	// math-render
	if p.features.HasMath {
		if err := renderMath(ctx, container, p.math); err != nil {
			return nil, stageError(StageMathRender, err)
		}
	}

	if p.hooks.BeforeStringify != nil {
		if err := p.hooks.BeforeStringify(ctx); err != nil {
			return nil, err
		}
	}

	// stringify
	out, err := dom.RenderChildren(container)
	if err != nil {
		return nil, stageError(StageStringify, err)
	}

	return &Output{HTML: out, TOC: ExtractTOC(container)}, nil
}

func stageError(stage string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrHTMLConversion, stage, err)
}
