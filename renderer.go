package mdview

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alnah/go-mdview/internal/pipeline"
)

// Compile-time interface implementation checks.
var (
	_ pipeline.SourcePreprocessor = (*pipeline.ContentPreprocessor)(nil)
	_ Highlighter                 = (*pipeline.Highlighter)(nil)
	_ DiagramEngine               = (*pipeline.HydrationEngine)(nil)
)

// Renderer turns one Input into a RenderResult. It is safe for concurrent
// use; pages that need their own asset side effects share a Renderer
// through ForPage.
type Renderer struct {
	cfg          rendererConfig
	preprocessor pipeline.SourcePreprocessor
	builder      *pipeline.Builder
	lazy         LazyLoader
	logger       *slog.Logger
	notifier     Notifier
}

// rendererConfig holds settings fixed at construction.
type rendererConfig struct {
	basePath    string
	storageRoot string
	math        MathRenderer
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithBasePath sets the content-serving base path prefixed to image URLs.
func WithBasePath(p string) Option {
	return func(r *Renderer) {
		r.cfg.basePath = p
	}
}

// WithStorageRoot sets the user storage root inserted after /d/ in image URLs.
func WithStorageRoot(root string) Option {
	return func(r *Renderer) {
		r.cfg.storageRoot = root
	}
}

// WithLazyLoader sets the page asset loader. Without one, math stylesheet
// injection and diagram engine loading are skipped.
func WithLazyLoader(l LazyLoader) Option {
	return func(r *Renderer) {
		r.lazy = l
	}
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithNotifier sets where non-fatal problems are reported.
func WithNotifier(n Notifier) Option {
	return func(r *Renderer) {
		r.notifier = n
	}
}

// WithMathRenderer sets the TeX renderer of the math-render stage.
// Default wraps TeX in \( \) and \[ \] delimiters for client-side rendering.
func WithMathRenderer(m MathRenderer) Option {
	return func(r *Renderer) {
		r.cfg.math = m
	}
}

// NewRenderer creates a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		preprocessor: &pipeline.ContentPreprocessor{},
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	var builderOpts []pipeline.BuilderOption
	if r.cfg.math != nil {
		builderOpts = append(builderOpts, pipeline.WithMathRenderer(r.cfg.math))
	}
	r.builder = pipeline.NewBuilder(builderOpts...)
	return r
}

// ForPage returns a Renderer sharing r's pipeline and settings but writing
// asset side effects through l.
func (r *Renderer) ForPage(l LazyLoader) *Renderer {
	clone := *r
	clone.lazy = l
	return &clone
}

// Render preprocesses, detects features and runs the pipeline.
//
// When math is detected the math stylesheet is injected before
// stringification. When diagrams are detected the diagram engine load is
// started but not awaited; Session awaits it before running diagrams.
// Stage failures wrap ErrRender.
func (r *Renderer) Render(ctx context.Context, in Input) (*RenderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := in.text()
	if err != nil {
		return nil, err
	}

	content := r.preprocessor.Preprocess(pipeline.SourceInput{
		Content: text,
		Ext:     in.Ext,
		Images: pipeline.ImageContext{
			DocPath:     in.DocPath,
			Readme:      in.Readme,
			BasePath:    r.cfg.basePath,
			StorageRoot: r.cfg.storageRoot,
		},
	})

	features := pipeline.DetectFeatures(content)

	var hooks pipeline.Hooks
	if features.HasMath && r.lazy != nil {
		hooks.BeforeStringify = func(context.Context) error {
			r.lazy.InjectMathStylesheet()
			return nil
		}
	}
	if features.HasDiagrams && r.lazy != nil {
		r.lazy.StartDiagramEngine(ctx)
	}

	p := r.builder.Build(features, hooks)
	r.logger.Debug("render",
		"doc", in.DocPath,
		"ext", in.Ext,
		"bytes", len(content),
		"stages", p.Stages())

	out, err := p.Run(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	return &RenderResult{
		HTML:        out.HTML,
		HasDiagrams: features.HasDiagrams,
		HasMath:     features.HasMath,
		TOC:         out.TOC,
	}, nil
}

// awaitDiagrams waits for the diagram engine. A load failure is logged,
// reported to the notifier and returned; the caller skips diagrams.
func (r *Renderer) awaitDiagrams(ctx context.Context) error {
	if r.lazy == nil {
		return fmt.Errorf("%w: no asset loader configured", ErrAssetLoad)
	}
	err := r.lazy.LoadDiagramEngine(ctx)
	if err == nil || ctx.Err() != nil {
		return err
	}

	r.logger.Warn("diagram engine unavailable", "error", err)
	if r.notifier != nil {
		r.notifier.Notify(ctx, "Diagrams could not be rendered", err)
	}
	return err
}
