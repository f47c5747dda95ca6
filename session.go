package mdview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/alnah/go-mdview/internal/dom"
	"github.com/alnah/go-mdview/internal/pipeline"
)

// Cycle describes an applied render cycle.
type Cycle struct {
	ID     uint64
	Theme  string
	Result *RenderResult
	// TOC is extracted from the mounted container after reveal.
	TOC []TOCItem
	// Highlighted counts code blocks highlighted by this cycle.
	Highlighted int
	// DiagramsRendered is set when the diagram engine ran.
	DiagramsRendered bool
}

// TOCVisible reports whether the cycle's table of contents should be shown.
func (c *Cycle) TOCVisible(showTOC bool) bool {
	return TOCVisible(c.TOC, showTOC)
}

// Session owns the render cycle state of one mounted document: the visible
// flag, the current HTML and the last input and theme. Every Update hides
// the document, renders, and applies the result only if no newer cycle
// started in the meantime.
type Session struct {
	doc         *dom.Document
	renderer    *Renderer
	highlighter Highlighter
	diagrams    DiagramEngine
	onCycle     func(ctx context.Context, c *Cycle)

	// applyMu serializes mount and post-processing of the latest cycle.
	applyMu sync.Mutex

	mu      sync.Mutex
	cycle   uint64
	cancel  context.CancelFunc
	visible bool
	html    string
	toc     []TOCItem
	theme   string
	last    *Input
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHighlighter sets the code highlighter run after reveal.
// A nil highlighter disables highlighting. Default is chroma.
func WithHighlighter(h Highlighter) SessionOption {
	return func(s *Session) {
		s.highlighter = h
	}
}

// WithDiagramEngine sets the engine run on diagram blocks once its script
// has loaded. Default hydrates blocks for the client-side engine.
func WithDiagramEngine(e DiagramEngine) SessionOption {
	return func(s *Session) {
		s.diagrams = e
	}
}

// WithOnCycle sets a hook called exactly once per applied cycle, after
// post-processing.
func WithOnCycle(fn func(ctx context.Context, c *Cycle)) SessionOption {
	return func(s *Session) {
		s.onCycle = fn
	}
}

// NewSession creates a Session rendering into doc.
func NewSession(doc *dom.Document, r *Renderer, opts ...SessionOption) *Session {
	s := &Session{
		doc:         doc,
		renderer:    r,
		highlighter: pipeline.NewHighlighter(),
		diagrams:    &pipeline.HydrationEngine{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update runs a render cycle for in with theme.
//
// The previous cycle, if still running, is cancelled. Returns ErrStaleCycle
// when a newer Update superseded this one, and an ErrRender-wrapped error
// when the pipeline fails; the document then stays hidden.
func (s *Session) Update(ctx context.Context, in Input, theme string) (*Cycle, error) {
	s.mu.Lock()
	s.cycle++
	id := s.cycle
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.visible = false
	s.doc.SetHidden(true)
	s.theme = theme
	input := in
	s.last = &input
	s.mu.Unlock()
	defer cancel()

	res, err := s.renderer.Render(ctx, in)
	if err != nil {
		if !s.isLatest(id) {
			return nil, ErrStaleCycle
		}
		return nil, err
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if err := s.reveal(id, res.HTML); err != nil {
		return nil, err
	}

	c := &Cycle{ID: id, Theme: theme, Result: res}
	if err := s.postProcess(ctx, c); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.toc = c.TOC
	s.mu.Unlock()

	if s.onCycle != nil {
		s.onCycle(ctx, c)
	}
	return c, nil
}

// reveal mounts fragment and shows it, if id is still the latest cycle.
// The check, the mount and the reveal happen under one lock so a newer
// cycle's hide cannot interleave.
func (s *Session) reveal(id uint64, fragment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cycle != id {
		return ErrStaleCycle
	}
	if err := s.doc.Mount(fragment); err != nil {
		return fmt.Errorf("%w: mount: %v", ErrRender, err)
	}
	s.doc.SetHidden(false)
	s.visible = true
	s.html = fragment
	return nil
}

// postProcess runs after reveal: highlighting, TOC extraction over the
// mounted container, then diagrams. It stops with ErrStaleCycle once a newer
// cycle starts.
func (s *Session) postProcess(ctx context.Context, c *Cycle) error {
	logger := s.renderer.logger

	if s.highlighter != nil {
		if err := s.doc.Edit(func(container *html.Node) error {
			n, err := s.highlighter.Highlight(container)
			c.Highlighted = n
			return err
		}); err != nil {
			logger.Warn("highlighting failed", "error", err)
		}
	}

	s.doc.View(func(container *html.Node) {
		c.TOC = pipeline.ExtractTOC(container)
	})

	if c.Result.HasDiagrams && s.diagrams != nil && s.renderer.lazy != nil {
		if err := s.renderer.awaitDiagrams(ctx); err != nil {
			if ctx.Err() != nil {
				return s.staleOr(c.ID, ctx.Err())
			}
			return s.staleOr(c.ID, nil)
		}

		if !s.isLatest(c.ID) {
			return ErrStaleCycle
		}
		s.diagrams.Initialize(c.Theme)
		if err := s.doc.Edit(func(container *html.Node) error {
			return s.diagrams.Run(ctx, pipeline.DiagramNodes(container))
		}); err != nil {
			if ctx.Err() != nil {
				return s.staleOr(c.ID, ctx.Err())
			}
			logger.Warn("diagram engine run failed", "error", err)
		} else {
			c.DiagramsRendered = true
		}
	}

	return s.staleOr(c.ID, nil)
}

// staleOr returns ErrStaleCycle when id is no longer the latest cycle,
// otherwise err.
func (s *Session) staleOr(id uint64, err error) error {
	if !s.isLatest(id) {
		return ErrStaleCycle
	}
	return err
}

// SetTheme re-runs the last input with theme. Without a previous input it
// only records the theme and returns a nil Cycle.
func (s *Session) SetTheme(ctx context.Context, theme string) (*Cycle, error) {
	s.mu.Lock()
	last := s.last
	if last == nil {
		s.theme = theme
		s.mu.Unlock()
		return nil, nil
	}
	in := *last
	s.mu.Unlock()

	return s.Update(ctx, in, theme)
}

// Close cancels the running cycle, if any.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) isLatest(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle == id
}

// Visible reports whether the current HTML is mounted and revealed.
func (s *Session) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// HTML returns the HTML of the last applied cycle.
func (s *Session) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html
}

// TOC returns the table of contents of the last applied cycle.
func (s *Session) TOC() []TOCItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toc
}

// Theme returns the theme of the last requested cycle.
func (s *Session) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Document returns the mounted document.
func (s *Session) Document() *dom.Document {
	return s.doc
}

// IsStale reports whether err means the cycle was superseded.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleCycle)
}
