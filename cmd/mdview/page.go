package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	mdview "github.com/alnah/go-mdview"
	"github.com/alnah/go-mdview/internal/assets"
	"github.com/alnah/go-mdview/internal/config"
	"github.com/alnah/go-mdview/internal/dom"
	"github.com/alnah/go-mdview/internal/fileutil"
	"github.com/alnah/go-mdview/internal/hints"
	"github.com/alnah/go-mdview/internal/katex"
	"github.com/alnah/go-mdview/internal/pipeline"
)

// tocSlotClass marks the page element the table of contents is written into.
const tocSlotClass = "toc"

// pageBuilder creates mounted pages and render sessions from configuration.
type pageBuilder struct {
	cfg    *config.Config
	loader assets.AssetLoader
	math   mdview.MathRenderer // nil renders math as delimited text
	logger *slog.Logger
	stderr io.Writer
}

func newPageBuilder(cfg *config.Config, env *Environment, logger *slog.Logger) (*pageBuilder, error) {
	loader := env.AssetLoader
	if loader == nil {
		resolver, err := assets.NewAssetResolver(cfg.Assets.BasePath)
		if err != nil {
			return nil, fmt.Errorf("loading assets: %w", err)
		}
		loader = resolver
	}

	b := &pageBuilder{
		cfg:    cfg,
		loader: loader,
		logger: logger,
		stderr: env.Stderr,
	}
	if script := cfg.Assets.KaTeXScript; script != "" {
		r := newKaTeX(script, cfg)
		r.Preload(context.Background())
		b.math = r
	}
	return b, nil
}

// newKaTeX loads the KaTeX script from a local path or over HTTP(S).
func newKaTeX(script string, cfg *config.Config) *katex.Renderer {
	if !fileutil.IsURL(script) {
		return katex.NewFromFile(script)
	}
	fetcher := assets.NewHTTPFetcher(cfg.Assets.FetchTimeout)
	return katex.New(script, func(ctx context.Context) ([]byte, error) {
		return fetcher.Fetch(ctx, script)
	})
}

// renderer returns a Renderer with the configured base path, storage root
// and math engine. A nil notifier reports to the terminal.
func (b *pageBuilder) renderer(lazy mdview.LazyLoader, notifier mdview.Notifier) *mdview.Renderer {
	if notifier == nil {
		notifier = mdview.NotifierFunc(b.notify)
	}
	opts := []mdview.Option{
		mdview.WithBasePath(b.cfg.Server.BasePath),
		mdview.WithStorageRoot(b.cfg.Storage.Root),
		mdview.WithLogger(b.logger),
		mdview.WithNotifier(notifier),
	}
	if b.math != nil {
		opts = append(opts, mdview.WithMathRenderer(b.math))
	}
	if lazy != nil {
		opts = append(opts, mdview.WithLazyLoader(lazy))
	}
	return mdview.NewRenderer(opts...)
}

// notify reports degraded rendering to the terminal.
func (b *pageBuilder) notify(_ context.Context, message string, err error) {
	b.logger.Warn(message, "error", err)
	fmt.Fprintf(b.stderr, "warning: %s: %v%s\n", message, err, hints.ForDiagramScript(b.cfg.Assets.DiagramScript))
}

// newPage parses the page template and injects the page and code styles for theme.
func (b *pageBuilder) newPage(theme string) (*mdview.Document, error) {
	tmpl, err := b.loader.LoadTemplate(assets.PageTemplateName)
	if err != nil {
		return nil, fmt.Errorf("loading page template: %w", err)
	}
	doc, err := mdview.ParseDocument(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}

	css, err := b.pageCSS(theme)
	if err != nil {
		return nil, err
	}
	style := dom.Element("style", styleAttr, "page")
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	doc.AppendToHead(style)
	return doc, nil
}

// styleAttr marks the page style element so live clients can swap it on
// theme changes.
const styleAttr = "data-mdview"

// pageCSS returns the page style and, when highlighting is on, the code style for theme.
func (b *pageBuilder) pageCSS(theme string) (string, error) {
	css, err := assets.PageCSS(b.loader, theme)
	if errors.Is(err, assets.ErrStyleNotFound) {
		available, _ := assets.NewEmbeddedLoader().Names()
		return "", fmt.Errorf("%w%s", err, hints.ForStyleNotFound(available))
	}
	if err != nil {
		return "", err
	}
	if b.cfg.Render.Highlight {
		code, err := pipeline.NewHighlighter().CSS(theme)
		if err != nil {
			return "", fmt.Errorf("building code style: %w", err)
		}
		css += "\n" + code
	}
	return css, nil
}

// newSession creates a Session over doc with the page's own lazy asset loader.
// A nil notifier reports to the terminal.
func (b *pageBuilder) newSession(doc *mdview.Document, notifier mdview.Notifier, opts ...mdview.SessionOption) (*mdview.Session, *assets.LazyLoader) {
	lazy := mdview.NewLazyLoader(doc, mdview.AssetURLs{
		MathStylesheet: b.cfg.Assets.MathStylesheet,
		DiagramScript:  b.cfg.Assets.DiagramScript,
	}, b.cfg.Assets.FetchTimeout, b.logger)

	if !b.cfg.Render.Highlight {
		opts = append([]mdview.SessionOption{mdview.WithHighlighter(nil)}, opts...)
	}
	return mdview.NewSession(doc, b.renderer(lazy, notifier), opts...), lazy
}

// fillTOC writes the table of contents of c into the page slot, or clears it
// when the TOC should not be shown.
func fillTOC(doc *mdview.Document, c *mdview.Cycle, showTOC bool) error {
	fragment := ""
	if c.TOCVisible(showTOC) {
		fragment = tocFragment(c.TOC)
	}
	if _, err := doc.SetSlot(tocSlotClass, fragment); err != nil {
		return fmt.Errorf("writing table of contents: %w", err)
	}
	return nil
}

// tocFragment renders TOC entries as a nested-looking list of anchor links.
func tocFragment(items []mdview.TOCItem) string {
	var buf strings.Builder
	buf.WriteString("<ul>")
	for _, item := range items {
		fmt.Fprintf(&buf, `<li class="indent-%d"><a href="#%s" data-tag="%s">%s</a></li>`,
			item.Indent,
			html.EscapeString(item.Key),
			html.EscapeString(item.TagName),
			html.EscapeString(item.Text))
	}
	buf.WriteString("</ul>")
	return buf.String()
}
