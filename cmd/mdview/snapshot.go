package main

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	mdview "github.com/alnah/go-mdview"
	"github.com/alnah/go-mdview/internal/assets"
	"github.com/alnah/go-mdview/internal/browser"
	"github.com/alnah/go-mdview/internal/fileutil"
	"github.com/alnah/go-mdview/internal/hints"
)

// runSnapshot renders a document, opens it in headless Chrome, optionally
// scrolls to a table of contents entry, and writes a PNG of the viewport.
func runSnapshot(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseSnapshotFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if len(positional) == 0 {
		return ErrNoInput
	}

	cfg, err := loadConfig(flags.common.config)
	if err != nil {
		return err
	}
	if err := flags.apply(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(env.Stderr, flags.common)
	b, err := newPageBuilder(cfg, env, logger)
	if err != nil {
		return err
	}

	in, err := readInput(positional[0], flags.document.ext, cfg)
	if err != nil {
		return err
	}
	doc, c, err := renderPage(ctx, b, in, assets.NormalizeTheme(cfg.Render.Theme))
	if err != nil {
		return err
	}

	// The anchor is checked before Chrome starts
	var target *mdview.TOCItem
	if flags.anchor != "" {
		item, ok := findAnchor(c.TOC, flags.anchor)
		if !ok {
			return fmt.Errorf("%w: %q", ErrAnchorNotFound, flags.anchor)
		}
		target = &item
	}

	page, err := doc.Render()
	if err != nil {
		return fmt.Errorf("serializing page: %w", err)
	}
	path, cleanup, err := fileutil.WriteTempFile(page, "html")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	defer cleanup()

	br := browser.New(browser.Options{
		Width:   cfg.Browser.Width,
		Height:  cfg.Browser.Height,
		Timeout: cfg.Browser.Timeout,
	})
	defer func() { _ = br.Close() }()

	vp, err := br.Open(ctx, "file://"+path)
	if err != nil {
		return browserError(err)
	}
	defer func() { _ = vp.Close() }()

	if target != nil {
		mdview.NewNavigator(doc, vp, logger).Navigate(ctx, *target)
	}

	png, err := vp.Screenshot(ctx)
	if err != nil {
		return browserError(err)
	}
	logger.Info("snapshot written", "output", flags.output, "bytes", len(png))
	return writeOutput(flags.output, png, env.Stdout)
}

// findAnchor looks key up in the table of contents.
func findAnchor(items []mdview.TOCItem, key string) (mdview.TOCItem, bool) {
	for _, item := range items {
		if item.Key == key {
			return item, true
		}
	}
	return mdview.TOCItem{}, false
}

// browserError appends troubleshooting hints to browser failures.
func browserError(err error) error {
	switch {
	case errors.Is(err, browser.ErrBrowserConnect):
		return fmt.Errorf("%w%s", err, hints.ForBrowserConnect())
	case errors.Is(err, browser.ErrPageLoad), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w%s", err, hints.ForTimeout())
	}
	return err
}
