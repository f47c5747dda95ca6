package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	mdview "github.com/alnah/go-mdview"
	"github.com/alnah/go-mdview/internal/assets"
	"github.com/alnah/go-mdview/internal/config"
	"github.com/alnah/go-mdview/internal/fileutil"
	"github.com/alnah/go-mdview/internal/hints"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput        = errors.New("no input file specified")
	ErrReadInput      = errors.New("failed to read input file")
	ErrWriteOutput    = errors.New("failed to write output")
	ErrUsage          = errors.New("invalid usage")
	ErrAnchorNotFound = errors.New("anchor not found in table of contents")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// runRender renders one document to a page or fragment.
func runRender(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseRenderFlags(args, env.Stderr)
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
	flags.document.apply(cfg)
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
	theme := assets.NormalizeTheme(cfg.Render.Theme)

	var out string
	var toc []mdview.TOCItem
	if flags.fragment {
		res, err := b.renderer(nil, nil).Render(ctx, in)
		if err != nil {
			return renderError(err, cfg)
		}
		out, toc = res.HTML, res.TOC
	} else {
		doc, c, err := renderPage(ctx, b, in, theme)
		if err != nil {
			return err
		}
		if out, err = doc.Render(); err != nil {
			return fmt.Errorf("serializing page: %w", err)
		}
		toc = c.TOC
	}

	if flags.tocJSON != "" {
		if err := writeTOCJSON(flags.tocJSON, toc); err != nil {
			return err
		}
	}
	return writeOutput(flags.output, []byte(out), env.Stdout)
}

// renderPage runs one full render cycle into a fresh page.
func renderPage(ctx context.Context, b *pageBuilder, in mdview.Input, theme string) (*mdview.Document, *mdview.Cycle, error) {
	doc, err := b.newPage(theme)
	if err != nil {
		return nil, nil, err
	}

	session, _ := b.newSession(doc, nil)
	defer session.Close()

	c, err := session.Update(ctx, in, theme)
	if err != nil {
		return nil, nil, renderError(err, b.cfg)
	}
	if err := fillTOC(doc, c, in.ShowTOC); err != nil {
		return nil, nil, err
	}
	return doc, c, nil
}

// renderError appends a hint to decoding failures.
func renderError(err error, cfg *config.Config) error {
	if errors.Is(err, mdview.ErrDecode) {
		return fmt.Errorf("%w%s", err, hints.ForDecode(cfg.Render.Charset))
	}
	return err
}

// readInput reads path and builds the render input for it.
// ext overrides the extension hint taken from the file name.
func readInput(path, ext string, cfg *config.Config) (mdview.Input, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path is user-provided CLI input
	if err != nil {
		return mdview.Input{}, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	if ext == "" {
		ext = fileutil.ExtHint(path)
	}

	return mdview.Input{
		Raw:     raw,
		Charset: cfg.Render.Charset,
		Ext:     ext,
		Readme:  cfg.Render.Readme,
		ShowTOC: cfg.Render.ShowTOC,
		DocPath: docPath(cfg.Storage.Dir, path),
	}, nil
}

// docPath returns the slash path of file relative to the storage directory,
// rooted at "/". Files outside the directory use their base name.
func docPath(storageDir, file string) string {
	if storageDir == "" {
		storageDir = "."
	}
	absDir, errDir := filepath.Abs(storageDir)
	absFile, errFile := filepath.Abs(file)
	if errDir == nil && errFile == nil {
		if rel, err := filepath.Rel(absDir, absFile); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "/" + filepath.ToSlash(rel)
		}
	}
	return "/" + filepath.Base(file)
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "" || path == "-" {
		if _, err := stdout.Write(data); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("%w: %w%s", ErrWriteOutput, err, hints.ForOutputDirectory())
		}
	}
	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}

// tocEntry is the JSON form of a table of contents entry.
type tocEntry struct {
	Indent  int    `json:"indent"`
	Text    string `json:"text"`
	TagName string `json:"tagName"`
	Key     string `json:"key"`
}

func writeTOCJSON(path string, items []mdview.TOCItem) error {
	entries := make([]tocEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, tocEntry{Indent: it.Indent, Text: it.Text, TagName: it.TagName, Key: it.Key})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding table of contents: %w", err)
	}
	return writeOutput(path, append(data, '\n'), io.Discard)
}
