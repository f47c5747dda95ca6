package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	mdview "github.com/alnah/go-mdview"
	"github.com/alnah/go-mdview/internal/assets"
	"github.com/alnah/go-mdview/internal/config"
)

func newTestPageBuilder(t *testing.T, cfg *config.Config) *pageBuilder {
	t.Helper()
	b, err := newPageBuilder(cfg, &Environment{Stdout: io.Discard, Stderr: io.Discard}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("newPageBuilder() error: %v", err)
	}
	return b
}

// ---------------------------------------------------------------------------
// TestTOCFragment
// ---------------------------------------------------------------------------

func TestTOCFragment(t *testing.T) {
	t.Parallel()

	got := tocFragment([]mdview.TOCItem{
		{Indent: 0, Text: "A & B", TagName: "h1", Key: "a--b"},
		{Indent: 1, Text: "<c>", TagName: "h2", Key: `x"y`},
	})
	want := `<ul>` +
		`<li class="indent-0"><a href="#a--b" data-tag="h1">A &amp; B</a></li>` +
		`<li class="indent-1"><a href="#x&#34;y" data-tag="h2">&lt;c&gt;</a></li>` +
		`</ul>`
	if got != want {
		t.Errorf("tocFragment() =\n%s\nwant\n%s", got, want)
	}
}

// ---------------------------------------------------------------------------
// TestRenderPage - Table of contents slot
// ---------------------------------------------------------------------------

func TestRenderPage_TOCSlot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		showTOC bool
		wantTOC bool
	}{
		{"two headings", "# A\n\n## B\n", true, true},
		{"single heading", "# A\n", true, false},
		{"disabled", "# A\n\n## B\n", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := newTestPageBuilder(t, config.DefaultConfig())
			doc, c, err := renderPage(context.Background(), b, mdview.Input{Content: tt.content, ShowTOC: tt.showTOC}, "light")
			if err != nil {
				t.Fatalf("renderPage() error: %v", err)
			}
			if c.ID == 0 {
				t.Error("cycle ID = 0")
			}

			page, err := doc.Render()
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			if got := strings.Contains(page, `class="indent-0"`); got != tt.wantTOC {
				t.Errorf("TOC rendered = %v, want %v", got, tt.wantTOC)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestPageCSS - Code styles follow the highlight setting
// ---------------------------------------------------------------------------

func TestPageCSS(t *testing.T) {
	t.Parallel()

	on := config.DefaultConfig()
	off := config.DefaultConfig()
	off.Render.Highlight = false

	withCode, err := newTestPageBuilder(t, on).pageCSS("dark")
	if err != nil {
		t.Fatalf("pageCSS() error: %v", err)
	}
	plain, err := newTestPageBuilder(t, off).pageCSS("dark")
	if err != nil {
		t.Fatalf("pageCSS() error: %v", err)
	}

	if !strings.Contains(withCode, ".chroma") {
		t.Error("highlighting on: code style missing")
	}
	if strings.Contains(plain, ".chroma") {
		t.Error("highlighting off: code style present")
	}
	if !strings.HasPrefix(withCode, plain) {
		t.Error("code style should be appended to the page style")
	}
}

// missingStyleLoader serves the page shell but no styles.
type missingStyleLoader struct{ assets.AssetLoader }

func (missingStyleLoader) LoadStyle(name string) (string, error) {
	return "", fmt.Errorf("%w: %q", assets.ErrStyleNotFound, name)
}

func TestPageCSS_MissingStyleHint(t *testing.T) {
	t.Parallel()

	env := &Environment{
		Stdout:      io.Discard,
		Stderr:      io.Discard,
		AssetLoader: missingStyleLoader{assets.NewEmbeddedLoader()},
	}
	b, err := newPageBuilder(config.DefaultConfig(), env, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("newPageBuilder() error: %v", err)
	}

	_, err = b.pageCSS("light")
	if !errors.Is(err, assets.ErrStyleNotFound) {
		t.Fatalf("pageCSS() error = %v, want ErrStyleNotFound", err)
	}
	if !strings.Contains(err.Error(), "hint: available: dark, light, markdown") {
		t.Errorf("error should list built-in styles, got %q", err.Error())
	}
	if exitCodeFor(err) != ExitUsage {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), ExitUsage)
	}
}

func TestNewPage_StyleMarked(t *testing.T) {
	t.Parallel()

	doc, err := newTestPageBuilder(t, config.DefaultConfig()).newPage("light")
	if err != nil {
		t.Fatalf("newPage() error: %v", err)
	}
	if !doc.HeadHas("style", styleAttr, "page") {
		t.Error("page style element missing")
	}
}
