package main

// Notes:
// - Chrome is not required: these tests stop before the browser starts.
//   The full capture path runs in snapshot_integration_test.go.

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	mdview "github.com/alnah/go-mdview"
	"github.com/alnah/go-mdview/internal/browser"
	"github.com/alnah/go-mdview/internal/hints"
)

func TestRunSnapshot_AnchorNotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := filepath.Join(dir, "doc.md")
	writeFile(t, doc, []byte("# Intro\n\n## Usage\n"))

	env, _, stderr := newTestEnv()
	code := runMain(context.Background(), []string{"mdview", "snapshot", doc, "-a", "missing", "-o", filepath.Join(dir, "out.png")}, env)
	if code != ExitUsage {
		t.Errorf("runMain() = %d, want %d\nstderr: %s", code, ExitUsage, stderr.String())
	}
	if !strings.Contains(stderr.String(), `anchor not found in table of contents: "missing"`) {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestFindAnchor(t *testing.T) {
	t.Parallel()

	items := []mdview.TOCItem{
		{Indent: 0, Text: "Intro", TagName: "h1", Key: "intro"},
		{Indent: 1, Text: "Usage", TagName: "h2", Key: "usage"},
	}

	item, ok := findAnchor(items, "usage")
	if !ok || item.TagName != "h2" {
		t.Errorf("findAnchor(usage) = %+v, %v", item, ok)
	}
	if _, ok := findAnchor(items, "Usage"); ok {
		t.Error("findAnchor matched by text, want key only")
	}
	if _, ok := findAnchor(nil, "usage"); ok {
		t.Error("findAnchor on empty TOC returned ok")
	}
}

func TestBrowserError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantHint string
	}{
		{"connect", fmt.Errorf("%w: no chrome", browser.ErrBrowserConnect), hints.ForBrowserConnect()},
		{"load", fmt.Errorf("%w: timeout", browser.ErrPageLoad), hints.ForTimeout()},
		{"other", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := browserError(tt.err)
			if !errors.Is(got, tt.err) {
				t.Errorf("browserError() lost the cause: %v", got)
			}
			if tt.wantHint != "" && !strings.HasSuffix(got.Error(), tt.wantHint) {
				t.Errorf("browserError() = %q, want hint suffix %q", got, tt.wantHint)
			}
			if tt.wantHint == "" && got.Error() != tt.err.Error() {
				t.Errorf("browserError() = %q, want unchanged", got)
			}
		})
	}
}
