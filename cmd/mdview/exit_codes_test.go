package main

// Notes:
// - exitCodeFor: we test the sentinel errors of every package the CLI maps,
//   plus wrapped errors to verify the errors.Is() chain.
// - Exit code constants: we verify Unix conventions (0=success, 1=general, 2=usage)
//   and custom codes are below 126.

import (
	"errors"
	"fmt"
	"os"
	"testing"

	mdview "github.com/alnah/go-mdview"
	"github.com/alnah/go-mdview/internal/assets"
	"github.com/alnah/go-mdview/internal/browser"
	"github.com/alnah/go-mdview/internal/config"
)

// ---------------------------------------------------------------------------
// TestExitCodeFor - Error to exit code mapping
// ---------------------------------------------------------------------------

func TestExitCodeFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, ExitSuccess},

		// Browser errors (exit 4)
		{"browser connect", browser.ErrBrowserConnect, ExitBrowser},
		{"page create", browser.ErrPageCreate, ExitBrowser},
		{"page load", browser.ErrPageLoad, ExitBrowser},
		{"page script", browser.ErrScript, ExitBrowser},
		{"screenshot", browser.ErrScreenshot, ExitBrowser},
		{"wrapped browser connect", fmt.Errorf("snapshot: %w", browser.ErrBrowserConnect), ExitBrowser},

		// I/O errors (exit 3)
		{"file not exist", os.ErrNotExist, ExitIO},
		{"permission denied", os.ErrPermission, ExitIO},
		{"read input", ErrReadInput, ExitIO},
		{"write output", ErrWriteOutput, ExitIO},
		{"no input", ErrNoInput, ExitIO},
		{"asset read", assets.ErrAssetRead, ExitIO},
		{"wrapped file not exist", fmt.Errorf("%w: %w", ErrReadInput, os.ErrNotExist), ExitIO},

		// Usage/config/validation errors (exit 2)
		{"usage", ErrUsage, ExitUsage},
		{"anchor not found", ErrAnchorNotFound, ExitUsage},
		{"config not found", config.ErrConfigNotFound, ExitUsage},
		{"config parse", config.ErrConfigParse, ExitUsage},
		{"field too long", config.ErrFieldTooLong, ExitUsage},
		{"invalid value", config.ErrInvalidValue, ExitUsage},
		{"empty config name", config.ErrEmptyConfigName, ExitUsage},
		{"decode", mdview.ErrDecode, ExitUsage},
		{"style not found", assets.ErrStyleNotFound, ExitUsage},
		{"template not found", assets.ErrTemplateNotFound, ExitUsage},
		{"invalid asset name", assets.ErrInvalidAssetName, ExitUsage},
		{"invalid base path", assets.ErrInvalidBasePath, ExitUsage},
		{"path traversal", assets.ErrPathTraversal, ExitUsage},
		{"wrapped config", fmt.Errorf("loading config: %w", config.ErrConfigParse), ExitUsage},

		// General (exit 1)
		{"unknown error", errors.New("boom"), ExitGeneral},
		{"render failure", mdview.ErrRender, ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestExitCodeConstants - Unix conventions
// ---------------------------------------------------------------------------

func TestExitCodeConstants(t *testing.T) {
	t.Parallel()

	if ExitSuccess != 0 {
		t.Errorf("ExitSuccess = %d, want 0", ExitSuccess)
	}
	if ExitGeneral != 1 {
		t.Errorf("ExitGeneral = %d, want 1", ExitGeneral)
	}
	if ExitUsage != 2 {
		t.Errorf("ExitUsage = %d, want 2", ExitUsage)
	}
	for _, code := range []int{ExitIO, ExitBrowser} {
		if code <= ExitUsage || code >= 126 {
			t.Errorf("custom exit code %d must be in (2, 126)", code)
		}
	}
}
