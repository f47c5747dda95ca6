package browser

// Notes:
// - Unit tests cover the pure helpers only; Chrome-backed behavior lives in
//   viewport_integration_test.go behind the integration build tag
// - killProcessGroup is only exercised with an invalid PID: PID 0 would
//   target the current process group

import (
	"testing"
	"time"
)

func TestAnchorSelector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag, key string
		want     string
	}{
		{"h2", "intro", `.markdown-body h2[id="intro"]`},
		{"H1", "a", `.markdown-body h1[id="a"]`},
		{"h3", `we"ird`, `.markdown-body h3[id="we\"ird"]`},
		{"h2", "café", `.markdown-body h2[id="café"]`},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			if got := AnchorSelector(tt.tag, tt.key); got != tt.want {
				t.Errorf("AnchorSelector(%q, %q) = %s, want %s", tt.tag, tt.key, got, tt.want)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("ROD_BROWSER_BIN", "/opt/chrome")

	b := New(Options{})
	if b.opts.Width != DefaultWidth || b.opts.Height != DefaultHeight {
		t.Errorf("viewport = %dx%d, want %dx%d", b.opts.Width, b.opts.Height, DefaultWidth, DefaultHeight)
	}
	if b.opts.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", b.opts.Timeout, DefaultTimeout)
	}
	if b.opts.Bin != "/opt/chrome" {
		t.Errorf("Bin = %q, want ROD_BROWSER_BIN value", b.opts.Bin)
	}

	custom := New(Options{Bin: "/usr/bin/chromium", Width: 400, Height: 300, Timeout: time.Second})
	if custom.opts.Bin != "/usr/bin/chromium" || custom.opts.Width != 400 || custom.opts.Timeout != time.Second {
		t.Errorf("explicit options overridden: %+v", custom.opts)
	}
}

func TestClose_NotStarted(t *testing.T) {
	t.Parallel()

	if err := New(Options{}).Close(); err != nil {
		t.Errorf("Close() on unstarted browser error: %v", err)
	}
}

func TestKillProcessGroup_InvalidPID(t *testing.T) {
	t.Parallel()

	killProcessGroup(999999999)
}
