package katex

// Notes:
// - Tests run against a stub script exposing katex.renderToString; the real
//   KaTeX bundle is not part of the repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

const stubScript = `
var katex = {
  renderToString: function (tex, opts) {
    if (tex === "throw") { throw new Error("bad input"); }
    return (opts.displayMode ? "D:" : "I:") + tex;
  }
};
`

// ---------------------------------------------------------------------------
// TestRenderer_RenderMath
// ---------------------------------------------------------------------------

func TestRenderer_RenderMath(t *testing.T) {
	t.Parallel()

	r := New("stub.js", BytesSource([]byte(stubScript)))

	tests := []struct {
		name    string
		tex     string
		display bool
		want    string
		wantErr error
	}{
		{name: "inline", tex: "x^2", want: "I:x^2"},
		{name: "display", tex: `\sum`, display: true, want: `D:\sum`},
		{name: "script error", tex: "throw", wantErr: ErrRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := r.RenderMath(context.Background(), tt.tex, tt.display)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("RenderMath() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("RenderMath() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderMath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderer_LoadsOnce(t *testing.T) {
	t.Parallel()

	var loads atomic.Int32
	r := New("stub.js", func(context.Context) ([]byte, error) {
		loads.Add(1)
		return []byte(stubScript), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.RenderMath(context.Background(), "a", false); err != nil {
				t.Errorf("RenderMath() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := loads.Load(); got != 1 {
		t.Errorf("script loaded %d times, want 1", got)
	}
}

func TestRenderer_LoadErrors(t *testing.T) {
	t.Parallel()

	errMissing := errors.New("missing")

	tests := []struct {
		name string
		src  Source
	}{
		{
			name: "source fails",
			src:  func(context.Context) ([]byte, error) { return nil, errMissing },
		},
		{
			name: "syntax error",
			src:  BytesSource([]byte("var katex = {")),
		},
		{
			name: "no katex global",
			src:  BytesSource([]byte("var other = 1;")),
		},
		{
			name: "renderToString missing",
			src:  BytesSource([]byte("var katex = {};")),
		},
		{
			name: "missing file",
			src:  FileSource("/nonexistent/katex.min.js"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := New("test.js", tt.src)
			_, err := r.RenderMath(context.Background(), "x", false)
			if !errors.Is(err, ErrLoad) {
				t.Errorf("RenderMath() error = %v, want ErrLoad", err)
			}

			// The failure is cached
			_, err2 := r.RenderMath(context.Background(), "x", false)
			if !errors.Is(err2, ErrLoad) {
				t.Errorf("second RenderMath() error = %v, want ErrLoad", err2)
			}
		})
	}
}

func TestRenderer_Cancelled(t *testing.T) {
	t.Parallel()

	r := New("stub.js", BytesSource([]byte(stubScript)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.RenderMath(ctx, "x", false); err == nil {
		t.Error("RenderMath() with cancelled context returned nil error")
	}
}
