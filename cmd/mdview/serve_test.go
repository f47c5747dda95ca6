package main

// Notes:
// - The server is exercised through httptest with the embedded page assets.
// - Live tests dial the websocket endpoint and read pushed cycles; the file
//   change test relies on fsnotify delivering a write event, bounded by a
//   read deadline.

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alnah/go-mdview/internal/config"
)

// testConfig returns the default configuration serving dir.
func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Dir = dir
	return cfg
}

// newTestServer starts a server over dir and returns its base URL.
func newTestServer(t *testing.T, cfg *config.Config) (*server, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := newServer(ctx, cfg, newTestPageBuilder(t, cfg), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("newServer() error: %v", err)
	}
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		_ = s.close()
		ts.Close()
	})
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) // #nosec G107 -- test server URL
	if err != nil {
		t.Fatalf("GET %s error: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body error: %v", err)
	}
	return resp.StatusCode, string(body)
}

// ---------------------------------------------------------------------------
// TestServer_View
// ---------------------------------------------------------------------------

func TestServer_View(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs", "a.md"), []byte("# Hello\n\n![logo](img.png)\n"))
	writeFile(t, filepath.Join(dir, "docs", "img.png"), []byte("PNGDATA"))
	writeFile(t, filepath.Join(dir, "bad.md"), []byte("caf\xe9"))

	cfg := testConfig(dir)
	cfg.Server.BasePath = "/app"
	cfg.Storage.Root = "alice"
	_, ts := newTestServer(t, cfg)

	t.Run("rendered page", func(t *testing.T) {
		t.Parallel()
		code, body := get(t, ts.URL+"/app/view/docs/a.md")
		if code != http.StatusOK {
			t.Fatalf("status = %d, body: %s", code, body)
		}
		for _, want := range []string{
			`<h1 id="hello">Hello</h1>`,
			`src="/app/d/alice/docs/img.png"`,
			`data-ws="/app/ws?path=docs%2Fa.md"`,
			"new WebSocket(url)",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("page missing %q", want)
			}
		}
	})

	t.Run("image served under storage root", func(t *testing.T) {
		t.Parallel()
		code, body := get(t, ts.URL+"/app/d/alice/docs/img.png")
		if code != http.StatusOK || body != "PNGDATA" {
			t.Errorf("status = %d, body = %q", code, body)
		}
	})

	t.Run("wrong storage root", func(t *testing.T) {
		t.Parallel()
		if code, _ := get(t, ts.URL+"/app/d/bob/docs/img.png"); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})

	t.Run("missing document", func(t *testing.T) {
		t.Parallel()
		if code, _ := get(t, ts.URL+"/app/view/nope.md"); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})

	t.Run("outside base path", func(t *testing.T) {
		t.Parallel()
		if code, _ := get(t, ts.URL+"/view/docs/a.md"); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})

	t.Run("index lists documents", func(t *testing.T) {
		t.Parallel()
		code, body := get(t, ts.URL+"/app/")
		if code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if !strings.Contains(body, `href="/app/view/docs/a.md"`) {
			t.Errorf("index missing document link:\n%s", body)
		}
	})
}

func TestServer_ViewDecodeFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), []byte("x"))
	cfg := testConfig(dir)
	cfg.Render.Charset = "klingon"
	_, ts := newTestServer(t, cfg)

	if code, _ := get(t, ts.URL+"/view/a.md"); code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", code)
	}
}

// ---------------------------------------------------------------------------
// TestServer_Resolve - Containment
// ---------------------------------------------------------------------------

func TestServer_Resolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	writeFile(t, filepath.Join(root, "a.md"), []byte("a"))
	writeFile(t, filepath.Join(dir, "secret.txt"), []byte("s"))
	if err := os.Symlink(filepath.Join(dir, "secret.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s, _ := newTestServer(t, testConfig(root))

	tests := []struct {
		rel    string
		wantOK bool
	}{
		{"a.md", true},
		{"sub/../a.md", true},
		{"../secret.txt", true}, // cleaned against "/", stays inside
		{"link.txt", false},
		{"", false},
		{"/", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			t.Parallel()
			file, ok := s.resolve(tt.rel)
			if ok != tt.wantOK {
				t.Fatalf("resolve(%q) ok = %v, want %v", tt.rel, ok, tt.wantOK)
			}
			if ok && !strings.HasPrefix(file, s.root+string(filepath.Separator)) {
				t.Errorf("resolve(%q) = %q escapes %q", tt.rel, file, s.root)
			}
		})
	}
}

func TestServer_SymlinkNotServed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	writeFile(t, filepath.Join(root, "a.md"), []byte("a"))
	writeFile(t, filepath.Join(dir, "secret.txt"), []byte("s"))
	if err := os.Symlink(filepath.Join(dir, "secret.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	_, ts := newTestServer(t, testConfig(root))

	if code, _ := get(t, ts.URL+"/d/link.txt"); code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", code)
	}
}

// ---------------------------------------------------------------------------
// TestServer_Live - Websocket cycles
// ---------------------------------------------------------------------------

func dialLive(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?path=" + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial() error: %v (status %d)", err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readCycle reads messages until a cycle arrives.
func readCycle(t *testing.T, conn *websocket.Conn) cycleMessage {
	t.Helper()
	return readCycleUntil(t, conn, func(cycleMessage) bool { return true })
}

// readCycleUntil reads cycles until one satisfies ok. A file write may
// produce several events, so intermediate cycles are skipped.
func readCycleUntil(t *testing.T, conn *websocket.Conn, ok func(cycleMessage) bool) cycleMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error: %v", err)
		}
		var msg cycleMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Unmarshal() error: %v", err)
		}
		if msg.Type == "cycle" && ok(msg) {
			return msg
		}
	}
}

func TestServer_LiveCycles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := filepath.Join(dir, "a.md")
	writeFile(t, doc, []byte("# First\n\n## Section\n"))
	cfg := testConfig(dir)
	cfg.Render.ShowTOC = true
	s, ts := newTestServer(t, cfg)

	conn := dialLive(t, ts, "a.md")

	first := readCycle(t, conn)
	if first.Cycle != 1 || first.Theme != "light" {
		t.Errorf("first cycle = %d (%s), want 1 (light)", first.Cycle, first.Theme)
	}
	if !strings.Contains(first.HTML, `id="first"`) {
		t.Errorf("first cycle HTML = %q", first.HTML)
	}
	if !strings.Contains(first.TOC, `href="#section"`) {
		t.Errorf("first cycle TOC = %q", first.TOC)
	}
	if first.CSS != "" {
		t.Error("unchanged theme should not resend CSS")
	}

	t.Run("theme change", func(t *testing.T) {
		if err := conn.WriteJSON(clientMessage{Type: "theme", Theme: "dark"}); err != nil {
			t.Fatalf("WriteJSON() error: %v", err)
		}
		c := readCycle(t, conn)
		if c.Theme != "dark" || c.Cycle != 2 {
			t.Errorf("cycle = %d (%s), want 2 (dark)", c.Cycle, c.Theme)
		}
		if c.CSS == "" {
			t.Error("theme change should send the page CSS")
		}
	})

	t.Run("file change", func(t *testing.T) {
		writeFile(t, doc, []byte("# Second\n"))
		c := readCycleUntil(t, conn, func(c cycleMessage) bool {
			return strings.Contains(c.HTML, `id="second"`)
		})
		if c.Theme != "dark" {
			t.Errorf("theme = %q, want dark kept", c.Theme)
		}
		if c.TOC != "" {
			t.Errorf("single heading should hide TOC, got %q", c.TOC)
		}
	})

	if got := s.live.count(); got != 1 {
		t.Errorf("live clients = %d, want 1", got)
	}
}

func TestServer_LiveUnknownPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, ts := newTestServer(t, testConfig(dir))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?path=missing.md"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() succeeded for a missing document")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("response = %v, want 404", resp)
	}
}

func TestSameOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.test:8080", true},
		{"http://evil.test", false},
		{"%zz", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example.test:8080/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := sameOrigin(r); got != tt.want {
			t.Errorf("sameOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
