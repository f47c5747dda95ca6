package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"
	"golang.org/x/net/html"

	mdview "github.com/alnah/go-mdview"
	"github.com/alnah/go-mdview/internal/assets"
	"github.com/alnah/go-mdview/internal/config"
	"github.com/alnah/go-mdview/internal/dom"
	"github.com/alnah/go-mdview/internal/fileutil"
)

// Live connection limits.
const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 16
	shutdownWait   = 5 * time.Second
)

// runServe serves documents under a directory with live preview.
func runServe(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(flags.common.config)
	if err != nil {
		return err
	}
	flags.apply(cfg)
	if len(positional) > 0 {
		cfg.Storage.Dir = positional[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Server.BasePath = config.CleanBasePath(cfg.Server.BasePath)

	logger := newLogger(env.Stderr, flags.common)
	pages, err := newPageBuilder(cfg, env, logger)
	if err != nil {
		return err
	}

	s, err := newServer(ctx, cfg, pages, logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	logger.Info("serving", "dir", s.root, "url", "http://"+ln.Addr().String()+s.base+"/")

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// server renders documents under root on request and streams re-render
// cycles to live clients.
type server struct {
	ctx      context.Context
	cfg      *config.Config
	root     string // absolute storage directory
	base     string // cleaned base path, "" or "/app"
	pages    *pageBuilder
	live     *liveReload
	logger   *slog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// Compile-time interface check.
var _ http.Handler = (*server)(nil)

func newServer(ctx context.Context, cfg *config.Config, pages *pageBuilder, logger *slog.Logger) (*server, error) {
	dir := cfg.Storage.Dir
	if dir == "" {
		dir = "."
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUsage, dir)
	}

	live, err := newLiveReload(root, logger)
	if err != nil {
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}
	if err := live.start(); err != nil {
		_ = live.close()
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}

	// Document paths are computed against the resolved directory
	cfg.Storage.Dir = root

	s := &server{
		ctx:    ctx,
		cfg:    cfg,
		root:   root,
		base:   config.CleanBasePath(cfg.Server.BasePath),
		pages:  pages,
		live:   live,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: sameOrigin}
	s.routes()
	return s, nil
}

func (s *server) routes() {
	s.mux.HandleFunc("GET "+s.base+"/{$}", s.handleIndex)
	s.mux.HandleFunc("GET "+s.base+"/view/{path...}", s.handleView)
	s.mux.HandleFunc("GET "+s.base+"/d/{path...}", s.handleContent)
	s.mux.HandleFunc("GET "+s.base+"/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *server) close() error {
	return s.live.close()
}

// sameOrigin accepts requests without an Origin header and same-host origins.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// resolve maps a slash path relative to the storage directory to a file
// inside it. Paths escaping the directory, through ".." or symlinks, are rejected.
func (s *server) resolve(rel string) (string, bool) {
	clean := path.Clean("/" + rel)
	if clean == "/" {
		return "", false
	}
	abs := filepath.Join(s.root, filepath.FromSlash(clean))
	if !within(s.root, abs) {
		return "", false
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil && !within(s.root, resolved) {
		return "", false
	}
	return abs, true
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// requestTheme returns the ?theme= value or the configured theme.
func (s *server) requestTheme(r *http.Request) string {
	if t := r.URL.Query().Get("theme"); t != "" {
		return assets.NormalizeTheme(t)
	}
	return assets.NormalizeTheme(s.cfg.Render.Theme)
}

// ---------------------------------------------------------------------------
// HTTP handlers
// ---------------------------------------------------------------------------

// handleIndex lists markdown documents as a rendered page.
func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var docs []string
	_ = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && p != s.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && fileutil.IsMarkdownFile(p) {
			if rel, err := filepath.Rel(s.root, p); err == nil {
				docs = append(docs, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	sort.Strings(docs)

	var md strings.Builder
	md.WriteString("# Documents\n\n")
	if len(docs) == 0 {
		md.WriteString("No markdown documents found.\n")
	}
	for _, d := range docs {
		fmt.Fprintf(&md, "- [%s](<%s>)\n", escapeLinkText(d), s.viewURL(d))
	}

	in := mdview.Input{Content: md.String(), DocPath: "/"}
	doc, _, err := renderPage(r.Context(), s.pages, in, s.requestTheme(r))
	if err != nil {
		s.fail(w, "index", err)
		return
	}
	s.writePage(w, doc)
}

// handleView renders a document into a page wired for live updates.
func (s *server) handleView(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	file, ok := s.resolve(rel)
	if !ok || !fileutil.FileExists(file) {
		http.NotFound(w, r)
		return
	}

	in, err := readInput(file, "", s.cfg)
	if err != nil {
		s.fail(w, rel, err)
		return
	}
	theme := s.requestTheme(r)
	doc, _, err := renderPage(r.Context(), s.pages, in, theme)
	if err != nil {
		s.fail(w, rel, err)
		return
	}

	script := dom.Element("script", "data-ws", s.base+"/ws?path="+url.QueryEscape(rel), "data-theme", theme)
	script.AppendChild(&html.Node{Type: html.TextNode, Data: liveScript})
	doc.AppendToHead(script)
	s.writePage(w, doc)
}

// handleContent serves raw files under /d/<root>/<path>.
func (s *server) handleContent(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	if root := strings.Trim(s.cfg.Storage.Root, "/"); root != "" {
		var ok bool
		rel, ok = strings.CutPrefix(rel, root+"/")
		if !ok {
			http.NotFound(w, r)
			return
		}
	}

	file, ok := s.resolve(rel)
	if !ok {
		http.Error(w, "invalid path", http.StatusForbidden)
		return
	}
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	s.logger.Debug("content", "path", rel)
	http.ServeFile(w, r, file)
}

func (s *server) writePage(w http.ResponseWriter, doc *mdview.Document) {
	page, err := doc.Render()
	if err != nil {
		s.fail(w, "page", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (s *server) fail(w http.ResponseWriter, what string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, os.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, mdview.ErrDecode):
		status = http.StatusUnprocessableEntity
	}
	s.logger.Error("render failed", "path", what, "error", err)
	http.Error(w, http.StatusText(status), status)
}

func (s *server) viewURL(rel string) string {
	segs := strings.Split(rel, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.base + "/view/" + strings.Join(segs, "/")
}

// escapeLinkText escapes markdown link text metacharacters.
func escapeLinkText(s string) string {
	return strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`).Replace(s)
}

// ---------------------------------------------------------------------------
// Live clients
// ---------------------------------------------------------------------------

// Messages exchanged with live clients.
type (
	cycleMessage struct {
		Type       string `json:"type"` // "cycle"
		Cycle      uint64 `json:"cycle"`
		Theme      string `json:"theme"`
		HTML       string `json:"html"`
		TOC        string `json:"toc"`
		CSS        string `json:"css,omitempty"`        // Set when the theme changed
		Stylesheet string `json:"stylesheet,omitempty"` // Math stylesheet to link
		Script     string `json:"script,omitempty"`     // Diagram engine script to load
		Diagrams   bool   `json:"diagrams"`
	}

	noticeMessage struct {
		Type    string `json:"type"` // "notice"
		Message string `json:"message"`
	}

	clientMessage struct {
		Type  string `json:"type"` // "theme"
		Theme string `json:"theme"`
	}
)

// liveClient is one websocket viewing one document. It owns a server-side
// page and render session; every applied cycle is pushed to the browser.
type liveClient struct {
	server *server
	file   string
	conn   *websocket.Conn
	doc    *mdview.Document
	sess   *mdview.Session

	ctx    context.Context
	cancel context.CancelFunc
	send   chan []byte

	mu        sync.Mutex
	sentTheme string

	closeOnce sync.Once
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	file, ok := s.resolve(rel)
	if !ok || !fileutil.FileExists(file) {
		http.NotFound(w, r)
		return
	}
	theme := s.requestTheme(r)

	doc, err := s.pages.newPage(theme)
	if err != nil {
		s.fail(w, rel, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := newLiveClient(s, file, conn, doc, theme)
	s.live.add(c)
	defer func() {
		s.live.remove(c)
		c.close()
	}()

	s.logger.Debug("live client connected", "path", rel, "clients", s.live.count())
	go c.writePump()
	go c.reload()
	c.readPump()
}

func newLiveClient(s *server, file string, conn *websocket.Conn, doc *mdview.Document, theme string) *liveClient {
	ctx, cancel := context.WithCancel(s.ctx)
	c := &liveClient{
		server:    s,
		file:      file,
		conn:      conn,
		doc:       doc,
		ctx:       ctx,
		cancel:    cancel,
		send:      make(chan []byte, sendBuffer),
		sentTheme: theme,
	}
	notifier := mdview.NotifierFunc(func(ctx context.Context, message string, err error) {
		s.logger.Warn(message, "file", file, "error", err)
		c.push(noticeMessage{Type: "notice", Message: message})
	})
	c.sess, _ = s.pages.newSession(doc, notifier, mdview.WithOnCycle(c.onCycle))
	return c
}

// reload re-reads the file and renders it with the current theme.
func (c *liveClient) reload() {
	in, err := readInput(c.file, "", c.server.cfg)
	if err != nil {
		c.report(err)
		return
	}
	theme := c.sess.Theme()
	if theme == "" {
		theme = c.currentTheme()
	}
	_, err = c.sess.Update(c.ctx, in, theme)
	c.report(err)
}

// setTheme re-renders the last input with theme.
func (c *liveClient) setTheme(theme string) {
	_, err := c.sess.SetTheme(c.ctx, assets.NormalizeTheme(theme))
	c.report(err)
}

// report forwards render failures; superseded and cancelled cycles are silent.
func (c *liveClient) report(err error) {
	if err == nil || mdview.IsStale(err) || c.ctx.Err() != nil {
		return
	}
	c.server.logger.Warn("live render failed", "file", c.file, "error", err)
	c.push(noticeMessage{Type: "notice", Message: "Render failed: " + err.Error()})
}

// onCycle pushes the mounted result of an applied cycle.
func (c *liveClient) onCycle(_ context.Context, cycle *mdview.Cycle) {
	mounted, err := c.doc.ContainerHTML()
	if err != nil {
		c.report(err)
		return
	}

	msg := cycleMessage{
		Type:     "cycle",
		Cycle:    cycle.ID,
		Theme:    cycle.Theme,
		HTML:     mounted,
		Diagrams: cycle.DiagramsRendered,
	}
	if cycle.TOCVisible(c.server.cfg.Render.ShowTOC) {
		msg.TOC = tocFragment(cycle.TOC)
	}
	if cycle.Result.HasMath {
		msg.Stylesheet = c.server.cfg.Assets.MathStylesheet
	}
	if cycle.DiagramsRendered {
		msg.Script = c.server.cfg.Assets.DiagramScript
	}

	c.mu.Lock()
	if cycle.Theme != c.sentTheme {
		if css, err := c.server.pages.pageCSS(cycle.Theme); err == nil {
			msg.CSS = css
			c.sentTheme = cycle.Theme
		}
	}
	c.mu.Unlock()

	c.push(msg)
}

func (c *liveClient) currentTheme() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sentTheme
}

// push queues v for the writer. It gives up once the client is closed.
func (c *liveClient) push(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// readPump handles client messages until the connection fails.
func (c *liveClient) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				continue
			}
			return
		}
		if msg.Type == "theme" {
			go c.setTheme(msg.Theme)
		}
	}
}

func (c *liveClient) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.sess.Close()
		_ = c.conn.Close()
	})
}
