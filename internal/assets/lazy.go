package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html"

	"github.com/alnah/go-mdview/internal/dom"
	"github.com/alnah/go-mdview/internal/once"
)

// DiagramGlobal is the global the diagram engine script announces on the page.
const DiagramGlobal = "mermaid"

// Head is the part of a mounted page the lazy loader writes to.
// *dom.Document implements it.
type Head interface {
	AppendToHead(n *html.Node)
	HeadHas(tag, key, val string) bool
	HasGlobal(name string) bool
	SetGlobal(name string)
}

// Compile-time interface check.
var _ Head = (*dom.Document)(nil)

// ScriptFetcher retrieves a script so its availability can be verified before
// it is referenced from the page.
type ScriptFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to ScriptFetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch implements ScriptFetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// URLs are the opaque asset locations supplied by configuration.
type URLs struct {
	MathStylesheet string
	DiagramScript  string
}

// AssetLoadError reports a diagram engine script that failed to load.
// It matches ErrAssetLoad with errors.Is.
type AssetLoadError struct {
	URL string
	Err error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrAssetLoad, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AssetLoadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrAssetLoad.
func (e *AssetLoadError) Is(target error) bool { return target == ErrAssetLoad }

// LazyLoader performs one-time asset side effects on a page.
// Each operation runs at most once per LazyLoader; failures are cached and
// never retried.
type LazyLoader struct {
	head    Head
	fetcher ScriptFetcher
	urls    URLs
	logger  *slog.Logger

	stylesheet *once.Guard[struct{}]
	diagram    *once.Guard[struct{}]
}

// LazyOption configures a LazyLoader.
type LazyOption func(*LazyLoader)

// WithLazyLogger sets the logger. Default discards.
func WithLazyLogger(l *slog.Logger) LazyOption {
	return func(ll *LazyLoader) {
		if l != nil {
			ll.logger = l
		}
	}
}

// NewLazyLoader creates a LazyLoader writing to head.
// A nil fetcher uses an HTTPFetcher with default settings.
func NewLazyLoader(head Head, fetcher ScriptFetcher, urls URLs, opts ...LazyOption) *LazyLoader {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(0)
	}
	l := &LazyLoader{
		head:    head,
		fetcher: fetcher,
		urls:    urls,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.stylesheet = once.New(l.injectStylesheet)
	l.diagram = once.New(l.loadDiagram)
	return l
}

// InjectMathStylesheet appends the math stylesheet link to the head, once.
func (l *LazyLoader) InjectMathStylesheet() {
	_, _ = l.stylesheet.Do(context.Background())
}

// LoadDiagramEngine loads the diagram engine and waits for the outcome.
// Cancelling ctx abandons the wait; the load itself keeps going.
// A failure is an *AssetLoadError and is returned to every later caller.
func (l *LazyLoader) LoadDiagramEngine(ctx context.Context) error {
	_, err := l.diagram.Do(ctx)
	return err
}

// StartDiagramEngine triggers the diagram engine load without waiting.
func (l *LazyLoader) StartDiagramEngine(ctx context.Context) {
	l.diagram.Start(ctx)
}

// DiagramEngineLoaded reports whether the diagram engine finished loading successfully.
func (l *LazyLoader) DiagramEngineLoaded() bool {
	if !l.diagram.Done() {
		return false
	}
	_, err := l.diagram.Wait(context.Background())
	return err == nil
}

func (l *LazyLoader) injectStylesheet(context.Context) (struct{}, error) {
	url := l.urls.MathStylesheet
	if url == "" || l.head.HeadHas("link", "href", url) {
		return struct{}{}, nil
	}
	l.head.AppendToHead(dom.Element("link", "rel", "stylesheet", "href", url))
	l.logger.Debug("math stylesheet injected", "url", url)
	return struct{}{}, nil
}

func (l *LazyLoader) loadDiagram(ctx context.Context) (struct{}, error) {
	if l.head.HasGlobal(DiagramGlobal) {
		return struct{}{}, nil
	}

	url := l.urls.DiagramScript
	if url == "" {
		return struct{}{}, &AssetLoadError{URL: url, Err: errors.New("no diagram script URL configured")}
	}

	start := time.Now()
	body, err := l.fetcher.Fetch(ctx, url)
	if err == nil && len(body) == 0 {
		err = errors.New("empty script")
	}
	if err != nil {
		return struct{}{}, &AssetLoadError{URL: url, Err: err}
	}

	l.head.AppendToHead(dom.Element("script", "src", url))
	l.head.SetGlobal(DiagramGlobal)
	l.logger.Debug("diagram engine loaded", "url", url, "bytes", len(body), "elapsed", time.Since(start))
	return struct{}{}, nil
}

// ---------------------------------------------------------------------------
// HTTP fetcher
// ---------------------------------------------------------------------------

// DefaultMaxScriptBytes bounds a fetched script.
const DefaultMaxScriptBytes = 8 << 20

// HTTPFetcher fetches scripts over HTTP(S). Non-2xx responses are failures.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// Compile-time interface check.
var _ ScriptFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher. A zero timeout means none.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: DefaultMaxScriptBytes,
	}
}

// Fetch implements ScriptFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxScriptBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("script larger than %d bytes", limit)
	}
	return body, nil
}
