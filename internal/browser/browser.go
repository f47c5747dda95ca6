package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Defaults used when Options leave a field zero.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 800
	DefaultTimeout = 30 * time.Second
)

// Options configure a Browser.
type Options struct {
	Bin       string // Chrome binary; ROD_BROWSER_BIN when empty
	NoSandbox bool   // Also enabled by CI=true or a custom binary
	Width     int
	Height    int
	Timeout   time.Duration // Page load timeout
}

// Browser is a lazily launched headless Chrome.
type Browser struct {
	opts Options

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// New creates a Browser. Chrome starts on the first Open.
func New(opts Options) *Browser {
	if opts.Bin == "" {
		opts.Bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Browser{opts: opts}
}

func (b *Browser) ensureBrowser() error {
	if b.browser != nil {
		return nil
	}

	l := launcher.New().Headless(true)
	if b.opts.Bin != "" {
		l = l.Bin(b.opts.Bin)
	}

	// Sandbox fails for root containers and most CI runners
	if b.opts.NoSandbox || os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || b.opts.Bin != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	b.launcher = l
	b.browser = browser
	return nil
}

// Open loads url in a new page sized to the configured viewport and waits
// for the load event.
func (b *Browser) Open(ctx context.Context, url string) (*Viewport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	err := b.ensureBrowser()
	browser := b.browser
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.Width,
		Height:            b.opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}

	timeout := b.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			_ = page.Close()
			return nil, context.DeadlineExceeded
		}
	}

	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	return &Viewport{page: page}, nil
}

// Close shuts Chrome down and kills any leftover child processes.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}

	err := b.browser.Close()
	pid := b.launcher.PID()
	b.launcher.Kill()
	if pid > 0 {
		killProcessGroup(pid)
	}
	b.launcher.Cleanup()

	b.browser = nil
	b.launcher = nil
	return err
}
