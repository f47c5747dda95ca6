package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// NavBarSelector matches the fixed navigation bar of the page shell.
const NavBarSelector = "nav, .navbar"

// scrollSettle bounds the wait for a smooth scroll to finish.
const scrollSettle = 2 * time.Second

// Viewport is a loaded page. It is not safe for concurrent use.
type Viewport struct {
	page *rod.Page
}

// AnchorSelector builds a CSS selector for the heading with the given tag
// and id inside the rendered container.
func AnchorSelector(tag, key string) string {
	return ".markdown-body " + strings.ToLower(tag) + "[id=" + strconv.Quote(key) + "]"
}

// ElementTop returns the element's top edge relative to the viewport.
// Returns ErrNoElement when the page has no such heading.
func (v *Viewport) ElementTop(ctx context.Context, tag, key string) (float64, error) {
	res, err := v.page.Context(ctx).Eval(`(sel) => {
		const el = document.querySelector(sel);
		return el ? el.getBoundingClientRect().top : null;
	}`, AnchorSelector(tag, key))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScript, err)
	}
	if res.Value.Nil() {
		return 0, fmt.Errorf("%w: %s#%s", ErrNoElement, tag, key)
	}
	return res.Value.Num(), nil
}

// NavBarBottom returns the bottom edge of the fixed navigation bar, or 0
// when the page has none.
func (v *Viewport) NavBarBottom(ctx context.Context) (float64, error) {
	res, err := v.page.Context(ctx).Eval(`(sel) => {
		const nav = document.querySelector(sel);
		return nav ? nav.getBoundingClientRect().bottom : 0;
	}`, NavBarSelector)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScript, err)
	}
	return res.Value.Num(), nil
}

// ScrollBy scrolls the window vertically by dy pixels. A smooth scroll
// resolves once the browser reports it finished.
func (v *Viewport) ScrollBy(ctx context.Context, dy float64, smooth bool) error {
	behavior := "instant"
	if smooth {
		behavior = "smooth"
	}
	_, err := v.page.Context(ctx).Eval(`(dy, behavior, settleMs) => new Promise((resolve) => {
		window.scrollBy({ top: dy, behavior: behavior });
		if (behavior !== "smooth" || dy === 0) { resolve(window.scrollY); return; }
		const timer = setTimeout(() => resolve(window.scrollY), settleMs);
		window.addEventListener("scrollend", () => { clearTimeout(timer); resolve(window.scrollY); }, { once: true });
	})`, dy, behavior, scrollSettle.Milliseconds())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScript, err)
	}
	return nil
}

// ScrollY returns the window's vertical scroll position.
func (v *Viewport) ScrollY(ctx context.Context) (float64, error) {
	res, err := v.page.Context(ctx).Eval(`() => window.scrollY`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScript, err)
	}
	return res.Value.Num(), nil
}

// Screenshot captures the visible viewport as PNG.
func (v *Viewport) Screenshot(ctx context.Context) ([]byte, error) {
	img, err := v.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScreenshot, err)
	}
	return img, nil
}

// Close closes the page.
func (v *Viewport) Close() error {
	return v.page.Close()
}
