// Package katex renders TeX to HTML with KaTeX running in an embedded
// JavaScript VM (goja).
//
// The KaTeX script is not bundled. It is supplied by a Source, typically a
// file path from configuration, and is loaded and compiled on first use.
package katex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"

	"github.com/alnah/go-mdview/internal/once"
)

// Sentinel errors for KaTeX rendering.
var (
	ErrLoad   = errors.New("failed to load KaTeX")
	ErrRender = errors.New("KaTeX render failed")
)

// Source returns the KaTeX script.
type Source func(ctx context.Context) ([]byte, error)

// FileSource reads the script from path.
func FileSource(path string) Source {
	return func(context.Context) ([]byte, error) {
		return os.ReadFile(path) // #nosec G304 -- path comes from configuration
	}
}

// BytesSource returns script as-is.
func BytesSource(script []byte) Source {
	return func(context.Context) ([]byte, error) {
		return script, nil
	}
}

// engine is an initialized VM holding katex.renderToString.
type engine struct {
	vm     *goja.Runtime
	render goja.Callable
}

// Renderer renders TeX with KaTeX. It is safe for concurrent use; calls are
// serialized on a single VM.
type Renderer struct {
	name  string
	guard *once.Guard[*engine]
	mu    sync.Mutex
}

// New creates a Renderer. The script is fetched from src on the first render.
func New(name string, src Source) *Renderer {
	r := &Renderer{name: name}
	r.guard = once.New(func(ctx context.Context) (*engine, error) {
		script, err := src(ctx)
		if err != nil {
			return nil, err
		}
		return newEngine(name, string(script))
	})
	return r
}

// NewFromFile creates a Renderer loading the script at path.
func NewFromFile(path string) *Renderer {
	return New(path, FileSource(path))
}

// Preload starts loading the script in the background.
func (r *Renderer) Preload(ctx context.Context) {
	r.guard.Start(ctx)
}

// RenderMath implements pipeline.MathRenderer.
// Parse errors are rendered inline by KaTeX (throwOnError is off).
func (r *Renderer) RenderMath(ctx context.Context, tex string, display bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e, err := r.guard.Do(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s: %v", ErrLoad, r.name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Interrupt the VM on cancellation; a late interrupt must not leak into the next call
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		e.vm.Interrupt(ctx.Err())
		close(interrupted)
	})
	defer func() {
		if !stop() {
			<-interrupted
		}
		e.vm.ClearInterrupt()
	}()

	opts := e.vm.NewObject()
	_ = opts.Set("displayMode", display)
	_ = opts.Set("throwOnError", false)

	out, err := e.render(goja.Undefined(), e.vm.ToValue(tex), opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	return out.String(), nil
}

func newEngine(name, script string) (*engine, error) {
	prog, err := goja.Compile(name, script, true)
	if err != nil {
		return nil, err
	}

	vm := goja.New()

	// Minimal console and document stubs
	console := vm.NewObject()
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = console.Set("log", noop)
	_ = console.Set("warn", noop)
	_ = console.Set("error", noop)
	_ = vm.Set("console", console)

	document := vm.NewObject()
	_ = document.Set("createElement", func(goja.FunctionCall) goja.Value {
		elem := vm.NewObject()
		_ = elem.Set("setAttribute", noop)
		return elem
	})
	_ = vm.Set("document", document)

	if _, err := vm.RunProgram(prog); err != nil {
		return nil, err
	}

	katex := vm.Get("katex")
	if katex == nil || goja.IsUndefined(katex) || goja.IsNull(katex) {
		return nil, errors.New("katex global not defined")
	}
	render, ok := goja.AssertFunction(katex.ToObject(vm).Get("renderToString"))
	if !ok {
		return nil, errors.New("katex.renderToString is not a function")
	}

	return &engine{vm: vm, render: render}, nil
}
