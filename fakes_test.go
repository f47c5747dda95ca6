package mdview

import (
	"context"
	"sync"
)

// fakeLazy records asset side effects.
type fakeLazy struct {
	mu          sync.Mutex
	stylesheets int
	starts      int
	loads       int
	loadErr     error
}

func (f *fakeLazy) InjectMathStylesheet() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stylesheets++
}

func (f *fakeLazy) StartDiagramEngine(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
}

func (f *fakeLazy) LoadDiagramEngine(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.loadErr
}

func (f *fakeLazy) counts() (stylesheets, starts, loads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stylesheets, f.starts, f.loads
}

// recordingNotifier collects notifications.
type recordingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *recordingNotifier) received() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]error(nil), n.errs...)
}

// failingMath fails every render.
type failingMath struct{ err error }

func (f failingMath) RenderMath(context.Context, string, bool) (string, error) {
	return "", f.err
}

// blockingMath signals entered, then blocks until ctx is done.
type blockingMath struct {
	entered chan struct{}
	once    sync.Once
}

func (b *blockingMath) RenderMath(ctx context.Context, _ string, _ bool) (string, error) {
	b.once.Do(func() { close(b.entered) })
	<-ctx.Done()
	return "", ctx.Err()
}
