package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// liveReload watches the storage directory and re-renders the documents
// live clients are viewing when their file changes.
type liveReload struct {
	root    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	clientsMu sync.RWMutex
	clients   map[*liveClient]struct{}

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newLiveReload(root string, logger *slog.Logger) (*liveReload, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &liveReload{
		root:    root,
		watcher: watcher,
		logger:  logger,
		clients: make(map[*liveClient]struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// start watches root recursively and begins dispatching change events.
func (lr *liveReload) start() error {
	if err := lr.watchDirectory(lr.root); err != nil {
		return err
	}
	lr.started = true
	go lr.watchFiles()
	return nil
}

// watchDirectory adds dir and its non-hidden subdirectories to the watcher.
func (lr *liveReload) watchDirectory(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := lr.watcher.Add(p); err != nil {
			lr.logger.Debug("watch failed", "dir", p, "error", err)
		}
		return nil
	})
}

func (lr *liveReload) watchFiles() {
	defer close(lr.done)
	for {
		select {
		case event, ok := <-lr.watcher.Events:
			if !ok {
				return
			}
			lr.handleEvent(event)
		case err, ok := <-lr.watcher.Errors:
			if !ok {
				return
			}
			lr.logger.Warn("watcher error", "error", err)
		case <-lr.stop:
			return
		}
	}
}

func (lr *liveReload) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		// New directories are watched too
		if !strings.HasPrefix(filepath.Base(event.Name), ".") {
			_ = lr.watchDirectory(event.Name)
		}
		return
	}

	lr.logger.Debug("file changed", "file", event.Name)
	lr.changed(event.Name)
}

// changed re-renders every client viewing file.
func (lr *liveReload) changed(file string) {
	lr.clientsMu.RLock()
	defer lr.clientsMu.RUnlock()
	for c := range lr.clients {
		if c.file == file {
			go c.reload()
		}
	}
}

func (lr *liveReload) add(c *liveClient) {
	lr.clientsMu.Lock()
	defer lr.clientsMu.Unlock()
	lr.clients[c] = struct{}{}
}

func (lr *liveReload) remove(c *liveClient) {
	lr.clientsMu.Lock()
	defer lr.clientsMu.Unlock()
	delete(lr.clients, c)
}

// count returns the number of connected clients.
func (lr *liveReload) count() int {
	lr.clientsMu.RLock()
	defer lr.clientsMu.RUnlock()
	return len(lr.clients)
}

// close stops the watcher and disconnects all clients.
func (lr *liveReload) close() error {
	var err error
	lr.stopOnce.Do(func() {
		close(lr.stop)
		err = lr.watcher.Close()
		if lr.started {
			<-lr.done
		}

		lr.clientsMu.Lock()
		for c := range lr.clients {
			c.close()
		}
		lr.clients = make(map[*liveClient]struct{})
		lr.clientsMu.Unlock()
	})
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}
