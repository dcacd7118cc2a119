package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"dayflow/internal/logging"
)

// Watcher monitors .dayflow/config.yaml and invokes a reload callback when
// it changes. Write events are debounced on the trailing edge: the reload
// runs only after the file has stopped changing for the debounce window,
// so a save performed as several writes (editors often write twice) is
// read once, after the last write.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	workspace   string
	onReload    func(*Config)
	debounceDur time.Duration
	pendingAt   time.Time // zero when no reload is pending
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a watcher for the workspace's config file. onReload
// receives the freshly parsed config; parse failures keep the previous
// config and are logged.
func NewWatcher(workspace string, onReload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fsw,
		workspace:   workspace,
		onReload:    onReload,
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. The .dayflow directory must exist.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	// Watch the directory, not the file: editors replace files on save and
	// file-level watches die with the inode.
	dir := filepath.Dir(Path(w.workspace))
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.running = true
	go w.loop()
	logging.Config("config watcher started on %s", dir)
	return nil
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	target := filepath.Base(Path(w.workspace))

	// The ticker drains pending events once they have settled past the
	// debounce window.
	settle := time.NewTicker(100 * time.Millisecond)
	defer settle.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			w.pendingAt = time.Now()
			w.mu.Unlock()
		case <-settle.C:
			w.mu.Lock()
			settled := !w.pendingAt.IsZero() && time.Since(w.pendingAt) >= w.debounceDur
			if settled {
				w.pendingAt = time.Time{}
			}
			w.mu.Unlock()
			if settled {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Warn("config watcher error: %v", err)
		}
	}
}

// reload parses the config and fans it out. Parse failures keep the
// previous config.
func (w *Watcher) reload() {
	cfg, err := Load(w.workspace)
	if err != nil {
		logging.Get(logging.CategoryConfig).Warn("config reload failed: %v", err)
		return
	}
	logging.Config("config reloaded")
	if err := logging.ReloadConfig(); err != nil {
		logging.Get(logging.CategoryConfig).Warn("logging reload failed: %v", err)
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Stop halts watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.watcher.Close()
	<-w.doneCh
}
