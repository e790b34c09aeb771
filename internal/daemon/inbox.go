package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/boqbuilder/internal/logfields"
)

// IsDrawing reports whether name has an accepted drawing extension.
func IsDrawing(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".dwg", ".dxf":
		return filepath.Base(name) != filepath.Ext(name)
	}
	return false
}

// InboxWatcher reports drawings dropped into a directory. A file is handed
// to onReady once no event has been seen for it during the settle delay,
// so partially copied files are not picked up.
type InboxWatcher struct {
	dir     string
	settle  time.Duration
	onReady func(path string)

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	pending  map[string]*time.Timer
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewInboxWatcher(dir string, settle time.Duration, onReady func(path string)) (*InboxWatcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve inbox path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create inbox %s: %w", abs, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &InboxWatcher{
		dir:      abs,
		settle:   settle,
		onReady:  onReady,
		watcher:  w,
		pending:  make(map[string]*time.Timer),
		stopChan: make(chan struct{}),
	}, nil
}

// Dir is the absolute inbox path.
func (iw *InboxWatcher) Dir() string { return iw.dir }

func (iw *InboxWatcher) Start(ctx context.Context) error {
	if err := iw.watcher.Add(iw.dir); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", iw.dir, err)
	}
	slog.Info("Watching inbox", logfields.Path(iw.dir))
	go iw.watchLoop(ctx)
	return nil
}

func (iw *InboxWatcher) Stop() error {
	var err error
	iw.stopOnce.Do(func() {
		close(iw.stopChan)
		iw.mu.Lock()
		for p, t := range iw.pending {
			t.Stop()
			delete(iw.pending, p)
		}
		iw.mu.Unlock()
		err = iw.watcher.Close()
	})
	return err
}

func (iw *InboxWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-iw.stopChan:
			return
		case ev, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			if !IsDrawing(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				iw.touch(ev.Name)
			}
		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Inbox watcher error", logfields.Error(err))
		}
	}
}

// touch (re)starts the settle timer for path.
func (iw *InboxWatcher) touch(path string) {
	iw.mu.Lock()
	defer iw.mu.Unlock()
	select {
	case <-iw.stopChan:
		return
	default:
	}
	if t, ok := iw.pending[path]; ok {
		t.Reset(iw.settle)
		return
	}
	iw.pending[path] = time.AfterFunc(iw.settle, func() {
		iw.mu.Lock()
		delete(iw.pending, path)
		iw.mu.Unlock()
		if st, err := os.Stat(path); err != nil || !st.Mode().IsRegular() {
			return
		}
		iw.onReady(path)
	})
}

// Scan returns the drawings currently in the inbox, sorted by name.
func (iw *InboxWatcher) Scan() ([]string, error) {
	return scanDir(iw.dir)
}

func scanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsDrawing(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
