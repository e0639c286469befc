// Package watcher turns raw fsnotify notifications under a vault root into
// debounced, per-path serialized change events.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Defaults applied by New when a Config field is zero.
const (
	DefaultDebounce   = 2 * time.Second
	DefaultMoveWindow = 100 * time.Millisecond
	DefaultWorkers    = 4
	DefaultQueueSize  = 256
)

// Config controls a Watcher.
type Config struct {
	Root       string
	Debounce   time.Duration
	MoveWindow time.Duration
	Workers    int
	QueueSize  int
	// Accept reports whether a file path is a note worth reporting.
	Accept func(abs string) bool
	// IgnoreDir reports whether a directory (by base name) is left unwatched.
	IgnoreDir func(name string) bool
}

// Counters is a snapshot of watcher activity.
type Counters struct {
	Received   int64 `json:"received"`
	Ignored    int64 `json:"ignored"`
	Coalesced  int64 `json:"coalesced"`
	Dispatched int64 `json:"dispatched"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
	Pending    int64 `json:"pending"`
	Tracked    int64 `json:"tracked"`
	InFlight   int64 `json:"in_flight"`
}

type pending struct {
	kind  ChangeKind
	gen   uint64
	timer *time.Timer
}

type heldRename struct {
	path  string
	timer *time.Timer
}

// Watcher watches a directory tree and feeds a Handler.
type Watcher struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	gen      uint64
	timers   map[string]*pending
	renames  []*heldRename
	lastSeen map[string]time.Time
	dirs     map[string]struct{}
	stopped  bool

	queues     []chan Event
	tracker    *tracker
	done       chan struct{}
	wg         sync.WaitGroup
	handlerCtx context.Context
	stopOnce   sync.Once
	stopErr    error

	received   atomic.Int64
	ignored    atomic.Int64
	coalesced  atomic.Int64
	dispatched atomic.Int64
	failed     atomic.Int64
	dropped    atomic.Int64
}

// New creates a Watcher. Nothing is observed until Start.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watcher: nil handler")
	}
	if cfg.Root == "" {
		return nil, errors.New("watcher: empty root")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MoveWindow <= 0 {
		cfg.MoveWindow = DefaultMoveWindow
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Accept == nil {
		cfg.Accept = func(string) bool { return true }
	}
	if cfg.IgnoreDir == nil {
		cfg.IgnoreDir = func(string) bool { return false }
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Root = filepath.Clean(cfg.Root)

	w := &Watcher{
		cfg:        cfg,
		handler:    handler,
		logger:     logger,
		timers:     make(map[string]*pending),
		lastSeen:   make(map[string]time.Time),
		dirs:       make(map[string]struct{}),
		queues:     make([]chan Event, cfg.Workers),
		tracker:    newTracker(),
		done:       make(chan struct{}),
		handlerCtx: context.Background(),
	}
	for i := range w.queues {
		w.queues[i] = make(chan Event, cfg.QueueSize)
	}
	return w, nil
}

// Start subscribes to the tree and starts the dispatch workers. A failed
// subscription is returned as an error. Cancelling ctx stops the watcher; handlers
// already running finish on a context detached from ctx.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: subscribe: %w", err)
	}
	w.fsw = fsw
	if err := w.addTree(w.cfg.Root, false); err != nil {
		fsw.Close()
		return fmt.Errorf("watcher: watch %s: %w", w.cfg.Root, err)
	}

	w.startWorkers(ctx)
	w.wg.Add(1)
	go w.loop()

	go func() {
		select {
		case <-ctx.Done():
			_ = w.Stop()
		case <-w.done:
		}
	}()

	w.logger.Info("watcher: started",
		slog.String("root", w.cfg.Root),
		slog.Duration("debounce", w.cfg.Debounce),
		slog.Int("workers", w.cfg.Workers))
	return nil
}

func (w *Watcher) startWorkers(ctx context.Context) {
	w.handlerCtx = context.WithoutCancel(ctx)
	for _, q := range w.queues {
		w.wg.Add(1)
		go w.work(q)
	}
}

// Stop cancels pending timers, unsubscribes, drops queued events and waits for
// running handlers. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		for p, t := range w.timers {
			t.timer.Stop()
			delete(w.timers, p)
			w.dropped.Add(1)
		}
		for _, h := range w.renames {
			h.timer.Stop()
			w.dropped.Add(1)
		}
		w.renames = nil
		w.mu.Unlock()

		close(w.done)
		w.tracker.close()
		if w.fsw != nil {
			w.stopErr = w.fsw.Close()
		}
		w.wg.Wait()

		for _, q := range w.queues {
		drain:
			for {
				select {
				case <-q:
					w.dropped.Add(1)
				default:
					break drain
				}
			}
		}
		w.logger.Info("watcher: stopped", slog.Int64("dispatched", w.dispatched.Load()), slog.Int64("dropped", w.dropped.Load()))
	})
	return w.stopErr
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Counters {
	w.mu.Lock()
	pendingN := len(w.timers) + len(w.renames)
	tracked := len(w.lastSeen)
	w.mu.Unlock()
	return Counters{
		Received:   w.received.Load(),
		Ignored:    w.ignored.Load(),
		Coalesced:  w.coalesced.Load(),
		Dispatched: w.dispatched.Load(),
		Failed:     w.failed.Load(),
		Dropped:    w.dropped.Load(),
		Pending:    int64(pendingN),
		Tracked:    int64(tracked),
		InFlight:   int64(w.tracker.inFlight()),
	}
}

// LastSeen returns when path was last dispatched successfully.
func (w *Watcher) LastSeen(path string) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.lastSeen[filepath.Clean(path)]
	return t, ok
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.notify(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// notify normalizes one raw fsnotify event.
func (w *Watcher) notify(ev fsnotify.Event) {
	w.received.Add(1)
	path := filepath.Clean(ev.Name)

	switch {
	case ev.Has(fsnotify.Create):
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			if w.cfg.IgnoreDir(fi.Name()) {
				w.ignored.Add(1)
				return
			}
			if err := w.addTree(path, true); err != nil {
				w.logger.Warn("watcher: add new dir failed", slog.String("path", path), slog.String("error", err.Error()))
			}
			return
		}
		if !w.cfg.Accept(path) {
			w.ignored.Add(1)
			return
		}
		if old, ok := w.takeRename(path); ok {
			if old == path {
				w.schedule(Modified, path)
				return
			}
			w.immediate(Event{Kind: Moved, Path: old, NewPath: path})
			return
		}
		w.schedule(Created, path)

	case ev.Has(fsnotify.Write):
		if !w.cfg.Accept(path) {
			w.ignored.Add(1)
			return
		}
		w.schedule(Modified, path)

	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if w.forgetDir(path) {
			if path == w.cfg.Root {
				w.logger.Warn("watcher: root removed", slog.String("path", path))
				return
			}
			w.immediate(Event{Kind: DeletedDir, Path: path})
			return
		}
		if !w.cfg.Accept(path) {
			w.ignored.Add(1)
			return
		}
		if ev.Has(fsnotify.Remove) {
			w.immediate(Event{Kind: Deleted, Path: path})
			return
		}
		w.holdRename(path)

	default:
		w.ignored.Add(1)
	}
}

// forgetDir drops path and every watched directory below it. It reports
// whether path was a watched directory. Debounce timers of files inside are
// cancelled, since the directory event replaces them.
func (w *Watcher) forgetDir(path string) bool {
	w.mu.Lock()
	if _, ok := w.dirs[path]; !ok {
		w.mu.Unlock()
		return false
	}
	prefix := path + string(filepath.Separator)
	var gone []string
	for d := range w.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
			gone = append(gone, d)
		}
	}
	for p, t := range w.timers {
		if strings.HasPrefix(p, prefix) {
			t.timer.Stop()
			delete(w.timers, p)
			w.coalesced.Add(1)
		}
	}
	w.mu.Unlock()

	// Watches follow the inode; a moved tree would keep reporting old paths.
	if w.fsw != nil {
		for _, d := range gone {
			_ = w.fsw.Remove(d)
		}
	}
	return true
}

// schedule (re)arms the debounce timer of path. The latest kind wins.
func (w *Watcher) schedule(kind ChangeKind, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		w.dropped.Add(1)
		return
	}
	p, ok := w.timers[path]
	if ok {
		p.timer.Stop()
		w.coalesced.Add(1)
	} else {
		p = &pending{}
		w.timers[path] = p
	}
	p.kind = kind
	w.gen++
	gen := w.gen
	p.gen = gen
	p.timer = time.AfterFunc(w.cfg.Debounce, func() { w.fire(path, gen) })
}

func (w *Watcher) fire(path string, gen uint64) {
	w.mu.Lock()
	p, ok := w.timers[path]
	if !ok || p.gen != gen || w.stopped {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	kind := p.kind
	w.mu.Unlock()

	w.enqueue(Event{Kind: kind, Path: path})
}

// immediate cancels pending timers for every path of ev and dispatches it now.
func (w *Watcher) immediate(ev Event) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		w.dropped.Add(1)
		return
	}
	for _, p := range ev.paths() {
		if t, ok := w.timers[p]; ok {
			t.timer.Stop()
			delete(w.timers, p)
			w.coalesced.Add(1)
		}
	}
	w.mu.Unlock()

	w.enqueue(ev)
}

// holdRename keeps a Rename of path open for MoveWindow, waiting for the
// Create of its destination. Unpaired, it becomes a Deleted event.
func (w *Watcher) holdRename(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		w.dropped.Add(1)
		return
	}
	if t, ok := w.timers[path]; ok {
		t.timer.Stop()
		delete(w.timers, path)
		w.coalesced.Add(1)
	}
	h := &heldRename{path: path}
	h.timer = time.AfterFunc(w.cfg.MoveWindow, func() { w.expireRename(h) })
	w.renames = append(w.renames, h)
}

func (w *Watcher) expireRename(h *heldRename) {
	w.mu.Lock()
	idx := -1
	for i, r := range w.renames {
		if r == h {
			idx = i
			break
		}
	}
	if idx < 0 {
		w.mu.Unlock()
		return
	}
	w.renames = append(w.renames[:idx], w.renames[idx+1:]...)
	w.mu.Unlock()

	w.immediate(Event{Kind: Deleted, Path: h.path})
}

// takeRename claims a held rename for newPath: one with the same base name if
// any, otherwise the oldest.
func (w *Watcher) takeRename(newPath string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.renames) == 0 {
		return "", false
	}
	idx := 0
	for i, r := range w.renames {
		if filepath.Base(r.path) == filepath.Base(newPath) {
			idx = i
			break
		}
	}
	h := w.renames[idx]
	h.timer.Stop()
	w.renames = append(w.renames[:idx], w.renames[idx+1:]...)
	return h.path, true
}

func (w *Watcher) enqueue(ev Event) {
	select {
	case <-w.done:
		w.dropped.Add(1)
		return
	default:
	}
	q := w.queues[partition(ev.primary(), len(w.queues))]
	select {
	case q <- ev:
	case <-w.done:
		w.dropped.Add(1)
	}
}

func (w *Watcher) work(q chan Event) {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev := <-q:
			w.dispatch(ev)
		}
	}
}

func (w *Watcher) dispatch(ev Event) {
	paths := ev.paths()
	if !w.tracker.acquire(paths) {
		w.dropped.Add(1)
		return
	}
	defer w.tracker.release(paths)

	w.dispatched.Add(1)
	if err := w.handler.HandleEvent(w.handlerCtx, ev); err != nil {
		w.failed.Add(1)
		w.logger.Warn("watcher: handler failed",
			slog.String("kind", ev.Kind.String()),
			slog.String("path", ev.Path),
			slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: dispatched", slog.String("kind", ev.Kind.String()), slog.String("path", ev.primary()))

	now := time.Now()
	w.mu.Lock()
	switch ev.Kind {
	case Deleted:
		delete(w.lastSeen, ev.Path)
	case Moved:
		delete(w.lastSeen, ev.Path)
		w.lastSeen[ev.NewPath] = now
	case DeletedDir:
		prefix := ev.Path + string(filepath.Separator)
		for p := range w.lastSeen {
			if strings.HasPrefix(p, prefix) {
				delete(w.lastSeen, p)
			}
		}
	default:
		w.lastSeen[ev.Path] = now
	}
	w.mu.Unlock()
}

// addTree watches dir and every non-ignored directory below it. With report
// set, notes already present are scheduled as Created (a directory that
// appeared after Start may have been populated before its watch was added).
func (w *Watcher) addTree(dir string, report bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != w.cfg.Root && w.cfg.IgnoreDir(d.Name()) {
				return filepath.SkipDir
			}
			if w.fsw != nil {
				if err := w.fsw.Add(path); err != nil {
					return err
				}
			}
			w.mu.Lock()
			w.dirs[path] = struct{}{}
			w.mu.Unlock()
			return nil
		}
		if report && w.cfg.Accept(path) {
			w.schedule(Created, path)
		}
		return nil
	})
}
