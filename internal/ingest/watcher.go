package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextpack/internal/orchestrator"
)

// ErrWatcherFailed indicates the filesystem watcher could not be set up.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Event reports one file ingested by a Watcher.
type Event struct {
	Path       string
	DocumentID string
	Err        error
}

// Watcher ingests files created or written in a directory.
type Watcher struct {
	dir     string
	target  Ingester
	cfg     Config
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	events chan Event
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher watches dir, which is not descended recursively.
func NewWatcher(dir string, target Ingester, cfg Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		dir:     dir,
		target:  target,
		cfg:     cfg,
		logger:  logger,
		watcher: fw,
		events:  make(chan Event, 16),
		stop:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Events returns ingestion outcomes. Outcomes are dropped when the channel
// is full.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start processes filesystem events until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop ends processing, cancels pending ingestions and closes the watcher.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && w.cfg.matches(ev.Name) {
				w.schedule(ctx, ev.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		}
	}
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.cfg.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.stop:
			return
		default:
		}
		w.ingest(ctx, path)
	})
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	ev := Event{Path: path}

	doc, err := readDocument(w.dir, path, w.cfg.MaxFileSize)
	if err == nil {
		var ids []string
		ids, err = w.target.AddDocuments(ctx, []orchestrator.DocumentInput{doc})
		if len(ids) == 1 {
			ev.DocumentID = ids[0]
		}
	}
	ev.Err = err

	if err != nil {
		w.logger.Warn("file ingestion failed", zap.String("path", filepath.Base(path)), zap.Error(err))
	} else {
		w.logger.Info("file ingested",
			zap.String("path", filepath.Base(path)),
			zap.String("document.id", ev.DocumentID))
	}

	select {
	case w.events <- ev:
	default:
	}
}
