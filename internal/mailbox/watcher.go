package mailbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSettle is how long the watcher waits after the trigger file appears
// before reading the batch.
const DefaultSettle = 50 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Dir    string
	Settle time.Duration // 0 = DefaultSettle, negative = no wait
	Logger *zap.Logger
}

// Watcher watches the mailbox directory and emits one RequestBatch per
// complete set of request files.
type Watcher struct {
	dir     string
	settle  time.Duration
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates the mailbox directory if needed and starts watching it.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mailbox: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(cfg.Dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Dir, err)
	}

	settle := cfg.Settle
	if settle == 0 {
		settle = DefaultSettle
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		dir:     cfg.Dir,
		settle:  settle,
		logger:  logger,
		watcher: watcher,
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Close stops watching. Run closes the watcher itself on return, so Close is
// only needed when Run is never called.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run delivers batches on out until ctx is done or the watcher fails. Sends
// block, so no new batch is read while the receiver is busy. Run closes out
// before returning.
func (w *Watcher) Run(ctx context.Context, out chan<- RequestBatch) error {
	defer close(out)
	defer w.watcher.Close()

	// A batch may have landed before the watch was attached.
	if Complete(w.dir) {
		if !w.dispatch(ctx, out) {
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(ctx, event, out) {
				return ctx.Err()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("mailbox watcher error", zap.Error(err))
		}
	}
}

// handleEvent returns false once ctx is done.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event, out chan<- RequestBatch) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return true
	}

	switch filepath.Base(event.Name) {
	case RequiredFiles[len(RequiredFiles)-1]:
		if !Complete(w.dir) {
			return true
		}
		return w.dispatch(ctx, out)

	case FileQuit:
		// A quit marker with no pending batch stands on its own.
		if Complete(w.dir) || !exists(event.Name) {
			return true
		}
		if _, err := consumeMarker(w.dir, FileQuit); err != nil {
			w.logger.Warn("failed to consume quit marker", zap.Error(err))
		}
		return w.send(ctx, out, RequestBatch{ID: uuid.NewString(), Quit: true})
	}
	return true
}

func (w *Watcher) dispatch(ctx context.Context, out chan<- RequestBatch) bool {
	if w.settle > 0 {
		select {
		case <-time.After(w.settle):
		case <-ctx.Done():
			return false
		}
	}

	// The editor may have rewritten the set while we waited.
	if !Complete(w.dir) {
		return true
	}
	batch, err := Consume(w.dir)
	if err != nil {
		w.logger.Warn("failed to read request batch", zap.Error(err))
		return true
	}
	w.logger.Debug("request batch",
		zap.String("id", batch.ID),
		zap.String("tree", batch.Tree),
		zap.Bool("followup", batch.Followup),
		zap.Bool("quit", batch.Quit),
	)
	return w.send(ctx, out, batch)
}

func (w *Watcher) send(ctx context.Context, out chan<- RequestBatch, batch RequestBatch) bool {
	select {
	case out <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}
