package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"reviewgate/internal/logging"
)

// Notifier turns directory change events into wake-ups for waiters. Polling
// remains authoritative; a missed or dropped event only costs one tick.
type Notifier struct {
	layout  Layout
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu     sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// NewNotifier starts watching the mailbox directory. Run must be called to
// deliver events and release the watcher.
func NewNotifier(layout Layout, logger *slog.Logger) (*Notifier, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(layout.Dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch mailbox dir: %w", err)
	}
	return &Notifier{
		layout:  layout,
		watcher: watcher,
		logger:  logging.NewComponentLogger(logger, "notifier"),
		subs:    make(map[int]chan struct{}),
	}, nil
}

// Subscribe returns a channel that receives a value after relevant changes,
// and a function that cancels the subscription. A nil Notifier yields a nil
// channel, which never fires.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	if n == nil {
		return nil, func() {}
	}
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()
	return ch, func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Close releases the watcher without running. It is safe after Run.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	return n.watcher.Close()
}

// Run pumps watcher events until ctx ends, then closes the watcher.
func (n *Notifier) Run(ctx context.Context) error {
	defer n.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-n.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if n.layout.Classify(filepath.Base(event.Name)) == "" {
				continue
			}
			n.broadcast()
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(n.logger, "fsnotify error", "notifier_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "waiters fall back to polling"),
			)
		}
	}
}

func (n *Notifier) broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
