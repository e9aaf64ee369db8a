// Package shutdown owns the daemon's shutdown signal and mailbox cleanup.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"reviewgate/internal/fileutil"
	"reviewgate/internal/logging"
	"reviewgate/internal/mailbox"
)

// ErrShutdownRequested is returned by Run after a confirmed shutdown so the
// daemon's task group unwinds.
var ErrShutdownRequested = errors.New("shutdown requested")

// Coordinator holds a single-close shutdown signal.
type Coordinator struct {
	layout mailbox.Layout
	logger *slog.Logger

	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	reason string
}

// New constructs a coordinator for layout.
func New(layout mailbox.Layout, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		layout: layout,
		logger: logging.NewComponentLogger(logger, "shutdown"),
		done:   make(chan struct{}),
	}
}

// Signal sets the shutdown flag. Only the first call takes effect.
func (c *Coordinator) Signal(reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
		c.logger.Info("shutdown signalled", logging.String("reason", reason))
	})
}

// Done is closed once Signal has been called.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Requested reports whether Signal has been called.
func (c *Coordinator) Requested() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Reason returns the reason passed to Signal, or "" before shutdown.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Run waits for the signal or for ctx to end, cleans the mailbox, and
// returns ErrShutdownRequested when the signal fired.
func (c *Coordinator) Run(ctx context.Context) error {
	select {
	case <-c.done:
		removed := c.Cleanup()
		c.logger.Info("shutdown cleanup complete",
			logging.Int("removed", removed),
			logging.String("reason", c.Reason()),
		)
		return ErrShutdownRequested
	case <-ctx.Done():
		removed := c.Cleanup()
		c.logger.Info("mailbox cleanup on exit", logging.Int("removed", removed))
		return nil
	}
}

// Cleanup best-effort deletes the primary trigger and every backup and
// returns how many files were removed. Missing files are not errors.
func (c *Coordinator) Cleanup() int {
	return CleanupTriggers(c.layout, c.logger)
}

// CleanupTriggers is Cleanup without a coordinator, for the CLI.
func CleanupTriggers(layout mailbox.Layout, logger *slog.Logger) int {
	removed := 0
	for _, path := range layout.TriggerPaths() {
		claimed, err := fileutil.Claim(path)
		if err != nil {
			logging.WarnWithContext(logger, "trigger cleanup failed", "cleanup_failed",
				logging.Path(path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale trigger may reopen a prompt in the editor"),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
			)
			continue
		}
		if claimed {
			removed++
		}
	}
	return removed
}
