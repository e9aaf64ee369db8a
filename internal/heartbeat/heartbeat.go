// Package heartbeat rewrites the mailbox liveness record so an external
// monitor, or the frontend, can infer that the daemon is alive.
package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"reviewgate/internal/fileutil"
	"reviewgate/internal/logging"
	"reviewgate/internal/mailbox"
	"reviewgate/internal/metrics"
)

// Emitter periodically rewrites the liveness record.
type Emitter struct {
	layout    mailbox.Layout
	interval  time.Duration
	sessionID string
	metrics   *metrics.Metrics
	textfile  string
	logger    *slog.Logger

	beat uint64
	now  func() time.Time
}

// Options configures an Emitter.
type Options struct {
	Interval  time.Duration
	SessionID string
	// MetricsTextfile, when set, receives a Prometheus textfile export on every beat.
	MetricsTextfile string
	Metrics         *metrics.Metrics
}

// New constructs a heartbeat emitter.
func New(layout mailbox.Layout, opts Options, logger *slog.Logger) *Emitter {
	return &Emitter{
		layout:    layout,
		interval:  opts.Interval,
		sessionID: opts.SessionID,
		metrics:   opts.Metrics,
		textfile:  opts.MetricsTextfile,
		logger:    logging.NewComponentLogger(logger, "heartbeat"),
		now:       time.Now,
	}
}

// Run beats once immediately and then every interval until ctx ends. Write
// failures are logged and retried on the next beat.
func (e *Emitter) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Emitter) tick() {
	if err := e.Beat(); err != nil {
		logging.WarnWithContext(e.logger, "heartbeat write failed", "heartbeat_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "monitors may consider the daemon stale"),
			logging.String(logging.FieldErrorHint, "check mailbox directory permissions"),
		)
	}
}

// Beat writes one liveness record and, when configured, the metrics textfile.
func (e *Emitter) Beat() error {
	now := e.now()
	e.beat++
	rec := mailbox.HeartbeatRecord{
		Beat:      e.beat,
		Timestamp: mailbox.Timestamp(now),
		PID:       os.Getpid(),
		SessionID: e.sessionID,
		System:    mailbox.SystemName,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}
	if err := fileutil.WriteFileAtomic(e.layout.HeartbeatPath(), data, 0o644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	e.metrics.Heartbeat(now)
	e.logger.Debug("heartbeat", logging.Int64("beat", int64(e.beat)))

	if err := e.metrics.WriteTextfile(e.textfile); err != nil {
		return err
	}
	return nil
}

// Status describes the last liveness record found on disk.
type Status struct {
	Record mailbox.HeartbeatRecord
	// Age is the time since the record was last rewritten.
	Age time.Duration
}

// Read loads the liveness record. ok is false when none exists.
func Read(layout mailbox.Layout) (Status, bool, error) {
	path := layout.HeartbeatPath()
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Status{}, false, nil
		}
		return Status{}, false, fmt.Errorf("stat heartbeat: %w", err)
	}
	data, ok, err := fileutil.ReadIfExists(path)
	if err != nil || !ok {
		return Status{}, false, err
	}
	var rec mailbox.HeartbeatRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Status{}, false, fmt.Errorf("%w: heartbeat: %v", mailbox.ErrMalformedRecord, err)
	}
	return Status{Record: rec, Age: time.Since(info.ModTime())}, true, nil
}
