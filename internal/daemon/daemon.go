package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"reviewgate/internal/config"
	"reviewgate/internal/deps"
	"reviewgate/internal/gate"
	"reviewgate/internal/heartbeat"
	"reviewgate/internal/journal"
	"reviewgate/internal/logging"
	"reviewgate/internal/mailbox"
	"reviewgate/internal/metrics"
	"reviewgate/internal/notifications"
	"reviewgate/internal/preflight"
	"reviewgate/internal/services/whisperx"
	"reviewgate/internal/shutdown"
	"reviewgate/internal/speech"
)

// Daemon owns the long-running mailbox tasks and enforces one instance per
// mailbox directory.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	sessionID string
	layout    mailbox.Layout

	lockPath string
	lock     *flock.Flock

	journal   *journal.Journal
	metrics   *metrics.Metrics
	notifier  *mailbox.Notifier
	alerts    *notifications.Dispatcher
	shutdown  *shutdown.Coordinator
	heartbeat *heartbeat.Emitter
	speech    *speech.Watcher
	service   *gate.Service

	running atomic.Bool
	ran     atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	SessionID    string
	LockPath     string
	JournalPath  string
	Gate         gate.Status
	Heartbeat    *heartbeat.Status
	JournalStats map[string]int
	Dependencies []deps.Status
	Paths        []preflight.Result
}

// New opens the journal and wires every mailbox component. The notifier is
// created only when fsnotify wake-ups are enabled; failing to create it
// falls back to plain polling.
func New(cfg *config.Config, sessionID string, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	layout := mailbox.NewLayout(cfg)

	j, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	m, err := metrics.New()
	if err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	var notifier *mailbox.Notifier
	if cfg.Mailbox.Fsnotify {
		notifier, err = mailbox.NewNotifier(layout, logger)
		if err != nil {
			logging.WarnWithContext(logger, "fsnotify unavailable, polling only", "notifier_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "waiters react on the poll interval only"),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_instances or set mailbox.fsnotify = false"),
			)
			notifier = nil
		}
	}

	alerts := notifications.NewDispatcher(notifications.NewService(cfg),
		time.Duration(cfg.Notifications.RequestTimeoutSeconds)*time.Second, logger)

	coord := shutdown.New(layout, logger)
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		sessionID: sessionID,
		layout:    layout,
		lockPath:  layout.LockPath(),
		lock:      flock.New(layout.LockPath()),
		journal:   j,
		metrics:   m,
		notifier:  notifier,
		alerts:    alerts,
		shutdown:  coord,
		heartbeat: heartbeat.New(layout, heartbeat.Options{
			Interval:        cfg.HeartbeatInterval(),
			SessionID:       sessionID,
			MetricsTextfile: strings.TrimSpace(cfg.Heartbeat.MetricsTextfile),
			Metrics:         m,
		}, logger),
		service: gate.New(cfg, gate.Dependencies{
			SessionID: sessionID,
			Notifier:  notifier,
			Metrics:   m,
			Recorder:  j,
			Shutdown:  coord,
			Alerts:    alerts,
		}, logger),
	}

	if cfg.Speech.Enabled {
		transcriber := whisperx.NewService(whisperx.Config{
			Model:       cfg.Speech.WhisperXModel,
			CUDAEnabled: cfg.Speech.WhisperXCUDAEnabled,
			VADMethod:   cfg.Speech.WhisperXVADMethod,
			HFToken:     cfg.Speech.WhisperXHuggingFace,
			Language:    cfg.Speech.Language,
		}, "")
		d.speech = speech.New(layout, transcriber, speech.Options{
			Interval:          cfg.SpeechPollInterval(),
			MalformedGrace:    time.Duration(cfg.Speech.MalformedGraceSeconds) * time.Second,
			TranscribeTimeout: time.Duration(cfg.Speech.TranscribeTimeoutSeconds) * time.Second,
			Source:            transcriber.Name(),
			Metrics:           m,
			Recorder:          j,
			Alerts:            alerts,
		}, logger)
	}
	return d, nil
}

// Start acquires the mailbox lock and marks requests left open by a previous
// process as abandoned.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if failed, bad := preflight.Failed(preflight.RunAll(d.cfg), preflight.MailboxDirectory); bad {
		return fmt.Errorf("mailbox unusable: %s", failed.Detail)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another reviewgate daemon already owns %s", d.layout.Dir)
	}

	abandoned, err := d.journal.MarkAbandoned(ctx)
	if err != nil {
		d.logger.Warn("journal recovery failed", logging.Error(err))
	} else if abandoned > 0 {
		d.logger.Info("marked abandoned requests", logging.Int64("count", abandoned))
	}

	for _, st := range deps.MissingRequired(deps.CheckBinaries(deps.SpeechRequirements(d.cfg))) {
		logging.WarnWithContext(d.logger, "required tool missing", "dependency_missing",
			logging.String("tool", st.Name),
			logging.String("detail", st.Detail),
			logging.String(logging.FieldImpact, "speech jobs will fail until the tool is installed"),
			logging.String(logging.FieldErrorHint, "install uv (provides uvx) or set speech.enabled = false"),
		)
	}

	d.running.Store(true)
	d.logger.Info("reviewgate daemon started",
		logging.String("lock", d.lockPath),
		logging.String("mailbox_dir", d.layout.Dir),
		logging.Bool("fsnotify", d.notifier != nil),
		logging.Bool("speech", d.speech != nil),
	)
	return nil
}

// Run drives the background tasks until ctx ends or a confirmed shutdown
// arrives. Trigger records are cleaned up on either path.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.Load() {
		return errors.New("daemon not started")
	}
	if !d.ran.CompareAndSwap(false, true) {
		return errors.New("daemon already ran")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if d.notifier != nil {
		group.Go(func() error { return d.notifier.Run(groupCtx) })
	}
	group.Go(func() error { return d.heartbeat.Run(groupCtx) })
	group.Go(func() error { return d.shutdown.Run(groupCtx) })
	if d.speech != nil {
		group.Go(func() error { return d.speech.Run(groupCtx) })
	}

	err := group.Wait()
	if errors.Is(err, shutdown.ErrShutdownRequested) {
		d.logger.Info("reviewgate daemon stopping on confirmed shutdown",
			logging.String("reason", d.shutdown.Reason()))
		return nil
	}
	return err
}

// Stop releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reviewgate daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if !d.ran.Load() {
		_ = d.notifier.Close()
	}
	d.alerts.Wait()
	return d.journal.Close()
}

// Service exposes the request service for the control channel.
func (d *Daemon) Service() *gate.Service { return d.service }

// ShutdownRequested reports whether a confirmed shutdown is pending.
func (d *Daemon) ShutdownRequested() <-chan struct{} { return d.shutdown.Done() }

// History returns the most recent journaled requests.
func (d *Daemon) History(ctx context.Context, limit int) ([]journal.Request, error) {
	return d.journal.History(ctx, limit)
}

// SpeechJobs returns the most recent journaled transcription jobs.
func (d *Daemon) SpeechJobs(ctx context.Context, limit int) ([]journal.SpeechJob, error) {
	return d.journal.SpeechJobs(ctx, limit)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		SessionID:    d.sessionID,
		LockPath:     d.lockPath,
		JournalPath:  d.journal.Path(),
		Gate:         d.service.Status(),
		Dependencies: deps.CheckBinaries(deps.SpeechRequirements(d.cfg)),
		Paths:        preflight.RunAll(d.cfg),
	}
	if hb, ok, err := heartbeat.Read(d.layout); err == nil && ok {
		st.Heartbeat = &hb
	}
	if stats, err := d.journal.Stats(ctx); err == nil {
		st.JournalStats = stats
	} else {
		d.logger.Debug("journal stats", logging.Error(err))
	}
	return st
}
