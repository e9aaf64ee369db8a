package mailbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"time"

	"reviewgate/internal/fileutil"
	"reviewgate/internal/logging"
)

const syncAttempts = 3

// Emitter publishes trigger records: one primary plus redundant backups that
// raise the odds a polling frontend notices at least one copy.
type Emitter struct {
	layout    Layout
	sessionID string
	logger    *slog.Logger

	// Hooks overridable in tests.
	syncFS func() error
	write  func(path string, data []byte) error
}

// NewEmitter constructs an emitter for layout. sessionID is stamped on every
// record so concurrent daemons can be told apart.
func NewEmitter(layout Layout, sessionID string, logger *slog.Logger) *Emitter {
	return &Emitter{
		layout:    layout,
		sessionID: sessionID,
		logger:    logging.NewComponentLogger(logger, "emitter"),
		syncFS:    fileutil.SyncFilesystem,
		write: func(path string, data []byte) error {
			return fileutil.WriteFileAtomic(path, data, 0o644)
		},
	}
}

// Emit writes the primary trigger and every backup. It returns false only
// when no copy could be written. A primary that is already gone on the
// post-write check was consumed by the frontend and counts as success.
func (e *Emitter) Emit(ctx context.Context, rec TriggerRecord) bool {
	if ctx.Err() != nil {
		return false
	}
	logger := logging.WithContext(logging.WithCorrelationID(ctx, rec.CorrelationID), e.logger)

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	data := make(map[string]any, len(rec.Payload)+2)
	maps.Copy(data, rec.Payload)
	data["trigger_id"] = rec.CorrelationID
	if _, ok := data["timestamp"]; !ok {
		data["timestamp"] = Timestamp(created)
	}
	doc := triggerDocument{
		Timestamp: Timestamp(created),
		System:    SystemName,
		PID:       os.Getpid(),
		SessionID: e.sessionID,
		TriggerID: rec.CorrelationID,
		Data:      data,
	}

	primaryPath := e.layout.TriggerPath()
	primaryOK := e.writeDoc(logger, primaryPath, doc)
	if primaryOK {
		e.flush(logger)
		primaryOK = e.verifyPrimary(logger, primaryPath)
	}

	backups := 0
	for i := 0; i < e.layout.BackupCount; i++ {
		id := i
		doc.BackupID = &id
		if e.writeDoc(logger, e.layout.BackupPath(i), doc) {
			backups++
		}
	}

	if !primaryOK && backups == 0 {
		logging.ErrorWithContext(logger, "trigger emission failed", "trigger_emit_failed",
			logging.String(logging.FieldErrorHint, "check mailbox directory permissions and free space"),
		)
		return false
	}
	logger.Info("trigger emitted",
		logging.Bool("primary", primaryOK),
		logging.Int("backups", backups),
		logging.Path(primaryPath),
	)
	return true
}

func (e *Emitter) writeDoc(logger *slog.Logger, path string, doc triggerDocument) bool {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		logging.ErrorWithContext(logger, "encode trigger", "trigger_encode_failed", logging.Error(err))
		return false
	}
	if err := e.write(path, payload); err != nil {
		logging.WarnWithContext(logger, "trigger write failed", "trigger_write_failed",
			logging.Path(path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "frontend may miss this copy"),
		)
		return false
	}
	return true
}

func (e *Emitter) flush(logger *slog.Logger) {
	var err error
	for attempt := 1; attempt <= syncAttempts; attempt++ {
		if err = e.syncFS(); err == nil {
			return
		}
	}
	logger.Debug("filesystem sync failed", logging.Error(err))
}

// verifyPrimary treats a vanished primary as consumed and an empty one as a
// failed write.
func (e *Emitter) verifyPrimary(logger *slog.Logger, path string) bool {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Size() == 0:
		logging.WarnWithContext(logger, "primary trigger is empty", "trigger_empty",
			logging.Path(path),
			logging.String(logging.FieldImpact, "relying on backup copies"),
		)
		return false
	case err == nil:
		return true
	case os.IsNotExist(err):
		logger.Info("primary trigger consumed immediately", logging.Path(path))
		return true
	default:
		logger.Debug("stat primary trigger", logging.Error(err))
		return true
	}
}
