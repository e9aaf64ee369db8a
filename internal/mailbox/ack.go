package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reviewgate/internal/fileutil"
	"reviewgate/internal/logging"
)

// AckWaiter consumes acknowledgement records.
type AckWaiter struct {
	layout   Layout
	interval time.Duration
	notifier *Notifier
	logger   *slog.Logger
}

// NewAckWaiter builds a waiter polling at interval. notifier may be nil.
func NewAckWaiter(layout Layout, interval time.Duration, notifier *Notifier, logger *slog.Logger) *AckWaiter {
	return &AckWaiter{
		layout:   layout,
		interval: interval,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "ack_waiter"),
	}
}

// Check performs one scan. It returns true after consuming a parseable ack
// for id. ErrMalformedRecord and ErrCorrelationMismatch leave the record in
// place for a later tick.
func (w *AckWaiter) Check(id string) (bool, error) {
	path := w.layout.AckPath(id)
	data, ok, err := fileutil.ReadIfExists(path)
	if err != nil {
		return false, fmt.Errorf("%w: read ack: %v", ErrTransientIO, err)
	}
	if !ok {
		return false, nil
	}
	ack, err := ParseAck(data)
	if err != nil {
		return false, err
	}
	if ack.TriggerID != "" && ack.TriggerID != id {
		return false, fmt.Errorf("%w: ack for %s in slot of %s", ErrCorrelationMismatch, ack.TriggerID, id)
	}
	claimed, err := fileutil.Claim(path)
	if err != nil {
		logging.WarnWithContext(w.logger, "ack cleanup failed", "ack_cleanup_failed",
			logging.CorrelationID(id),
			logging.Path(path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale ack file remains until shutdown cleanup"),
		)
		claimed = true
	}
	if claimed {
		w.logger.Debug("ack consumed", logging.CorrelationID(id), logging.Bool("acknowledged", ack.Acknowledged))
	}
	return claimed, nil
}

// Wait polls for the ack of id until timeout. A false result is not fatal.
func (w *AckWaiter) Wait(ctx context.Context, id string, timeout time.Duration) bool {
	wake, cancel := w.notifier.Subscribe()
	defer cancel()

	outcome := Poll(ctx, w.interval, time.Now().Add(timeout), wake, func() bool {
		ok, err := w.Check(id)
		if err != nil {
			w.logCheckError(id, err)
		}
		return ok
	})
	if outcome == OutcomeTimedOut {
		logging.WarnWithContext(w.logger, "no acknowledgement before timeout", "ack_timeout",
			logging.CorrelationID(id),
			logging.Duration("timeout", timeout),
			logging.String(logging.FieldImpact, "still waiting for the response"),
			logging.String(logging.FieldErrorHint, "check that the editor extension is running"),
		)
	}
	return outcome == OutcomeFulfilled
}

func (w *AckWaiter) logCheckError(id string, err error) {
	if errors.Is(err, ErrCorrelationMismatch) {
		w.logger.Debug("ack skipped", logging.CorrelationID(id), logging.Error(err))
		return
	}
	w.logger.Debug("ack not consumable yet", logging.CorrelationID(id), logging.Error(err))
}
