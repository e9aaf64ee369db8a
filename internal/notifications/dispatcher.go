package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reviewgate/internal/logging"
)

// Dispatcher publishes events in the background so a slow push endpoint
// never delays a request. A nil Dispatcher drops every event.
type Dispatcher struct {
	svc     Service
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher returns nil when svc delivers nowhere.
func NewDispatcher(svc Service, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if !Enabled(svc) {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{svc: svc, timeout: timeout, logger: logging.NewComponentLogger(logger, "notifications")}
}

// Publish queues event for delivery and returns immediately.
func (d *Dispatcher) Publish(event Event, payload Payload) {
	if d == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.svc.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "user is not alerted outside the editor"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			)
		}
	}()
}

// Wait blocks until every queued event has been delivered or has failed.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
