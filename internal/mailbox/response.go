package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reviewgate/internal/fileutil"
	"reviewgate/internal/logging"
)

// ResponseOptions tunes how responses are located and parsed.
type ResponseOptions struct {
	Interval time.Duration
	// LegacySlots enables the generic no-id slots.
	LegacySlots bool
	// AcceptPlainText treats non-JSON content as the literal reply.
	AcceptPlainText bool
}

// ResponseWaiter consumes response records for a correlation id.
type ResponseWaiter struct {
	layout   Layout
	opts     ResponseOptions
	notifier *Notifier
	logger   *slog.Logger
	legacy   legacyRegistry

	// warned limits malformed-record warnings to one per path.
	warned sync.Map
}

// NewResponseWaiter builds a waiter. notifier may be nil.
func NewResponseWaiter(layout Layout, opts ResponseOptions, notifier *Notifier, logger *slog.Logger) *ResponseWaiter {
	return &ResponseWaiter{
		layout:   layout,
		opts:     opts,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "response_waiter"),
	}
}

// Register makes id eligible for untagged legacy records once every earlier
// registrant has released. Legacy records tagged with a trigger_id go to
// their owner regardless of queue position. The returned function releases the registration. Wait
// registers on its own; callers driving Check directly must register.
func (w *ResponseWaiter) Register(id string) func() {
	if !w.opts.LegacySlots {
		return func() {}
	}
	w.legacy.register(id)
	return func() { w.legacy.release(id) }
}

// LegacyWaiters reports how many waiters are queued for legacy slots.
func (w *ResponseWaiter) LegacyWaiters() int { return w.legacy.len() }

// Check performs one scan for id and returns the consumed response, if any.
func (w *ResponseWaiter) Check(id string) (Response, bool) {
	head := w.opts.LegacySlots && w.legacy.isHead(id)
	for _, slot := range w.layout.ResponseSlots(id, w.opts.LegacySlots) {
		resp, err := w.tryConsume(id, slot, head)
		if err != nil {
			w.logSlotError(id, slot, err)
			continue
		}
		if resp != nil {
			return *resp, true
		}
	}
	return Response{}, false
}

// tryConsume applies read, parse, decide, delete to one slot. A nil response
// with nil error means nothing consumable was there. Untagged legacy records
// are only claimable by the head of the legacy queue.
func (w *ResponseWaiter) tryConsume(id string, slot ResponseSlot, head bool) (*Response, error) {
	data, ok, err := fileutil.ReadIfExists(slot.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransientIO, err)
	}
	if !ok {
		return nil, nil
	}
	resp, err := ParseResponse(data, w.opts.AcceptPlainText)
	if err != nil {
		return nil, err
	}
	if resp.CorrelationID != "" && resp.CorrelationID != id {
		return nil, fmt.Errorf("%w: record for %s", ErrCorrelationMismatch, resp.CorrelationID)
	}
	if resp.Text == "" {
		return nil, nil
	}
	if slot.Legacy && resp.CorrelationID == "" && !head {
		return nil, nil
	}
	claimed, err := fileutil.Claim(slot.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: delete response: %v", ErrTransientIO, err)
	}
	if !claimed {
		w.logger.Debug("response claimed by another reader", logging.CorrelationID(id), logging.Path(slot.Path))
		return nil, nil
	}
	w.warned.Delete(slot.Path)
	resp.Path = slot.Path
	resp.Legacy = slot.Legacy
	if resp.CorrelationID == "" {
		resp.CorrelationID = id
	}
	return &resp, nil
}

func (w *ResponseWaiter) logSlotError(id string, slot ResponseSlot, err error) {
	switch {
	case errors.Is(err, ErrCorrelationMismatch):
		w.logger.Debug("response skipped", logging.CorrelationID(id), logging.Path(slot.Path), logging.Error(err))
	case errors.Is(err, ErrMalformedRecord):
		if _, seen := w.warned.LoadOrStore(slot.Path, struct{}{}); seen {
			return
		}
		logging.WarnWithContext(w.logger, "malformed response left in place", "response_malformed",
			logging.CorrelationID(id),
			logging.Path(slot.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "record ignored until rewritten"),
			logging.String(logging.FieldErrorHint, "frontend must write a JSON object with user_input, response or message"),
		)
	default:
		w.logger.Debug("response slot unreadable", logging.CorrelationID(id), logging.Path(slot.Path), logging.Error(err))
	}
}

// Wait polls for the response to id until timeout, registering id for the
// legacy queue meanwhile. Timing out is a normal outcome, never an error.
func (w *ResponseWaiter) Wait(ctx context.Context, id string, timeout time.Duration) (Response, Outcome) {
	release := w.Register(id)
	defer release()
	wake, cancel := w.notifier.Subscribe()
	defer cancel()

	var got Response
	outcome := Poll(ctx, w.opts.Interval, time.Now().Add(timeout), wake, func() bool {
		resp, ok := w.Check(id)
		if ok {
			got = resp
		}
		return ok
	})
	if outcome == OutcomeFulfilled {
		w.logger.Info("response received",
			logging.CorrelationID(id),
			logging.Bool("legacy_slot", got.Legacy),
			logging.Int("attachments", len(got.Attachments)),
		)
	}
	return got, outcome
}
