package mailbox

import (
	"context"
	"time"
)

// Poll calls check immediately and then on every interval tick or wake-up
// until check reports true, the deadline passes, or ctx ends. A final check
// runs at the deadline so a record landing in the last interval is not lost.
// The returned outcome is OutcomeFulfilled, OutcomeTimedOut or OutcomeCancelled.
func Poll(ctx context.Context, interval time.Duration, deadline time.Time, wake <-chan struct{}, check func() bool) Outcome {
	if check() {
		return OutcomeFulfilled
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return OutcomeTimedOut
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return OutcomeCancelled
		case <-timer.C:
			if check() {
				return OutcomeFulfilled
			}
			return OutcomeTimedOut
		case <-ticker.C:
		case <-wake:
		}
		if check() {
			return OutcomeFulfilled
		}
	}
}
