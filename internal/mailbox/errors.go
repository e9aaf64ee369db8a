package mailbox

import "errors"

var (
	// ErrTransientIO marks a read, write or delete failure that is retried on the next tick.
	ErrTransientIO = errors.New("mailbox: transient i/o failure")
	// ErrMalformedRecord marks a record that cannot be parsed; it is left in place.
	ErrMalformedRecord = errors.New("mailbox: malformed record")
	// ErrCorrelationMismatch marks a record addressed to a different request.
	ErrCorrelationMismatch = errors.New("mailbox: correlation id mismatch")
	// ErrEmitFailed is returned when neither the primary trigger nor any backup could be written.
	ErrEmitFailed = errors.New("mailbox: every trigger write failed")
)
