// Package notifications pushes request events to ntfy so a user away from
// the editor learns that a reply is needed.
//
// NewService returns a no-op when no topic is configured, so callers publish
// unconditionally. Per-event toggles in the notifications config section
// suppress individual events.
package notifications
