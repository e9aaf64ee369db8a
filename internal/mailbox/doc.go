// Package mailbox implements the filesystem mailbox shared by the daemon and
// the editor frontend.
//
// Every message is a single JSON file in one directory. Writers publish with
// an atomic rename; readers consume with read, parse, decide, then unlink,
// and the successful unlink is the claim. Two readers racing for the same
// record therefore resolve to exactly one winner without locks.
//
// Emitter publishes triggers, AckWaiter and ResponseWaiter consume replies,
// and Notifier optionally shortens poll latency with fsnotify wake-ups.
package mailbox
