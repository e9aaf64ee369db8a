// Package daemon coordinates the long-running reviewgate process.
//
// It wires configuration, the request journal, metrics, the heartbeat, the
// shutdown coordinator, the optional fsnotify wake-ups and the speech watcher
// into a single errgroup lifecycle, with flock-based locking so only one
// daemon serves a mailbox directory.
//
// Keep orchestration here: protocol behaviour lives in the mailbox and gate
// packages while the daemon focuses on startup, shutdown and status.
package daemon
