// Package main hosts the reviewgate CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the mailbox daemon and translates terminal
// invocations into IPC calls against it: asking the editor a question,
// requesting a confirmed shutdown, printing status and request history.
// Mailbox inspection and configuration scaffolding work without a daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
