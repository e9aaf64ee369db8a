// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Ask and
// Shutdown calls block for as long as the underlying mailbox wait, so the
// server tracks open connections and gives in-flight replies a short grace
// period when it closes.
package ipc
