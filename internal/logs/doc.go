// Package logs tails the daemon log file for `reviewgate logs`.
//
// It reads with bounded memory, supports negative offsets for "last N lines"
// reads, and follows appends until a deadline. Lines can be narrowed to one
// request with MatchCorrelationID.
package logs
