// Package preflight provides readiness checks for the directories reviewgate
// writes to.
//
// The daemon refuses to start when the mailbox directory fails its check,
// since every request and reply crosses it. Both the daemon status and the
// offline CLI status render the results.
package preflight
