// Package daemonctl starts and stops a detached reviewgate daemon from the
// CLI. It talks to the daemon only through its control socket and process
// signals.
package daemonctl
