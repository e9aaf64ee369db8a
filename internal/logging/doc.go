// Package logging assembles structured slog loggers for the review gate
// daemon and CLI.
//
// It owns the console and JSON handlers, routes file output through a
// rotating sink, and exposes context helpers so mailbox code can tag lines
// with correlation ids and request kinds without threading attributes by hand.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
