package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// exitTimedOut is the status for requests that ended without a reply, so
// scripts can tell a silent user apart from a broken daemon.
const exitTimedOut = 2

// exitError carries a non-default process exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	os.Exit(1)
}
