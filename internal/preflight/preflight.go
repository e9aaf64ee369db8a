package preflight

import (
	"reviewgate/internal/config"
)

// Names of the directory checks returned by RunAll.
const (
	MailboxDirectory = "Mailbox directory"
	LogDirectory     = "Log directory"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks every directory reviewgate writes to.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess(MailboxDirectory, cfg.Paths.MailboxDir),
		CheckDirectoryAccess(LogDirectory, cfg.Paths.LogDir),
	}
}

// Failed returns the named result when it did not pass.
func Failed(results []Result, name string) (Result, bool) {
	for _, r := range results {
		if r.Name == name && !r.Passed {
			return r, true
		}
	}
	return Result{}, false
}
