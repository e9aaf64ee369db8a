package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reviewgate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test
// and a fast poll interval. Fsnotify and speech are off unless enabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MailboxDir = filepath.Join(base, "mailbox")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Mailbox.PollIntervalMS = 10
	cfgVal.Mailbox.Fsnotify = false
	cfgVal.Speech.Enabled = false
	cfgVal.Speech.PollIntervalMS = 10
	cfgVal.Logging.Level = "debug"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithConfirmTimeout overrides the confirm kind's timeout in seconds.
func WithConfirmTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timeouts.Confirm = seconds
	}
}

// WithAckTimeout overrides the acknowledgement timeout in seconds.
func WithAckTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mailbox.AckTimeoutSeconds = seconds
	}
}

// WithSpeech enables the speech watcher.
func WithSpeech() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Speech.Enabled = true
	}
}

// WithFsnotify enables fsnotify wake-ups.
func WithFsnotify() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mailbox.Fsnotify = true
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, uvx is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"uvx"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.MailboxDir)
}
