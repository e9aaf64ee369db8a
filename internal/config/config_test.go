package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reviewgate/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("REVIEWGATE_MAILBOX_DIR", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "reviewgate", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Paths.MailboxDir == "" {
		t.Fatal("expected mailbox dir default")
	}
	if cfg.Mailbox.Prefix != "review_gate" {
		t.Fatalf("unexpected prefix %q", cfg.Mailbox.Prefix)
	}
	if cfg.Mailbox.BackupCount != 3 {
		t.Fatalf("expected 3 backups, got %d", cfg.Mailbox.BackupCount)
	}
	if cfg.PollInterval() != 100*time.Millisecond {
		t.Fatalf("unexpected poll interval %s", cfg.PollInterval())
	}
	if cfg.AckTimeout() != 30*time.Second {
		t.Fatalf("unexpected ack timeout %s", cfg.AckTimeout())
	}
	if cfg.Timeouts.Chat != 300 || cfg.Timeouts.Confirm != 60 {
		t.Fatalf("unexpected timeouts %+v", cfg.Timeouts)
	}
	if cfg.HeartbeatInterval() != 10*time.Second {
		t.Fatalf("unexpected heartbeat interval %s", cfg.HeartbeatInterval())
	}
	if !cfg.Mailbox.LegacySlots {
		t.Fatal("expected legacy slots enabled by default")
	}
	if cfg.Mailbox.AcceptPlainText {
		t.Fatal("expected plain text responses disabled by default")
	}
	if got := strings.Join(cfg.Shutdown.ConfirmTokens, ","); got != "CONFIRM,YES,Y,SHUTDOWN,PROCEED" {
		t.Fatalf("unexpected confirm tokens %q", got)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	info, err := os.Stat(cfg.Paths.LogDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected log dir to exist: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "reviewgate.toml")
	t.Setenv("REVIEWGATE_MAILBOX_DIR", "")

	type payload struct {
		Paths struct {
			MailboxDir string `toml:"mailbox_dir"`
			LogDir     string `toml:"log_dir"`
		} `toml:"paths"`
		Mailbox struct {
			Prefix      string `toml:"prefix"`
			BackupCount int    `toml:"backup_count"`
		} `toml:"mailbox"`
		Shutdown struct {
			ConfirmTokens []string `toml:"confirm_tokens"`
		} `toml:"shutdown"`
	}
	custom := payload{}
	custom.Paths.MailboxDir = filepath.Join(tempDir, "mailbox")
	custom.Paths.LogDir = filepath.Join(tempDir, "logs")
	custom.Mailbox.Prefix = "gate"
	custom.Mailbox.BackupCount = 1
	custom.Shutdown.ConfirmTokens = []string{" ok ", "OK", "go"}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.MailboxDir != custom.Paths.MailboxDir {
		t.Fatalf("expected mailbox dir from file, got %q", cfg.Paths.MailboxDir)
	}
	if cfg.Mailbox.Prefix != "gate" || cfg.Mailbox.BackupCount != 1 {
		t.Fatalf("unexpected mailbox section %+v", cfg.Mailbox)
	}
	if got := strings.Join(cfg.Shutdown.ConfirmTokens, ","); got != "OK,GO" {
		t.Fatalf("expected normalized tokens OK,GO, got %q", got)
	}
	if cfg.SocketPath() != filepath.Join(custom.Paths.LogDir, "reviewgate.sock") {
		t.Fatalf("unexpected socket path %q", cfg.SocketPath())
	}
}

func TestEnvOverridesMailboxDir(t *testing.T) {
	override := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REVIEWGATE_MAILBOX_DIR", override)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.MailboxDir != override {
		t.Fatalf("expected mailbox dir %q, got %q", override, cfg.Paths.MailboxDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"poll interval", func(c *config.Config) { c.Mailbox.PollIntervalMS = 0 }, "mailbox.poll_interval_ms"},
		{"slow poll", func(c *config.Config) { c.Mailbox.PollIntervalMS = 1500 }, "mailbox.poll_interval_ms"},
		{"negative backups", func(c *config.Config) { c.Mailbox.BackupCount = -1 }, "mailbox.backup_count"},
		{"prefix separator", func(c *config.Config) { c.Mailbox.Prefix = "a/b" }, "mailbox.prefix"},
		{"chat timeout", func(c *config.Config) { c.Timeouts.Chat = 0 }, "timeouts.chat"},
		{"heartbeat", func(c *config.Config) { c.Heartbeat.IntervalSeconds = 0 }, "heartbeat.interval_seconds"},
		{"tokens", func(c *config.Config) { c.Shutdown.ConfirmTokens = nil }, "shutdown.confirm_tokens"},
		{"vad", func(c *config.Config) { c.Speech.WhisperXVADMethod = "webrtc" }, "speech.whisperx_vad_method"},
		{"pyannote token", func(c *config.Config) { c.Speech.WhisperXVADMethod = "pyannote" }, "whisperx_hf_token"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"ntfy scheme", func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/topic" }, "notifications.ntfy_topic"},
		{"ntfy timeout", func(c *config.Config) {
			c.Notifications.NtfyTopic = "https://ntfy.sh/topic"
			c.Notifications.RequestTimeoutSeconds = 0
		}, "notifications.request_timeout_seconds"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSpeechValidationSkippedWhenDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.Enabled = false
	cfg.Speech.PollIntervalMS = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected disabled speech to skip validation, got %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("REVIEWGATE_MAILBOX_DIR", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Mailbox.Prefix != "review_gate" {
		t.Fatalf("unexpected prefix from sample %q", cfg.Mailbox.Prefix)
	}
}
