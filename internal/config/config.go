package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	MailboxDir string `toml:"mailbox_dir"`
	LogDir     string `toml:"log_dir"`
}

// Mailbox contains record naming and polling behaviour for the shared mailbox.
type Mailbox struct {
	Prefix            string `toml:"prefix"`
	AltPrefix         string `toml:"alt_prefix"`
	BackupCount       int    `toml:"backup_count"`
	PollIntervalMS    int    `toml:"poll_interval_ms"`
	AckTimeoutSeconds int    `toml:"ack_timeout_seconds"`
	// LegacySlots enables the generic no-id response slots.
	LegacySlots bool `toml:"legacy_slots"`
	// AcceptPlainText treats non-JSON response content as the literal reply.
	AcceptPlainText bool `toml:"accept_plain_text"`
	// Fsnotify wakes waiters on directory changes in addition to polling.
	Fsnotify bool `toml:"fsnotify"`
}

// Timeouts holds the per-kind response deadlines in seconds.
type Timeouts struct {
	Chat    int `toml:"chat"`
	Quick   int `toml:"quick"`
	File    int `toml:"file"`
	Ingest  int `toml:"ingest"`
	Confirm int `toml:"confirm"`
}

// Heartbeat contains liveness record settings.
type Heartbeat struct {
	IntervalSeconds int    `toml:"interval_seconds"`
	MetricsTextfile string `toml:"metrics_textfile"`
}

// Shutdown contains the confirmation vocabulary for remote shutdown.
type Shutdown struct {
	ConfirmTokens []string `toml:"confirm_tokens"`
}

// Speech contains configuration for the speech-to-text job watcher.
type Speech struct {
	Enabled                  bool   `toml:"enabled"`
	PollIntervalMS           int    `toml:"poll_interval_ms"`
	MalformedGraceSeconds    int    `toml:"malformed_grace_seconds"`
	TranscribeTimeoutSeconds int    `toml:"transcribe_timeout_seconds"`
	WhisperXModel            string `toml:"whisperx_model"`
	WhisperXCUDAEnabled      bool   `toml:"whisperx_cuda_enabled"`
	WhisperXVADMethod        string `toml:"whisperx_vad_method"`
	WhisperXHuggingFace      string `toml:"whisperx_hf_token"`
	Language                 string `toml:"language"`
}

// Notifications contains ntfy push settings. An empty topic disables them.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	RequestWaiting        bool   `toml:"request_waiting"`
	RequestTimedOut       bool   `toml:"request_timed_out"`
	ShutdownConfirmed     bool   `toml:"shutdown_confirmed"`
	SpeechFailed          bool   `toml:"speech_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for reviewgate.
//
// Configuration sections by subsystem:
//   - Paths: mailbox and log directories
//   - Mailbox: record names, backups, polling, legacy slot policy
//   - Timeouts: per request kind response deadlines
//   - Heartbeat: liveness record cadence and metrics export
//   - Shutdown: accepted confirmation tokens
//   - Speech: transcription job watcher and WhisperX options
//   - Notifications: ntfy pushes for waiting and finished requests
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Mailbox       Mailbox       `toml:"mailbox"`
	Timeouts      Timeouts      `toml:"timeouts"`
	Heartbeat     Heartbeat     `toml:"heartbeat"`
	Shutdown      Shutdown      `toml:"shutdown"`
	Speech        Speech        `toml:"speech"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reviewgate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reviewgate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.MailboxDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the mailbox waiter tick.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Mailbox.PollIntervalMS) * time.Millisecond
}

// AckTimeout returns how long a request waits for the frontend to acknowledge a trigger.
func (c *Config) AckTimeout() time.Duration {
	return time.Duration(c.Mailbox.AckTimeoutSeconds) * time.Second
}

// HeartbeatInterval returns the liveness record rewrite period.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat.IntervalSeconds) * time.Second
}

// SpeechPollInterval returns the speech job scan cadence.
func (c *Config) SpeechPollInterval() time.Duration {
	return time.Duration(c.Speech.PollIntervalMS) * time.Millisecond
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "reviewgate.sock")
}

// JournalPath returns the SQLite request journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.LogDir, "journal.db")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "reviewgate.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// defaultMailboxDir mirrors where editor extensions look for review gate
// records: /tmp on Unix-like systems, the OS temp dir elsewhere.
func defaultMailboxDir() string {
	if os.PathSeparator == '/' {
		return "/tmp"
	}
	return os.TempDir()
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}
