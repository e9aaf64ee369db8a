package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMailbox(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateHeartbeat(); err != nil {
		return err
	}
	if err := c.validateShutdown(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMailbox() error {
	if strings.ContainsAny(c.Mailbox.Prefix, `/\`) {
		return errors.New("mailbox.prefix must not contain path separators")
	}
	if strings.ContainsAny(c.Mailbox.AltPrefix, `/\`) {
		return errors.New("mailbox.alt_prefix must not contain path separators")
	}
	if c.Mailbox.BackupCount < 0 {
		return errors.New("mailbox.backup_count must not be negative")
	}
	if c.Mailbox.PollIntervalMS <= 0 || c.Mailbox.PollIntervalMS >= 1000 {
		return errors.New("mailbox.poll_interval_ms must be between 1 and 999")
	}
	if c.Mailbox.AckTimeoutSeconds <= 0 {
		return errors.New("mailbox.ack_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"timeouts.chat":    c.Timeouts.Chat,
		"timeouts.quick":   c.Timeouts.Quick,
		"timeouts.file":    c.Timeouts.File,
		"timeouts.ingest":  c.Timeouts.Ingest,
		"timeouts.confirm": c.Timeouts.Confirm,
	})
}

func (c *Config) validateHeartbeat() error {
	if c.Heartbeat.IntervalSeconds <= 0 {
		return errors.New("heartbeat.interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateShutdown() error {
	if len(c.Shutdown.ConfirmTokens) == 0 {
		return errors.New("shutdown.confirm_tokens must list at least one token")
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if !c.Speech.Enabled {
		return nil
	}
	if err := ensurePositiveMap(map[string]int{
		"speech.poll_interval_ms":           c.Speech.PollIntervalMS,
		"speech.transcribe_timeout_seconds": c.Speech.TranscribeTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Speech.MalformedGraceSeconds < 0 {
		return errors.New("speech.malformed_grace_seconds must not be negative")
	}
	switch c.Speech.WhisperXVADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("speech.whisperx_vad_method: unsupported value %q", c.Speech.WhisperXVADMethod)
	}
	if c.Speech.WhisperXVADMethod == "pyannote" && c.Speech.WhisperXHuggingFace == "" {
		return errors.New("speech.whisperx_hf_token must be set when speech.whisperx_vad_method is pyannote")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation settings must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
