package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMailbox()
	c.normalizeShutdown()
	c.normalizeSpeech()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("REVIEWGATE_MAILBOX_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.MailboxDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.MailboxDir) == "" {
		c.Paths.MailboxDir = defaultMailboxDir()
	}
	var err error
	if c.Paths.MailboxDir, err = expandPath(c.Paths.MailboxDir); err != nil {
		return fmt.Errorf("paths.mailbox_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMailbox() {
	c.Mailbox.Prefix = strings.TrimSpace(c.Mailbox.Prefix)
	if c.Mailbox.Prefix == "" {
		c.Mailbox.Prefix = defaultMailboxPrefix
	}
	c.Mailbox.AltPrefix = strings.TrimSpace(c.Mailbox.AltPrefix)
}

func (c *Config) normalizeNotifications() {
	topic := strings.TrimSpace(c.Notifications.NtfyTopic)
	if value, ok := os.LookupEnv("REVIEWGATE_NTFY_TOPIC"); ok && topic == "" {
		topic = strings.TrimSpace(value)
	}
	c.Notifications.NtfyTopic = strings.TrimRight(topic, "/")
}

func (c *Config) normalizeShutdown() {
	tokens := make([]string, 0, len(c.Shutdown.ConfirmTokens))
	seen := make(map[string]struct{}, len(c.Shutdown.ConfirmTokens))
	for _, token := range c.Shutdown.ConfirmTokens {
		token = strings.ToUpper(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	c.Shutdown.ConfirmTokens = tokens
}

func (c *Config) normalizeSpeech() {
	if c.Speech.WhisperXHuggingFace == "" {
		if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Speech.WhisperXHuggingFace = strings.TrimSpace(value)
		}
	}
	c.Speech.WhisperXModel = strings.TrimSpace(c.Speech.WhisperXModel)
	if c.Speech.WhisperXModel == "" {
		c.Speech.WhisperXModel = defaultWhisperXModel
	}
	c.Speech.WhisperXVADMethod = strings.ToLower(strings.TrimSpace(c.Speech.WhisperXVADMethod))
	if c.Speech.WhisperXVADMethod == "" {
		c.Speech.WhisperXVADMethod = defaultWhisperXVADMethod
	}
	c.Speech.Language = strings.TrimSpace(c.Speech.Language)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
