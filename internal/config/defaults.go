package config

const (
	defaultLogDir                   = "~/.local/share/reviewgate/logs"
	defaultMailboxPrefix            = "review_gate"
	defaultMailboxAltPrefix         = "mcp"
	defaultBackupCount              = 3
	defaultPollIntervalMS           = 100
	defaultAckTimeoutSeconds        = 30
	defaultChatTimeout              = 300
	defaultQuickTimeout             = 90
	defaultFileTimeout              = 90
	defaultIngestTimeout            = 120
	defaultConfirmTimeout           = 60
	defaultHeartbeatIntervalSeconds = 10
	defaultSpeechPollIntervalMS     = 500
	defaultSpeechMalformedGrace     = 5
	defaultSpeechTranscribeTimeout  = 600
	defaultWhisperXModel            = "base"
	defaultWhisperXVADMethod        = "silero"
	defaultNtfyRequestTimeout       = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogMaxSizeMB             = 10
	defaultLogMaxBackups            = 3
	defaultLogMaxAgeDays            = 7
)

var defaultConfirmTokens = []string{"CONFIRM", "YES", "Y", "SHUTDOWN", "PROCEED"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MailboxDir: defaultMailboxDir(),
			LogDir:     defaultLogDir,
		},
		Mailbox: Mailbox{
			Prefix:            defaultMailboxPrefix,
			AltPrefix:         defaultMailboxAltPrefix,
			BackupCount:       defaultBackupCount,
			PollIntervalMS:    defaultPollIntervalMS,
			AckTimeoutSeconds: defaultAckTimeoutSeconds,
			LegacySlots:       true,
			Fsnotify:          true,
		},
		Timeouts: Timeouts{
			Chat:    defaultChatTimeout,
			Quick:   defaultQuickTimeout,
			File:    defaultFileTimeout,
			Ingest:  defaultIngestTimeout,
			Confirm: defaultConfirmTimeout,
		},
		Heartbeat: Heartbeat{
			IntervalSeconds: defaultHeartbeatIntervalSeconds,
		},
		Shutdown: Shutdown{
			ConfirmTokens: append([]string(nil), defaultConfirmTokens...),
		},
		Speech: Speech{
			Enabled:                  true,
			PollIntervalMS:           defaultSpeechPollIntervalMS,
			MalformedGraceSeconds:    defaultSpeechMalformedGrace,
			TranscribeTimeoutSeconds: defaultSpeechTranscribeTimeout,
			WhisperXModel:            defaultWhisperXModel,
			WhisperXVADMethod:        defaultWhisperXVADMethod,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyRequestTimeout,
			RequestWaiting:        true,
			RequestTimedOut:       true,
			ShutdownConfirmed:     true,
			SpeechFailed:          false,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
