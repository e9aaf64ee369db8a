package deps

import (
	"reviewgate/internal/config"
	"reviewgate/internal/services/whisperx"
)

// SpeechRequirements lists the tools the speech watcher shells out to. They
// are optional while the watcher is disabled.
func SpeechRequirements(cfg *config.Config) []Requirement {
	optional := cfg == nil || !cfg.Speech.Enabled
	return []Requirement{
		{
			Name:        "uvx",
			Command:     whisperx.UVXCommand,
			Description: "Runs WhisperX for speech-to-text jobs",
			Optional:    optional,
		},
	}
}

// MissingRequired returns the statuses of required tools that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
