package mailbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reviewgate/internal/config"
)

// Layout resolves record names inside the mailbox directory.
type Layout struct {
	Dir         string
	Prefix      string
	AltPrefix   string
	BackupCount int
}

// NewLayout derives the layout from configuration.
func NewLayout(cfg *config.Config) Layout {
	return Layout{
		Dir:         cfg.Paths.MailboxDir,
		Prefix:      cfg.Mailbox.Prefix,
		AltPrefix:   cfg.Mailbox.AltPrefix,
		BackupCount: cfg.Mailbox.BackupCount,
	}
}

func (l Layout) path(name string) string { return filepath.Join(l.Dir, name) }

// TriggerPath is the primary trigger record.
func (l Layout) TriggerPath() string { return l.path(l.Prefix + "_trigger.json") }

// BackupPath is the n-th redundant trigger copy.
func (l Layout) BackupPath(n int) string {
	return l.path(fmt.Sprintf("%s_trigger_%d.json", l.Prefix, n))
}

// TriggerPaths lists the primary trigger followed by every backup.
func (l Layout) TriggerPaths() []string {
	paths := make([]string, 0, l.BackupCount+1)
	paths = append(paths, l.TriggerPath())
	for i := 0; i < l.BackupCount; i++ {
		paths = append(paths, l.BackupPath(i))
	}
	return paths
}

// AckPath is the acknowledgement slot for id.
func (l Layout) AckPath(id string) string {
	return l.path(fmt.Sprintf("%s_ack_%s.json", l.Prefix, id))
}

// ResponseSlot is one candidate location for a response.
type ResponseSlot struct {
	Path   string
	Legacy bool
}

// ResponseSlots returns the scan order for id: keyed primary, legacy primary,
// keyed alternate, legacy alternate. Legacy slots are omitted when
// includeLegacy is false.
func (l Layout) ResponseSlots(id string, includeLegacy bool) []ResponseSlot {
	slots := make([]ResponseSlot, 0, 4)
	for _, prefix := range l.responsePrefixes() {
		slots = append(slots, ResponseSlot{Path: l.path(fmt.Sprintf("%s_response_%s.json", prefix, id))})
		if includeLegacy {
			slots = append(slots, ResponseSlot{Path: l.path(prefix + "_response.json"), Legacy: true})
		}
	}
	return slots
}

func (l Layout) responsePrefixes() []string {
	if l.AltPrefix == "" || l.AltPrefix == l.Prefix {
		return []string{l.Prefix}
	}
	return []string{l.Prefix, l.AltPrefix}
}

// HeartbeatPath is the liveness record.
func (l Layout) HeartbeatPath() string { return l.path(l.Prefix + "_heartbeat.json") }

// SpeechTriggerGlob matches pending transcription jobs.
func (l Layout) SpeechTriggerGlob() string { return l.path(l.Prefix + "_speech_trigger_*.json") }

// SpeechResponsePath is the transcription result slot for id.
func (l Layout) SpeechResponsePath(id string) string {
	return l.path(fmt.Sprintf("%s_speech_response_%s.json", l.Prefix, id))
}

// LockPath guards single-daemon ownership of the mailbox.
func (l Layout) LockPath() string { return l.path(l.Prefix + ".lock") }

// RecordKind classifies a mailbox file name.
type RecordKind string

const (
	KindTrigger        RecordKind = "trigger"
	KindBackup         RecordKind = "backup"
	KindAck            RecordKind = "ack"
	KindResponse       RecordKind = "response"
	KindLegacyResponse RecordKind = "legacy_response"
	KindHeartbeat      RecordKind = "heartbeat"
	KindSpeechTrigger  RecordKind = "speech_trigger"
	KindSpeechResponse RecordKind = "speech_response"
)

// Classify returns the record kind of a base file name, or "" when the name
// does not belong to this mailbox.
func (l Layout) Classify(name string) RecordKind {
	if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
		return ""
	}
	stem := strings.TrimSuffix(name, ".json")
	for _, prefix := range l.responsePrefixes() {
		switch {
		case stem == prefix+"_response":
			return KindLegacyResponse
		case strings.HasPrefix(stem, prefix+"_response_"):
			return KindResponse
		}
	}
	p := l.Prefix + "_"
	if !strings.HasPrefix(stem, p) {
		return ""
	}
	rest := strings.TrimPrefix(stem, p)
	switch {
	case rest == "trigger":
		return KindTrigger
	case strings.HasPrefix(rest, "trigger_"):
		return KindBackup
	case strings.HasPrefix(rest, "ack_"):
		return KindAck
	case rest == "heartbeat":
		return KindHeartbeat
	case strings.HasPrefix(rest, "speech_trigger_"):
		return KindSpeechTrigger
	case strings.HasPrefix(rest, "speech_response_"):
		return KindSpeechResponse
	}
	return ""
}

// Entry describes one record currently present in the mailbox.
type Entry struct {
	Name    string
	Kind    RecordKind
	Size    int64
	ModTime time.Time
}

// List returns every record in the mailbox directory that belongs to this
// layout, sorted by modification time.
func (l Layout) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("read mailbox dir: %w", err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		kind := l.Classify(de.Name())
		if kind == "" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Consumed between ReadDir and Info.
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Kind: kind, Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ModTime.Before(entries[j].ModTime)
	})
	return entries, nil
}
