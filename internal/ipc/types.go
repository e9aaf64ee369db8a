package ipc

import (
	"time"

	"reviewgate/internal/gate"
)

// AskRequest emits one request and waits for its result.
type AskRequest struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
	// TimeoutSeconds overrides the kind's default when positive.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// AskResponse carries the terminal state of an asked request.
type AskResponse struct {
	Result gate.Result `json:"result"`
}

// ShutdownRequest asks the user to confirm a daemon shutdown.
type ShutdownRequest struct {
	Reason         string `json:"reason"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// ShutdownResponse reports how the confirmation resolved.
type ShutdownResponse struct {
	Decision gate.ShutdownDecision `json:"decision"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external tool.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Resolved    string `json:"resolved,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// PathCheck reports whether a directory reviewgate writes to is usable.
type PathCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// HeartbeatStatus summarizes the last liveness record.
type HeartbeatStatus struct {
	Beat      uint64        `json:"beat"`
	Timestamp string        `json:"timestamp"`
	Age       time.Duration `json:"age"`
}

// StatusResponse represents combined daemon and request state.
type StatusResponse struct {
	Running           bool               `json:"running"`
	PID               int                `json:"pid"`
	SessionID         string             `json:"session_id"`
	MailboxDir        string             `json:"mailbox_dir"`
	LockPath          string             `json:"lock_path"`
	JournalPath       string             `json:"journal_path"`
	Pending           []gate.Pending     `json:"pending"`
	LegacyWaiters     int                `json:"legacy_waiters"`
	ShutdownRequested bool               `json:"shutdown_requested"`
	ShutdownReason    string             `json:"shutdown_reason,omitempty"`
	Heartbeat         *HeartbeatStatus   `json:"heartbeat,omitempty"`
	JournalStats      map[string]int     `json:"journal_stats"`
	Dependencies      []DependencyStatus `json:"dependencies"`
	Paths             []PathCheck        `json:"paths"`
}

// HistoryRequest fetches journaled requests, newest first.
type HistoryRequest struct {
	Limit int `json:"limit"`
	// Speech selects transcription jobs instead of requests.
	Speech bool `json:"speech,omitempty"`
}

// HistoryEntry is one journaled request.
type HistoryEntry struct {
	CorrelationID string     `json:"correlation_id"`
	Kind          string     `json:"kind"`
	State         string     `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Acked         bool       `json:"acked"`
	ResponseText  string     `json:"response_text,omitempty"`
	Attachments   int        `json:"attachments"`
	LegacySlot    bool       `json:"legacy_slot"`
}

// SpeechEntry is one journaled transcription job.
type SpeechEntry struct {
	TriggerID  string    `json:"trigger_id"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Chars      int       `json:"chars"`
	Source     string    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
}

// HistoryResponse contains journal entries.
type HistoryResponse struct {
	Requests []HistoryEntry `json:"requests,omitempty"`
	Speech   []SpeechEntry  `json:"speech,omitempty"`
}
