package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reviewgate/internal/config"
)

const userAgent = "reviewgate/0.1.0"

// Event names a notification type.
type Event string

const (
	EventRequestWaiting    Event = "request_waiting"
	EventRequestTimedOut   Event = "request_timed_out"
	EventShutdownConfirmed Event = "shutdown_confirmed"
	EventSpeechFailed      Event = "speech_failed"
	EventTest              Event = "test"
)

// Payload carries event fields. Keys are event specific: "id", "kind",
// "summary", "reason", "error".
type Payload map[string]string

// Service publishes events. Implementations must be safe for concurrent use.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventRequestWaiting:    cfg.Notifications.RequestWaiting,
			EventRequestTimedOut:   cfg.Notifications.RequestTimedOut,
			EventShutdownConfirmed: cfg.Notifications.ShutdownConfirmed,
			EventSpeechFailed:      cfg.Notifications.SpeechFailed,
			EventTest:              true,
		},
	}
}

// Enabled reports whether svc delivers anywhere.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	if !n.enabled[event] {
		return nil
	}
	data, ok := format(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func format(event Event, fields Payload) (payload, bool) {
	get := func(key string) string { return strings.TrimSpace(fields[key]) }
	switch event {
	case EventRequestWaiting:
		message := fmt.Sprintf("Waiting for your reply to %s", get("id"))
		if summary := get("summary"); summary != "" {
			message += "\n" + summary
		}
		return payload{
			title:    "reviewgate - Reply Needed",
			message:  message,
			tags:     []string{"reviewgate", "request", orUnknown(get("kind"))},
			priority: "high",
		}, true
	case EventRequestTimedOut:
		return payload{
			title:   "reviewgate - Request Timed Out",
			message: fmt.Sprintf("No reply to %s (%s) before the deadline", get("id"), orUnknown(get("kind"))),
			tags:    []string{"reviewgate", "request", "timeout"},
		}, true
	case EventShutdownConfirmed:
		return payload{
			title:    "reviewgate - Shutdown Confirmed",
			message:  fmt.Sprintf("Shutdown confirmed: %s", orUnknown(get("reason"))),
			tags:     []string{"reviewgate", "shutdown"},
			priority: "high",
		}, true
	case EventSpeechFailed:
		return payload{
			title:   "reviewgate - Transcription Failed",
			message: fmt.Sprintf("Speech job %s failed: %s", get("id"), orUnknown(get("error"))),
			tags:    []string{"reviewgate", "speech", "error"},
		}, true
	case EventTest:
		return payload{
			title:    "reviewgate - Test",
			message:  "Notification system test",
			tags:     []string{"reviewgate", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
