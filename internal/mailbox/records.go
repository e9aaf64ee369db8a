package mailbox

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SystemName identifies the writer in every record this package produces.
const SystemName = "reviewgate"

// TriggerRecord announces a new request to the frontend.
type TriggerRecord struct {
	CorrelationID string
	CreatedAt     time.Time
	Payload       map[string]any
}

// triggerDocument is the on-disk shape of a trigger or backup.
type triggerDocument struct {
	Timestamp string         `json:"timestamp"`
	System    string         `json:"system"`
	PID       int            `json:"pid"`
	SessionID string         `json:"session_id,omitempty"`
	TriggerID string         `json:"trigger_id"`
	BackupID  *int           `json:"backup_id,omitempty"`
	Data      map[string]any `json:"data"`
}

// AckRecord is written by the frontend once it has noticed a trigger.
type AckRecord struct {
	TriggerID    string `json:"trigger_id"`
	Acknowledged bool   `json:"acknowledged"`
}

// Attachment is a binary payload carried inline in a response.
type Attachment struct {
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	Base64Data string `json:"base64Data"`
}

// Bytes decodes the inline data.
func (a Attachment) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(a.Base64Data))
	if err != nil {
		return nil, fmt.Errorf("decode attachment %q: %w", a.FileName, err)
	}
	return data, nil
}

// IsImage reports whether the attachment carries an image MIME type.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.MimeType), "image/")
}

// Response is a consumed reply.
type Response struct {
	// CorrelationID is empty for generic records without a trigger_id.
	CorrelationID string
	Text          string
	Attachments   []Attachment
	// Path is the slot the record was consumed from.
	Path   string
	Legacy bool
}

// Summary returns the reply text followed by a line naming any image
// attachments, e.g. "Attached: Image: a.png, Image: b.png".
func (r Response) Summary() string {
	var names []string
	for _, att := range r.Attachments {
		if !att.IsImage() {
			continue
		}
		name := att.FileName
		if name == "" {
			name = "unknown"
		}
		names = append(names, "Image: "+name)
	}
	if len(names) == 0 {
		return r.Text
	}
	return r.Text + "\n\nAttached: " + strings.Join(names, ", ")
}

// responseDocument uses pointers so key presence, not value, drives precedence.
type responseDocument struct {
	TriggerID   string       `json:"trigger_id"`
	UserInput   *string      `json:"user_input"`
	Response    *string      `json:"response"`
	Message     *string      `json:"message"`
	Attachments []Attachment `json:"attachments"`
}

// ParseResponse extracts text and attachments from raw record content.
//
// Text comes from the first present key of user_input, response, message.
// Content that is not a JSON object, or an object with none of those keys,
// is ErrMalformedRecord unless acceptPlainText is set, in which case non-JSON
// content is the literal reply and a keyless object yields empty text.
// A JSON object that fails to decode is always malformed, since it is most
// likely mid-write.
func ParseResponse(data []byte, acceptPlainText bool) (Response, error) {
	content := bytes.TrimSpace(data)
	if len(content) == 0 {
		return Response{}, nil
	}
	if content[0] != '{' {
		if acceptPlainText {
			return Response{Text: string(content)}, nil
		}
		return Response{}, fmt.Errorf("%w: content is not a JSON object", ErrMalformedRecord)
	}

	var doc responseDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	resp := Response{CorrelationID: strings.TrimSpace(doc.TriggerID), Attachments: doc.Attachments}
	switch {
	case doc.UserInput != nil:
		resp.Text = *doc.UserInput
	case doc.Response != nil:
		resp.Text = *doc.Response
	case doc.Message != nil:
		resp.Text = *doc.Message
	default:
		if !acceptPlainText {
			return resp, fmt.Errorf("%w: no user_input, response or message key", ErrMalformedRecord)
		}
	}
	resp.Text = strings.TrimSpace(resp.Text)
	return resp, nil
}

// ParseAck decodes an acknowledgement record.
func ParseAck(data []byte) (AckRecord, error) {
	var ack AckRecord
	content := bytes.TrimSpace(data)
	if len(content) == 0 || content[0] != '{' {
		return ack, fmt.Errorf("%w: ack is not a JSON object", ErrMalformedRecord)
	}
	if err := json.Unmarshal(content, &ack); err != nil {
		return ack, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return ack, nil
}

// HeartbeatRecord is the liveness record body.
type HeartbeatRecord struct {
	Beat      uint64 `json:"beat"`
	Timestamp string `json:"timestamp"`
	PID       int    `json:"pid"`
	SessionID string `json:"session_id,omitempty"`
	System    string `json:"system"`
}

// Outcome is the terminal state of a wait.
type Outcome string

const (
	OutcomeFulfilled Outcome = "fulfilled"
	OutcomeTimedOut  Outcome = "timed_out"
	// OutcomeCancelled means the service context ended before a reply arrived.
	OutcomeCancelled Outcome = "cancelled"
)

// Timestamp formats t the way every record in the mailbox carries it.
func Timestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000000Z07:00")
}
