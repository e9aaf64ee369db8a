package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reviewgate/internal/config"
)

// Frontend plays the editor side of the mailbox in tests. Its methods report
// failures with Errorf so they may run on helper goroutines.
type Frontend struct {
	t   testing.TB
	cfg *config.Config
}

// NewFrontend returns a frontend bound to cfg's mailbox.
func NewFrontend(t testing.TB, cfg *config.Config) *Frontend {
	return &Frontend{t: t, cfg: cfg}
}

func (f *Frontend) path(name string) string {
	return filepath.Join(f.cfg.Paths.MailboxDir, name)
}

// WaitTrigger polls until the primary trigger exists and returns its
// trigger_id, failing the test after timeout.
func (f *Frontend) WaitTrigger(timeout time.Duration) string {
	f.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(f.path(f.cfg.Mailbox.Prefix + "_trigger.json"))
		if err == nil {
			var doc struct {
				TriggerID string `json:"trigger_id"`
			}
			if json.Unmarshal(data, &doc) == nil && doc.TriggerID != "" {
				return doc.TriggerID
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	f.t.Errorf("no trigger within %s", timeout)
	return ""
}

// Ack writes the acknowledgement for id.
func (f *Frontend) Ack(id string) {
	f.t.Helper()
	f.write(f.cfg.Mailbox.Prefix+"_ack_"+id+".json", map[string]any{"trigger_id": id, "acknowledged": true})
}

// Respond writes a keyed response for id.
func (f *Frontend) Respond(id string, fields map[string]any) {
	f.t.Helper()
	body := map[string]any{"trigger_id": id}
	for k, v := range fields {
		body[k] = v
	}
	f.write(f.cfg.Mailbox.Prefix+"_response_"+id+".json", body)
}

// write publishes atomically so the daemon never reads a partial record.
func (f *Frontend) write(name string, body any) {
	f.t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		f.t.Errorf("marshal %s: %v", name, err)
		return
	}
	tmp := f.path("." + name + ".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		f.t.Errorf("write %s: %v", name, err)
		return
	}
	if err := os.Rename(tmp, f.path(name)); err != nil {
		f.t.Errorf("rename %s: %v", name, err)
	}
}
