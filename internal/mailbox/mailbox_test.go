package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"reviewgate/internal/logging"
)

const testInterval = 20 * time.Millisecond

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestLayout(t *testing.T) Layout {
	t.Helper()
	return Layout{Dir: t.TempDir(), Prefix: "review_gate", AltPrefix: "mcp", BackupCount: 3}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newWaiter(layout Layout, legacy, plain bool) *ResponseWaiter {
	return NewResponseWaiter(layout, ResponseOptions{
		Interval:        testInterval,
		LegacySlots:     legacy,
		AcceptPlainText: plain,
	}, nil, logging.NewNop())
}

func TestEmitWritesPrimaryAndBackups(t *testing.T) {
	layout := newTestLayout(t)
	em := NewEmitter(layout, "sess", logging.NewNop())

	ok := em.Emit(context.Background(), TriggerRecord{
		CorrelationID: "chat_1",
		Payload:       map[string]any{"tool": "review_gate_chat", "message": "hello"},
	})
	if !ok {
		t.Fatal("expected emit to succeed")
	}

	for i, path := range layout.TriggerPaths() {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		var doc triggerDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if doc.TriggerID != "chat_1" || doc.Data["trigger_id"] != "chat_1" {
			t.Fatalf("unexpected trigger id in %s: %+v", path, doc)
		}
		if doc.Data["message"] != "hello" || doc.System != SystemName || doc.SessionID != "sess" {
			t.Fatalf("unexpected payload in %s: %+v", path, doc)
		}
		if i == 0 && doc.BackupID != nil {
			t.Fatalf("primary must not carry backup_id")
		}
		if i > 0 && (doc.BackupID == nil || *doc.BackupID != i-1) {
			t.Fatalf("backup %d has backup_id %v", i-1, doc.BackupID)
		}
	}
}

func TestEmitFailsOnlyWhenEveryWriteFails(t *testing.T) {
	layout := newTestLayout(t)
	em := NewEmitter(layout, "", logging.NewNop())
	em.write = func(string, []byte) error { return errors.New("disk full") }
	if em.Emit(context.Background(), TriggerRecord{CorrelationID: "quick_1"}) {
		t.Fatal("expected emit to fail when every write fails")
	}

	em = NewEmitter(layout, "", logging.NewNop())
	primary := layout.TriggerPath()
	em.write = func(path string, data []byte) error {
		if path == primary {
			return errors.New("busy")
		}
		return os.WriteFile(path, data, 0o644)
	}
	if !em.Emit(context.Background(), TriggerRecord{CorrelationID: "quick_2"}) {
		t.Fatal("a single backup write should be enough")
	}
}

func TestEmitPrimaryConsumedImmediatelyIsSuccess(t *testing.T) {
	layout := newTestLayout(t)
	layout.BackupCount = 0
	em := NewEmitter(layout, "", logging.NewNop())
	em.write = func(path string, data []byte) error { return nil }
	if !em.Emit(context.Background(), TriggerRecord{CorrelationID: "file_1"}) {
		t.Fatal("vanished primary should count as consumed")
	}
}

func TestEmitEmptyPrimaryIsFailure(t *testing.T) {
	layout := newTestLayout(t)
	layout.BackupCount = 0
	em := NewEmitter(layout, "", logging.NewNop())
	em.write = func(path string, data []byte) error { return os.WriteFile(path, nil, 0o644) }
	if em.Emit(context.Background(), TriggerRecord{CorrelationID: "file_2"}) {
		t.Fatal("zero-length primary with no backups should fail")
	}
}

func TestAckWaitConsumesRecord(t *testing.T) {
	layout := newTestLayout(t)
	w := NewAckWaiter(layout, testInterval, nil, logging.NewNop())
	path := layout.AckPath("chat_7")
	writeJSON(t, path, AckRecord{TriggerID: "chat_7", Acknowledged: true})

	if !w.Wait(context.Background(), "chat_7", time.Second) {
		t.Fatal("expected ack")
	}
	if fileExists(path) {
		t.Fatal("ack record should be deleted after consumption")
	}
}

func TestAckMalformedLeftInPlace(t *testing.T) {
	layout := newTestLayout(t)
	w := NewAckWaiter(layout, testInterval, nil, logging.NewNop())
	path := layout.AckPath("chat_8")
	if err := os.WriteFile(path, []byte(`{"trigger_id": "chat_8", "ackno`), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, err := w.Check("chat_8")
	if ok || !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected malformed, got ok=%v err=%v", ok, err)
	}
	if !fileExists(path) {
		t.Fatal("malformed ack must stay for the next tick")
	}
	if w.Wait(context.Background(), "chat_8", 3*testInterval) {
		t.Fatal("malformed ack must not satisfy the wait")
	}
}

func TestResponsePreexistingReturnsQuickly(t *testing.T) {
	layout := newTestLayout(t)
	w := newWaiter(layout, true, false)
	path := layout.ResponseSlots("chat_9", false)[0].Path
	writeJSON(t, path, map[string]any{"trigger_id": "chat_9", "user_input": "looks good"})

	start := time.Now()
	resp, outcome := w.Wait(context.Background(), "chat_9", 5*time.Second)
	if outcome != OutcomeFulfilled {
		t.Fatalf("expected fulfilled, got %s", outcome)
	}
	if elapsed := time.Since(start); elapsed > 2*testInterval {
		t.Fatalf("pre-existing response took %s", elapsed)
	}
	if resp.Text != "looks good" || resp.Path != path {
		t.Fatalf("unexpected response %+v", resp)
	}
	if fileExists(path) {
		t.Fatal("consumed response must be deleted")
	}
}

func TestResponseTimeoutAccuracy(t *testing.T) {
	w := newWaiter(newTestLayout(t), true, false)
	timeout := 150 * time.Millisecond

	start := time.Now()
	_, outcome := w.Wait(context.Background(), "quick_1", timeout)
	elapsed := time.Since(start)

	if outcome != OutcomeTimedOut {
		t.Fatalf("expected timed_out, got %s", outcome)
	}
	if elapsed < timeout || elapsed > timeout+testInterval+50*time.Millisecond {
		t.Fatalf("timeout drifted: %s", elapsed)
	}
}

func TestResponseEmptyTextNeverSatisfies(t *testing.T) {
	layout := newTestLayout(t)
	w := newWaiter(layout, false, false)
	path := layout.ResponseSlots("chat_10", false)[0].Path
	writeJSON(t, path, map[string]any{"trigger_id": "chat_10", "user_input": "   "})

	_, outcome := w.Wait(context.Background(), "chat_10", 5*testInterval)
	if outcome != OutcomeTimedOut {
		t.Fatalf("expected timed_out, got %s", outcome)
	}
	if !fileExists(path) {
		t.Fatal("not-yet-ready record must be left in place")
	}

	writeJSON(t, path, map[string]any{"trigger_id": "chat_10", "user_input": "done"})
	resp, outcome := w.Wait(context.Background(), "chat_10", time.Second)
	if outcome != OutcomeFulfilled || resp.Text != "done" {
		t.Fatalf("expected rewrite to satisfy wait, got %s %+v", outcome, resp)
	}
}

func TestResponseKeyedIsolation(t *testing.T) {
	layout := newTestLayout(t)
	w := newWaiter(layout, true, false)

	c1Path := layout.ResponseSlots("chat_1", false)[0].Path
	writeJSON(t, c1Path, map[string]any{"trigger_id": "chat_1", "user_input": "for c1"})
	legacy := filepath.Join(layout.Dir, "review_gate_response.json")
	writeJSON(t, legacy, map[string]any{"trigger_id": "chat_1", "user_input": "legacy for c1"})

	_, outcome := w.Wait(context.Background(), "chat_2", 4*testInterval)
	if outcome != OutcomeTimedOut {
		t.Fatalf("c2 must not receive c1's response, got %s", outcome)
	}
	if !fileExists(c1Path) || !fileExists(legacy) {
		t.Fatal("c1 records must be left for their owner")
	}

	resp, outcome := w.Wait(context.Background(), "chat_1", time.Second)
	if outcome != OutcomeFulfilled || resp.Text != "for c1" {
		t.Fatalf("unexpected c1 result %s %+v", outcome, resp)
	}
}

func TestResponseConcurrentWaitersKeepTheirOwn(t *testing.T) {
	layout := newTestLayout(t)
	w := newWaiter(layout, true, false)

	ids := []string{"chat_100", "chat_101", "chat_102"}
	results := make([]Response, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = w.Wait(context.Background(), id, 2*time.Second)
		}()
	}
	for _, id := range ids {
		writeJSON(t, layout.ResponseSlots(id, false)[0].Path, map[string]any{"trigger_id": id, "user_input": "reply " + id})
	}
	wg.Wait()

	for i, id := range ids {
		if results[i].Text != "reply "+id {
			t.Fatalf("waiter %s got %q", id, results[i].Text)
		}
	}
}

func TestLegacySlotSingleConsumerFIFO(t *testing.T) {
	layout := newTestLayout(t)
	w := newWaiter(layout, true, false)

	releaseFirst := w.Register("chat_1")
	releaseSecond := w.Register("chat_2")
	defer releaseSecond()

	legacy := filepath.Join(layout.Dir, "mcp_response.json")
	writeJSON(t, legacy, map[string]any{"response": "generic"})

	if _, ok := w.Check("chat_2"); ok {
		t.Fatal("newer waiter must not claim a legacy record")
	}
	resp, ok := w.Check("chat_1")
	if !ok || resp.Text != "generic" || !resp.Legacy || resp.CorrelationID != "chat_1" {
		t.Fatalf("oldest waiter should claim legacy record, got %v %+v", ok, resp)
	}
	releaseFirst()

	writeJSON(t, legacy, map[string]any{"message": "next"})
	resp, ok = w.Check("chat_2")
	if !ok || resp.Text != "next" {
		t.Fatalf("after release the next waiter is eligible, got %v %+v", ok, resp)
	}
}

func TestTaggedLegacyRecordReachesItsOwner(t *testing.T) {
	layout := newTestLayout(t)
	w := newWaiter(layout, true, false)

	defer w.Register("chat_1")()
	legacy := filepath.Join(layout.Dir, "review_gate_response.json")
	writeJSON(t, legacy, map[string]any{"trigger_id": "chat_2", "user_input": "for two"})

	resp, outcome := w.Wait(context.Background(), "chat_2", 10*testInterval)
	if outcome != OutcomeFulfilled || resp.Text != "for two" || !resp.Legacy || resp.CorrelationID != "chat_2" {
		t.Fatalf("tagged legacy record should reach its owner behind the queue head, got %s %+v", outcome, resp)
	}
	if fileExists(legacy) {
		t.Fatal("claimed legacy record must be deleted")
	}

	writeJSON(t, legacy, map[string]any{"trigger_id": "chat_1", "user_input": "for one"})
	if _, ok := w.Check("chat_3"); ok {
		t.Fatal("record tagged for another id must not be claimed")
	}
	if !fileExists(legacy) {
		t.Fatal("mismatched record must be left in place")
	}
}

func TestLegacySlotsDisabled(t *testing.T) {
	layout := newTestLayout(t)
	w := newWaiter(layout, false, false)
	defer w.Register("chat_1")()

	writeJSON(t, filepath.Join(layout.Dir, "review_gate_response.json"), map[string]any{"user_input": "generic"})
	if _, ok := w.Check("chat_1"); ok {
		t.Fatal("legacy slot must be ignored when disabled")
	}
}

func TestMalformedResponseLeftInPlace(t *testing.T) {
	layout := newTestLayout(t)
	path := layout.ResponseSlots("chat_3", false)[0].Path
	if err := os.WriteFile(path, []byte("plain words"), 0o644); err != nil {
		t.Fatal(err)
	}

	strict := newWaiter(layout, false, false)
	if _, ok := strict.Check("chat_3"); ok {
		t.Fatal("plain text must be malformed by default")
	}
	if !fileExists(path) {
		t.Fatal("malformed record must be left in place")
	}

	lenient := newWaiter(layout, false, true)
	resp, ok := lenient.Check("chat_3")
	if !ok || resp.Text != "plain words" {
		t.Fatalf("plain text should be accepted when enabled, got %v %+v", ok, resp)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		plain   bool
		text    string
		wantErr error
	}{
		{name: "user_input wins", input: `{"user_input":"a","response":"b","message":"c"}`, text: "a"},
		{name: "response before message", input: `{"response":"b","message":"c"}`, text: "b"},
		{name: "message fallback", input: `{"message":" c "}`, text: "c"},
		{name: "present but empty user_input", input: `{"user_input":"","response":"b"}`, text: ""},
		{name: "no text keys", input: `{"trigger_id":"x"}`, wantErr: ErrMalformedRecord},
		{name: "no text keys lenient", input: `{"trigger_id":"x"}`, plain: true, text: ""},
		{name: "truncated json", input: `{"user_input":"a`, plain: true, wantErr: ErrMalformedRecord},
		{name: "plain strict", input: "yes", wantErr: ErrMalformedRecord},
		{name: "plain lenient", input: "  yes \n", plain: true, text: "yes"},
		{name: "empty file", input: "", text: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse([]byte(tt.input), tt.plain)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Text != tt.text {
				t.Fatalf("text = %q, want %q", resp.Text, tt.text)
			}
		})
	}
}

func TestResponseSummaryAndAttachmentBytes(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	resp := Response{
		Text: "see screenshot",
		Attachments: []Attachment{
			{FileName: "shot.png", MimeType: "image/png", Base64Data: base64.StdEncoding.EncodeToString(raw)},
			{FileName: "notes.txt", MimeType: "text/plain", Base64Data: base64.StdEncoding.EncodeToString([]byte("n"))},
		},
	}
	if got := resp.Summary(); got != "see screenshot\n\nAttached: Image: shot.png" {
		t.Fatalf("summary = %q", got)
	}
	decoded, err := resp.Attachments[0].Bytes()
	if err != nil || string(decoded) != string(raw) {
		t.Fatalf("Bytes() = %v, %v", decoded, err)
	}
	if _, err := (Attachment{FileName: "bad", Base64Data: "!!"}).Bytes(); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestIDGeneratorStrictlyIncreasing(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	g := &IDGenerator{now: func() time.Time { return fixed }}

	first := g.Next("chat")
	second := g.Next("quick")
	if first != "chat_1700000000000" || second != "quick_1700000000001" {
		t.Fatalf("unexpected ids %s %s", first, second)
	}

	kind, millis, ok := ParseID(second)
	if !ok || kind != "quick" || millis != 1_700_000_000_001 {
		t.Fatalf("ParseID(%s) = %s %d %v", second, kind, millis, ok)
	}
	if _, _, ok := ParseID("nounderscore"); ok {
		t.Fatal("expected parse failure")
	}
}

func TestIDGeneratorConcurrentUnique(t *testing.T) {
	g := NewIDGenerator()
	var mu sync.Mutex
	seen := map[string]struct{}{}
	var wg sync.WaitGroup
	for _i := 0; _i < 16; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _i := 0; _i < 50; _i++ {
				id := g.Next("chat")
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 16*50 {
		t.Fatalf("expected %d unique ids, got %d", 16*50, len(seen))
	}
}

func TestLayoutClassifyAndList(t *testing.T) {
	layout := newTestLayout(t)
	cases := map[string]RecordKind{
		"review_gate_trigger.json":                 KindTrigger,
		"review_gate_trigger_2.json":               KindBackup,
		"review_gate_ack_chat_1.json":              KindAck,
		"review_gate_response_chat_1.json":         KindResponse,
		"mcp_response_chat_1.json":                 KindResponse,
		"review_gate_response.json":                KindLegacyResponse,
		"mcp_response.json":                        KindLegacyResponse,
		"review_gate_heartbeat.json":               KindHeartbeat,
		"review_gate_speech_trigger_abc.json":      KindSpeechTrigger,
		"review_gate_speech_response_voice_1.json": KindSpeechResponse,
		"unrelated.json":                           "",
		".review_gate_trigger.json.tmp-1":          "",
	}
	for name, want := range cases {
		if got := layout.Classify(name); got != want {
			t.Errorf("Classify(%s) = %q, want %q", name, got, want)
		}
		if err := os.WriteFile(filepath.Join(layout.Dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := layout.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != len(cases)-2 {
		t.Fatalf("expected %d entries, got %d", len(cases)-2, len(entries))
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name, "unrelated") {
			t.Fatalf("unrelated file listed: %s", e.Name)
		}
	}
}

func TestNotifierWakesSubscribers(t *testing.T) {
	layout := newTestLayout(t)
	n, err := NewNotifier(layout, logging.NewNop())
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	wake, unsubscribe := n.Subscribe()
	defer unsubscribe()

	writeJSON(t, layout.AckPath("chat_1"), AckRecord{TriggerID: "chat_1"})
	select {
	case <-wake:
	case <-time.After(2 * time.Second):
		t.Fatal("expected wake-up after mailbox write")
	}
}

func TestPollCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := Poll(ctx, testInterval, time.Now().Add(time.Second), nil, func() bool { return false })
	if outcome != OutcomeCancelled {
		t.Fatalf("expected cancelled, got %s", outcome)
	}
}
