package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reviewgate/internal/speech"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRequestLifecycle(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	created := time.Now().Add(-time.Minute)

	if err := j.RecordEmitted(ctx, "chat_1", "chat", created); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordEmitted(ctx, "quick_2", "quick", created.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordAck(ctx, "chat_1"); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordOutcome(ctx, "chat_1", Outcome{State: StateFulfilled, Text: "ok", Attachments: 1}); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordOutcome(ctx, "quick_2", Outcome{State: StateTimedOut}); err != nil {
		t.Fatal(err)
	}

	history, err := j.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].CorrelationID != "quick_2" || history[0].State != StateTimedOut || history[0].Acked {
		t.Fatalf("unexpected newest entry %+v", history[0])
	}
	chat := history[1]
	if !chat.Acked || chat.State != StateFulfilled || chat.ResponseText != "ok" || chat.Attachments != 1 || chat.CompletedAt == nil {
		t.Fatalf("unexpected chat entry %+v", chat)
	}

	stats, err := j.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats[StateFulfilled] != 1 || stats[StateTimedOut] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestMarkAbandonedAndPrune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	if err := j.RecordEmitted(ctx, "chat_old", "chat", old); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordEmitted(ctx, "chat_new", "chat", time.Now()); err != nil {
		t.Fatal(err)
	}
	n, err := j.MarkAbandoned(ctx)
	if err != nil || n != 2 {
		t.Fatalf("MarkAbandoned = %d, %v", n, err)
	}

	removed, err := j.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("Prune = %d, %v", removed, err)
	}
	history, _ := j.History(ctx, 10)
	if len(history) != 1 || history[0].CorrelationID != "chat_new" || history[0].State != StateCancelled {
		t.Fatalf("unexpected history after prune: %+v", history)
	}
}

func TestRecordSpeechJob(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	msg := "audio file not found"

	if err := j.RecordSpeechJob(ctx, speech.Result{TriggerID: "voice_1", Error: &msg, Source: "whisperx:base"}); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordSpeechJob(ctx, speech.Result{TriggerID: "voice_2", Success: true, Transcription: "hello"}); err != nil {
		t.Fatal(err)
	}

	jobs, err := j.SpeechJobs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].TriggerID != "voice_2" || !jobs[0].Success || jobs[0].Chars != 5 {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	if jobs[1].Success || jobs[1].Error != msg {
		t.Fatalf("unexpected failed job %+v", jobs[1])
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.RecordEmitted(context.Background(), "file_1", "file", time.Now()); err != nil {
		t.Fatal(err)
	}
	_ = j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	history, err := j.History(context.Background(), 5)
	if err != nil || len(history) != 1 {
		t.Fatalf("history after reopen: %v %v", history, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = j.Close()

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
