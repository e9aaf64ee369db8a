package daemon_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"reviewgate/internal/daemon"
	"reviewgate/internal/gate"
	"reviewgate/internal/logging"
	"reviewgate/internal/mailbox"
	"reviewgate/internal/testsupport"
)

func newDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Daemon, *testsupport.Frontend) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	d, err := daemon.New(cfg, "session-1", logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, testsupport.NewFrontend(t, cfg)
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.SessionID != "session-1" {
		t.Fatalf("unexpected status %+v", status)
	}
	for _, check := range status.Paths {
		if !check.Passed {
			t.Fatalf("path check failed: %+v", check)
		}
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondDaemonOnSameMailboxIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := daemon.New(cfg, "a", logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer first.Close()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}

	other := *cfg
	other.Paths.LogDir = t.TempDir()
	second, err := daemon.New(&other, "b", logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer second.Close()
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestStartRejectsMissingMailbox(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, "a", logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer d.Close()
	if err := os.RemoveAll(cfg.Paths.MailboxDir); err != nil {
		t.Fatalf("remove mailbox: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail without a mailbox directory")
	}
	if d.Status(context.Background()).Running {
		t.Fatal("daemon should not report running")
	}
}

func TestRunRequiresStart(t *testing.T) {
	d, _ := newDaemon(t)
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected error when running before start")
	}
}

func TestRunStopsOnContextAndWritesHeartbeat(t *testing.T) {
	d, _ := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for d.Status(ctx).Heartbeat == nil {
		if time.Now().After(deadline) {
			t.Fatal("heartbeat never written")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if hb := d.Status(ctx).Heartbeat; hb.Record.SessionID != "session-1" || hb.Record.System != mailbox.SystemName {
		t.Fatalf("unexpected heartbeat %+v", hb.Record)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

func TestConfirmedShutdownEndsRun(t *testing.T) {
	d, frontend := newDaemon(t, testsupport.WithFsnotify())
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	go func() {
		id := frontend.WaitTrigger(2 * time.Second)
		if id != "" {
			frontend.Respond(id, map[string]any{"user_input": "CONFIRM"})
		}
	}()
	decision, err := d.Service().RequestShutdown(ctx, "tests finished", 2*time.Second)
	if err != nil {
		t.Fatalf("request shutdown: %v", err)
	}
	if decision.Decision != gate.DecisionConfirmed {
		t.Fatalf("unexpected decision %+v", decision)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after confirmed shutdown")
	}
	if _, err := os.Stat(d.Service().Layout().TriggerPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected trigger cleaned up, stat err %v", err)
	}

	history, err := d.History(ctx, 5)
	if err != nil || len(history) != 1 || history[0].Kind != string(gate.KindConfirm) {
		t.Fatalf("unexpected history %+v err %v", history, err)
	}
}
