package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldSessionID identifies one daemon or CLI process lifetime.
	FieldSessionID = "session_id"
	// FieldPID is the operating system process id of the writer.
	FieldPID = "pid"
)

// sessionHandler stamps every record with the process session identity so
// lines from concurrent daemons sharing a mailbox can be told apart.
type sessionHandler struct {
	base      slog.Handler
	sessionID string
	pid       int
}

func newSessionHandler(base slog.Handler, sessionID string, pid int) slog.Handler {
	if base == nil {
		return nopHandler{}
	}
	return &sessionHandler{base: base, sessionID: sessionID, pid: pid}
}

func (h *sessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	if h.pid > 0 {
		record.AddAttrs(slog.Int(FieldPID, h.pid))
	}
	return h.base.Handle(ctx, record)
}

func (h *sessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionHandler{base: h.base.WithAttrs(attrs), sessionID: h.sessionID, pid: h.pid}
}

func (h *sessionHandler) WithGroup(name string) slog.Handler {
	return &sessionHandler{base: h.base.WithGroup(name), sessionID: h.sessionID, pid: h.pid}
}
