package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"reviewgate/internal/daemon"
	"reviewgate/internal/gate"
	"reviewgate/internal/logging"
)

// ServiceName is the JSON-RPC service prefix.
const ServiceName = "ReviewGate"

// closeGrace bounds how long Close waits for in-flight replies before
// dropping client connections.
const closeGrace = 2 * time.Second

const defaultHistoryLimit = 20

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

// Close stops the server and removes the socket file. Pending calls are
// cancelled and get closeGrace to reply before their connections drop.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeGrace):
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		<-done
	}

	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Ask(req AskRequest, resp *AskResponse) error {
	kind, err := gate.ParseKind(req.Kind)
	if err != nil {
		return err
	}
	payload := make(map[string]any, len(req.Payload)+1)
	for k, v := range req.Payload {
		payload[k] = v
	}
	if msg := strings.TrimSpace(req.Message); msg != "" {
		payload["message"] = msg
	}
	s.logger.Debug("ask requested", logging.RequestKind(string(kind)))

	res, err := s.daemon.Service().Ask(s.ctx, gate.Request{
		Kind:    kind,
		Payload: payload,
		Timeout: time.Duration(req.TimeoutSeconds) * time.Second,
	})
	resp.Result = res
	return err
}

func (s *service) Shutdown(req ShutdownRequest, resp *ShutdownResponse) error {
	s.logger.Info("shutdown confirmation requested",
		logging.String(logging.FieldEventType, "shutdown_requested"),
		logging.String("reason", req.Reason))
	decision, err := s.daemon.Service().RequestShutdown(s.ctx, req.Reason, time.Duration(req.TimeoutSeconds)*time.Second)
	resp.Decision = decision
	return err
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.Gate.PID
	resp.SessionID = status.SessionID
	resp.MailboxDir = status.Gate.MailboxDir
	resp.LockPath = status.LockPath
	resp.JournalPath = status.JournalPath
	resp.Pending = status.Gate.Pending
	resp.LegacyWaiters = status.Gate.LegacyWaiters
	resp.ShutdownRequested = status.Gate.ShutdownRequested
	resp.ShutdownReason = status.Gate.ShutdownReason
	resp.JournalStats = status.JournalStats
	if hb := status.Heartbeat; hb != nil {
		resp.Heartbeat = &HeartbeatStatus{Beat: hb.Record.Beat, Timestamp: hb.Record.Timestamp, Age: hb.Age}
	}
	resp.Dependencies = make([]DependencyStatus, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Resolved:    dep.Resolved,
			Detail:      dep.Detail,
		})
	}
	resp.Paths = make([]PathCheck, 0, len(status.Paths))
	for _, check := range status.Paths {
		resp.Paths = append(resp.Paths, PathCheck{Name: check.Name, Passed: check.Passed, Detail: check.Detail})
	}
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if req.Speech {
		jobs, err := s.daemon.SpeechJobs(s.ctx, limit)
		if err != nil {
			return err
		}
		resp.Speech = make([]SpeechEntry, 0, len(jobs))
		for _, job := range jobs {
			resp.Speech = append(resp.Speech, SpeechEntry{
				TriggerID:  job.TriggerID,
				Success:    job.Success,
				Error:      job.Error,
				Chars:      job.Chars,
				Source:     job.Source,
				RecordedAt: job.RecordedAt,
			})
		}
		return nil
	}

	rows, err := s.daemon.History(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Requests = make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		resp.Requests = append(resp.Requests, HistoryEntry{
			CorrelationID: row.CorrelationID,
			Kind:          row.Kind,
			State:         row.State,
			CreatedAt:     row.CreatedAt,
			CompletedAt:   row.CompletedAt,
			Acked:         row.Acked,
			ResponseText:  row.ResponseText,
			Attachments:   row.Attachments,
			LegacySlot:    row.LegacySlot,
		})
	}
	return nil
}
