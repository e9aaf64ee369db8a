package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"reviewgate/internal/config"
	"reviewgate/internal/journal"
	"reviewgate/internal/logging"
	"reviewgate/internal/mailbox"
	"reviewgate/internal/metrics"
	"reviewgate/internal/notifications"
	"reviewgate/internal/shutdown"
)

// ErrNoShutdownCoordinator is returned by RequestShutdown when the service
// was built without a coordinator.
var ErrNoShutdownCoordinator = errors.New("gate: no shutdown coordinator configured")

// Recorder persists request lifecycle events. The journal implements it.
type Recorder interface {
	RecordEmitted(ctx context.Context, id, kind string, createdAt time.Time) error
	RecordAck(ctx context.Context, id string) error
	RecordOutcome(ctx context.Context, id string, out journal.Outcome) error
}

// Dependencies are optional collaborators; zero values disable them.
type Dependencies struct {
	SessionID string
	Notifier  *mailbox.Notifier
	Metrics   *metrics.Metrics
	Recorder  Recorder
	Shutdown  *shutdown.Coordinator
	Alerts    *notifications.Dispatcher
}

// Request is one question for the frontend.
type Request struct {
	Kind    Kind
	Payload map[string]any
	// Timeout overrides the kind's default when positive.
	Timeout time.Duration
}

// Result is the terminal state of a request.
type Result struct {
	CorrelationID string          `json:"correlation_id"`
	Kind          Kind            `json:"kind"`
	Outcome       mailbox.Outcome `json:"outcome"`
	Acked         bool            `json:"acked"`
	Text          string          `json:"text,omitempty"`
	// Summary is Text followed by a line naming image attachments.
	Summary     string               `json:"summary,omitempty"`
	Attachments []mailbox.Attachment `json:"attachments,omitempty"`
	LegacySlot  bool                 `json:"legacy_slot,omitempty"`
	Elapsed     time.Duration        `json:"elapsed"`
}

// Fulfilled reports whether a non-empty response arrived.
func (r Result) Fulfilled() bool { return r.Outcome == mailbox.OutcomeFulfilled }

type inflight struct {
	kind    Kind
	emitted time.Time
}

// Service composes the mailbox primitives into request lifecycles.
type Service struct {
	cfg       *config.Config
	layout    mailbox.Layout
	emitter   *mailbox.Emitter
	acks      *mailbox.AckWaiter
	responses *mailbox.ResponseWaiter
	ids       *mailbox.IDGenerator
	deps      Dependencies
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]inflight
}

// New wires a service from configuration.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Service {
	layout := mailbox.NewLayout(cfg)
	logger = logging.NewComponentLogger(logger, "gate")
	return &Service{
		cfg:     cfg,
		layout:  layout,
		emitter: mailbox.NewEmitter(layout, deps.SessionID, logger),
		acks:    mailbox.NewAckWaiter(layout, cfg.PollInterval(), deps.Notifier, logger),
		responses: mailbox.NewResponseWaiter(layout, mailbox.ResponseOptions{
			Interval:        cfg.PollInterval(),
			LegacySlots:     cfg.Mailbox.LegacySlots,
			AcceptPlainText: cfg.Mailbox.AcceptPlainText,
		}, deps.Notifier, logger),
		ids:     mailbox.NewIDGenerator(),
		deps:    deps,
		logger:  logger,
		pending: make(map[string]inflight),
	}
}

// Layout exposes the mailbox layout the service writes to.
func (s *Service) Layout() mailbox.Layout { return s.layout }

// EmitRequest publishes a trigger for kind and returns its correlation id.
// The error wraps mailbox.ErrEmitFailed when no trigger copy could be written.
func (s *Service) EmitRequest(ctx context.Context, kind Kind, payload map[string]any) (string, error) {
	if _, ok := toolNames[kind]; !ok {
		return "", fmt.Errorf("emit request: unknown kind %q", kind)
	}
	id := s.ids.Next(string(kind))
	now := time.Now()

	data := make(map[string]any, len(payload)+1)
	maps.Copy(data, payload)
	if _, ok := data["tool"]; !ok {
		data["tool"] = kind.Tool()
	}

	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.RecordEmitted(ctx, id, string(kind), now); err != nil {
			s.logger.Debug("journal emit", logging.Error(err))
		}
	}

	if !s.emitter.Emit(ctx, mailbox.TriggerRecord{CorrelationID: id, CreatedAt: now, Payload: data}) {
		s.deps.Metrics.EmitFailed(string(kind))
		s.recordOutcome(ctx, id, journal.Outcome{State: journal.StateEmitFailed})
		return id, fmt.Errorf("emit %s: %w", id, mailbox.ErrEmitFailed)
	}

	s.mu.Lock()
	s.pending[id] = inflight{kind: kind, emitted: now}
	s.mu.Unlock()
	s.deps.Metrics.RequestEmitted(string(kind))
	summary, _ := data["message"].(string)
	s.deps.Alerts.Publish(notifications.EventRequestWaiting, notifications.Payload{
		"id":      id,
		"kind":    string(kind),
		"summary": truncate(summary, 200),
	})
	return id, nil
}

// AwaitResult waits for the acknowledgement and the response of id. Both
// share one deadline, timeout, or the kind's default when timeout is not
// positive. A response also counts as the acknowledgement. An error is
// returned only for an empty id or when ctx ends first.
func (s *Service) AwaitResult(ctx context.Context, id string, timeout time.Duration) (Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Result{}, errors.New("await result: correlation id required")
	}
	kind := s.kindOf(id)
	if timeout <= 0 {
		timeout = kind.Timeout(s.cfg)
	}
	ctx = logging.WithRequestKind(logging.WithCorrelationID(ctx, id), string(kind))
	logger := logging.WithContext(ctx, s.logger)

	start := time.Now()
	var acked atomic.Bool
	markAcked := func() {
		if !acked.CompareAndSwap(false, true) {
			return
		}
		s.deps.Metrics.AckReceived(string(kind))
		if s.deps.Recorder != nil {
			if err := s.deps.Recorder.RecordAck(context.WithoutCancel(ctx), id); err != nil {
				logger.Debug("journal ack", logging.Error(err))
			}
		}
	}

	// The ack is awaited alongside the response so that a silent frontend
	// never delays a reply that is already there.
	ackCtx, stopAck := context.WithCancel(ctx)
	ackDone := make(chan struct{})
	go func() {
		defer close(ackDone)
		if s.acks.Wait(ackCtx, id, min(s.cfg.AckTimeout(), timeout)) {
			logger.Info("request acknowledged", logging.Duration("after", time.Since(start)))
			markAcked()
		}
	}()

	resp, outcome := s.responses.Wait(ctx, id, timeout)
	stopAck()
	<-ackDone

	res := Result{CorrelationID: id, Kind: kind, Outcome: outcome, Elapsed: time.Since(start)}
	switch outcome {
	case mailbox.OutcomeFulfilled:
		markAcked()
		res.Text = resp.Text
		res.Summary = resp.Summary()
		res.Attachments = resp.Attachments
		res.LegacySlot = resp.Legacy
		fallthrough
	case mailbox.OutcomeTimedOut:
		// An ack that arrived after the ack wait gave up would otherwise linger.
		if ok, err := s.acks.Check(id); ok {
			markAcked()
		} else if err != nil {
			logger.Debug("late ack check", logging.Error(err))
		}
	}
	res.Acked = acked.Load()

	s.finish(ctx, logger, res)
	if res.Outcome == mailbox.OutcomeCancelled {
		return res, fmt.Errorf("await %s: %w", id, context.Cause(ctx))
	}
	return res, nil
}

func (s *Service) finish(ctx context.Context, logger *slog.Logger, res Result) {
	s.mu.Lock()
	entry, tracked := s.pending[res.CorrelationID]
	delete(s.pending, res.CorrelationID)
	s.mu.Unlock()

	if tracked {
		s.deps.Metrics.RequestFinished(string(res.Kind), string(res.Outcome), time.Since(entry.emitted))
	}
	s.recordOutcome(context.WithoutCancel(ctx), res.CorrelationID, journal.Outcome{
		State:       string(res.Outcome),
		Text:        res.Text,
		Attachments: len(res.Attachments),
		LegacySlot:  res.LegacySlot,
	})

	switch res.Outcome {
	case mailbox.OutcomeFulfilled:
		logger.Info("request fulfilled",
			logging.Duration("elapsed", res.Elapsed),
			logging.Bool("acked", res.Acked),
			logging.Int("attachments", len(res.Attachments)),
		)
	case mailbox.OutcomeTimedOut:
		logging.WarnWithContext(logger, "request timed out", "request_timeout",
			logging.Duration("elapsed", res.Elapsed),
			logging.Bool("acked", res.Acked),
			logging.String(logging.FieldImpact, "caller receives no answer"),
			logging.String(logging.FieldErrorHint, "retry with a fresh request"),
		)
		s.deps.Alerts.Publish(notifications.EventRequestTimedOut, notifications.Payload{
			"id":   res.CorrelationID,
			"kind": string(res.Kind),
		})
	default:
		logger.Info("request cancelled", logging.Duration("elapsed", res.Elapsed))
	}
}

func (s *Service) recordOutcome(ctx context.Context, id string, out journal.Outcome) {
	if s.deps.Recorder == nil {
		return
	}
	if err := s.deps.Recorder.RecordOutcome(ctx, id, out); err != nil {
		s.logger.Debug("journal outcome", logging.CorrelationID(id), logging.Error(err))
	}
}

// kindOf resolves the kind of id from the pending table or the id itself.
func (s *Service) kindOf(id string) Kind {
	s.mu.Lock()
	entry, ok := s.pending[id]
	s.mu.Unlock()
	if ok {
		return entry.kind
	}
	if prefix, _, parsed := mailbox.ParseID(id); parsed {
		if k, err := ParseKind(prefix); err == nil {
			return k
		}
	}
	return KindChat
}

// Ask emits req and waits for its result.
func (s *Service) Ask(ctx context.Context, req Request) (Result, error) {
	id, err := s.EmitRequest(ctx, req.Kind, req.Payload)
	if err != nil {
		return Result{CorrelationID: id, Kind: req.Kind}, err
	}
	return s.AwaitResult(ctx, id, req.Timeout)
}

// Pending describes a request still awaiting its result.
type Pending struct {
	CorrelationID string    `json:"correlation_id"`
	Kind          Kind      `json:"kind"`
	EmittedAt     time.Time `json:"emitted_at"`
}

// Status is a snapshot of in-process request state.
type Status struct {
	SessionID         string    `json:"session_id"`
	PID               int       `json:"pid"`
	MailboxDir        string    `json:"mailbox_dir"`
	Pending           []Pending `json:"pending"`
	LegacyWaiters     int       `json:"legacy_waiters"`
	ShutdownRequested bool      `json:"shutdown_requested"`
	ShutdownReason    string    `json:"shutdown_reason,omitempty"`
}

// Status returns a snapshot for the control channel.
func (s *Service) Status() Status {
	st := Status{
		SessionID:     s.deps.SessionID,
		PID:           os.Getpid(),
		MailboxDir:    s.layout.Dir,
		LegacyWaiters: s.responses.LegacyWaiters(),
	}
	s.mu.Lock()
	for id, entry := range s.pending {
		st.Pending = append(st.Pending, Pending{CorrelationID: id, Kind: entry.kind, EmittedAt: entry.emitted})
	}
	s.mu.Unlock()
	sort.Slice(st.Pending, func(i, j int) bool { return st.Pending[i].EmittedAt.Before(st.Pending[j].EmittedAt) })
	if s.deps.Shutdown != nil {
		st.ShutdownRequested = s.deps.Shutdown.Requested()
		st.ShutdownReason = s.deps.Shutdown.Reason()
	}
	return st
}
