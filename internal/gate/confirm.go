package gate

import (
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reviewgate/internal/logging"
	"reviewgate/internal/mailbox"
	"reviewgate/internal/notifications"
)

// Shutdown decisions.
const (
	DecisionConfirmed = "confirmed"
	// DecisionAlternative means the user replied with something other than a
	// confirmation token; the reply is an instruction, not an error.
	DecisionAlternative = "alternative"
	DecisionTimedOut    = "timed_out"
)

// ShutdownDecision reports how a shutdown request was resolved.
type ShutdownDecision struct {
	CorrelationID string `json:"correlation_id"`
	Decision      string `json:"decision"`
	// Reply is the user's text; for DecisionAlternative it carries the
	// alternative instruction.
	Reply  string `json:"reply,omitempty"`
	Reason string `json:"reason"`
}

// Confirmed reports whether the shutdown signal was set.
func (d ShutdownDecision) Confirmed() bool { return d.Decision == DecisionConfirmed }

// RequestShutdown asks the user to confirm a shutdown. The shutdown signal is
// set only when the trimmed, upper-cased reply is one of the configured
// confirmation tokens; any other reply or a timeout cancels the shutdown.
func (s *Service) RequestShutdown(ctx context.Context, reason string, timeout time.Duration) (ShutdownDecision, error) {
	if s.deps.Shutdown == nil {
		return ShutdownDecision{}, ErrNoShutdownCoordinator
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "shutdown requested"
	}
	payload := map[string]any{
		"message": "Shutdown requested: " + reason + "\n\nReply " + strings.Join(s.cfg.Shutdown.ConfirmTokens, ", ") +
			" to confirm, or type alternative instructions.",
		"reason": reason,
	}
	res, err := s.Ask(ctx, Request{Kind: KindConfirm, Payload: payload, Timeout: timeout})
	decision := ShutdownDecision{CorrelationID: res.CorrelationID, Reason: reason}
	if err != nil {
		return decision, err
	}

	logger := s.logger.With(logging.CorrelationID(res.CorrelationID))
	if res.Outcome != mailbox.OutcomeFulfilled {
		decision.Decision = DecisionTimedOut
		s.deps.Metrics.ShutdownDecision(decision.Decision)
		logger.Info("shutdown cancelled: no confirmation before timeout")
		return decision, nil
	}

	reply := strings.TrimSpace(res.Text)
	decision.Reply = reply
	if s.isConfirmation(reply) {
		decision.Decision = DecisionConfirmed
		s.deps.Metrics.ShutdownDecision(decision.Decision)
		s.signalShutdown("User confirmed: " + reply)
		return decision, nil
	}

	decision.Decision = DecisionAlternative
	s.deps.Metrics.ShutdownDecision(decision.Decision)
	logger.Info("shutdown cancelled: alternative instruction received", logging.String("reply", truncate(reply, 100)))
	return decision, nil
}

func (s *Service) isConfirmation(reply string) bool {
	// Casers carry state, so one is built per call.
	token := cases.Upper(language.Und).String(strings.TrimSpace(reply))
	return slices.Contains(s.cfg.Shutdown.ConfirmTokens, token)
}

// signalShutdown is the only path that sets the shutdown signal.
func (s *Service) signalShutdown(reason string) {
	s.deps.Shutdown.Signal(reason)
	s.deps.Alerts.Publish(notifications.EventShutdownConfirmed, notifications.Payload{"reason": reason})
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
