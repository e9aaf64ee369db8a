package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reviewgate/internal/gate"
	"reviewgate/internal/ipc"
	"reviewgate/internal/mailbox"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var timeoutSeconds int
	var jsonOutput bool
	var title string

	cmd := &cobra.Command{
		Use:   "ask [message...]",
		Short: "Open a review popup in the editor and wait for the reply",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := gate.ParseKind(kind); err != nil {
				return err
			}
			req := ipc.AskRequest{
				Kind:           kind,
				Message:        strings.Join(args, " "),
				TimeoutSeconds: timeoutSeconds,
			}
			if t := strings.TrimSpace(title); t != "" {
				req.Payload = map[string]any{"title": t}
			}

			var resp *ipc.AskResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				var callErr error
				resp, callErr = client.Ask(req)
				return callErr
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp.Result)
			}

			out := cmd.OutOrStdout()
			res := resp.Result
			switch res.Outcome {
			case mailbox.OutcomeFulfilled:
				fmt.Fprintln(out, res.Summary)
				return nil
			case mailbox.OutcomeTimedOut:
				return &exitError{
					code: exitTimedOut,
					err:  fmt.Errorf("no reply within the deadline (request %s, acknowledged: %s)", res.CorrelationID, yesNo(res.Acked)),
				}
			default:
				return fmt.Errorf("request %s %s", res.CorrelationID, res.Outcome)
			}
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", string(gate.KindChat), "Request kind (chat, quick, file, ingest)")
	cmd.Flags().IntVarP(&timeoutSeconds, "timeout", "t", 0, "Seconds to wait; defaults to the kind's configured timeout")
	cmd.Flags().StringVar(&title, "title", "", "Popup title")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the full result as JSON")
	return cmd
}

func newShutdownCommand(ctx *commandContext) *cobra.Command {
	var timeoutSeconds int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "shutdown [reason...]",
		Short: "Ask the user to confirm stopping the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.ShutdownRequest{Reason: strings.Join(args, " "), TimeoutSeconds: timeoutSeconds}
			var resp *ipc.ShutdownResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				var callErr error
				resp, callErr = client.Shutdown(req)
				return callErr
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp.Decision)
			}

			out := cmd.OutOrStdout()
			d := resp.Decision
			switch d.Decision {
			case gate.DecisionConfirmed:
				fmt.Fprintf(out, "Shutdown confirmed (%s)\n", d.Reply)
			case gate.DecisionAlternative:
				fmt.Fprintln(out, "Shutdown cancelled; user replied:")
				fmt.Fprintln(out, d.Reply)
			default:
				fmt.Fprintln(out, "Shutdown cancelled; no confirmation before timeout")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&timeoutSeconds, "timeout", "t", 0, "Seconds to wait for confirmation")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the decision as JSON")
	return cmd
}
