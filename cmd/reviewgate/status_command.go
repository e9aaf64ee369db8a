package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reviewgate/internal/config"
	"reviewgate/internal/heartbeat"
	"reviewgate/internal/ipc"
	"reviewgate/internal/mailbox"
	"reviewgate/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, heartbeat and request status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := ctx.ensureConfig()
			var status *ipc.StatusResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				var callErr error
				status, callErr = client.Status()
				return callErr
			})
			if err != nil && !errors.Is(err, errDaemonOffline) {
				return err
			}
			if jsonOutput {
				if status == nil {
					return writeJSON(cmd, map[string]any{"running": false})
				}
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			if status == nil {
				renderOfflineStatus(stdout, cfg, colorize)
				return nil
			}
			renderOnlineStatus(stdout, status, colorize)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

func renderOfflineStatus(out io.Writer, cfg *config.Config, colorize bool) {
	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "Not running", colorize))
	if cfg == nil {
		return
	}
	layout := mailbox.NewLayout(cfg)
	fmt.Fprintln(out, renderStatusLine("Mailbox", statusInfo, layout.Dir, colorize))
	hb, ok, err := heartbeat.Read(layout)
	switch {
	case err != nil:
		fmt.Fprintln(out, renderStatusLine("Heartbeat", statusWarn, err.Error(), colorize))
	case !ok:
		fmt.Fprintln(out, renderStatusLine("Heartbeat", statusInfo, "No heartbeat record", colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Heartbeat", statusWarn,
			fmt.Sprintf("Last beat %d from pid %d, %s ago", hb.Record.Beat, hb.Record.PID, hb.Age.Round(time.Second)), colorize))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Directories", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range pathLines(pathChecks(preflight.RunAll(cfg)), colorize) {
		fmt.Fprintln(out, line)
	}
}

func renderOnlineStatus(out io.Writer, status *ipc.StatusResponse, colorize bool) {
	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	fmt.Fprintln(out, renderStatusLine("Session", statusInfo, status.SessionID, colorize))
	fmt.Fprintln(out, renderStatusLine("Mailbox", statusInfo, status.MailboxDir, colorize))
	fmt.Fprintln(out, renderStatusLine("Journal", statusInfo, status.JournalPath, colorize))
	if hb := status.Heartbeat; hb != nil {
		fmt.Fprintln(out, renderStatusLine("Heartbeat", statusOK,
			fmt.Sprintf("Beat %d, %s ago", hb.Beat, hb.Age.Round(time.Millisecond)), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Heartbeat", statusWarn, "No heartbeat record yet", colorize))
	}
	if status.ShutdownRequested {
		fmt.Fprintln(out, renderStatusLine("Shutdown", statusWarn, status.ShutdownReason, colorize))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range dependencyLines(status.Dependencies, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Directories", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range pathLines(status.Paths, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Pending Requests", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(status.Pending) == 0 {
		fmt.Fprintln(out, "No pending requests")
	} else {
		rows := make([][]string, 0, len(status.Pending))
		for _, p := range status.Pending {
			rows = append(rows, []string{p.CorrelationID, string(p.Kind), time.Since(p.EmittedAt).Round(time.Second).String()})
		}
		fmt.Fprintln(out, renderTable([]column{{Title: "ID"}, {Title: "Kind"}, {Title: "Waiting", Numeric: true}}, rows))
	}
	if status.LegacyWaiters > 0 {
		fmt.Fprintf(out, "Legacy slot waiters: %d\n", status.LegacyWaiters)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Request History", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := buildStatsRows(status.JournalStats)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No requests recorded")
		return
	}
	fmt.Fprint(out, renderTable([]column{{Title: "State"}, {Title: "Count", Numeric: true}}, rows))
	fmt.Fprintln(out)
}

func buildStatsRows(stats map[string]int) [][]string {
	states := make([]string, 0, len(stats))
	for state := range stats {
		states = append(states, state)
	}
	sort.Strings(states)
	rows := make([][]string, 0, len(states))
	for _, state := range states {
		rows = append(rows, []string{state, strconv.Itoa(stats[state])})
	}
	return rows
}
