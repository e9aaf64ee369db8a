package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reviewgate/internal/ipc"
	"reviewgate/internal/journal"
)

const historyTextWidth = 48

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var speech bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent requests or speech jobs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp *ipc.HistoryResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				var callErr error
				resp, callErr = client.History(ipc.HistoryRequest{Limit: limit, Speech: speech})
				return callErr
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				if speech {
					return writeJSON(cmd, resp.Speech)
				}
				return writeJSON(cmd, resp.Requests)
			}

			out := cmd.OutOrStdout()
			if speech {
				if len(resp.Speech) == 0 {
					fmt.Fprintln(out, "No speech jobs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(speechColumns, speechRows(resp.Speech)))
				return nil
			}
			if len(resp.Requests) == 0 {
				fmt.Fprintln(out, "No requests recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(historyColumns, historyRows(resp.Requests)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&speech, "speech", false, "Show speech-to-text jobs instead of requests")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			j, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return err
			}
			defer j.Close()
			removed, err := j.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d journal entries\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff")
	return cmd
}

var (
	historyColumns = []column{{Title: "ID"}, {Title: "Kind"}, {Title: "State"}, {Title: "Acked"}, {Title: "Created"}, {Title: "Reply"}}
	speechColumns  = []column{{Title: "Trigger"}, {Title: "Result"}, {Title: "Chars", Numeric: true}, {Title: "Source"}, {Title: "Recorded"}}
)

func historyRows(entries []ipc.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CorrelationID,
			e.Kind,
			e.State,
			yesNo(e.Acked),
			e.CreatedAt.Local().Format(time.DateTime),
			clip(e.ResponseText, historyTextWidth),
		})
	}
	return rows
}

func speechRows(entries []ipc.SpeechEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := "ok"
		if !e.Success {
			result = clip("failed: "+e.Error, historyTextWidth)
		}
		rows = append(rows, []string{
			e.TriggerID,
			result,
			strconv.Itoa(e.Chars),
			e.Source,
			e.RecordedAt.Local().Format(time.DateTime),
		})
	}
	return rows
}

func clip(value string, limit int) string {
	runes := []rune(value)
	for i, r := range runes {
		if r == '\n' {
			runes = runes[:i]
			break
		}
	}
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-3]) + "..."
}
