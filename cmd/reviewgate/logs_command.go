package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reviewgate/internal/logs"
)

const followWait = time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var correlationID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogPath()
			runCtx := cmd.Context()
			out := cmd.OutOrStdout()

			opts := logs.TailOptions{
				Offset: -1,
				Limit:  lines,
				Match:  logs.MatchCorrelationID(correlationID),
			}
			if lines <= 0 {
				opts.Offset = 0
			}

			printed := false
			for {
				res, err := logs.Tail(runCtx, path, opts)
				if err != nil {
					if runCtx.Err() != nil {
						return nil
					}
					return fmt.Errorf("tail logs: %w", err)
				}
				for _, line := range res.Lines {
					fmt.Fprintln(out, line)
					printed = true
				}
				if !follow {
					if !printed {
						fmt.Fprintln(out, "No log entries available")
					}
					return nil
				}
				opts = logs.TailOptions{Offset: res.Offset, Follow: true, Wait: followWait, Match: opts.Match}
				if runCtx.Err() != nil {
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&correlationID, "id", "", "Only show lines for this request id")
	return cmd
}
