package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reviewgate/internal/fileutil"
	"reviewgate/internal/logging"
	"reviewgate/internal/mailbox"
	"reviewgate/internal/shutdown"
)

var mailboxColumns = []column{
	{Title: "Name"},
	{Title: "Kind"},
	{Title: "Bytes", Numeric: true},
	{Title: "Age", Numeric: true},
}

func newMailboxCommand(ctx *commandContext) *cobra.Command {
	mailboxCmd := &cobra.Command{
		Use:   "mailbox",
		Short: "Inspect and clean the shared mailbox directory",
	}
	mailboxCmd.AddCommand(newMailboxListCommand(ctx))
	mailboxCmd.AddCommand(newMailboxCleanCommand(ctx))
	return mailboxCmd
}

func newMailboxListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records currently in the mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := mailbox.NewLayout(cfg).List()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "Mailbox %s is empty\n", cfg.Paths.MailboxDir)
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Name,
					string(e.Kind),
					strconv.FormatInt(e.Size, 10),
					time.Since(e.ModTime).Round(time.Second).String(),
				})
			}
			fmt.Fprintln(out, renderTable(mailboxColumns, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output records as JSON")
	return cmd
}

// staleKinds are removed by `mailbox clean --all` in addition to triggers.
var staleKinds = map[mailbox.RecordKind]bool{
	mailbox.KindAck:            true,
	mailbox.KindResponse:       true,
	mailbox.KindLegacyResponse: true,
	mailbox.KindSpeechResponse: true,
}

func newMailboxCleanCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove trigger records (and with --all, stale acks and responses)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			layout := mailbox.NewLayout(cfg)
			removed := shutdown.CleanupTriggers(layout, logging.NewNop())
			if all {
				entries, err := layout.List()
				if err != nil {
					return err
				}
				for _, e := range entries {
					if !staleKinds[e.Kind] {
						continue
					}
					ok, err := fileutil.Claim(filepath.Join(layout.Dir, e.Name))
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warn: %v\n", err)
						continue
					}
					if ok {
						removed++
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records from %s\n", removed, layout.Dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Also remove stale acknowledgements and responses")
	return cmd
}
