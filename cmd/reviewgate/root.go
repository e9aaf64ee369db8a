package main

import (
	"github.com/spf13/cobra"
)

const (
	groupRequests = "requests"
	groupDaemon   = "daemon"
	groupInspect  = "inspect"
)

func newRootCommand() *cobra.Command {
	var socketFlag string
	var configFlag string

	ctx := newCommandContext(&socketFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "reviewgate",
		Short:         "Filesystem mailbox bridge between agents and an editor review popup",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to the reviewgate daemon socket")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupRequests, Title: "Requests:"},
		&cobra.Group{ID: groupDaemon, Title: "Daemon:"},
		&cobra.Group{ID: groupInspect, Title: "Inspection and maintenance:"},
	)
	grouped := map[string][]*cobra.Command{
		groupRequests: {newAskCommand(ctx), newShutdownCommand(ctx)},
		groupDaemon:   {newDaemonCommand(ctx), newStartCommand(ctx), newStopCommand(ctx)},
		groupInspect: {
			newStatusCommand(ctx),
			newHistoryCommand(ctx),
			newMailboxCommand(ctx),
			newLogsCommand(ctx),
			newTestNotifyCommand(ctx),
			newConfigCommand(ctx),
		},
	}
	for id, cmds := range grouped {
		for _, cmd := range cmds {
			cmd.GroupID = id
			rootCmd.AddCommand(cmd)
		}
	}
	return rootCmd
}
