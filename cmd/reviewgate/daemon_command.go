package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reviewgate/internal/daemon"
	"reviewgate/internal/ipc"
	"reviewgate/internal/logging"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the reviewgate daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonProcess(cmd.Context(), ctx, logLevel)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	return cmd
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext, logLevel string) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if level := strings.TrimSpace(logLevel); level != "" {
		runCfg := *cfg
		runCfg.Logging.Level = level
		cfg = &runCfg
	}

	sessionID := uuid.NewString()
	logRuntime, err := logging.NewFromConfig(cfg, sessionID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logRuntime.Close()
	logger := logRuntime.Logger

	d, err := daemon.New(cfg, sessionID, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, ctx.socketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon task failed", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "pending requests are abandoned"),
			logging.String(logging.FieldErrorHint, "check the log above for the failing component and restart"),
		)
		return err
	}
	logger.Info("reviewgate daemon shutting down")
	return nil
}
