package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"reviewgate/internal/config"
	"reviewgate/internal/ipc"
)

// commandContext resolves the global --config and --socket flags lazily, so
// commands that never touch the daemon or the config file do not pay for
// either.
type commandContext struct {
	socketFlag *string
	configFlag *string

	loadConfig func() (*config.Config, error)
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	c := &commandContext{socketFlag: socketFlag, configFlag: configFlag}
	c.loadConfig = sync.OnceValues(func() (*config.Config, error) {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			return nil, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	return c
}

func (c *commandContext) configPath() string {
	return flagValue(c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	return c.loadConfig()
}

// socketPath prefers --socket, then the configured log directory, then a
// fallback under the default data directory.
func (c *commandContext) socketPath() string {
	if socket := flagValue(c.socketFlag); socket != "" {
		return socket
	}
	if cfg, err := c.loadConfig(); err == nil {
		return cfg.SocketPath()
	}
	logDir, err := config.ExpandPath("~/.local/share/reviewgate/logs")
	if err != nil {
		return filepath.Join(os.TempDir(), "reviewgate.sock")
	}
	return filepath.Join(logDir, "reviewgate.sock")
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return dialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

// errDaemonOffline marks dial failures that mean no daemon is listening.
var errDaemonOffline = errors.New("daemon not running")

func dialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT):
		return fmt.Errorf("connect to daemon: socket %s not found; start it with `reviewgate start`: %w", socket, errDaemonOffline)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; the daemon may have exited uncleanly: %w", socket, errDaemonOffline)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

// shouldSkipConfig reports whether cmd or an ancestor loads config itself.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
