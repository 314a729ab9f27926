// Package cli implements the agentctl commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentdeck/agentctl/internal/backend"
	"github.com/agentdeck/agentctl/internal/config"
	agentctx "github.com/agentdeck/agentctl/internal/context"
	clierrors "github.com/agentdeck/agentctl/internal/errors"
	"github.com/agentdeck/agentctl/internal/logger"
	"github.com/agentdeck/agentctl/internal/output"
	"github.com/agentdeck/agentctl/internal/pterm"
	"github.com/agentdeck/agentctl/internal/runstream"
	"github.com/agentdeck/agentctl/internal/sentry"
	"github.com/agentdeck/agentctl/internal/sse"
	"github.com/agentdeck/agentctl/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app holds what the commands of one invocation share.
type app struct {
	v      *viper.Viper
	mode   output.OutputMode
	stdout io.Writer
	stderr io.Writer

	// openStore is swapped in tests.
	openStore func() (*agentctx.Store, error)

	cfg *config.Config
	log *zap.Logger
	// console writes notices to stderr, out writes tables to stdout.
	console *pterm.Console
	out     *pterm.Console
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		v:         config.New(),
		mode:      output.DetectMode(),
		stdout:    stdout,
		stderr:    stderr,
		openStore: agentctx.NewDefaultStore,
		log:       zap.NewNop(),
	}
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	return newApp(stdout, stderr).rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentctl",
		Short: "Start, stop and follow agent runs",
		Long: `agentctl talks to the agent platform API.

It starts agent runs on a thread, follows their live output and replays
finished threads.

Quick Start:
  • Log in:            agentctl auth login
  • Start a run:       agentctl run start --thread <thread-id> --stream
  • Follow a run:      agentctl run stream <run-id>
  • Replay a thread:   agentctl thread replay <thread-id>`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.String("api-url", "", "API base URL (env AGENTCTL_API_URL)")
	flags.String("token", "", "access token (env AGENTCTL_TOKEN)")
	flags.Bool("debug", false, "print debug logs (env AGENTCTL_DEBUG)")
	flags.String("log-level", "", "debug, info, warn or error (env AGENTCTL_LOG_LEVEL)")
	_ = a.v.BindPFlag(config.KeyAPIURL, flags.Lookup("api-url"))
	_ = a.v.BindPFlag(config.KeyToken, flags.Lookup("token"))
	_ = a.v.BindPFlag(config.KeyDebug, flags.Lookup("debug"))
	_ = a.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))

	root.AddCommand(
		a.newRunCommand(),
		a.newThreadCommand(),
		a.newAuthCommand(),
		a.newVersionCommand(),
	)
	return root
}

// setup resolves configuration and builds the loggers before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	store, err := a.openStore()
	if err != nil {
		return clierrors.ConfigError(err, "Set AGENTCTL_CONFIG to a writable path.")
	}
	cfg, err := config.Load(a.v, store)
	if err != nil {
		return clierrors.ConfigError(err, "Check --api-url and the AGENTCTL_* environment.")
	}
	a.cfg = cfg

	log, err := logger.New(a.stderr, cfg.LogLevel, cfg.Debug)
	if err != nil {
		return clierrors.ConfigError(err, "")
	}
	a.log = log
	a.console = pterm.NewConsole(a.stderr, a.mode, cfg.Debug)
	a.out = pterm.NewConsole(a.stdout, a.mode, cfg.Debug)

	if err := sentry.Initialize(sentry.ConfigFromEnv(version.Version, cfg.APIURL)); err != nil {
		a.log.Warn("error reporting disabled", zap.Error(err))
	}
	a.log.Debug("configuration loaded",
		zap.String("command", cmd.CommandPath()),
		zap.String("api_url", cfg.APIURL),
		zap.String("context", cfg.ContextName))
	return nil
}

func (a *app) backend() *backend.Client {
	return backend.New(a.cfg.APIURL, a.cfg.TokenProvider(), backend.WithLogger(a.log.Named("backend")))
}

func (a *app) streamClient(api runstream.Backend) *runstream.Client {
	return runstream.New(api, a.cfg.TokenProvider(),
		runstream.WithLogger(a.log.Named("runstream")),
		runstream.WithStatusRecheckLimit(a.cfg.RecheckInterval, 3),
		runstream.WithSSEOptions(sse.WithMaxReconnects(a.cfg.MaxReconnects)),
	)
}

func (a *app) interactive() bool {
	return a.mode == output.OutputModeInteractive
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer sentry.Flush(2 * time.Second)

	executed, err := NewRootCommand(os.Stdout, os.Stderr).ExecuteContextC(ctx)
	if err == nil {
		return clierrors.ExitCodeSuccess
	}

	cliErr := clierrors.Classify(err)
	fmt.Fprintln(os.Stderr, clierrors.FormatError(cliErr))
	switch cliErr.Type {
	case clierrors.ErrorTypeRuntime, clierrors.ErrorTypeStream:
		sentry.CaptureError(err, map[string]string{"command": executed.CommandPath()})
	}
	return clierrors.ExitCode(cliErr.Type)
}
