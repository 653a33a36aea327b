package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sglre6355/ferry-watch/internal/config"
	"github.com/sglre6355/ferry-watch/internal/domain"
	"github.com/sglre6355/ferry-watch/internal/infrastructure/browser"
	"github.com/sglre6355/ferry-watch/internal/usecase"
)

// Process exit codes.
const (
	exitOK           = 0
	exitError        = 1
	exitConfig       = 2
	exitNotifyFailed = 3
)

// app carries flag values and the collaborators tests replace.
type app struct {
	stdout io.Writer

	criteriaPath string
	verbose      bool
	dryRun       bool
	noLock       bool
	historyLimit int

	newBrowser        func(cfg config.Config, logger *slog.Logger) usecase.Browser
	telegramTransport http.RoundTripper

	exitCode int
}

func newApp() *app {
	return &app{
		stdout: os.Stdout,
		newBrowser: func(cfg config.Config, logger *slog.Logger) usecase.Browser {
			bcfg := browser.DefaultConfig()
			bcfg.Headless = cfg.Headless
			bcfg.RemoteURL = cfg.BrowserWSURL
			return browser.NewChromeBrowser(bcfg, logger)
		},
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ferry-watch",
		Short: "ferry-watch checks a ferry booking site for return sailings and sends an alert when seats open up.",
		Long: "ferry-watch drives the booking site in a browser, classifies the results page and notifies\n" +
			"the configured backend when the outbound and return sailings can be booked.\n" +
			"Without a subcommand it performs a single check.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCheck(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.criteriaPath, "criteria", "", "criteria file (overrides CRITERIA_FILE)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.Flags().BoolVar(&a.dryRun, "dry-run", false, "log the alert instead of sending it")
	root.Flags().BoolVar(&a.noLock, "no-lock", false, "skip the run lock")

	root.AddCommand(newCheckCommand(a), newInspectCommand(a), newHistoryCommand(a))
	return root
}

// execute runs the command line and maps the outcome to an exit code.
func execute(ctx context.Context, a *app, args []string) int {
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("ferry-watch failed", slog.Any("error", err))
		return exitCodeFor(err)
	}
	return a.exitCode
}

// exitCodeFor maps an error that stopped the command before or outside a run.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var cfgErr domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	return exitError
}

// outcomeExitCode maps a finished run.
func outcomeExitCode(result domain.RunResult) int {
	switch {
	case result.Outcome == domain.OutcomeError:
		return exitError
	case result.Outcome == domain.OutcomeAvailable && result.NotifyErr != nil:
		return exitNotifyFailed
	default:
		return exitOK
	}
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, newApp(), os.Args[1:])
}

func main() {
	os.Exit(run())
}
