package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sglre6355/ferry-watch/internal/config"
	"github.com/sglre6355/ferry-watch/internal/domain"
	"github.com/sglre6355/ferry-watch/internal/infrastructure/artifacts"
	"github.com/sglre6355/ferry-watch/internal/infrastructure/calmac"
	"github.com/sglre6355/ferry-watch/internal/infrastructure/database"
	"github.com/sglre6355/ferry-watch/internal/infrastructure/metrics"
	"github.com/sglre6355/ferry-watch/internal/infrastructure/runlock"
	"github.com/sglre6355/ferry-watch/internal/presentation"
	"github.com/sglre6355/ferry-watch/internal/usecase"
)

func newCheckCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one availability check and notify if the sailings can be booked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCheck(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "log the alert instead of sending it")
	cmd.Flags().BoolVar(&a.noLock, "no-lock", false, "skip the run lock")
	return cmd
}

// setup loads the environment, applies flag overrides and installs the logger.
func (a *app) setup() (config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if a.criteriaPath != "" {
		cfg.CriteriaFile = a.criteriaPath
	}
	if a.verbose {
		cfg.LogVerbose = true
	}
	if a.dryRun {
		cfg.DryRun = true
	}

	logDir := ""
	if cfg.LogDirEnabled() {
		logDir = cfg.LogDir
	}
	logger, closeLog, err := newLogger(a.stdout, cfg.LogVerbose, logDir, time.Now())
	if err != nil {
		return config.Config{}, nil, nil, domain.ConfigurationError{Field: "LOG_DIR", Err: err}
	}
	slog.SetDefault(logger)

	cleanup := func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
		}
	}
	return cfg, logger, cleanup, nil
}

func (a *app) runCheck(ctx context.Context) error {
	cfg, logger, cleanup, err := a.setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cfg.Validate(); err != nil {
		return err
	}

	criteria, err := config.LoadCriteria(cfg.CriteriaFile)
	if err != nil {
		return err
	}
	site, err := siteFor(criteria.Site)
	if err != nil {
		return err
	}
	logger.Debug("search criteria loaded",
		slog.String("site", criteria.Site),
		slog.Any("sources", criteria.Sources),
		slog.Bool("dry_run", cfg.DryRun),
	)
	notifier, err := a.newNotifier(cfg, logger)
	if err != nil {
		return err
	}

	if lockPath := lockFilePath(cfg); lockPath != "" && !a.noLock {
		lock, err := runlock.Acquire(ctx, lockPath)
		if errors.Is(err, runlock.ErrLocked) {
			logger.Warn("previous run still in progress, skipping", slog.Any("error", err))
			a.exitCode = exitOK
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("failed to release run lock", slog.String("path", lock.Path()), slog.Any("error", err))
			}
		}()
	}

	observers, closeObservers := newObservers(ctx, cfg, logger)
	defer closeObservers()

	checker := a.newChecker(cfg, site, notifier, logger, usecase.WithRunObservers(observers...))
	result := checker.Check(ctx, criteria.Search)

	a.exitCode = outcomeExitCode(result)
	logger.Info("run complete",
		slog.String("run_id", result.RunID),
		slog.String("outcome", string(result.Outcome)),
		slog.Int("exit_code", a.exitCode),
	)
	return nil
}

// newChecker assembles the checker with the timings from cfg.
func (a *app) newChecker(
	cfg config.Config,
	site usecase.SiteLayout,
	notifier usecase.Notifier,
	logger *slog.Logger,
	extra ...usecase.AvailabilityCheckerOption,
) *usecase.AvailabilityChecker {
	opts := []usecase.AvailabilityCheckerOption{
		usecase.WithLogger(logger),
		usecase.WithArtifactStore(artifacts.NewFileStore(cfg.ArtifactDir)),
		usecase.WithNavigationTimeout(cfg.NavigationTimeout),
		usecase.WithStepTimeout(cfg.StepTimeout),
		usecase.WithResultsTimeout(cfg.ResultsTimeout),
		usecase.WithNotifyTimeout(cfg.NotifyTimeout),
		usecase.WithSettleDelays(cfg.SettleDelay, cfg.FieldDelay, cfg.ResultsSettleDelay),
		usecase.WithCheckErrorHandler(func(runID string, stage usecase.CheckErrorStage, err error) {
			logger.Debug("check stage failed",
				slog.String("run_id", runID),
				slog.Any("stage", stage),
				slog.Any("error", err),
			)
		}),
	}
	opts = append(opts, extra...)

	return usecase.NewAvailabilityChecker(a.newBrowser(cfg, logger), notifier, site, opts...)
}

// siteFor returns the booking-site layout for a criteria profile.
func siteFor(name string) (usecase.SiteLayout, error) {
	switch name {
	case "", "calmac":
		return calmac.Site(), nil
	default:
		return usecase.SiteLayout{}, domain.ConfigurationError{Field: "site", Err: fmt.Errorf("unknown booking site %q", name)}
	}
}

// newNotifier builds the delivery backend selected by cfg. Dry runs only log.
func (a *app) newNotifier(cfg config.Config, logger *slog.Logger) (usecase.Notifier, error) {
	if cfg.DryRun {
		return presentation.NewLogNotifier(logger), nil
	}

	switch cfg.NotifyBackend {
	case config.BackendTelegram:
		opts := []presentation.TelegramOption{presentation.WithTelegramAPIURL(cfg.TelegramAPIURL)}
		if a.telegramTransport != nil {
			opts = append(opts, presentation.WithTelegramTransport(a.telegramTransport))
		}
		return presentation.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, opts...), nil
	case config.BackendDiscord:
		session, err := presentation.NewDiscordSession(cfg.DiscordToken)
		if err != nil {
			return nil, domain.ConfigurationError{Field: "DISCORD_TOKEN", Err: err}
		}
		return presentation.NewDiscordNotifier(session, cfg.DiscordChannelID), nil
	case config.BackendEmail:
		return presentation.NewEmailNotifier(presentation.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			To:       cfg.EmailTo,
		}), nil
	default:
		return nil, domain.ConfigurationError{Field: "NOTIFY_BACKEND", Err: fmt.Errorf("unsupported backend %q", cfg.NotifyBackend)}
	}
}

// lockFilePath returns "" when locking is disabled.
func lockFilePath(cfg config.Config) string {
	switch cfg.LockFile {
	case config.Disabled:
		return ""
	case "":
		return runlock.DefaultPath()
	default:
		return cfg.LockFile
	}
}

// newObservers wires the optional run history and Pushgateway export. Either failing to
// start only costs its own output, never the run.
func newObservers(ctx context.Context, cfg config.Config, logger *slog.Logger) ([]usecase.RunObserver, func()) {
	var observers []usecase.RunObserver
	closeFn := func() {}

	if cfg.DatabaseDSN != "" {
		db, err := database.Open(cfg.DatabaseDSN)
		if err != nil {
			logger.Warn("run history disabled: failed to open database", slog.Any("error", err))
		} else {
			store := database.NewRunStore(db)
			if err := store.AutoMigrate(ctx); err != nil {
				logger.Warn("run history disabled: failed to migrate database", slog.Any("error", err))
			} else {
				observers = append(observers, store)
			}
			closeFn = func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}
		}
	}

	if cfg.PushgatewayURL != "" {
		observers = append(observers, metrics.NewPusher(cfg.PushgatewayURL))
	}

	return observers, closeFn
}
