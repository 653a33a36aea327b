package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sglre6355/ferry-watch/internal/domain"
	"github.com/sglre6355/ferry-watch/internal/infrastructure/database"
)

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs recorded in DATABASE_DSN.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runHistory(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&a.historyLimit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func (a *app) runHistory(ctx context.Context) error {
	cfg, _, cleanup, err := a.setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.DatabaseDSN == "" {
		return domain.ConfigurationError{Field: "DATABASE_DSN", Err: errors.New("required for history")}
	}

	db, err := database.Open(cfg.DatabaseDSN)
	if err != nil {
		return domain.ConfigurationError{Field: "DATABASE_DSN", Err: err}
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	store := database.NewRunStore(db)
	if err := store.AutoMigrate(ctx); err != nil {
		return err
	}
	runs, err := store.Recent(ctx, a.historyLimit)
	if err != nil {
		return err
	}

	renderHistory(a.stdout, runs)
	a.exitCode = exitOK
	return nil
}

func renderHistory(w io.Writer, runs []domain.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Started", "Run", "Outcome", "Duration", "Notified", "Detail"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			shortID(r.RunID),
			string(r.Outcome),
			r.Duration().Round(time.Second).String(),
			yesNo(r.Notified),
			historyDetail(r),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func historyDetail(r domain.RunSummary) string {
	var parts []string
	if r.Error != "" {
		parts = append(parts, r.ErrorLabel+": "+r.Error)
	} else if r.Reason != "" {
		parts = append(parts, r.Reason)
	}
	if r.NotifyError != "" {
		parts = append(parts, "notify: "+r.NotifyError)
	}
	return strings.Join(parts, "; ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
