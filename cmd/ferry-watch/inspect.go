package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sglre6355/ferry-watch/internal/config"
	"github.com/sglre6355/ferry-watch/internal/presentation"
	"github.com/sglre6355/ferry-watch/internal/usecase"
)

func newInspectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Load the booking page and report which form selectors match, without searching.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runInspect(cmd.Context())
		},
	}
}

func (a *app) runInspect(ctx context.Context) error {
	cfg, logger, cleanup, err := a.setup()
	if err != nil {
		return err
	}
	defer cleanup()

	// Inspection never notifies, so no backend credentials are needed.
	cfg.DryRun = true
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

	checker := a.newChecker(cfg, site, presentation.NewLogNotifier(logger), logger)
	report, err := checker.Inspect(ctx, criteria.Search)
	if err != nil {
		return err
	}

	renderInspection(a.stdout, report)
	a.exitCode = exitOK
	return nil
}

func renderInspection(w io.Writer, report usecase.InspectionReport) {
	fmt.Fprintf(w, "Run:   %s\nURL:   %s\nTitle: %s\n", report.RunID, report.URL, report.Title)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Group", "Selector", "Matches"})
	for _, p := range report.Selectors {
		matches := fmt.Sprint(p.Count)
		if p.Err != nil {
			matches = "error: " + p.Err.Error()
		}
		t.AppendRow(table.Row{p.Group, p.Selector, matches})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	ports := table.NewWriter()
	ports.SetOutputMirror(w)
	ports.AppendHeader(table.Row{"Port", "On page"})
	for _, p := range report.Ports {
		ports.AppendRow(table.Row{p.Port, yesNo(p.Found)})
	}
	ports.SetStyle(table.StyleRounded)
	ports.Render()

	if len(report.ArtifactPaths) > 0 {
		fmt.Fprintf(w, "Saved: %s\n", strings.Join(report.ArtifactPaths, ", "))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
