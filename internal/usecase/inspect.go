package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sglre6355/ferry-watch/internal/domain"
)

// pageElements are generic elements that show whether the booking app rendered at all.
var pageElements = SelectorGroup{Name: "page elements", Selectors: []string{"form", "input", "select", "button"}}

// SelectorCount is the match count of one candidate selector.
type SelectorCount struct {
	Group    string
	Selector string
	Count    int
	Err      error
}

// PortMatch reports whether a port name appears in the page text.
type PortMatch struct {
	Port  string
	Found bool
}

// InspectionReport describes the booking page as the checker would first see it.
type InspectionReport struct {
	RunID         string
	URL           string
	Title         string
	Selectors     []SelectorCount
	Ports         []PortMatch
	ArtifactPaths []string
}

// Inspect loads the search page, counts every selector in the site layout and saves a
// screenshot and the HTML. It never fills the form or notifies.
func (c *AvailabilityChecker) Inspect(ctx context.Context, criteria domain.SearchCriteria) (report InspectionReport, err error) {
	report.RunID = c.newRunID()
	logger := c.logger.With(slog.String("run_id", report.RunID))

	if c.browser == nil {
		return report, fmt.Errorf("availability checker missing browser dependency")
	}

	page, err := c.browser.Open(ctx)
	if err != nil {
		return report, domain.NavigationError{Step: "launch browser", Err: err}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during inspection: %v", r)
		}
		if closeErr := page.Close(); closeErr != nil {
			logger.Warn("failed to close browser session", slog.Any("error", closeErr))
		}
	}()

	logger.Info("navigating to booking page", slog.String("url", c.site.SearchURL))
	navCtx, cancelNav := context.WithTimeout(ctx, c.navigationTimeout)
	err = page.Navigate(navCtx, c.site.SearchURL)
	cancelNav()
	if err != nil {
		return report, domain.NavigationError{Step: "navigate", Err: err}
	}
	if err := c.sleep(ctx, c.settleDelay); err != nil {
		return report, err
	}

	diag := c.captureDiagnostic(ctx, logger, report.RunID, page)
	report.URL = diag.URL
	report.Title = diag.Title
	logger.Info("page loaded", slog.String("title", report.Title), slog.String("url", report.URL))

	groups := append([]SelectorGroup{pageElements}, c.site.Groups()...)
	for _, g := range groups {
		for _, sel := range g.Selectors {
			countCtx, cancel := context.WithTimeout(ctx, c.stepTimeout)
			n, err := page.Count(countCtx, sel)
			cancel()
			report.Selectors = append(report.Selectors, SelectorCount{Group: g.Name, Selector: sel, Count: n, Err: err})
		}
	}

	text := strings.ToLower(diag.PageText)
	for _, port := range ports(criteria) {
		report.Ports = append(report.Ports, PortMatch{
			Port:  port,
			Found: text != "" && strings.Contains(text, strings.ToLower(port)),
		})
	}

	report.ArtifactPaths = c.saveDiagnostic(ctx, logger, report.RunID, *diag)
	return report, nil
}

// ports lists each distinct port named in the criteria, in order of first appearance.
func ports(criteria domain.SearchCriteria) []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range []string{
		criteria.Outbound.Origin,
		criteria.Outbound.Destination,
		criteria.Return.Origin,
		criteria.Return.Destination,
	} {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
