package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sglre6355/ferry-watch/internal/domain"
)

// CheckErrorStage indicates which part of a run failed.
type CheckErrorStage string

const (
	// CheckErrorStageBrowse marks failures while driving the booking flow.
	CheckErrorStageBrowse CheckErrorStage = "browse"
	// CheckErrorStageDiagnostic marks failures while capturing or saving diagnostics.
	CheckErrorStageDiagnostic CheckErrorStage = "diagnostic"
	// CheckErrorStageNotify marks failures while delivering the alert.
	CheckErrorStageNotify CheckErrorStage = "notify"
	// CheckErrorStageObserve marks failures in a run observer.
	CheckErrorStageObserve CheckErrorStage = "observe"
	// CheckErrorStageCleanup marks failures while closing the browser session.
	CheckErrorStageCleanup CheckErrorStage = "cleanup"
)

// CheckErrorHandler is invoked for every failure inside a run, fatal or not.
type CheckErrorHandler func(runID string, stage CheckErrorStage, err error)

// AvailabilityChecker runs one availability check per call.
type AvailabilityChecker struct {
	browser  Browser
	notifier Notifier
	site     SiteLayout

	artifacts ArtifactStore
	observers []RunObserver

	nowFn    func() time.Time
	newRunID func() string
	sleep    func(context.Context, time.Duration) error
	logger   *slog.Logger
	onError  CheckErrorHandler

	navigationTimeout time.Duration
	stepTimeout       time.Duration
	resultsTimeout    time.Duration
	notifyTimeout     time.Duration
	diagnosticTimeout time.Duration

	settleDelay        time.Duration
	fieldDelay         time.Duration
	resultsSettleDelay time.Duration
}

// AvailabilityCheckerOption configures behavioural aspects of the checker.
type AvailabilityCheckerOption func(*AvailabilityChecker)

// WithCheckerClock overrides the clock used for timestamps (useful for testing).
func WithCheckerClock(nowFn func() time.Time) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		if nowFn != nil {
			c.nowFn = nowFn
		}
	}
}

// WithRunIDGenerator overrides how run identifiers are minted.
func WithRunIDGenerator(newRunID func() string) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		if newRunID != nil {
			c.newRunID = newRunID
		}
	}
}

// WithSleeper overrides how the checker waits between steps.
func WithSleeper(sleep func(context.Context, time.Duration) error) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the logger used for step records.
func WithLogger(logger *slog.Logger) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCheckErrorHandler registers the callback used when part of a run fails.
func WithCheckErrorHandler(handler CheckErrorHandler) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		if handler != nil {
			c.onError = handler
		}
	}
}

// WithArtifactStore sets where error diagnostics are written.
func WithArtifactStore(store ArtifactStore) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		c.artifacts = store
	}
}

// WithRunObservers appends observers that receive every finished run.
func WithRunObservers(observers ...RunObserver) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		for _, o := range observers {
			if o != nil {
				c.observers = append(c.observers, o)
			}
		}
	}
}

// WithNavigationTimeout bounds the initial page load.
func WithNavigationTimeout(timeout time.Duration) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		if timeout > 0 {
			c.navigationTimeout = timeout
		}
	}
}

// WithStepTimeout bounds each wait for a form element.
func WithStepTimeout(timeout time.Duration) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		if timeout > 0 {
			c.stepTimeout = timeout
		}
	}
}

// WithResultsTimeout bounds the wait for the results page.
func WithResultsTimeout(timeout time.Duration) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		if timeout > 0 {
			c.resultsTimeout = timeout
		}
	}
}

// WithNotifyTimeout bounds the notification call.
func WithNotifyTimeout(timeout time.Duration) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		if timeout > 0 {
			c.notifyTimeout = timeout
		}
	}
}

// WithSettleDelays sets the pauses that let the booking app render: after the first
// page load, after each field, and before reading results. Negative values are ignored.
func WithSettleDelays(afterLoad, afterField, beforeResults time.Duration) AvailabilityCheckerOption {
	return func(c *AvailabilityChecker) {
		if afterLoad >= 0 {
			c.settleDelay = afterLoad
		}
		if afterField >= 0 {
			c.fieldDelay = afterField
		}
		if beforeResults >= 0 {
			c.resultsSettleDelay = beforeResults
		}
	}
}

// NewAvailabilityChecker builds a checker that drives browser and alerts through notifier.
func NewAvailabilityChecker(
	browser Browser,
	notifier Notifier,
	site SiteLayout,
	opts ...AvailabilityCheckerOption,
) *AvailabilityChecker {
	checker := &AvailabilityChecker{
		browser:            browser,
		notifier:           notifier,
		site:               site,
		nowFn:              time.Now,
		newRunID:           uuid.NewString,
		sleep:              sleepContext,
		logger:             slog.Default(),
		onError:            func(string, CheckErrorStage, error) {},
		navigationTimeout:  45 * time.Second,
		stepTimeout:        15 * time.Second,
		resultsTimeout:     30 * time.Second,
		notifyTimeout:      30 * time.Second,
		diagnosticTimeout:  15 * time.Second,
		settleDelay:        5 * time.Second,
		fieldDelay:         time.Second,
		resultsSettleDelay: 8 * time.Second,
	}

	for _, opt := range opts {
		opt(checker)
	}

	return checker
}

// Check performs one complete run. It never returns an error: every failure is folded
// into the result so the browser session is always released.
func (c *AvailabilityChecker) Check(ctx context.Context, criteria domain.SearchCriteria) domain.RunResult {
	result := domain.RunResult{
		RunID:     c.newRunID(),
		Criteria:  criteria,
		StartedAt: c.nowFn(),
	}
	logger := c.logger.With(slog.String("run_id", result.RunID))
	logger.Info("starting availability check",
		slog.String("outbound", criteria.Outbound.Route()),
		slog.Time("outbound_departure", criteria.Outbound.Departure),
		slog.String("return", criteria.Return.Route()),
		slog.Time("return_departure", criteria.Return.Departure),
	)

	if c.browser == nil || c.notifier == nil {
		result.Outcome = domain.OutcomeError
		result.Err = fmt.Errorf("availability checker missing browser or notifier dependency")
		result.Reason = result.Err.Error()
		return c.finish(ctx, logger, result)
	}

	session := c.runSession(ctx, logger, result.RunID, criteria)
	result.Outcome = session.classification.Outcome
	result.Reason = session.classification.Reason
	result.Err = session.err
	result.Diagnostic = session.diagnostic

	switch result.Outcome {
	case domain.OutcomeAvailable:
		logger.Info("ferry availability found", slog.String("reason", result.Reason))
		c.notify(ctx, logger, &result)
	case domain.OutcomeUnavailable:
		logger.Info("no ferry availability at this time", slog.String("reason", result.Reason))
	default:
		result.Outcome = domain.OutcomeError
		c.onError(result.RunID, CheckErrorStageBrowse, result.Err)
		logger.Error("availability check failed",
			slog.String("category", domain.ErrorLabel(result.Err)),
			slog.String("reason", result.Reason),
			slog.Any("error", result.Err),
		)
		if result.Diagnostic != nil {
			result.ArtifactPaths = c.saveDiagnostic(ctx, logger, result.RunID, *result.Diagnostic)
		}
	}

	return c.finish(ctx, logger, result)
}

type sessionResult struct {
	classification Classification
	err            error
	diagnostic     *domain.Diagnostic
}

// runSession owns the browser session: it is opened once and closed exactly once.
func (c *AvailabilityChecker) runSession(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	criteria domain.SearchCriteria,
) (out sessionResult) {
	out.classification = Classification{Outcome: domain.OutcomeError}

	page, err := c.browser.Open(ctx)
	if err != nil {
		out.err = domain.NavigationError{Step: "launch browser", Err: err}
		out.classification.Reason = "browser session could not be started"
		return out
	}
	logger.Debug("browser session opened")

	defer func() {
		if r := recover(); r != nil {
			out = sessionResult{
				classification: Classification{Outcome: domain.OutcomeError, Reason: "browser automation panicked"},
				err:            fmt.Errorf("panic during browser session: %v", r),
				diagnostic:     c.captureDiagnostic(ctx, logger, runID, page),
			}
		}
		if err := page.Close(); err != nil {
			c.onError(runID, CheckErrorStageCleanup, err)
			logger.Warn("failed to close browser session", slog.Any("error", err))
			return
		}
		logger.Debug("browser session closed")
	}()

	classification, err := c.drive(ctx, logger, page, criteria)
	out.classification = classification
	out.err = err
	if classification.Outcome == domain.OutcomeError {
		out.diagnostic = c.captureDiagnostic(ctx, logger, runID, page)
	}

	return out
}

func (c *AvailabilityChecker) drive(
	ctx context.Context,
	logger *slog.Logger,
	page BookingPage,
	criteria domain.SearchCriteria,
) (Classification, error) {
	failed := func(reason string, err error) (Classification, error) {
		return Classification{Outcome: domain.OutcomeError, Reason: reason}, err
	}

	logger.Info("navigating to booking page", slog.String("url", c.site.SearchURL))
	navCtx, cancelNav := context.WithTimeout(ctx, c.navigationTimeout)
	err := page.Navigate(navCtx, c.site.SearchURL)
	cancelNav()
	if err != nil {
		return failed("booking page could not be loaded", domain.NavigationError{Step: "navigate", Err: err})
	}
	if err := c.sleep(ctx, c.settleDelay); err != nil {
		return failed("interrupted while the booking page rendered", domain.NavigationError{Step: "navigate", Err: err})
	}

	flow := &bookingFlow{
		page:        page,
		form:        c.site.Form,
		stepTimeout: c.stepTimeout,
		settle:      c.fieldDelay,
		sleep:       c.sleep,
		logger:      logger,
	}

	logger.Info("filling outbound search")
	if err := flow.fillOutbound(ctx, criteria); err != nil {
		return failed("outbound search could not be submitted", err)
	}

	logger.Info("filling return search")
	if err := flow.fillReturn(ctx, criteria); err != nil {
		return failed("return search could not be submitted", err)
	}

	logger.Info("waiting for search results")
	if err := c.sleep(ctx, c.resultsSettleDelay); err != nil {
		return failed("interrupted while waiting for results", domain.TimeoutError{Step: "results", Err: err})
	}
	if len(c.site.Results.Ready) > 0 {
		waitCtx, cancelWait := context.WithTimeout(ctx, c.resultsTimeout)
		err := page.WaitVisible(waitCtx, strings.Join(c.site.Results.Ready, ", "))
		cancelWait()
		if err != nil {
			return failed(
				fmt.Sprintf("results page did not render within %s", c.resultsTimeout),
				domain.TimeoutError{Step: "results", Err: err},
			)
		}
	}

	readCtx, cancelRead := context.WithTimeout(ctx, c.stepTimeout)
	content, err := page.Content(readCtx)
	cancelRead()
	if err != nil {
		return failed("results page could not be read", domain.NavigationError{Step: "read results", Err: err})
	}
	logger.Info("results page loaded", slog.String("title", content.Title), slog.String("url", content.URL))

	return Classify(content.HTML, c.site.Results)
}

// captureDiagnostic grabs what it can from the page. It runs on a fresh context so a
// cancelled or expired run can still be explained.
func (c *AvailabilityChecker) captureDiagnostic(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	page BookingPage,
) *domain.Diagnostic {
	diagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.diagnosticTimeout)
	defer cancel()

	diag := &domain.Diagnostic{CapturedAt: c.nowFn()}

	if shot, err := page.Screenshot(diagCtx); err != nil {
		c.onError(runID, CheckErrorStageDiagnostic, fmt.Errorf("capture screenshot: %w", err))
		logger.Warn("failed to capture screenshot", slog.Any("error", err))
	} else {
		diag.Screenshot = shot
	}

	if content, err := page.Content(diagCtx); err != nil {
		c.onError(runID, CheckErrorStageDiagnostic, fmt.Errorf("capture page content: %w", err))
		logger.Warn("failed to capture page content", slog.Any("error", err))
	} else {
		diag.HTML = content.HTML
		diag.PageText = content.Text
		diag.URL = content.URL
		diag.Title = content.Title
	}

	return diag
}

func (c *AvailabilityChecker) saveDiagnostic(
	ctx context.Context,
	logger *slog.Logger,
	runID string,
	diag domain.Diagnostic,
) []string {
	if c.artifacts == nil {
		return nil
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.diagnosticTimeout)
	defer cancel()

	paths, err := c.artifacts.SaveDiagnostic(saveCtx, runID, diag)
	if err != nil {
		c.onError(runID, CheckErrorStageDiagnostic, fmt.Errorf("save diagnostic: %w", err))
		logger.Warn("failed to save diagnostic artifacts", slog.Any("error", err))
	}
	for _, p := range paths {
		logger.Info("diagnostic artifact saved", slog.String("path", p))
	}
	return paths
}

// notify sends the alert exactly once. Delivery failures are recorded, never retried.
func (c *AvailabilityChecker) notify(ctx context.Context, logger *slog.Logger, result *domain.RunResult) {
	message := ComposeMessage(c.site, result.Criteria, c.nowFn())

	notifyCtx, cancel := context.WithTimeout(ctx, c.notifyTimeout)
	defer cancel()

	if err := c.notifier.Notify(notifyCtx, message); err != nil {
		var delivery domain.NotificationDeliveryError
		if !errors.As(err, &delivery) {
			err = domain.NotificationDeliveryError{Backend: "notifier", Err: err}
		}
		result.NotifyErr = err
		c.onError(result.RunID, CheckErrorStageNotify, err)
		logger.Error("failed to send availability notification", slog.Any("error", err))
		return
	}

	result.Notified = true
	logger.Info("availability notification sent")
}

func (c *AvailabilityChecker) finish(ctx context.Context, logger *slog.Logger, result domain.RunResult) domain.RunResult {
	result.FinishedAt = c.nowFn()

	for _, observer := range c.observers {
		obsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.notifyTimeout)
		err := observer.ObserveRun(obsCtx, result)
		cancel()
		if err != nil {
			c.onError(result.RunID, CheckErrorStageObserve, err)
			logger.Warn("run observer failed", slog.Any("error", err))
		}
	}

	logger.Info("availability check finished",
		slog.String("outcome", string(result.Outcome)),
		slog.Duration("duration", result.Duration()),
		slog.Bool("notified", result.Notified),
	)
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
