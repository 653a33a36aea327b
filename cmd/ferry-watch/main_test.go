package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/sglre6355/ferry-watch/internal/config"
	"github.com/sglre6355/ferry-watch/internal/domain"
	"github.com/sglre6355/ferry-watch/internal/infrastructure/calmac"
	"github.com/sglre6355/ferry-watch/internal/usecase"
)

const (
	testBotToken = "123456:test-token"
	testChatID   = "4242"
	sendURL      = "https://api.telegram.org/bot" + testBotToken + "/sendMessage"

	availablePage   = `<html><body><div class="ferry-results"><div class="sailing"><span class="price">£38.60</span></div></div></body></html>`
	unavailablePage = `<html><body><div class="results"><p>This sailing is Fully Booked.</p></div></body></html>`
	loadingPage     = `<html><body><div class="spinner">Please wait</div></body></html>`
)

// stubPage accepts every interaction and renders a fixed results page.
type stubPage struct {
	html   string
	values map[string]string
	closed int
}

func (p *stubPage) Navigate(context.Context, string) error {
	return nil
}

func (p *stubPage) WaitVisible(context.Context, string) error {
	return nil
}

func (p *stubPage) Count(context.Context, string) (int, error) {
	return 1, nil
}

func (p *stubPage) SelectOption(context.Context, string, string) error {
	return nil
}

func (p *stubPage) Fill(_ context.Context, selector, value string) error {
	p.values[selector] = value
	return nil
}

func (p *stubPage) Value(_ context.Context, selector string) (string, error) {
	return p.values[selector], nil
}

func (p *stubPage) Click(context.Context, string) error {
	return nil
}

func (p *stubPage) Content(context.Context) (usecase.PageContent, error) {
	return usecase.PageContent{HTML: p.html, Text: "Troon Brodick", URL: calmac.SearchURL, Title: "CalMac Ferries"}, nil
}

func (p *stubPage) Screenshot(context.Context) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

func (p *stubPage) Close() error {
	p.closed++
	return nil
}

type stubBrowser struct {
	html  string
	pages []*stubPage
}

func (b *stubBrowser) Open(context.Context) (usecase.BookingPage, error) {
	page := &stubPage{html: b.html, values: map[string]string{}}
	b.pages = append(b.pages, page)
	return page, nil
}

type harness struct {
	dir       string
	browser   *stubBrowser
	transport *httpmock.MockTransport
	out       *bytes.Buffer
	messages  []string
}

func newHarness(t *testing.T, html string) *harness {
	t.Helper()
	dir := t.TempDir()

	t.Setenv("NOTIFY_BACKEND", config.BackendTelegram)
	t.Setenv("TELEGRAM_BOT_TOKEN", testBotToken)
	t.Setenv("TELEGRAM_CHAT_ID", testChatID)
	t.Setenv("TELEGRAM_API_URL", "https://api.telegram.org")
	t.Setenv("DRY_RUN", "false")
	t.Setenv("CRITERIA_FILE", filepath.Join(dir, "criteria.json5"))
	t.Setenv("ARTIFACT_DIR", filepath.Join(dir, "artifacts"))
	t.Setenv("LOG_DIR", config.Disabled)
	t.Setenv("LOCK_FILE", filepath.Join(dir, "ferry-watch.lock"))
	t.Setenv("SETTLE_DELAY", "0s")
	t.Setenv("FIELD_DELAY", "0s")
	t.Setenv("RESULTS_SETTLE_DELAY", "0s")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("PUSHGATEWAY_URL", "")
	t.Setenv("BROWSER_WS_URL", "")

	h := &harness{
		dir:       dir,
		browser:   &stubBrowser{html: html},
		transport: httpmock.NewMockTransport(),
		out:       &bytes.Buffer{},
	}
	h.transport.RegisterResponder(http.MethodPost, sendURL, func(req *http.Request) (*http.Response, error) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return nil, err
		}
		h.messages = append(h.messages, body.Text)
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"ok": true})
	})

	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
	return h
}

func (h *harness) execute(args ...string) int {
	a := newApp()
	a.stdout = h.out
	a.telegramTransport = h.transport
	a.newBrowser = func(config.Config, *slog.Logger) usecase.Browser { return h.browser }
	return execute(context.Background(), a, args)
}

func TestCheckDefaultCriteriaAvailable(t *testing.T) {
	h := newHarness(t, availablePage)

	code := h.execute()

	require.Equal(t, exitOK, code)
	require.Len(t, h.browser.pages, 1)
	require.Equal(t, 1, h.browser.pages[0].closed)
	require.Len(t, h.messages, 1)

	msg := h.messages[0]
	require.Contains(t, msg, "Troon → Brodick")
	require.Contains(t, msg, "Brodick → Troon")
	require.Contains(t, msg, calmac.BookingURL)

	_, err := os.Stat(filepath.Join(h.dir, "ferry-watch.lock"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCheckUnavailableSendsNothing(t *testing.T) {
	h := newHarness(t, unavailablePage)

	require.Equal(t, exitOK, h.execute("check"))
	require.Empty(t, h.messages)
	require.Zero(t, h.transport.GetTotalCallCount())
}

func TestCheckUnrecognisedPageSavesDiagnostics(t *testing.T) {
	h := newHarness(t, loadingPage)

	require.Equal(t, exitError, h.execute("check"))
	require.Empty(t, h.messages)

	entries, err := os.ReadDir(filepath.Join(h.dir, "artifacts"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.NotEmpty(t, names)
	require.True(t, hasSuffix(names, "_screenshot.png"))
	require.True(t, hasSuffix(names, "_page.html"))
}

func TestCheckNotificationFailure(t *testing.T) {
	h := newHarness(t, availablePage)
	h.transport.RegisterResponder(http.MethodPost, sendURL,
		httpmock.NewJsonResponderOrPanic(http.StatusBadRequest, map[string]any{
			"ok": false, "error_code": 400, "description": "Bad Request: chat not found",
		}),
	)

	require.Equal(t, exitNotifyFailed, h.execute("check"))
	require.Equal(t, 1, h.transport.GetTotalCallCount())
}

func TestCheckMissingCredentials(t *testing.T) {
	for _, key := range []string{"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID"} {
		t.Run(key, func(t *testing.T) {
			h := newHarness(t, availablePage)
			t.Setenv(key, "")

			require.Equal(t, exitConfig, h.execute("check"))
			require.Empty(t, h.browser.pages)
			require.Zero(t, h.transport.GetTotalCallCount())
			require.Empty(t, h.messages)
		})
	}
}

func TestCheckDryRunNeedsNoCredentials(t *testing.T) {
	h := newHarness(t, availablePage)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	require.Equal(t, exitOK, h.execute("check", "--dry-run"))
	require.Len(t, h.browser.pages, 1)
	require.Zero(t, h.transport.GetTotalCallCount())
	require.Contains(t, h.out.String(), "dry run: notification not sent")
}

func TestCheckSkipsWhileLockHeld(t *testing.T) {
	h := newHarness(t, availablePage)
	lockPath := filepath.Join(h.dir, "ferry-watch.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))

	require.Equal(t, exitOK, h.execute("check"))
	require.Empty(t, h.browser.pages)
	require.Empty(t, h.messages)
	require.FileExists(t, lockPath)

	require.Equal(t, exitOK, h.execute("check", "--no-lock"))
	require.Len(t, h.browser.pages, 1)
}

func TestCheckInvalidCriteriaFile(t *testing.T) {
	h := newHarness(t, availablePage)
	path := filepath.Join(h.dir, "broken.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{outbound: {date: "3rd August"}}`), 0o644))

	require.Equal(t, exitConfig, h.execute("check", "--criteria", path))
	require.Empty(t, h.browser.pages)
}

func TestHistoryListsRecordedRuns(t *testing.T) {
	h := newHarness(t, availablePage)
	t.Setenv("DATABASE_DSN", "sqlite://"+filepath.Join(h.dir, "history.db"))

	require.Equal(t, exitOK, h.execute("check"))
	h.browser.html = unavailablePage
	require.Equal(t, exitOK, h.execute("check"))

	h.out.Reset()
	require.Equal(t, exitOK, h.execute("history", "--limit", "5"))

	out := h.out.String()
	require.Contains(t, out, "available")
	require.Contains(t, out, "unavailable")
	require.Contains(t, out, "fully booked")
}

func TestHistoryRequiresDatabase(t *testing.T) {
	h := newHarness(t, availablePage)

	require.Equal(t, exitConfig, h.execute("history"))
}

func TestInspectPrintsReport(t *testing.T) {
	h := newHarness(t, availablePage)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	require.Equal(t, exitOK, h.execute("inspect"))

	out := h.out.String()
	require.Contains(t, out, "page elements")
	require.Contains(t, out, "Troon")
	require.Contains(t, out, "CalMac Ferries")
	require.Empty(t, h.messages)
	require.Equal(t, 1, h.browser.pages[0].closed)
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitOK},
		{name: "configuration", err: domain.ConfigurationError{Field: "STEP_TIMEOUT", Err: errors.New("must be positive")}, want: exitConfig},
		{name: "joined configuration", err: errors.Join(domain.ConfigurationError{Field: "TELEGRAM_CHAT_ID"}), want: exitConfig},
		{name: "other", err: errors.New("create lock directory: permission denied"), want: exitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestOutcomeExitCode(t *testing.T) {
	notifyErr := domain.NotificationDeliveryError{Backend: "telegram", Err: errors.New("chat not found")}

	tests := []struct {
		name   string
		result domain.RunResult
		want   int
	}{
		{name: "available", result: domain.RunResult{Outcome: domain.OutcomeAvailable, Notified: true}, want: exitOK},
		{name: "unavailable", result: domain.RunResult{Outcome: domain.OutcomeUnavailable}, want: exitOK},
		{name: "error", result: domain.RunResult{Outcome: domain.OutcomeError, Err: domain.ErrResultsUnrecognised}, want: exitError},
		{name: "notify failed", result: domain.RunResult{Outcome: domain.OutcomeAvailable, NotifyErr: notifyErr}, want: exitNotifyFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, outcomeExitCode(tt.result))
		})
	}
}

func TestSiteFor(t *testing.T) {
	site, err := siteFor("calmac")
	require.NoError(t, err)
	require.Equal(t, calmac.SearchURL, site.SearchURL)

	_, err = siteFor("northlink")
	var cfgErr domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLockFilePath(t *testing.T) {
	require.Empty(t, lockFilePath(config.Config{LockFile: config.Disabled}))
	require.Equal(t, "/run/fw.lock", lockFilePath(config.Config{LockFile: "/run/fw.lock"}))
	require.NotEmpty(t, lockFilePath(config.Config{}))
}

func TestNewLoggerWritesDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2025, time.July, 20, 9, 30, 0, 0, time.UTC)
	var out bytes.Buffer

	logger, closeFn, err := newLogger(&out, false, dir, now)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("starting availability check", slog.String("run_id", "abc"))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(dir, "ferry-watch-20250720.log"))
	require.NoError(t, err)
	require.Equal(t, out.String(), string(data))
	require.Contains(t, string(data), `"msg":"starting availability check"`)
	require.NotContains(t, string(data), "hidden")
}

func TestRenderHistory(t *testing.T) {
	start := time.Date(2025, time.July, 20, 9, 30, 0, 0, time.UTC)
	var out bytes.Buffer

	renderHistory(&out, []domain.RunSummary{
		{
			RunID:       "0f8fad5b-d9cb-469f-a165-70867728950e",
			Outcome:     domain.OutcomeAvailable,
			StartedAt:   start,
			FinishedAt:  start.Add(42 * time.Second),
			NotifyError: "telegram notification failed: chat not found",
		},
		{
			RunID:      "run-2",
			Outcome:    domain.OutcomeError,
			ErrorLabel: "timeout",
			Error:      "results: timed out",
			StartedAt:  start,
			FinishedAt: start,
		},
	})

	got := out.String()
	require.Contains(t, got, "0f8fad5b")
	require.NotContains(t, got, "0f8fad5b-d9cb")
	require.Contains(t, got, "42s")
	require.Contains(t, got, "notify: telegram notification failed")
	require.Contains(t, got, "timeout: results: timed out")
}

func hasSuffix(names []string, suffix string) bool {
	for _, n := range names {
		if strings.HasSuffix(n, suffix) {
			return true
		}
	}
	return false
}
