// Package browser drives Chrome through the DevTools protocol.
package browser

import (
	"context"
	"fmt"
	"log/slog"

	"dario.cat/mergo"
	"github.com/chromedp/chromedp"

	"github.com/sglre6355/ferry-watch/internal/usecase"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls how browser sessions are started.
type Config struct {
	// Headless runs a local Chrome without a window.
	Headless bool
	// RemoteURL attaches to an already running browser instead of launching one,
	// e.g. ws://127.0.0.1:9222/devtools/browser/<id>.
	RemoteURL    string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
}

// DefaultConfig returns a headless desktop-sized session.
func DefaultConfig() Config {
	return Config{
		Headless:     true,
		UserAgent:    defaultUserAgent,
		WindowWidth:  1280,
		WindowHeight: 720,
	}
}

// ChromeBrowser opens one Chrome tab per run.
type ChromeBrowser struct {
	cfg    Config
	logger *slog.Logger
}

var _ usecase.Browser = (*ChromeBrowser)(nil)

// NewChromeBrowser constructs a ChromeBrowser. A nil logger falls back to slog.Default.
func NewChromeBrowser(cfg Config, logger *slog.Logger) *ChromeBrowser {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WindowWidth < 0 || cfg.WindowHeight < 0 {
		cfg.WindowWidth, cfg.WindowHeight = 0, 0
	}
	// Fill unset fields only. Headless is left as given.
	fill := Config{UserAgent: defaultUserAgent, WindowWidth: 1280, WindowHeight: 720}
	if err := mergo.Merge(&cfg, fill); err != nil {
		logger.Warn("failed to apply browser defaults", slog.Any("error", err))
	}
	return &ChromeBrowser{cfg: cfg, logger: logger}
}

// Open starts the browser and returns its first tab. The session outlives ctx and
// must be released with Close.
func (b *ChromeBrowser) Open(ctx context.Context) (usecase.BookingPage, error) {
	allocCtx, cancelAlloc := b.newAllocator()

	logf := func(format string, args ...any) {
		b.logger.Debug(fmt.Sprintf(format, args...), slog.String("component", "chromedp"))
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logf),
		chromedp.WithErrorf(logf),
	)

	page := &chromePage{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	// The first Run launches the browser and binds it to the context it is given, so it
	// must run on tabCtx itself; ctx only bounds how long we wait for it.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	var err error
	select {
	case err = <-started:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		cancelTab()
		cancelAlloc()
		if b.cfg.RemoteURL != "" {
			return nil, fmt.Errorf("attach to browser at %s: %w", b.cfg.RemoteURL, err)
		}
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	return page, nil
}

func (b *ChromeBrowser) newAllocator() (context.Context, context.CancelFunc) {
	if b.cfg.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(context.Background(), b.cfg.RemoteURL)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(b.cfg.UserAgent),
		chromedp.WindowSize(b.cfg.WindowWidth, b.cfg.WindowHeight),
	)
	return chromedp.NewExecAllocator(context.Background(), opts...)
}
