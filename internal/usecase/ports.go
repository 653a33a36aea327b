package usecase

import (
	"context"

	"github.com/sglre6355/ferry-watch/internal/domain"
)

// PageContent is a snapshot of what the browser currently renders.
type PageContent struct {
	HTML  string
	Text  string
	URL   string
	Title string
}

// BookingPage is the page-interaction capability the booking flow drives. Every call is
// bounded by ctx; implementations must return promptly once it expires.
type BookingPage interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Count(ctx context.Context, selector string) (int, error)
	SelectOption(ctx context.Context, selector, label string) error
	Fill(ctx context.Context, selector, value string) error
	Value(ctx context.Context, selector string) (string, error)
	Click(ctx context.Context, selector string) error
	Content(ctx context.Context) (PageContent, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Browser opens a fresh browser session for a single run.
type Browser interface {
	Open(ctx context.Context) (BookingPage, error)
}

// Notifier delivers the availability alert.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// ArtifactStore persists diagnostics for later inspection and returns where they went.
type ArtifactStore interface {
	SaveDiagnostic(ctx context.Context, runID string, diag domain.Diagnostic) ([]string, error)
}

// RunObserver is told about every finished run.
type RunObserver interface {
	ObserveRun(ctx context.Context, result domain.RunResult) error
}
