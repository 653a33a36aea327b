package presentation

import (
	"context"
	"log/slog"

	"github.com/sglre6355/ferry-watch/internal/usecase"
)

// LogNotifier writes the alert to the log instead of delivering it. Used for dry runs.
type LogNotifier struct {
	logger *slog.Logger
}

var _ usecase.Notifier = (*LogNotifier)(nil)

// NewLogNotifier constructs a LogNotifier. A nil logger falls back to slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs message at info level and always succeeds.
func (n *LogNotifier) Notify(ctx context.Context, message string) error {
	n.logger.InfoContext(ctx, "dry run: notification not sent", slog.String("message", message))
	return nil
}
