package presentation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sglre6355/ferry-watch/internal/domain"
	"github.com/sglre6355/ferry-watch/internal/usecase"
)

// DefaultTelegramAPIURL is the public Bot API endpoint.
const DefaultTelegramAPIURL = "https://api.telegram.org"

// TelegramNotifier sends alerts through the Telegram Bot API sendMessage method.
type TelegramNotifier struct {
	client *resty.Client
	token  string
	chatID string
}

var _ usecase.Notifier = (*TelegramNotifier)(nil)

// TelegramOption customises the notifier.
type TelegramOption func(*TelegramNotifier)

// WithTelegramAPIURL points the notifier at a different Bot API server.
func WithTelegramAPIURL(baseURL string) TelegramOption {
	return func(n *TelegramNotifier) {
		if baseURL != "" {
			n.client.SetBaseURL(strings.TrimSuffix(baseURL, "/"))
		}
	}
}

// WithTelegramTransport replaces the HTTP transport (useful for testing).
func WithTelegramTransport(transport http.RoundTripper) TelegramOption {
	return func(n *TelegramNotifier) {
		if transport != nil {
			n.client.SetTransport(transport)
		}
	}
}

// NewTelegramNotifier creates a notifier for one bot and chat.
func NewTelegramNotifier(token, chatID string, opts ...TelegramOption) *TelegramNotifier {
	client := resty.New()
	client.SetBaseURL(DefaultTelegramAPIURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Accept", "application/json")

	n := &TelegramNotifier{client: client, token: token, chatID: chatID}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type botAPIResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Notify sends message once. A non-2xx status or "ok": false is a delivery failure.
func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	var result botAPIResponse

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{ChatID: n.chatID, Text: message}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + n.token + "/sendMessage")
	if err != nil {
		return domain.NotificationDeliveryError{
			Backend: "telegram",
			Err:     redactedError{err: err, secret: n.token},
		}
	}

	if resp.IsError() || !result.OK {
		description := result.Description
		if description == "" {
			description = http.StatusText(resp.StatusCode())
		}
		return domain.NotificationDeliveryError{
			Backend: "telegram",
			Err:     fmt.Errorf("sendMessage returned status %d: %s", resp.StatusCode(), description),
		}
	}

	return nil
}

// redactedError hides a credential that transport errors echo back through the URL.
type redactedError struct {
	err    error
	secret string
}

func (e redactedError) Error() string {
	if e.secret == "" {
		return e.err.Error()
	}
	return strings.ReplaceAll(e.err.Error(), e.secret, "<redacted>")
}

func (e redactedError) Unwrap() error {
	return e.err
}
