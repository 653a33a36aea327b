package presentation

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/sglre6355/ferry-watch/internal/domain"
	"github.com/sglre6355/ferry-watch/internal/usecase"
)

// DiscordNotifier posts availability alerts to a Discord channel.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

var _ usecase.Notifier = (*DiscordNotifier)(nil)

// NewDiscordNotifier wires a Discord session to the notifier interface expected by the use case layer.
func NewDiscordNotifier(session *discordgo.Session, channelID string) *DiscordNotifier {
	return &DiscordNotifier{session: session, channelID: channelID}
}

// NewDiscordSession creates a REST-only bot session. No gateway connection is opened.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.ShouldRetryOnRateLimit = false
	return session, nil
}

// Notify posts message to the configured channel.
func (n *DiscordNotifier) Notify(ctx context.Context, message string) error {
	if n.session == nil {
		return domain.NotificationDeliveryError{Backend: "discord", Err: fmt.Errorf("discord session is not initialised")}
	}

	if err := ctx.Err(); err != nil {
		return domain.NotificationDeliveryError{Backend: "discord", Err: err}
	}

	if _, err := n.session.ChannelMessageSend(n.channelID, message, discordgo.WithContext(ctx)); err != nil {
		return domain.NotificationDeliveryError{
			Backend: "discord",
			Err:     fmt.Errorf("failed to send message to channel %s: %w", n.channelID, err),
		}
	}

	return nil
}
