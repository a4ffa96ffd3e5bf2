package notifier

import (
	"context"
	"fmt"

	"github.com/pfrederiksen/permit-scraper/internal/telegram"
)

// TelegramNotifier sends alerts to a Telegram chat.
type TelegramNotifier struct {
	client *telegram.Client
}

// NewTelegramNotifier creates a notifier for the given bot and chat.
func NewTelegramNotifier(botToken, chatID string) (*TelegramNotifier, error) {
	client, err := telegram.NewClient(botToken, chatID)
	if err != nil {
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}
	return &TelegramNotifier{client: client}, nil
}

// Notify implements Notifier.
func (n *TelegramNotifier) Notify(ctx context.Context, alert Alert) error {
	if err := n.client.SendMessage(ctx, telegram.FormatAlert(alert.subject(), alert.Message)); err != nil {
		return fmt.Errorf("sending telegram alert: %w", err)
	}
	return nil
}
