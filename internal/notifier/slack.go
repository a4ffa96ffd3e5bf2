package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// SlackNotifier posts alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	http       *resty.Client
}

// NewSlackNotifier creates a notifier for webhookURL.
func NewSlackNotifier(webhookURL string) (*SlackNotifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("slack webhook URL is required")
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		http:       resty.New().SetTimeout(10 * time.Second),
	}, nil
}

type slackMessage struct {
	Text string `json:"text"`
}

// FormatSlack renders an alert as Slack mrkdwn.
func FormatSlack(alert Alert) string {
	return fmt.Sprintf("*%s*\n%s", alert.subject(), alert.Message)
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, alert Alert) error {
	res, err := n.http.R().
		SetContext(ctx).
		SetBody(slackMessage{Text: FormatSlack(alert)}).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("posting to slack: status %d: %s", res.StatusCode(), res.String())
	}
	return nil
}
