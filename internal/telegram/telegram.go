package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultBaseURL is the Bot API endpoint prefix; the bot token follows it.
	DefaultBaseURL = "https://api.telegram.org/bot"
	// MaxMessageLength is the Bot API limit for a text message, in characters.
	MaxMessageLength = 4096

	sendTimeout = 10 * time.Second
)

var (
	ErrNoToken = errors.New("telegram: bot token is required")
	ErrNoChat  = errors.New("telegram: chat ID is required")
	ErrNoText  = errors.New("telegram: message text is required")
)

// APIError is a failure reported by the Bot API.
type APIError struct {
	Status      int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram API returned status %d", e.Status)
	}
	return fmt.Sprintf("telegram API returned status %d: %s", e.Status, e.Description)
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another Bot API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// Client posts messages to a single chat.
type Client struct {
	token   string
	chat    string
	baseURL string
	rest    *resty.Client
}

func NewClient(botToken, chatID string, opts ...Option) (*Client, error) {
	switch {
	case botToken == "":
		return nil, ErrNoToken
	case chatID == "":
		return nil, ErrNoChat
	}
	c := &Client{
		token:   botToken,
		chat:    chatID,
		baseURL: DefaultBaseURL,
		rest:    resty.New().SetTimeout(sendTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type message struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type reply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage posts HTML text to the chat. Text longer than
// MaxMessageLength characters is cut.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if text == "" {
		return ErrNoText
	}

	var r reply
	res, err := c.rest.R().
		SetContext(ctx).
		SetBody(message{
			ChatID:                c.chat,
			Text:                  truncate(text, MaxMessageLength),
			ParseMode:             "HTML",
			DisableWebPagePreview: true,
		}).
		SetResult(&r).
		SetError(&r).
		ForceContentType("application/json").
		Post(c.baseURL + c.token + "/sendMessage")
	if err != nil && (res == nil || !res.IsError()) {
		return fmt.Errorf("posting telegram message: %w", err)
	}
	if res.IsError() || !r.OK {
		return &APIError{Status: res.StatusCode(), Description: r.Description}
	}
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// FormatAlert renders a bold subject line above the escaped message body.
func FormatAlert(subject, body string) string {
	return "<b>" + html.EscapeString(subject) + "</b>\n" + html.EscapeString(body)
}
