package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseModeHTML renders message text as Telegram HTML
const ParseModeHTML = tgbotapi.ModeHTML

// DefaultBaseURL is the public Bot API host
const DefaultBaseURL = "https://api.telegram.org"

// Config holds Telegram Bot API settings
type Config struct {
	BaseURL        string
	BotToken       string
	RequestTimeout time.Duration
}

// Update is one entry returned by getUpdates
type Update struct {
	UpdateID int64
	Message  *Message
}

// Message is the subset of a Telegram message the service reads
type Message struct {
	MessageID int64
	Chat      Chat
	From      *User
	Date      int64
	Text      string
}

// Chat identifies the conversation a message belongs to
type Chat struct {
	ID   int64
	Type string
}

// User is the sender of a message
type User struct {
	ID       int64
	Username string
}

// APIError is returned when the Bot API answers with ok=false
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: %d %s", e.Method, e.Code, e.Description)
}

// Client calls the Telegram Bot API through tgbotapi
type Client struct {
	config   *Config
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a new Telegram client. No request is made until the first call.
func NewClient(config *Config, logger *slog.Logger) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	base := config.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		config:   config,
		endpoint: strings.TrimRight(base, "/") + "/bot%s/%s",
		logger:   logger,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// bot returns a BotAPI whose requests are bound to ctx.
// tgbotapi.NewBotAPI would call getMe, so the struct is assembled directly.
func (c *Client) bot(ctx context.Context) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  c.config.BotToken,
		Client: contextDoer{ctx: ctx, client: c.http},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(c.endpoint)
	return bot
}

// SendMessage posts text to chatID. A non-numeric chatID is sent as a channel username.
func (c *Client) SendMessage(ctx context.Context, chatID, text, parseMode string) error {
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	}
	msg.ParseMode = parseMode

	if _, err := c.bot(ctx).Send(msg); err != nil {
		return c.wrap("sendMessage", err)
	}

	c.logger.Debug("Telegram message sent", slog.Int("length", len(text)))
	return nil
}

// GetUpdates returns updates with update_id >= offset, long polling for up to longPoll.
// An offset of 0 returns every unconfirmed update.
func (c *Client) GetUpdates(ctx context.Context, offset int64, longPoll time.Duration) ([]Update, error) {
	cfg := tgbotapi.NewUpdate(int(offset))
	cfg.Timeout = int(longPoll / time.Second)
	cfg.AllowedUpdates = []string{"message"}

	raw, err := c.bot(ctx).GetUpdates(cfg)
	if err != nil {
		return nil, c.wrap("getUpdates", err)
	}

	updates := make([]Update, 0, len(raw))
	for _, u := range raw {
		updates = append(updates, convertUpdate(u))
	}
	return updates, nil
}

func convertUpdate(u tgbotapi.Update) Update {
	out := Update{UpdateID: int64(u.UpdateID)}
	if u.Message == nil {
		return out
	}
	msg := &Message{
		MessageID: int64(u.Message.MessageID),
		Date:      int64(u.Message.Date),
		Text:      u.Message.Text,
	}
	if u.Message.Chat != nil {
		msg.Chat = Chat{ID: u.Message.Chat.ID, Type: u.Message.Chat.Type}
	}
	if u.Message.From != nil {
		msg.From = &User{ID: u.Message.From.ID, Username: u.Message.From.UserName}
	}
	out.Message = msg
	return out
}

func (c *Client) wrap(method string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &APIError{Method: method, Code: apiErr.Code, Description: apiErr.Message}
	}
	// transport errors carry the URL, which embeds the bot token
	return fmt.Errorf("telegram %s request failed: %w", method, redact(err, c.config.BotToken))
}

// contextDoer attaches ctx to every request tgbotapi builds
type contextDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d contextDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), err: err}
}
