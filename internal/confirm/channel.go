package confirm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cuongbtq/workorder-watcher/shared/telegram"
)

// Reply is one inbound chat message
type Reply struct {
	SenderID string
	Text     string
	// Offset is the value to pass as since to skip this reply and everything before it
	Offset int64
}

// Channel is a notify plus poll-for-reply messaging endpoint
type Channel interface {
	Notify(ctx context.Context, text string) error
	// PollReplies returns replies not yet acknowledged by since, oldest first
	PollReplies(ctx context.Context, since int64) ([]Reply, error)
	// DiscardPending acknowledges every queued reply and returns the next offset
	DiscardPending(ctx context.Context) (int64, error)
	// Acquire reserves the channel for one prompt-and-wait conversation
	Acquire(ctx context.Context) (release func(), err error)
}

// Bot is the part of the Telegram client the channel uses
type Bot interface {
	SendMessage(ctx context.Context, chatID, text, parseMode string) error
	GetUpdates(ctx context.Context, offset int64, longPoll time.Duration) ([]telegram.Update, error)
}

// Telegram adapts a bot conversation with one operator chat to Channel
type Telegram struct {
	Gate

	bot      Bot
	chatID   string
	longPoll time.Duration
	logger   *slog.Logger
}

// NewTelegram creates a Channel that talks to chatID
func NewTelegram(bot Bot, chatID string, longPoll time.Duration, logger *slog.Logger) *Telegram {
	return &Telegram{
		bot:      bot,
		chatID:   chatID,
		longPoll: longPoll,
		logger:   logger,
	}
}

// ChatID returns the operator chat identity
func (t *Telegram) ChatID() string {
	return t.chatID
}

// Notify sends an HTML formatted message to the operator chat
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := t.bot.SendMessage(ctx, t.chatID, text, telegram.ParseModeHTML); err != nil {
		return fmt.Errorf("failed to notify chat: %w", err)
	}
	return nil
}

// PollReplies long-polls for updates at or after since.
// Non-message updates still advance the returned offsets.
func (t *Telegram) PollReplies(ctx context.Context, since int64) ([]Reply, error) {
	updates, err := t.bot.GetUpdates(ctx, since, t.longPoll)
	if err != nil {
		return nil, fmt.Errorf("failed to poll replies: %w", err)
	}

	replies := make([]Reply, 0, len(updates))
	for _, upd := range updates {
		reply := Reply{Offset: upd.UpdateID + 1}
		if upd.Message != nil {
			reply.SenderID = strconv.FormatInt(upd.Message.Chat.ID, 10)
			reply.Text = upd.Message.Text
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

// DiscardPending acknowledges everything queued before a new request is sent.
// getUpdates returns at most one page, so it keeps acknowledging until a page comes back empty.
func (t *Telegram) DiscardPending(ctx context.Context) (int64, error) {
	var next int64
	discarded := 0
	for {
		// a positive offset marks every earlier update as read
		updates, err := t.bot.GetUpdates(ctx, next, 0)
		if err != nil {
			if next == 0 {
				return 0, fmt.Errorf("failed to fetch pending replies: %w", err)
			}
			return 0, fmt.Errorf("failed to acknowledge pending replies: %w", err)
		}
		if len(updates) == 0 {
			break
		}
		discarded += len(updates)
		next = updates[len(updates)-1].UpdateID + 1
	}

	if discarded > 0 {
		t.logger.Debug("Discarded stale replies",
			slog.Int("count", discarded),
			slog.Int64("next_offset", next),
		)
	}
	return next, nil
}
