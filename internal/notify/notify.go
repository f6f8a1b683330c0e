// Package notify pushes run outcomes to a Telegram chat. Delivery is
// best-effort: a failed notification is logged and never fails the run.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"rsvpbot/pkg/logx"
)

type Config struct {
	Token  string
	ChatID int64
}

type Notifier struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

// New builds a notifier, or (nil, nil) when no token is configured; a nil
// *Notifier is a safe no-op receiver.
func New(cfg Config, log logx.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, nil
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("notify: telegram.chat_id is required when a token is set")
	}
	// Send-only: no poller, the bot never consumes updates. Offline skips
	// the getMe probe at construction, so a Telegram outage at process
	// start cannot block a booking run.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
	if err != nil {
		return nil, err
	}
	return &Notifier{bot: b, chatID: cfg.ChatID, log: log}, nil
}

// Send delivers one message to the configured chat.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if n == nil || n.bot == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := n.bot.Send(tele.ChatID(n.chatID), text, &tele.SendOptions{
			DisableWebPagePreview: true,
		})
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			n.log.Warn("telegram notification failed", logx.Err(err))
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendLogLine implements logx.Sender so warnings can be mirrored to chat.
func (n *Notifier) SendLogLine(ctx context.Context, text string) error {
	if n == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return n.Send(ctx, text)
}
