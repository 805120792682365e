// Package telegram connects the dispatcher to the Telegram Bot API: it turns
// updates into dispatcher events and renders the replies.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"go-hh-autoreply/internal/chat"
	"go-hh-autoreply/internal/config"
	"go-hh-autoreply/internal/dispatcher"
	"go-hh-autoreply/internal/metrics"
)

// Sender is the part of *tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Handler interface {
	Handle(ctx context.Context, ev dispatcher.Event) chat.Outbound
}

// NewAPI logs in with the bot token.
func NewAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	api.Debug = cfg.Debug
	return api, nil
}

type Bot struct {
	api     Sender
	handler Handler
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewBot(api Sender, handler Handler, m *metrics.Metrics, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{api: api, handler: handler, metrics: m, logger: logger}
}

// HandleUpdate dispatches one update and renders the reply. A pressed button
// is always answered so the client stops its spinner.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	ev, err := EventFrom(u)
	if cb := u.CallbackQuery; cb != nil {
		answer := ""
		defer func() { b.answer(cb.ID, answer) }()

		if err != nil {
			b.logger.Warn("unknown callback data", "data", cb.Data, "error", err)
			return
		}
		out := b.handler.Handle(ctx, ev)
		if out.Kind == chat.Answer {
			answer = out.Text
			return
		}
		b.render(ev, out)
		return
	}

	if err != nil {
		if !errors.Is(err, ErrIgnored) {
			b.logger.Debug("skipping update", "update_id", u.UpdateID, "error", err)
		}
		return
	}
	b.render(ev, b.handler.Handle(ctx, ev))
}

func (b *Bot) render(ev dispatcher.Event, out chat.Outbound) {
	var err error
	switch out.Kind {
	case chat.None, chat.Answer:
		return
	case chat.Send:
		err = b.send(ev.ChatID, out)
	case chat.Edit:
		err = b.edit(ev.ChatID, ev.MessageID, out)
	}
	if err != nil {
		b.metrics.IncError("telegram")
		b.logger.Error("telegram reply failed", "chat_id", ev.ChatID, "kind", out.Kind, "error", err)
	}
}

func (b *Bot) send(chatID int64, out chat.Outbound) error {
	start := time.Now()
	defer b.metrics.ObserveExternal("telegram", "send", start)

	msg := tgbotapi.NewMessage(chatID, out.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = !out.Preview
	if kb := markup(out.Keyboard); kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) edit(chatID int64, messageID int, out chat.Outbound) error {
	start := time.Now()
	defer b.metrics.ObserveExternal("telegram", "edit", start)

	msg := tgbotapi.NewEditMessageText(chatID, messageID, out.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = !out.Preview
	msg.ReplyMarkup = markup(out.Keyboard)
	_, err := b.api.Request(msg)
	if notModified(err) {
		return nil
	}
	return err
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Warn("answering callback failed", "error", err)
	}
}

// notModified reports the error Telegram returns when an edit would not
// change the message.
func notModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func markup(kb *chat.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, r := range kb.Rows {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, btn := range r {
			if btn.URL != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
				continue
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		rows = append(rows, row)
	}
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}
