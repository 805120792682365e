package telegram

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"go-hh-autoreply/internal/chat"
	"go-hh-autoreply/internal/dispatcher"
)

var (
	// ErrUndecodable is returned for webhook bodies that are not an update in
	// plain, gzip or zlib encoding.
	ErrUndecodable = errors.New("telegram: undecodable update")
	// ErrIgnored marks updates that carry nothing the bot reacts to.
	ErrIgnored = errors.New("telegram: update ignored")
)

// DecodeUpdate parses a webhook body. Some proxies forward it compressed, so
// gzip and zlib are tried after plain JSON.
func DecodeUpdate(raw []byte) (tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.Unmarshal(raw, &u); err == nil {
		return u, nil
	}
	for _, open := range []func(io.Reader) (io.ReadCloser, error){
		func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) },
		zlib.NewReader,
	} {
		rc, err := open(bytes.NewReader(raw))
		if err != nil {
			continue
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		if err := json.Unmarshal(body, &u); err == nil {
			return u, nil
		}
	}
	return tgbotapi.Update{}, ErrUndecodable
}

// EventFrom classifies an update. Callback data is decoded here, once.
func EventFrom(u tgbotapi.Update) (dispatcher.Event, error) {
	if cb := u.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return dispatcher.Event{}, ErrIgnored
		}
		a, err := chat.ParseAction(cb.Data)
		if err != nil {
			return dispatcher.Event{}, err
		}
		return dispatcher.Button(cb.From.ID, cb.Message.Chat.ID, cb.Message.MessageID, a), nil
	}

	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return dispatcher.Event{}, ErrIgnored
	}
	if msg.IsCommand() {
		return dispatcher.Command(msg.From.ID, msg.Chat.ID, strings.ToLower(msg.Command()), msg.CommandArguments()), nil
	}
	if strings.TrimSpace(msg.Text) == "" {
		return dispatcher.Event{}, fmt.Errorf("%w: message without text", ErrIgnored)
	}
	return dispatcher.Text(msg.From.ID, msg.Chat.ID, msg.Text), nil
}

// UpdateSource is the long-polling side of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poll handles updates one at a time until ctx is done.
func (b *Bot) Poll(ctx context.Context, src UpdateSource) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := src.GetUpdatesChan(cfg)
	defer src.StopReceivingUpdates()

	b.logger.Info("telegram long polling started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram long polling stopped")
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, u)
		}
	}
}

// RegisterWebhook points Telegram at url. The secret is echoed back in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery.
func RegisterWebhook(api *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	params.AddNonEmpty("allowed_updates", `["message","callback_query"]`)
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DropWebhook removes any webhook so long polling can be used.
func DropWebhook(api Sender) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
