package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"go-hh-autoreply/internal/chat"
	"go-hh-autoreply/internal/metrics"
	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"
)

// Notifier pushes messages outside of a conversation turn: vacancy cards
// during auto-reply, run summaries and OAuth results.
type Notifier struct {
	bot   *Bot
	users storage.UserStore
}

func NewNotifier(api Sender, users storage.UserStore, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	return &Notifier{bot: NewBot(api, nil, m, logger), users: users}
}

// Notify sends out to the user's last known chat.
func (n *Notifier) Notify(ctx context.Context, userID int64, out chat.Outbound) error {
	u, err := n.users.User(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup chat of user %d: %w", userID, err)
	}
	chatID := u.ChatID
	if chatID == 0 {
		// Private chats share the user's id.
		chatID = userID
	}
	return n.bot.send(chatID, out)
}

func (n *Notifier) NotifyText(ctx context.Context, userID int64, text string) error {
	return n.Notify(ctx, userID, chat.SendText(text, nil))
}

func (n *Notifier) NotifyVacancy(ctx context.Context, userID int64, v models.Vacancy) error {
	text, kb := chat.Card(v)
	out := chat.SendText(text, kb)
	out.Preview = true
	return n.Notify(ctx, userID, out)
}

func (n *Notifier) NotifyOutcomes(ctx context.Context, userID int64, outcomes []models.Outcome) error {
	return n.NotifyText(ctx, userID, chat.BatchSummary(outcomes))
}
