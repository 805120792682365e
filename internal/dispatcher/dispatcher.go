// Package dispatcher is the conversation state machine: it turns one chat
// event into one outbound reply, using the pending marker as the only
// per-user conversation state.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"runtime/debug"
	"time"

	"go-hh-autoreply/internal/auth"
	"go-hh-autoreply/internal/autoreply"
	"go-hh-autoreply/internal/chat"
	"go-hh-autoreply/internal/filter"
	"go-hh-autoreply/internal/metrics"
	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"
)

const (
	msgAuthorizeFirst = "Сначала авторизуйтесь через /start"
	msgChooseResume   = "Сначала выберите резюме через /resumes"
	msgGenericError   = "⚠️ Что-то пошло не так, попробуйте ещё раз."
	msgNothingFound   = "По заданным фильтрам ничего не найдено."
	msgNoMore         = "Дальше вакансий нет"
	msgStopped        = "Просмотр остановлен"
	msgIdleText       = "Используйте /settings, чтобы настроить фильтры, или /browse для поиска вакансий."
)

// Credentials resolves hh.ru authorization and the default resume of a user.
type Credentials interface {
	AuthURL(userID int64) string
	Authorized(ctx context.Context, userID int64) (bool, error)
	AccessToken(ctx context.Context, userID int64) (string, error)
	SetResume(ctx context.Context, userID int64, resumeID string) error
}

// Board is the part of the hh.ru client the conversation needs.
type Board interface {
	Search(ctx context.Context, token string, params url.Values) ([]models.Vacancy, error)
	Resumes(ctx context.Context, token string) ([]models.Resume, error)
}

// AutoReplier runs auto-reply batches and single responses.
type AutoReplier interface {
	Run(ctx context.Context, userID int64, src autoreply.Source) ([]models.Outcome, error)
	RespondOne(ctx context.Context, userID int64, vacancyID string) error
}

// Deps are the collaborators of a Dispatcher. Metrics may be nil.
type Deps struct {
	Settings  storage.SettingsStore
	Queue     storage.QueueStore
	Users     storage.UserStore
	Filters   *filter.Accumulator
	Auth      Credentials
	Board     Board
	AutoReply AutoReplier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type Dispatcher struct {
	Deps
}

// New returns a Dispatcher; a nil Logger falls back to slog.Default.
func New(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Dispatcher{Deps: deps}
}

// Handle processes one event. It never panics and always returns the reply
// to render, which may be chat.NoReply().
func (d *Dispatcher) Handle(ctx context.Context, ev Event) (out chat.Outbound) {
	start := time.Now()
	logger := d.Logger.With("user_id", ev.UserID, "event", ev.Kind.String())
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling event", "panic", r, "stack", string(debug.Stack()))
			d.Metrics.IncError("panic")
			out = notice(ev, msgGenericError)
		}
		d.Metrics.ObserveEvent(ev.Kind.String(), start)
	}()

	if ev.Kind != EventButton {
		if err := d.Users.SaveChat(ctx, ev.UserID, ev.ChatID); err != nil {
			logger.Warn("saving chat address failed", "error", err)
		}
	}

	switch ev.Kind {
	case EventCommand:
		return d.command(ctx, logger, ev)
	case EventText:
		return d.text(ctx, logger, ev)
	case EventButton:
		return d.button(ctx, logger, ev)
	}
	return chat.NoReply()
}

// notice picks the reply form for a short message: answer a button, send otherwise.
func notice(ev Event, text string) chat.Outbound {
	if ev.Kind == EventButton {
		return chat.AnswerText(text)
	}
	return chat.SendText(text, nil)
}

// fail logs err with its component and turns it into a user notice.
func (d *Dispatcher) fail(logger *slog.Logger, ev Event, component string, err error) chat.Outbound {
	switch {
	case errors.Is(err, auth.ErrNotAuthorized):
		return notice(ev, msgAuthorizeFirst)
	case errors.Is(err, autoreply.ErrNoResume):
		return notice(ev, msgChooseResume)
	}
	logger.Error("event failed", "component", component, "error", err)
	d.Metrics.IncError(component)
	return notice(ev, msgGenericError)
}

func (d *Dispatcher) clearPending(ctx context.Context, logger *slog.Logger, userID int64) {
	if err := storage.SetPending(ctx, d.Settings, userID, ""); err != nil {
		logger.Warn("clearing pending input failed", "error", err)
	}
}

// ---------------- COMMANDS ----------------

func (d *Dispatcher) command(ctx context.Context, logger *slog.Logger, ev Event) chat.Outbound {
	// Any command abandons an unfinished input.
	d.clearPending(ctx, logger, ev.UserID)

	switch ev.Command {
	case "start":
		return d.start(ctx, logger, ev)
	case "help":
		return chat.SendText(chat.HelpText, nil)
	case "settings":
		text, kb := chat.SettingsMenu()
		return chat.SendText(text, kb)
	case "filters":
		s, err := d.Filters.Load(ctx, ev.UserID)
		if err != nil {
			return d.fail(logger, ev, "storage", err)
		}
		text, kb := chat.FiltersMenu(s)
		return chat.SendText(text, kb)
	case "cancel":
		return chat.SendText("Ввод отменён.", nil)
	case "resumes":
		return d.resumes(ctx, logger, ev)
	case "browse":
		return d.browse(ctx, logger, ev)
	case "autoreply", "auto_reply":
		return d.autoReply(ctx, logger, ev)
	}
	return chat.SendText("Неизвестная команда.\n\n"+chat.HelpText, nil)
}

func (d *Dispatcher) start(ctx context.Context, logger *slog.Logger, ev Event) chat.Outbound {
	ok, err := d.Auth.Authorized(ctx, ev.UserID)
	if err != nil {
		return d.fail(logger, ev, "storage", err)
	}
	if !ok {
		text, kb := chat.Authorize(d.Auth.AuthURL(ev.UserID))
		return chat.SendText(text, kb)
	}
	return chat.SendText("✅ Бот уже авторизован.\n"+chat.HelpText, nil)
}

func (d *Dispatcher) resumes(ctx context.Context, logger *slog.Logger, ev Event) chat.Outbound {
	token, err := d.Auth.AccessToken(ctx, ev.UserID)
	if err != nil {
		return d.fail(logger, ev, "auth", err)
	}
	list, err := d.Board.Resumes(ctx, token)
	if err != nil {
		logger.Error("listing resumes failed", "error", err)
		d.Metrics.IncError("hh")
		return chat.SendText("❗ Не удалось получить резюме с hh.ru. Попробуйте позже.", nil)
	}
	if len(list) == 0 {
		return chat.SendText("У вас нет опубликованных резюме.", nil)
	}
	text, kb := chat.ResumeChoices(list)
	return chat.SendText(text, kb)
}

// browse runs a search and starts a new browse session. On any failure the
// existing queue is left as it was.
func (d *Dispatcher) browse(ctx context.Context, logger *slog.Logger, ev Event) chat.Outbound {
	token, err := d.Auth.AccessToken(ctx, ev.UserID)
	if err != nil {
		return d.fail(logger, ev, "auth", err)
	}
	params, err := d.Filters.Collect(ctx, ev.UserID)
	if err != nil {
		return d.fail(logger, ev, "storage", err)
	}

	items, err := d.Board.Search(ctx, token, params)
	if err != nil {
		logger.Error("vacancy search failed", "error", err)
		d.Metrics.IncError("hh")
		return chat.SendText("❗ Не удалось получить вакансии с hh.ru. Попробуйте позже.", nil)
	}
	if len(items) == 0 {
		return chat.SendText(msgNothingFound, nil)
	}

	if err := d.Queue.Replace(ctx, ev.UserID, items); err != nil {
		return d.fail(logger, ev, "storage", err)
	}
	d.Metrics.IncQueueReplaced()

	first, err := d.Queue.Next(ctx, ev.UserID)
	if err != nil {
		return d.fail(logger, ev, "storage", err)
	}
	if first == nil {
		return chat.SendText(msgNothingFound, nil)
	}
	text, kb := chat.Card(*first)
	out := chat.SendText(text, kb)
	out.Preview = true
	return out
}

func (d *Dispatcher) autoReply(ctx context.Context, logger *slog.Logger, ev Event) chat.Outbound {
	outcomes, err := d.AutoReply.Run(ctx, ev.UserID, autoreply.SourceSearch)
	if err != nil {
		return d.fail(logger, ev, "autoreply", err)
	}
	return chat.SendText(chat.BatchSummary(outcomes), nil)
}

// ---------------- FREE TEXT ----------------

func (d *Dispatcher) text(ctx context.Context, logger *slog.Logger, ev Event) chat.Outbound {
	pending, err := storage.GetPending(ctx, d.Settings, ev.UserID)
	if err != nil {
		return d.fail(logger, ev, "storage", err)
	}
	if pending == "" {
		return chat.SendText(msgIdleText, nil)
	}

	res, err := d.Filters.Accept(ctx, ev.UserID, pending, ev.Text)
	if errors.Is(err, filter.ErrUnknownField) {
		// A marker for a field that no longer takes text; drop it.
		d.clearPending(ctx, logger, ev.UserID)
		return chat.SendText(msgIdleText, nil)
	}
	if err != nil {
		logger.Error("accepting input failed", "field", pending, "error", err)
		d.Metrics.IncError("filter")
		return chat.SendText("❗ Не удалось проверить значение, попробуйте ещё раз.", nil)
	}

	switch res.Status {
	case filter.Rejected:
		// Hints may quote the user's input.
		return chat.SendText("❗ Некорректное значение.\n"+html.EscapeString(res.Hint), nil)
	case filter.Ambiguous:
		text, kb := chat.AreaChoices(res.Candidates)
		return chat.SendText(text, kb)
	}
	return d.filtersWith(ctx, logger, ev, fmt.Sprintf("✅ %s: %s\n\n", res.Field.Title(), html.EscapeString(res.Value)), chat.SendText)
}

// filtersWith renders the filters menu under a confirmation line.
func (d *Dispatcher) filtersWith(ctx context.Context, logger *slog.Logger, ev Event, prefix string, render func(string, *chat.Keyboard) chat.Outbound) chat.Outbound {
	s, err := d.Filters.Load(ctx, ev.UserID)
	if err != nil {
		return d.fail(logger, ev, "storage", err)
	}
	text, kb := chat.FiltersMenu(s)
	return render(prefix+text, kb)
}

// ---------------- BUTTONS ----------------

func (d *Dispatcher) button(ctx context.Context, logger *slog.Logger, ev Event) chat.Outbound {
	a := ev.Action
	switch a.Kind {
	case chat.ActionMenu:
		d.clearPending(ctx, logger, ev.UserID)
		switch a.Menu {
		case chat.MenuSettings:
			text, kb := chat.SettingsMenu()
			return chat.EditText(text, kb)
		case chat.MenuFilters:
			return d.filtersWith(ctx, logger, ev, "", chat.EditText)
		}
		return chat.EditText("Главное меню\n"+chat.HelpText, nil)

	case chat.ActionSetField:
		if err := storage.SetPending(ctx, d.Settings, ev.UserID, a.Field); err != nil {
			return d.fail(logger, ev, "storage", err)
		}
		return chat.SendText(fmt.Sprintf("<b>%s</b>\n%s", a.Field.Title(), filter.Hint(a.Field)), nil)

	case chat.ActionSubmenu:
		d.clearPending(ctx, logger, ev.UserID)
		s, err := d.Filters.Load(ctx, ev.UserID)
		if err != nil {
			return d.fail(logger, ev, "storage", err)
		}
		text, kb := chat.MultiSelect(a.Field, s.Values(a.Field))
		return chat.EditText(text, kb)

	case chat.ActionToggle:
		set, err := d.Filters.Toggle(ctx, ev.UserID, a.Field, a.Value)
		if errors.Is(err, filter.ErrUnknownOption) {
			return chat.AnswerText("Неизвестный вариант")
		}
		if err != nil {
			return d.fail(logger, ev, "storage", err)
		}
		text, kb := chat.MultiSelect(a.Field, set)
		return chat.EditText(text, kb)

	case chat.ActionResetFilters:
		if err := d.Filters.Reset(ctx, ev.UserID); err != nil {
			return d.fail(logger, ev, "storage", err)
		}
		return d.filtersWith(ctx, logger, ev, "🧹 Фильтры сброшены\n\n", chat.EditText)

	case chat.ActionChooseArea:
		area, err := d.Filters.Choose(ctx, ev.UserID, a.Value)
		if err != nil {
			return d.fail(logger, ev, "storage", err)
		}
		name := area.Name
		if name == "" {
			name = area.ID
		}
		return d.filtersWith(ctx, logger, ev, "✅ Регион: "+html.EscapeString(name)+"\n\n", chat.EditText)

	case chat.ActionChooseResume:
		if err := d.Auth.SetResume(ctx, ev.UserID, a.Value); err != nil {
			return d.fail(logger, ev, "storage", err)
		}
		d.clearPending(ctx, logger, ev.UserID)
		return chat.EditText("✅ Резюме по умолчанию сохранено!", nil)

	case chat.ActionNext:
		v, err := d.Queue.Next(ctx, ev.UserID)
		if err != nil {
			return d.fail(logger, ev, "storage", err)
		}
		if v == nil {
			return chat.AnswerText(msgNoMore)
		}
		text, kb := chat.Card(*v)
		out := chat.EditText(text, kb)
		out.Preview = true
		return out

	case chat.ActionStop:
		if err := d.Queue.Clear(ctx, ev.UserID); err != nil {
			return d.fail(logger, ev, "storage", err)
		}
		return chat.EditText(msgStopped, nil)

	case chat.ActionRespond:
		return d.respond(ctx, logger, ev, a.Value)
	}
	return chat.AnswerText("Неизвестное действие")
}

func (d *Dispatcher) respond(ctx context.Context, logger *slog.Logger, ev Event, vacancyID string) chat.Outbound {
	err := d.AutoReply.RespondOne(ctx, ev.UserID, vacancyID)
	switch {
	case err == nil:
		return chat.AnswerText("✅ Отклик отправлен!")
	case errors.Is(err, autoreply.ErrTestRequired):
		return chat.AnswerText("📝 Для отклика нужно пройти тест на hh.ru")
	case errors.Is(err, auth.ErrNotAuthorized), errors.Is(err, autoreply.ErrNoResume):
		return d.fail(logger, ev, "auth", err)
	}
	logger.Error("response failed", "vacancy_id", vacancyID, "error", err)
	d.Metrics.IncError("hh")
	return chat.AnswerText("❗ HH: " + autoreply.OutcomeError(err))
}
