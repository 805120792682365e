package dispatcher

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-hh-autoreply/internal/auth"
	"go-hh-autoreply/internal/autoreply"
	"go-hh-autoreply/internal/chat"
	"go-hh-autoreply/internal/filter"
	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"
)

const (
	user int64 = 42
	cid  int64 = 4200
)

type fakeCreds struct {
	authorized bool
	resume     string
}

func (f *fakeCreds) AuthURL(userID int64) string { return "https://hh.ru/oauth/authorize?state=x" }

func (f *fakeCreds) Authorized(ctx context.Context, userID int64) (bool, error) {
	return f.authorized, nil
}

func (f *fakeCreds) AccessToken(ctx context.Context, userID int64) (string, error) {
	if !f.authorized {
		return "", auth.ErrNotAuthorized
	}
	return "tok", nil
}

func (f *fakeCreds) SetResume(ctx context.Context, userID int64, resumeID string) error {
	f.resume = resumeID
	return nil
}

type fakeBoard struct {
	results   []models.Vacancy
	resumes   []models.Resume
	searchErr error
	params    url.Values
	panics    bool
}

func (f *fakeBoard) Search(ctx context.Context, token string, params url.Values) ([]models.Vacancy, error) {
	if f.panics {
		panic("boom")
	}
	f.params = params
	return f.results, f.searchErr
}

func (f *fakeBoard) Resumes(ctx context.Context, token string) ([]models.Resume, error) {
	return f.resumes, nil
}

type fakeAreas map[string][]models.Area

func (f fakeAreas) SuggestAreas(ctx context.Context, text string) ([]models.Area, error) {
	return f[text], nil
}

func (f fakeAreas) Area(ctx context.Context, id string) (models.Area, error) {
	for _, list := range f {
		for _, a := range list {
			if a.ID == id {
				return a, nil
			}
		}
	}
	return models.Area{}, errors.New("unknown area")
}

type fakeReplier struct {
	respondErr error
	outcomes   []models.Outcome
}

func (f *fakeReplier) Run(ctx context.Context, userID int64, src autoreply.Source) ([]models.Outcome, error) {
	return f.outcomes, nil
}

func (f *fakeReplier) RespondOne(ctx context.Context, userID int64, vacancyID string) error {
	return f.respondErr
}

type harness struct {
	d       *Dispatcher
	mem     *storage.Memory
	creds   *fakeCreds
	board   *fakeBoard
	replier *fakeReplier
}

func newHarness() *harness {
	mem := storage.NewMemory()
	h := &harness{
		mem:     mem,
		creds:   &fakeCreds{authorized: true},
		board:   &fakeBoard{},
		replier: &fakeReplier{},
	}
	areas := fakeAreas{
		"Москва": {{ID: "1", Name: "Москва"}, {ID: "2019", Name: "Московская область"}},
		"моск":   {{ID: "1", Name: "Москва"}, {ID: "2019", Name: "Московская область"}},
	}
	h.d = New(Deps{
		Settings:  mem,
		Queue:     mem,
		Users:     mem,
		Filters:   filter.NewAccumulator(mem, areas, nil),
		Auth:      h.creds,
		Board:     h.board,
		AutoReply: h.replier,
	})
	return h
}

func (h *harness) cmd(name string) chat.Outbound {
	return h.d.Handle(context.Background(), Command(user, cid, name, ""))
}

func (h *harness) text(s string) chat.Outbound {
	return h.d.Handle(context.Background(), Text(user, cid, s))
}

func (h *harness) press(a chat.Action) chat.Outbound {
	return h.d.Handle(context.Background(), Button(user, cid, 7, a))
}

func (h *harness) pending(t *testing.T) models.Field {
	t.Helper()
	f, err := storage.GetPending(context.Background(), h.mem, user)
	require.NoError(t, err)
	return f
}

func (h *harness) cursor(t *testing.T) (int, int, bool) {
	t.Helper()
	c, n, ok, err := h.mem.Cursor(context.Background(), user)
	require.NoError(t, err)
	return c, n, ok
}

func vacancies(names ...string) []models.Vacancy {
	out := make([]models.Vacancy, 0, len(names))
	for i, n := range names {
		out = append(out, models.Vacancy{ID: string(rune('a' + i)), Name: n, URL: "https://hh.ru/vacancy/" + n})
	}
	return out
}

func TestBrowseSession(t *testing.T) {
	h := newHarness()
	h.board.results = vacancies("Go", "Rust", "Zig")

	out := h.cmd("browse")
	assert.Equal(t, chat.Send, out.Kind)
	assert.Contains(t, out.Text, "Go")
	assert.True(t, out.Preview)
	require.NotNil(t, out.Keyboard)
	c, n, ok := h.cursor(t)
	assert.Equal(t, []any{1, 3, true}, []any{c, n, ok})

	out = h.press(chat.Next())
	assert.Equal(t, chat.Edit, out.Kind)
	assert.Contains(t, out.Text, "Rust")

	out = h.press(chat.Next())
	assert.Contains(t, out.Text, "Zig")
	c, _, _ = h.cursor(t)
	assert.Equal(t, 3, c)

	for i := 0; i < 2; i++ {
		out = h.press(chat.Next())
		assert.Equal(t, chat.AnswerText(msgNoMore), out)
	}
	c, _, _ = h.cursor(t)
	assert.Equal(t, 3, c, "cursor never passes the end")

	out = h.press(chat.Stop())
	assert.Equal(t, chat.EditText(msgStopped, nil), out)
	_, _, ok = h.cursor(t)
	assert.False(t, ok)
}

func TestBrowseFailuresKeepQueue(t *testing.T) {
	h := newHarness()
	h.board.results = vacancies("Go", "Rust")
	h.cmd("browse")

	h.board.results = nil
	out := h.cmd("browse")
	assert.Equal(t, chat.SendText(msgNothingFound, nil), out)

	h.board.searchErr = errors.New("502")
	out = h.cmd("browse")
	assert.Contains(t, out.Text, "Не удалось получить вакансии")

	c, n, ok := h.cursor(t)
	assert.Equal(t, []any{1, 2, true}, []any{c, n, ok})
}

func TestBrowseUsesFilters(t *testing.T) {
	h := newHarness()
	h.board.results = vacancies("Go")
	h.press(chat.SetField(models.FieldSalaryMin))
	h.text("150000")
	h.press(chat.Toggle(models.FieldSchedule, "remote"))

	h.cmd("browse")
	assert.Equal(t, "150000", h.board.params.Get("salary"))
	assert.Equal(t, []string{"remote"}, h.board.params["schedule"])
}

func TestBrowseWithoutFilters(t *testing.T) {
	h := newHarness()
	h.board.results = vacancies("Go")
	out := h.cmd("browse")
	assert.Equal(t, chat.Send, out.Kind)
	assert.Empty(t, h.board.params.Get("salary"))
	assert.Empty(t, h.board.params.Get("area"))
}

func TestUnauthorized(t *testing.T) {
	h := newHarness()
	h.creds.authorized = false

	out := h.cmd("browse")
	assert.Equal(t, chat.SendText(msgAuthorizeFirst, nil), out)

	out = h.cmd("resumes")
	assert.Equal(t, chat.SendText(msgAuthorizeFirst, nil), out)

	out = h.cmd("start")
	require.NotNil(t, out.Keyboard)
	assert.Equal(t, "https://hh.ru/oauth/authorize?state=x", out.Keyboard.Rows[0][0].URL)
}

func TestSalaryInput(t *testing.T) {
	h := newHarness()

	out := h.press(chat.SetField(models.FieldSalaryMin))
	assert.Equal(t, chat.Send, out.Kind)
	assert.Contains(t, out.Text, filter.Hint(models.FieldSalaryMin))
	assert.Equal(t, models.FieldSalaryMin, h.pending(t))

	out = h.text("70k")
	assert.Contains(t, out.Text, "Некорректное значение")
	assert.Equal(t, models.FieldSalaryMin, h.pending(t), "rejected input keeps the prompt")

	out = h.text("70000")
	assert.Contains(t, out.Text, "70000")
	assert.Equal(t, models.Field(""), h.pending(t))
	v, ok, err := h.mem.Get(context.Background(), user, string(models.FieldSalaryMin))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "70000", v)
}

func TestRegionExactMatch(t *testing.T) {
	h := newHarness()
	h.press(chat.SetField(models.FieldRegion))

	out := h.text("Москва")
	assert.Contains(t, out.Text, "Москва")
	all, err := h.mem.All(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "1", all[string(models.FieldRegion)])
	assert.Equal(t, "Москва", all[models.KeyRegionName])
	assert.Equal(t, models.Field(""), h.pending(t))
}

func TestRegionDisambiguation(t *testing.T) {
	h := newHarness()
	h.press(chat.SetField(models.FieldRegion))

	out := h.text("моск")
	require.NotNil(t, out.Keyboard)
	assert.Equal(t, chat.ChooseArea("2019").Token(), out.Keyboard.Rows[1][0].Data)
	assert.Equal(t, models.FieldRegion, h.pending(t))

	out = h.press(chat.ChooseArea("2019"))
	assert.Equal(t, chat.Edit, out.Kind)
	assert.Contains(t, out.Text, "Московская область")
	assert.Equal(t, models.Field(""), h.pending(t))
}

func TestRegionNotFoundEscapesInput(t *testing.T) {
	h := newHarness()
	h.press(chat.SetField(models.FieldRegion))

	out := h.text("a<b & c")
	assert.Contains(t, out.Text, "Некорректное значение")
	assert.NotContains(t, out.Text, "a<b")
	assert.Contains(t, out.Text, "a&lt;b &amp; c")
	assert.Equal(t, models.FieldRegion, h.pending(t))
}

func TestChooseAreaWhileOtherFieldPending(t *testing.T) {
	h := newHarness()
	h.press(chat.SetField(models.FieldSalaryMin))

	out := h.press(chat.ChooseArea("2019"))
	assert.Equal(t, chat.Edit, out.Kind)
	all, err := h.mem.All(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "2019", all[string(models.FieldRegion)])
	assert.Equal(t, "Московская область", all[models.KeyRegionName])
	_, ok := all[string(models.FieldSalaryMin)]
	assert.False(t, ok)
	assert.Equal(t, models.Field(""), h.pending(t))
}

func TestToggleTwiceRestores(t *testing.T) {
	h := newHarness()
	a := chat.Toggle(models.FieldEmploymentType, "part")

	out := h.press(a)
	assert.Equal(t, chat.Edit, out.Kind)
	assert.Contains(t, out.Keyboard.Rows[1][0].Text, "✅")

	out = h.press(a)
	assert.NotContains(t, out.Keyboard.Rows[1][0].Text, "✅")
	_, ok, err := h.mem.Get(context.Background(), user, string(models.FieldEmploymentType))
	require.NoError(t, err)
	assert.False(t, ok)

	out = h.press(chat.Toggle(models.FieldEmploymentType, "bogus"))
	assert.Equal(t, chat.Answer, out.Kind)
}

func TestPendingIsExclusive(t *testing.T) {
	h := newHarness()
	h.press(chat.SetField(models.FieldSalaryMin))
	h.press(chat.SetField(models.FieldKeyword))
	assert.Equal(t, models.FieldKeyword, h.pending(t))

	h.text("разработчик")
	_, ok, err := h.mem.Get(context.Background(), user, string(models.FieldSalaryMin))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommandClearsPending(t *testing.T) {
	for _, name := range []string{"settings", "cancel", "nonsense"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			h.press(chat.SetField(models.FieldKeyword))
			h.cmd(name)
			assert.Equal(t, models.Field(""), h.pending(t))

			out := h.text("разработчик")
			assert.Equal(t, chat.SendText(msgIdleText, nil), out)
		})
	}
}

func TestResetFilters(t *testing.T) {
	h := newHarness()
	h.press(chat.SetField(models.FieldKeyword))
	h.text("golang")
	out := h.press(chat.ResetFilters())
	assert.Equal(t, chat.Edit, out.Kind)
	all, err := h.mem.All(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestResumes(t *testing.T) {
	h := newHarness()
	out := h.cmd("resumes")
	assert.Equal(t, chat.SendText("У вас нет опубликованных резюме.", nil), out)

	h.board.resumes = []models.Resume{{ID: "r1", Title: "Go"}, {ID: "r2", Title: "Rust"}}
	out = h.cmd("resumes")
	require.NotNil(t, out.Keyboard)
	assert.Len(t, out.Keyboard.Rows, 2)

	h.press(chat.SetField(models.FieldSalaryMin))
	out = h.press(chat.ChooseResume("r2"))
	assert.Equal(t, chat.EditText("✅ Резюме по умолчанию сохранено!", nil), out)
	assert.Equal(t, "r2", h.creds.resume)
	assert.Equal(t, models.Field(""), h.pending(t))

	out = h.text("50000")
	assert.Equal(t, chat.SendText(msgIdleText, nil), out)
}

func TestRespondButton(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ok", nil, "✅ Отклик отправлен!"},
		{"test required", autoreply.ErrTestRequired, "📝 Для отклика нужно пройти тест на hh.ru"},
		{"no resume", autoreply.ErrNoResume, msgChooseResume},
		{"board error", errors.New("status 400"), "❗ HH: " + autoreply.OutcomeError(errors.New("status 400"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.replier.respondErr = tt.err
			assert.Equal(t, chat.AnswerText(tt.want), h.press(chat.Respond("a")))
		})
	}
}

func TestAutoReplyCommand(t *testing.T) {
	h := newHarness()
	h.replier.outcomes = []models.Outcome{{VacancyID: "a", Status: autoreply.StatusSent}}
	out := h.cmd("autoreply")
	assert.Equal(t, chat.SendText(chat.BatchSummary(h.replier.outcomes), nil), out)
}

func TestStartAuthorized(t *testing.T) {
	h := newHarness()
	out := h.cmd("start")
	assert.Contains(t, out.Text, "уже авторизован")

	u, err := h.mem.User(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, cid, u.ChatID)
}

func TestPanicBecomesNotice(t *testing.T) {
	h := newHarness()
	h.board.panics = true
	out := h.cmd("browse")
	assert.Equal(t, chat.SendText(msgGenericError, nil), out)
}
