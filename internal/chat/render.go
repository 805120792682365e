package chat

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"go-hh-autoreply/internal/models"
)

// DescriptionLimit is the number of runes of snippet text shown on a card.
const DescriptionLimit = 300

var printer = message.NewPrinter(language.Russian)

var currencySigns = map[string]string{
	"RUR": "₽",
	"RUB": "₽",
	"USD": "$",
	"EUR": "€",
	"KZT": "₸",
	"UAH": "₴",
	"BYR": "Br",
}

var fieldIcons = map[models.Field]string{
	models.FieldSalaryMin:      "💰",
	models.FieldRegion:         "🌍",
	models.FieldKeyword:        "🔎",
	models.FieldEmploymentType: "📋",
	models.FieldSchedule:       "🕒",
	models.FieldWorkFormat:     "🏢",
}

func formatAmount(n int) string {
	return printer.Sprintf("%d", n)
}

// SalaryLine renders a salary fork, e.g. "100 000–150 000 ₽", "от 80 000 ₽".
func SalaryLine(s *models.Salary) string {
	if s == nil || (s.From == nil && s.To == nil) {
		return "не указана"
	}
	sign := currencySigns[s.Currency]
	if sign == "" {
		sign = s.Currency
	}
	var out string
	switch {
	case s.From != nil && s.To != nil:
		out = formatAmount(*s.From) + "–" + formatAmount(*s.To)
	case s.From != nil:
		out = "от " + formatAmount(*s.From)
	default:
		out = "до " + formatAmount(*s.To)
	}
	if sign != "" {
		out += " " + sign
	}
	return out
}

var highlightReplacer = strings.NewReplacer("<highlighttext>", "", "</highlighttext>", "")

// cleanSnippet strips hh.ru search highlighting, truncates and escapes.
func cleanSnippet(s string, limit int) string {
	s = strings.TrimSpace(highlightReplacer.Replace(s))
	if utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit]) + "…"
	}
	return html.EscapeString(s)
}

// Card renders one vacancy with its respond/next/stop buttons.
func Card(v models.Vacancy) (string, *Keyboard) {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(v.Name))
	if v.Employer != "" {
		fmt.Fprintf(&b, "🏢 %s", html.EscapeString(v.Employer))
		if v.Area != "" {
			fmt.Fprintf(&b, ", %s", html.EscapeString(v.Area))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "💰 %s\n", SalaryLine(v.Salary))
	if desc := cleanSnippet(v.Description(), DescriptionLimit); desc != "" {
		b.WriteString(desc + "\n")
	}
	if v.HasTest {
		b.WriteString("📝 Работодатель просит пройти тест\n")
	}
	b.WriteString(html.EscapeString(v.URL))

	kb := Column(
		ActionButton("🔔 Откликнуться", Respond(v.ID)),
		ActionButton("➡️ Дальше", Next()),
		ActionButton("❌ Стоп", Stop()),
	)
	return b.String(), kb
}

const HelpText = "/browse — посмотреть вакансии\n" +
	"/settings — настроить фильтры\n" +
	"/filters — сразу к фильтрам\n" +
	"/resumes — выбрать резюме\n" +
	"/autoreply — откликнуться на подходящие вакансии\n" +
	"/cancel — отменить ввод"

// Authorize is the first message for a user without hh.ru credentials.
func Authorize(url string) (string, *Keyboard) {
	return "Чтобы я мог откликаться от твоего имени, авторизуйся на hh.ru:",
		Column(LinkButton("👉 Начать автоотклики", url))
}

func SettingsMenu() (string, *Keyboard) {
	return "⚙️ Настройки поиска вакансий", Column(
		ActionButton("📑 Фильтры", OpenMenu(MenuFilters)),
		ActionButton("⬅️ Назад", OpenMenu(MenuMain)),
	)
}

func fieldValue(s models.Settings, f models.Field) string {
	if f.MultiSelect() {
		vals := s.Values(f)
		titles := make([]string, 0, len(vals))
		for _, v := range vals {
			titles = append(titles, f.OptionTitle(v))
		}
		return strings.Join(titles, ", ")
	}
	return s.Value(f)
}

// FiltersMenu shows every filter with its current value.
func FiltersMenu(s models.Settings) (string, *Keyboard) {
	var b strings.Builder
	b.WriteString("📑 Фильтры\n")
	kb := &Keyboard{}
	for _, f := range models.Fields {
		val := fieldValue(s, f)
		shown := val
		if shown == "" {
			shown = "—"
		}
		fmt.Fprintf(&b, "\n%s %s: %s", fieldIcons[f], f.Title(), html.EscapeString(shown))

		a := SetField(f)
		if f.MultiSelect() {
			a = Submenu(f)
		}
		kb.Rows = append(kb.Rows, []Button{ActionButton(fieldIcons[f]+" "+f.Title(), a)})
	}
	kb.Rows = append(kb.Rows,
		[]Button{ActionButton("🧹 Сбросить фильтры", ResetFilters())},
		[]Button{ActionButton("⬅️ Назад", OpenMenu(MenuSettings))},
	)
	return b.String(), kb
}

// MultiSelect renders the option list of f with ✅ on chosen members.
func MultiSelect(f models.Field, chosen []string) (string, *Keyboard) {
	kb := &Keyboard{}
	for _, o := range f.Options() {
		mark := ""
		for _, c := range chosen {
			if c == o.Code {
				mark = "✅ "
				break
			}
		}
		kb.Rows = append(kb.Rows, []Button{ActionButton(mark+o.Title, Toggle(f, o.Code))})
	}
	kb.Rows = append(kb.Rows, []Button{ActionButton("⬅️ Назад", OpenMenu(MenuFilters))})
	return fmt.Sprintf("%s Выберите: %s", fieldIcons[f], strings.ToLower(f.Title())), kb
}

func AreaChoices(candidates []models.Area) (string, *Keyboard) {
	kb := &Keyboard{}
	for _, a := range candidates {
		kb.Rows = append(kb.Rows, []Button{ActionButton(a.Name, ChooseArea(a.ID))})
	}
	kb.Rows = append(kb.Rows, []Button{ActionButton("⬅️ Назад", OpenMenu(MenuFilters))})
	return "🌍 Уточните регион:", kb
}

func ResumeChoices(resumes []models.Resume) (string, *Keyboard) {
	kb := &Keyboard{}
	for _, r := range resumes {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		kb.Rows = append(kb.Rows, []Button{ActionButton("📄 "+title, ChooseResume(r.ID))})
	}
	return "Выберите резюме по умолчанию:", kb
}

// BatchSummary reports an auto-reply run.
func BatchSummary(outcomes []models.Outcome) string {
	if len(outcomes) == 0 {
		return "🤖 Автоотклик: подходящих вакансий не найдено."
	}
	sent := 0
	var b strings.Builder
	for _, o := range outcomes {
		if o.OK() {
			sent++
			continue
		}
		fmt.Fprintf(&b, "\n❗ %s: %s", html.EscapeString(o.VacancyID), html.EscapeString(o.Error))
	}
	return fmt.Sprintf("🤖 Автоотклик: отправлено %d из %d.", sent, len(outcomes)) + b.String()
}
