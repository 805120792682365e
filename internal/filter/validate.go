package filter

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go-hh-autoreply/internal/models"
)

var (
	// ErrInvalid is wrapped by every *ValidationError.
	ErrInvalid       = errors.New("invalid value")
	ErrUnknownField  = errors.New("unknown filter field")
	ErrUnknownOption = errors.New("unknown option")
)

// ValidationError tells the user what the field expects.
type ValidationError struct {
	Field models.Field
	Hint  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

var hints = map[models.Field]string{
	models.FieldSalaryMin: "Укажите сумму в рублях. " +
		"Вакансии с указанной зарплатой ниже этого порога бот будет пропускать.\n" +
		"Пример: 70000",
	models.FieldRegion: "Введите город или область (часть названия). " +
		"Я покажу ближайшие совпадения для подтверждения.",
	models.FieldKeyword: "Введите ключевое слово. HH ищет по вхождению, " +
		"поэтому «маркетолог» подхватит и Digital-маркетолог, " +
		"и Директор по маркетингу.",
}

// Hint is the prompt shown when a single-value field awaits input.
func Hint(f models.Field) string {
	if h, ok := hints[f]; ok {
		return h
	}
	return "Введите значение для «" + f.Title() + "»."
}

// Validate trims input and checks it against the field's rule. It returns the
// value to store.
func Validate(f models.Field, input string) (string, error) {
	v := strings.TrimSpace(input)
	ok := false
	switch f {
	case models.FieldSalaryMin:
		ok = isDigits(v)
	case models.FieldKeyword:
		ok = utf8.RuneCountInString(v) >= 3
	case models.FieldRegion:
		ok = utf8.RuneCountInString(v) >= 2
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	if !ok {
		return "", &ValidationError{Field: f, Hint: Hint(f)}
	}
	return v, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
