package models

// Field is a filter setting key.
type Field string

const (
	FieldRegion         Field = "region"
	FieldSalaryMin      Field = "salary_min"
	FieldKeyword        Field = "keyword"
	FieldSchedule       Field = "schedule"
	FieldEmploymentType Field = "employment_type"
	FieldWorkFormat     Field = "work_format"
)

// Reserved setting keys that are not filters.
const (
	KeyPending    = "pending"
	KeyRegionName = "region_name"
)

// Option is one member of a multi-select enumeration.
type Option struct {
	Code  string
	Title string
}

var (
	ScheduleOptions = []Option{
		{Code: "fullDay", Title: "Полный день"},
		{Code: "shift", Title: "Сменный график"},
		{Code: "flexible", Title: "Гибкий график"},
		{Code: "remote", Title: "Удалённая работа"},
		{Code: "flyInFlyOut", Title: "Вахта"},
	}
	EmploymentOptions = []Option{
		{Code: "full", Title: "Полная"},
		{Code: "part", Title: "Частичная"},
		{Code: "project", Title: "Проектная"},
		{Code: "volunteer", Title: "Волонтёрство"},
		{Code: "probation", Title: "Стажировка"},
	}
	WorkFormatOptions = []Option{
		{Code: "ON_SITE", Title: "На месте работодателя"},
		{Code: "REMOTE", Title: "Удалённо"},
		{Code: "HYBRID", Title: "Гибрид"},
		{Code: "FIELD_WORK", Title: "Разъездной"},
	}
)

// Fields lists every filter field in menu order.
var Fields = []Field{
	FieldSalaryMin,
	FieldRegion,
	FieldKeyword,
	FieldEmploymentType,
	FieldSchedule,
	FieldWorkFormat,
}

// MultiSelect reports whether the field holds a set of enum members.
func (f Field) MultiSelect() bool {
	return f.Options() != nil
}

// Options returns the enumeration of a multi-select field, nil otherwise.
func (f Field) Options() []Option {
	switch f {
	case FieldSchedule:
		return ScheduleOptions
	case FieldEmploymentType:
		return EmploymentOptions
	case FieldWorkFormat:
		return WorkFormatOptions
	}
	return nil
}

// Valid reports whether f is a known filter field.
func (f Field) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

func (f Field) Title() string {
	switch f {
	case FieldRegion:
		return "Регион"
	case FieldSalaryMin:
		return "Минимальная зарплата"
	case FieldKeyword:
		return "Ключевое слово"
	case FieldSchedule:
		return "График работы"
	case FieldEmploymentType:
		return "Тип занятости"
	case FieldWorkFormat:
		return "Формат работы"
	}
	return string(f)
}

// OptionTitle maps an enum code back to its label.
func (f Field) OptionTitle(code string) string {
	for _, o := range f.Options() {
		if o.Code == code {
			return o.Title
		}
	}
	return code
}

// Settings is the typed view of a user's stored settings.
type Settings struct {
	Region         string
	RegionName     string
	SalaryMin      string
	Keyword        string
	Schedule       []string
	EmploymentType []string
	WorkFormat     []string
	Pending        Field
}

// Values returns the stored set for a multi-select field.
func (s Settings) Values(f Field) []string {
	switch f {
	case FieldSchedule:
		return s.Schedule
	case FieldEmploymentType:
		return s.EmploymentType
	case FieldWorkFormat:
		return s.WorkFormat
	}
	return nil
}

// Value returns the stored text of a single-value field.
func (s Settings) Value(f Field) string {
	switch f {
	case FieldRegion:
		if s.RegionName != "" {
			return s.RegionName
		}
		return s.Region
	case FieldSalaryMin:
		return s.SalaryMin
	case FieldKeyword:
		return s.Keyword
	}
	return ""
}
