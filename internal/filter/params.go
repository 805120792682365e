package filter

import (
	"net/url"

	"go-hh-autoreply/internal/models"
)

// SettingsFrom builds the typed record from the key/value substrate.
// Unknown keys are ignored.
func SettingsFrom(kv map[string]string) models.Settings {
	return models.Settings{
		Region:         kv[string(models.FieldRegion)],
		RegionName:     kv[models.KeyRegionName],
		SalaryMin:      kv[string(models.FieldSalaryMin)],
		Keyword:        kv[string(models.FieldKeyword)],
		Schedule:       ParseSet(kv[string(models.FieldSchedule)]),
		EmploymentType: ParseSet(kv[string(models.FieldEmploymentType)]),
		WorkFormat:     ParseSet(kv[string(models.FieldWorkFormat)]),
		Pending:        models.Field(kv[models.KeyPending]),
	}
}

// ParamsFrom maps stored filters onto hh.ru search parameters. Absent
// filters are omitted; nothing is defaulted.
func ParamsFrom(s models.Settings) url.Values {
	p := url.Values{}
	if s.Keyword != "" {
		p.Set("text", s.Keyword)
	}
	if s.Region != "" {
		p.Set("area", s.Region)
	}
	if s.SalaryMin != "" {
		p.Set("salary", s.SalaryMin)
	}
	for _, v := range s.Schedule {
		p.Add("schedule", v)
	}
	for _, v := range s.EmploymentType {
		p.Add("employment", v)
	}
	for _, v := range s.WorkFormat {
		p.Add("work_format", v)
	}
	return p
}
