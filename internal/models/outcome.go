package models

// Outcome is the per-candidate result of an auto-reply batch: either Status
// is set (success) or Error is.
type Outcome struct {
	VacancyID string `json:"vacancy_id"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (o Outcome) OK() bool {
	return o.Error == ""
}
