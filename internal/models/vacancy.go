package models

// Vacancy is a search result as returned by the job board. It is stored
// verbatim in the vacancy queue, hence the JSON tags.
type Vacancy struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	URL      string  `json:"alternate_url"`
	Salary   *Salary `json:"salary,omitempty"`
	Snippet  Snippet `json:"snippet"`
	HasTest  bool    `json:"has_test"`
	Employer string  `json:"employer,omitempty"`
	Area     string  `json:"area,omitempty"`
}

type Salary struct {
	From     *int   `json:"from,omitempty"`
	To       *int   `json:"to,omitempty"`
	Currency string `json:"currency,omitempty"`
	Gross    *bool  `json:"gross,omitempty"`
}

type Snippet struct {
	Requirement    string `json:"requirement,omitempty"`
	Responsibility string `json:"responsibility,omitempty"`
}

// Description returns the best free-text snippet available.
func (v Vacancy) Description() string {
	if v.Snippet.Requirement != "" {
		return v.Snippet.Requirement
	}
	return v.Snippet.Responsibility
}
