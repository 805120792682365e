package models

// Resume is one of the user's resumes on hh.ru.
type Resume struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Access string `json:"access,omitempty"` // PUBLIC, CLIENTS, ...
	Skills string `json:"skills,omitempty"`
}

// Summary is the short text handed to the letter generator.
func (r Resume) Summary() string {
	if r.Skills == "" {
		return r.Title
	}
	if r.Title == "" {
		return r.Skills
	}
	return r.Title + ". " + r.Skills
}

// Area is an hh.ru region (city, oblast, country).
type Area struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
