// Package hh is a client for the hh.ru REST API.
package hh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-hh-autoreply/internal/config"
	"go-hh-autoreply/internal/metrics"
	"go-hh-autoreply/internal/models"
)

// APIError is a non-2xx answer. Body is kept for logs and must not be shown
// to users verbatim.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hh.ru returned status %d", e.Status)
}

// Reason extracts the machine-readable error value hh.ru puts in the body,
// e.g. "limit_exceeded" or "already_applied".
func (e *APIError) Reason() string {
	var body struct {
		Description string `json:"description"`
		Errors      []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"errors"`
	}
	if json.Unmarshal([]byte(e.Body), &body) != nil {
		return ""
	}
	for _, er := range body.Errors {
		if er.Value != "" {
			return er.Value
		}
		if er.Type != "" {
			return er.Type
		}
	}
	return body.Description
}

type Client struct {
	baseURL    string
	perPage    int
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient builds a client from config. m may be nil.
func NewClient(cfg config.HHConfig, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		perPage: cfg.PerPage,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewTransport(cfg.UserAgent, nil),
		},
		metrics: m,
	}
}

// do sends the request and decodes a 2xx JSON body into out (if non-nil).
func (c *Client) do(ctx context.Context, op, method, path, token string, query url.Values, form url.Values, out any) error {
	defer c.metrics.ObserveExternal("hh", op, time.Now())

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hh %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode hh %s response: %w", op, err)
	}
	return nil
}

type apiVacancy struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	AlternateURL string          `json:"alternate_url"`
	Salary       *models.Salary  `json:"salary"`
	Snippet      *models.Snippet `json:"snippet"`
	HasTest      bool            `json:"has_test"`
	Employer     *struct {
		Name string `json:"name"`
	} `json:"employer"`
	Area *struct {
		Name string `json:"name"`
	} `json:"area"`
	// Description is only present on the single-vacancy endpoint (HTML).
	Description string `json:"description"`
}

func (v apiVacancy) toModel() models.Vacancy {
	out := models.Vacancy{
		ID:      v.ID,
		Name:    v.Name,
		URL:     v.AlternateURL,
		Salary:  v.Salary,
		HasTest: v.HasTest,
	}
	if v.Snippet != nil {
		out.Snippet = *v.Snippet
	}
	if out.Snippet.Requirement == "" && out.Snippet.Responsibility == "" && v.Description != "" {
		out.Snippet.Responsibility = stripTags(v.Description)
	}
	if v.Employer != nil {
		out.Employer = v.Employer.Name
	}
	if v.Area != nil {
		out.Area = v.Area.Name
	}
	return out
}

// Search runs a vacancy search with the given filter parameters. page and
// per_page are added when absent.
func (c *Client) Search(ctx context.Context, token string, params url.Values) ([]models.Vacancy, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	if q.Get("page") == "" {
		q.Set("page", "0")
	}
	if q.Get("per_page") == "" && c.perPage > 0 {
		q.Set("per_page", strconv.Itoa(c.perPage))
	}

	var resp struct {
		Items []apiVacancy `json:"items"`
	}
	if err := c.do(ctx, "search", http.MethodGet, "/vacancies", token, q, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Vacancy, 0, len(resp.Items))
	for _, it := range resp.Items {
		out = append(out, it.toModel())
	}
	return out, nil
}

func (c *Client) Vacancy(ctx context.Context, token, id string) (models.Vacancy, error) {
	var v apiVacancy
	if err := c.do(ctx, "vacancy", http.MethodGet, "/vacancies/"+url.PathEscape(id), token, nil, nil, &v); err != nil {
		return models.Vacancy{}, err
	}
	return v.toModel(), nil
}

// Respond submits an application with a cover letter.
func (c *Client) Respond(ctx context.Context, token, resumeID, vacancyID, message string) error {
	form := url.Values{
		"vacancy_id": {vacancyID},
		"resume_id":  {resumeID},
		"message":    {message},
	}
	return c.do(ctx, "respond", http.MethodPost, "/negotiations", token, nil, form, nil)
}

type apiResume struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Skills   string   `json:"skills"`
	SkillSet []string `json:"skill_set"`
	Access   *struct {
		Type struct {
			ID string `json:"id"`
		} `json:"type"`
	} `json:"access"`
}

func (r apiResume) toModel() models.Resume {
	out := models.Resume{ID: r.ID, Title: r.Title, Skills: r.Skills}
	if out.Skills == "" && len(r.SkillSet) > 0 {
		out.Skills = strings.Join(r.SkillSet, ", ")
	}
	if r.Access != nil {
		out.Access = r.Access.Type.ID
	}
	return out
}

func (c *Client) Resumes(ctx context.Context, token string) ([]models.Resume, error) {
	var resp struct {
		Items []apiResume `json:"items"`
	}
	if err := c.do(ctx, "resumes", http.MethodGet, "/resumes/mine", token, nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Resume, 0, len(resp.Items))
	for _, r := range resp.Items {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (c *Client) Resume(ctx context.Context, token, id string) (models.Resume, error) {
	var r apiResume
	if err := c.do(ctx, "resume", http.MethodGet, "/resumes/"+url.PathEscape(id), token, nil, nil, &r); err != nil {
		return models.Resume{}, err
	}
	return r.toModel(), nil
}

// SuggestAreas returns regions whose name starts with text.
func (c *Client) SuggestAreas(ctx context.Context, text string) ([]models.Area, error) {
	var resp struct {
		Items []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"items"`
	}
	q := url.Values{"text": {text}, "locale": {"RU"}}
	if err := c.do(ctx, "suggest_areas", http.MethodGet, "/suggests/areas", "", q, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Area, 0, len(resp.Items))
	for _, it := range resp.Items {
		out = append(out, models.Area{ID: it.ID, Name: it.Text})
	}
	return out, nil
}

func (c *Client) Area(ctx context.Context, id string) (models.Area, error) {
	var a models.Area
	if err := c.do(ctx, "area", http.MethodGet, "/areas/"+url.PathEscape(id), "", nil, nil, &a); err != nil {
		return models.Area{}, err
	}
	return a, nil
}

func stripTags(s string) string {
	var b strings.Builder
	in := false
	for _, r := range s {
		switch {
		case r == '<':
			in = true
		case r == '>':
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
